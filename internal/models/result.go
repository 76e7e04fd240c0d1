package models

import (
	"time"
)

// CAMaxScore caps the continuous-assessment component of a score item.
const CAMaxScore = 30.0

// Result is one student's consolidated term report: one row per
// (student, term, session), updated in place by each subject publish.
type Result struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	SchoolID  string `json:"school_id" gorm:"not null;index;size:255"`
	StudentID string `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_student_term_session"`
	Term      int    `json:"term" gorm:"not null;uniqueIndex:idx_student_term_session"`
	Session   string `json:"session" gorm:"not null;size:20;uniqueIndex:idx_student_term_session"`

	Average  float64 `json:"average"`
	Position int     `json:"position"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Items []ScoreItem `json:"items" gorm:"foreignKey:ResultID"`
}

func (Result) TableName() string {
	return "results"
}

// ScoreItem is one subject's entry on a Result. The CA component is capped
// at CAMaxScore regardless of what was recorded upstream.
type ScoreItem struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ResultID  uint   `json:"result_id" gorm:"not null;uniqueIndex:idx_result_subject"`
	SubjectID string `json:"subject_id" gorm:"not null;size:255;uniqueIndex:idx_result_subject"`

	CAScore   float64 `json:"ca_score"`
	ExamScore float64 `json:"exam_score"`
	Total     float64 `json:"total"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ScoreItem) TableName() string {
	return "score_items"
}

// ComputeTotal recomputes the item total after either component changes.
func (si *ScoreItem) ComputeTotal() {
	ca := si.CAScore
	if ca > CAMaxScore {
		ca = CAMaxScore
	}
	si.CAScore = ca
	si.Total = ca + si.ExamScore
}

// RecomputeAverage refreshes the result-level average from its items.
func (r *Result) RecomputeAverage() {
	if len(r.Items) == 0 {
		r.Average = 0
		return
	}
	sum := 0.0
	for _, item := range r.Items {
		sum += item.Total
	}
	r.Average = sum / float64(len(r.Items))
}
