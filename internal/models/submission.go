package models

import (
	"time"
)

type SubmissionStatus string

const (
	SubmissionReady      SubmissionStatus = "ready"
	SubmissionInProgress SubmissionStatus = "in_progress"
	SubmissionPaused     SubmissionStatus = "paused"
	SubmissionSubmitted  SubmissionStatus = "submitted"
	SubmissionMarked     SubmissionStatus = "marked"
)

type MarkedBy string

const (
	MarkedAuto   MarkedBy = "auto"
	MarkedManual MarkedBy = "manual"
)

// Submission is one student's attempt at one exam. The (ExamID, StudentID)
// uniqueness constraint is the real backstop against concurrent start
// requests; the application-level check only gives a nicer error.
type Submission struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	ExamID    uint             `json:"exam_id" gorm:"not null;uniqueIndex:idx_exam_student"`
	StudentID string           `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_exam_student;index"`
	Status    SubmissionStatus `json:"status" gorm:"not null;default:ready;index"`

	// Timing. EndsAt = StartedAt + duration; recomputed on resume so the
	// banked remainder is restored exactly.
	StartedAt            *time.Time `json:"started_at"`
	EndsAt               *time.Time `json:"ends_at"`
	TimeRemainingOnPause int        `json:"time_remaining_on_pause"` // seconds, only while paused
	PauseCount           int        `json:"pause_count"`

	// Scoring. TotalScore is always the full recomputed sum of
	// Answer.AwardedMarks, never an incremental delta.
	TotalScore  float64    `json:"total_score"`
	MarkedAt    *time.Time `json:"marked_at"`
	MarkedBy    MarkedBy   `json:"marked_by,omitempty" gorm:"size:20"`
	IsPublished bool       `json:"is_published" gorm:"not null;default:false;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam    Exam     `json:"exam" gorm:"foreignKey:ExamID"`
	Answers []Answer `json:"answers" gorm:"foreignKey:SubmissionID"`
}

func (Submission) TableName() string {
	return "submissions"
}

// RemainingSeconds returns the wall-clock seconds left, never negative.
func (s *Submission) RemainingSeconds(now time.Time) int {
	if s.EndsAt == nil {
		return 0
	}
	remaining := int(s.EndsAt.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Answer holds one attempted question. AwardedMarks is written only by the
// marking engine or an authorized override.
type Answer struct {
	ID           uint `json:"id" gorm:"primaryKey"`
	SubmissionID uint `json:"submission_id" gorm:"not null;uniqueIndex:idx_submission_question"`
	QuestionID   uint `json:"question_id" gorm:"not null;uniqueIndex:idx_submission_question;index"`

	AnswerText     string `json:"answer_text" gorm:"type:text"`
	SelectedOption *int   `json:"selected_option"`

	AwardedMarks   float64 `json:"awarded_marks"`
	IsOverridden   bool    `json:"is_overridden" gorm:"not null;default:false"`
	OverrideReason *string `json:"override_reason" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Question Question `json:"question" gorm:"foreignKey:QuestionID"`
}

func (Answer) TableName() string {
	return "answers"
}
