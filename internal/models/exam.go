package models

import (
	"time"

	"gorm.io/gorm"
)

type Exam struct {
	ID    uint    `json:"id" gorm:"primaryKey"`
	Title string  `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Notes *string `json:"notes" gorm:"type:text" validate:"omitempty,max=1000"`

	// Academic placement
	SchoolID    string `json:"school_id" gorm:"not null;index;size:255"`
	ClassroomID string `json:"classroom_id" gorm:"not null;index;size:255"`
	SubjectID   string `json:"subject_id" gorm:"not null;index;size:255"`
	Term        int    `json:"term" gorm:"not null" validate:"required,min=1,max=3"`
	Session     string `json:"session" gorm:"not null;size:20" validate:"required"` // e.g. "2025/2026"

	// Timing
	Duration  int        `json:"duration" gorm:"not null" validate:"required,min=5,max=300"` // minutes
	MaxPauses int        `json:"max_pauses" gorm:"default:3" validate:"min=0,max=10"`
	StartAt   *time.Time `json:"start_at"`
	EndAt     *time.Time `json:"end_at"`

	// Scoring. TotalMarks is recomputed whenever questions are attached;
	// everything else is immutable once the question set exists.
	TotalMarks float64 `json:"total_marks" gorm:"not null;default:0"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions   []Question   `json:"questions" gorm:"foreignKey:ExamID"`
	Submissions []Submission `json:"-" gorm:"foreignKey:ExamID"`
}

func (Exam) TableName() string {
	return "exams"
}

// HasEnded reports whether the scheduled window is over. Exams without a
// scheduled end never "end" on their own; they are closed by an admin.
func (e *Exam) HasEnded(now time.Time) bool {
	return e.EndAt != nil && !now.Before(*e.EndAt)
}
