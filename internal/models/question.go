package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	Objective QuestionType = "objective"
	Theory    QuestionType = "theory"
	FillBlank QuestionType = "fill_blank"
)

// Question belongs to exactly one Exam and is never mutated by this service.
// The answer key is stored as JSONB and decoded per type by the marking
// engine; it must be stripped before questions are handed to a student.
type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	ExamID uint         `json:"exam_id" gorm:"not null;index"`
	Type   QuestionType `json:"type" gorm:"not null;index"`
	Text   string       `json:"text" gorm:"type:text;not null" validate:"required"`
	Marks  float64      `json:"marks" gorm:"not null" validate:"required,gt=0"`
	Order  int          `json:"order" gorm:"default:0"`

	// Type-specific grading data (ObjectiveKey, TheoryKey, FillBlankKey)
	AnswerKey datatypes.JSON `json:"answer_key,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam Exam `json:"-" gorm:"foreignKey:ExamID"`
}

func (Question) TableName() string {
	return "questions"
}

// ===== ANSWER KEY SCHEMAS =====

// ObjectiveKey grades all-or-nothing on the selected option index.
type ObjectiveKey struct {
	Options       []string `json:"options" validate:"min=2,max=10"`
	CorrectOption int      `json:"correct_option" validate:"min=0"`
}

// TheoryKey awards the sum of matched keyword values, capped at the
// question's marks.
type TheoryKey struct {
	Keywords []TheoryKeyword `json:"keywords" validate:"min=1,dive"`
}

type TheoryKeyword struct {
	Word  string  `json:"word" validate:"required"`
	Marks float64 `json:"marks" validate:"gt=0"`
}

// FillBlankKey grades all-or-nothing against any accepted literal,
// case-insensitive and whitespace-trimmed.
type FillBlankKey struct {
	AcceptedAnswers []string `json:"accepted_answers" validate:"min=1"`
}
