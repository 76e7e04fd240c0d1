package validator

import (
	"fmt"
	"time"

	"github.com/brightclass/exam-service/internal/models"
)

// Allowed session transitions. Only a running session can be submitted; a
// paused one must resume first. Submitted and marked are terminal for
// students; only the marking engine moves submitted to marked.
var allowedTransitions = map[models.SubmissionStatus][]models.SubmissionStatus{
	models.SubmissionReady:      {models.SubmissionInProgress},
	models.SubmissionInProgress: {models.SubmissionPaused, models.SubmissionSubmitted},
	models.SubmissionPaused:     {models.SubmissionInProgress},
	models.SubmissionSubmitted:  {models.SubmissionMarked},
	models.SubmissionMarked:     {},
}

// ValidateStatusTransition checks one edge of the session state machine.
func (v *Validator) ValidateStatusTransition(current, next models.SubmissionStatus) ValidationErrors {
	for _, allowed := range allowedTransitions[current] {
		if next == allowed {
			return nil
		}
	}

	return ValidationErrors{{
		Field:   "status",
		Message: fmt.Sprintf("cannot transition from %s to %s", current, next),
		Value:   next,
		Rule:    "status_transition",
	}}
}

// ValidateSessionBegin checks that a student may move a session into
// in_progress right now.
func (v *Validator) ValidateSessionBegin(exam *models.Exam, now time.Time) ValidationErrors {
	var errors ValidationErrors

	if exam.StartAt != nil && now.Before(*exam.StartAt) {
		errors = append(errors, ValidationError{
			Field:   "start_at",
			Message: "exam window has not opened yet",
			Value:   exam.StartAt,
			Rule:    "business_logic",
		})
	}

	if exam.HasEnded(now) {
		errors = append(errors, ValidationError{
			Field:   "end_at",
			Message: "exam window has closed",
			Value:   exam.EndAt,
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidatePause checks the pause budget before banking remaining time.
func (v *Validator) ValidatePause(submission *models.Submission, maxPauses int) ValidationErrors {
	if maxPauses > 0 && submission.PauseCount >= maxPauses {
		return ValidationErrors{{
			Field:   "pause_count",
			Message: "maximum pauses reached",
			Value:   submission.PauseCount,
			Rule:    "business_logic",
		}}
	}
	return nil
}

// ValidateOverride checks an answer-score override against the question.
func (v *Validator) ValidateOverride(marks float64, question *models.Question) ValidationErrors {
	var errors ValidationErrors

	if marks < 0 {
		errors = append(errors, ValidationError{
			Field:   "marks",
			Message: "cannot be negative",
			Value:   marks,
			Rule:    "business_logic",
		})
	}

	if question != nil && marks > question.Marks {
		errors = append(errors, ValidationError{
			Field:   "marks",
			Message: fmt.Sprintf("cannot exceed question marks (%.1f)", question.Marks),
			Value:   marks,
			Rule:    "business_logic",
		})
	}

	return errors
}
