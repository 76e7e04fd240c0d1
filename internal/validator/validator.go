package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/brightclass/exam-service/internal/models"
)

// Validator wraps the struct validator with the service's custom rules.
type Validator struct {
	validate *validator.Validate
}

var sessionPattern = regexp.MustCompile(`^\d{4}/\d{4}$`)

// New creates a validator with all custom rules registered.
func New() *Validator {
	validate := validator.New()

	// Academic session, e.g. "2025/2026"
	validate.RegisterValidation("academic_session", func(fl validator.FieldLevel) bool {
		return sessionPattern.MatchString(fl.Field().String())
	})

	// Exam duration in minutes (5-300)
	validate.RegisterValidation("exam_duration", func(fl validator.FieldLevel) bool {
		duration := fl.Field().Int()
		return duration >= 5 && duration <= 300
	})

	// Question type
	validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		switch models.QuestionType(fl.Field().String()) {
		case models.Objective, models.Theory, models.FillBlank:
			return true
		}
		return false
	})

	return &Validator{validate: validate}
}

// Validate runs struct validation and returns ValidationErrors, or nil.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every failed field of one request.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// ToValidationErrors converts go-playground errors into the service's shape.
func ToValidationErrors(err error) ValidationErrors {
	var out ValidationErrors

	if fieldErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrors {
			out = append(out, ValidationError{
				Field:   strings.ToLower(fe.Field()),
				Message: messageForTag(fe),
				Value:   fe.Value(),
				Rule:    fe.Tag(),
			})
		}
		return out
	}

	return ValidationErrors{{
		Field:   "request",
		Message: err.Error(),
		Rule:    "invalid",
	}}
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "academic_session":
		return "must look like 2025/2026"
	case "exam_duration":
		return "must be between 5 and 300 minutes"
	case "question_type":
		return "must be objective, theory or fill_blank"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
