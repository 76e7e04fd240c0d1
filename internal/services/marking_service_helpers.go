package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/brightclass/exam-service/internal/models"
)

// errUnknownQuestionType flags an answer the engine has no strategy for.
// The marking flow scores it zero instead of failing the whole session.
var errUnknownQuestionType = errors.New("unknown question type")

type markFunc func(answer *models.Answer, question *models.Question) (float64, error)

// markers dispatches scoring by question type.
var markers = map[models.QuestionType]markFunc{
	models.Objective: markObjective,
	models.Theory:    markTheory,
	models.FillBlank: markFillBlank,
}

// MarkAnswer scores one answer against its question's key.
func MarkAnswer(answer *models.Answer, question *models.Question) (float64, error) {
	mark, ok := markers[question.Type]
	if !ok {
		return 0, fmt.Errorf("%w %q", errUnknownQuestionType, question.Type)
	}
	return mark(answer, question)
}

// markObjective is all-or-nothing on the selected option index.
func markObjective(answer *models.Answer, question *models.Question) (float64, error) {
	var key models.ObjectiveKey
	if err := json.Unmarshal(question.AnswerKey, &key); err != nil {
		return 0, fmt.Errorf("invalid objective key: %w", err)
	}

	if answer.SelectedOption == nil {
		return 0, nil
	}
	if *answer.SelectedOption == key.CorrectOption {
		return question.Marks, nil
	}
	return 0, nil
}

// markTheory sums the marks of every keyword found in the answer text,
// capped at the question's marks. Matching is case-insensitive on whole
// words, so "art" never matches inside "start".
func markTheory(answer *models.Answer, question *models.Question) (float64, error) {
	var key models.TheoryKey
	if err := json.Unmarshal(question.AnswerKey, &key); err != nil {
		return 0, fmt.Errorf("invalid theory key: %w", err)
	}

	if strings.TrimSpace(answer.AnswerText) == "" {
		return 0, nil
	}

	total := 0.0
	for _, kw := range key.Keywords {
		word := strings.TrimSpace(kw.Word)
		if word == "" {
			continue
		}

		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
		if err != nil {
			return 0, fmt.Errorf("invalid keyword %q: %w", kw.Word, err)
		}

		if pattern.MatchString(answer.AnswerText) {
			total += kw.Marks
		}
	}

	if total > question.Marks {
		total = question.Marks
	}
	return total, nil
}

// markFillBlank compares the trimmed answer against each accepted literal,
// case-insensitively. Any match earns full marks.
func markFillBlank(answer *models.Answer, question *models.Question) (float64, error) {
	var key models.FillBlankKey
	if err := json.Unmarshal(question.AnswerKey, &key); err != nil {
		return 0, fmt.Errorf("invalid fill-blank key: %w", err)
	}

	given := strings.TrimSpace(answer.AnswerText)
	if given == "" {
		return 0, nil
	}

	for _, accepted := range key.AcceptedAnswers {
		if strings.EqualFold(given, strings.TrimSpace(accepted)) {
			return question.Marks, nil
		}
	}
	return 0, nil
}
