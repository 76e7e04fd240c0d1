package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gorm.io/datatypes"

	"github.com/brightclass/exam-service/internal/models"
)

func mustKey(t *testing.T, key interface{}) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return datatypes.JSON(raw)
}

func intPtr(v int) *int { return &v }

func TestMarkAnswer_Objective(t *testing.T) {
	question := &models.Question{
		Type:  models.Objective,
		Marks: 5,
	}

	tests := []struct {
		name     string
		key      models.ObjectiveKey
		selected *int
		want     float64
	}{
		{
			name:     "correct option earns full marks",
			key:      models.ObjectiveKey{Options: []string{"a", "b", "c"}, CorrectOption: 1},
			selected: intPtr(1),
			want:     5,
		},
		{
			name:     "wrong option earns zero",
			key:      models.ObjectiveKey{Options: []string{"a", "b", "c"}, CorrectOption: 1},
			selected: intPtr(2),
			want:     0,
		},
		{
			name:     "no selection earns zero",
			key:      models.ObjectiveKey{Options: []string{"a", "b", "c"}, CorrectOption: 0},
			selected: nil,
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			question.AnswerKey = mustKey(t, tt.key)
			answer := &models.Answer{SelectedOption: tt.selected}

			got, err := MarkAnswer(answer, question)
			if err != nil {
				t.Fatalf("MarkAnswer() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("MarkAnswer() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMarkAnswer_Theory(t *testing.T) {
	tests := []struct {
		name          string
		keywords      []models.TheoryKeyword
		questionMarks float64
		answerText    string
		want          float64
	}{
		{
			name: "only matched keywords score",
			keywords: []models.TheoryKeyword{
				{Word: "sunlight", Marks: 4},
				{Word: "chlorophyll", Marks: 6},
			},
			questionMarks: 10,
			answerText:    "Plants need sunlight to grow.",
			want:          4,
		},
		{
			name: "all keywords matched",
			keywords: []models.TheoryKeyword{
				{Word: "sunlight", Marks: 4},
				{Word: "chlorophyll", Marks: 6},
			},
			questionMarks: 10,
			answerText:    "Chlorophyll absorbs sunlight.",
			want:          10,
		},
		{
			name: "keyword matching is whole-word, art does not match start",
			keywords: []models.TheoryKeyword{
				{Word: "art", Marks: 5},
			},
			questionMarks: 5,
			answerText:    "Let us start the exam.",
			want:          0,
		},
		{
			name: "matching is case-insensitive",
			keywords: []models.TheoryKeyword{
				{Word: "Mitochondria", Marks: 3},
			},
			questionMarks: 5,
			answerText:    "the MITOCHONDRIA is the powerhouse of the cell",
			want:          3,
		},
		{
			name: "sum is capped at question marks",
			keywords: []models.TheoryKeyword{
				{Word: "osmosis", Marks: 6},
				{Word: "diffusion", Marks: 6},
			},
			questionMarks: 10,
			answerText:    "osmosis and diffusion both move particles",
			want:          10,
		},
		{
			name: "repeated keyword counts once",
			keywords: []models.TheoryKeyword{
				{Word: "energy", Marks: 4},
			},
			questionMarks: 10,
			answerText:    "energy energy energy",
			want:          4,
		},
		{
			name: "empty answer earns zero",
			keywords: []models.TheoryKeyword{
				{Word: "gravity", Marks: 5},
			},
			questionMarks: 5,
			answerText:    "   ",
			want:          0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			question := &models.Question{
				Type:      models.Theory,
				Marks:     tt.questionMarks,
				AnswerKey: mustKey(t, models.TheoryKey{Keywords: tt.keywords}),
			}
			answer := &models.Answer{AnswerText: tt.answerText}

			got, err := MarkAnswer(answer, question)
			if err != nil {
				t.Fatalf("MarkAnswer() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("MarkAnswer() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMarkAnswer_FillBlank(t *testing.T) {
	question := &models.Question{
		Type:      models.FillBlank,
		Marks:     2,
		AnswerKey: mustKey(t, models.FillBlankKey{AcceptedAnswers: []string{"Paris"}}),
	}

	tests := []struct {
		name       string
		answerText string
		want       float64
	}{
		{name: "exact match", answerText: "Paris", want: 2},
		{name: "surrounding whitespace is trimmed", answerText: "  Paris  ", want: 2},
		{name: "case does not matter", answerText: "pArIs", want: 2},
		{name: "wrong answer", answerText: "London", want: 0},
		{name: "empty answer", answerText: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer := &models.Answer{AnswerText: tt.answerText}

			got, err := MarkAnswer(answer, question)
			if err != nil {
				t.Fatalf("MarkAnswer() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("MarkAnswer() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMarkAnswer_UnknownType(t *testing.T) {
	question := &models.Question{Type: "essay", Marks: 5}
	answer := &models.Answer{AnswerText: "anything"}

	_, err := MarkAnswer(answer, question)
	if !errors.Is(err, errUnknownQuestionType) {
		t.Fatalf("MarkAnswer() error = %v, want errUnknownQuestionType", err)
	}
}

// seedSubmittedSession builds an exam with one question of each type and a
// submitted session answering all three.
func seedSubmittedSession(t *testing.T, f *fakeRepository) uint {
	t.Helper()
	seedUsers(f)
	seedExam(f)

	f.questions[1] = &models.Question{
		ID: 1, ExamID: 1, Type: models.Objective, Marks: 5,
		AnswerKey: mustKey(t, models.ObjectiveKey{Options: []string{"a", "b"}, CorrectOption: 0}),
	}
	f.questions[2] = &models.Question{
		ID: 2, ExamID: 1, Type: models.Theory, Marks: 10,
		AnswerKey: mustKey(t, models.TheoryKey{Keywords: []models.TheoryKeyword{
			{Word: "sunlight", Marks: 4},
			{Word: "chlorophyll", Marks: 6},
		}}),
	}
	f.questions[3] = &models.Question{
		ID: 3, ExamID: 1, Type: models.FillBlank, Marks: 2,
		AnswerKey: mustKey(t, models.FillBlankKey{AcceptedAnswers: []string{"Paris"}}),
	}

	sub := &models.Submission{
		ID: 1, ExamID: 1, StudentID: "student-1", Status: models.SubmissionSubmitted,
	}
	f.submissions[1] = sub
	f.nextSubmissionID = 2

	f.answers[1] = map[uint]*models.Answer{
		1: {SubmissionID: 1, QuestionID: 1, SelectedOption: intPtr(1)},         // wrong option: 0
		2: {SubmissionID: 1, QuestionID: 2, AnswerText: "Plants use sunlight"}, // one keyword: 4
		3: {SubmissionID: 1, QuestionID: 3, AnswerText: " paris "},             // trimmed match: 2
	}

	return sub.ID
}

func TestMarkingService_AutoMark(t *testing.T) {
	ctx := context.Background()

	t.Run("marks every answer and totals the session", func(t *testing.T) {
		f := newFakeRepository()
		id := seedSubmittedSession(t, f)
		svc, publisher := newMarkingServiceForTest(f)

		resp, err := svc.AutoMark(ctx, id, "teacher-1")
		if err != nil {
			t.Fatalf("AutoMark() error = %v", err)
		}

		if resp.TotalScore != 6 {
			t.Errorf("total score = %v, want 6", resp.TotalScore)
		}
		if resp.Status != models.SubmissionMarked {
			t.Errorf("status = %s, want marked", resp.Status)
		}
		if resp.MarkedBy != models.MarkedAuto {
			t.Errorf("marked_by = %s, want auto", resp.MarkedBy)
		}
		if f.submissions[id].TotalScore != 6 {
			t.Errorf("stored total = %v, want 6", f.submissions[id].TotalScore)
		}
		if len(publisher.GetPublishedEvents()) == 0 {
			t.Error("expected a submission.marked event")
		}
	})

	t.Run("a question type without a marker scores zero", func(t *testing.T) {
		f := newFakeRepository()
		id := seedSubmittedSession(t, f)
		f.questions[4] = &models.Question{ID: 4, ExamID: 1, Type: "essay", Marks: 5}
		f.answers[id][4] = &models.Answer{SubmissionID: id, QuestionID: 4, AnswerText: "long prose"}
		svc, _ := newMarkingServiceForTest(f)

		resp, err := svc.AutoMark(ctx, id, "teacher-1")
		if err != nil {
			t.Fatalf("AutoMark() error = %v", err)
		}

		if resp.Status != models.SubmissionMarked {
			t.Errorf("status = %s, want marked", resp.Status)
		}
		if resp.TotalScore != 6 {
			t.Errorf("total score = %v, want 6", resp.TotalScore)
		}
		if got := f.answers[id][4].AwardedMarks; got != 0 {
			t.Errorf("unmarkable answer awarded %v, want 0", got)
		}
	})

	t.Run("overridden marks survive because marked sessions are not re-marked", func(t *testing.T) {
		f := newFakeRepository()
		id := seedSubmittedSession(t, f)
		svc, publisher := newMarkingServiceForTest(f)

		if _, err := svc.AutoMark(ctx, id, "teacher-1"); err != nil {
			t.Fatalf("AutoMark() error = %v", err)
		}

		// Teacher awards partial credit on the theory question
		reResp, err := svc.OverrideAnswerScore(ctx, id, 2, &OverrideAnswerRequest{Marks: 8, Reason: "partial credit for explanation"}, "teacher-1")
		if err != nil {
			t.Fatalf("OverrideAnswerScore() error = %v", err)
		}
		if reResp.TotalScore != 10 { // 0 + 8 + 2
			t.Errorf("total after override = %v, want 10", reResp.TotalScore)
		}

		// A second marking run comes back untouched, it must not claw the
		// override back
		eventsBefore := len(publisher.GetPublishedEvents())
		again, err := svc.AutoMark(ctx, id, "teacher-1")
		if err != nil {
			t.Fatalf("second AutoMark() error = %v", err)
		}
		if again.TotalScore != 10 {
			t.Errorf("total after second run = %v, want 10", again.TotalScore)
		}
		if got := len(publisher.GetPublishedEvents()); got != eventsBefore {
			t.Errorf("second run published %d extra events", got-eventsBefore)
		}

		answer := f.answers[id][2]
		if !answer.IsOverridden || answer.AwardedMarks != 8 {
			t.Errorf("override lost: awarded=%v overridden=%v", answer.AwardedMarks, answer.IsOverridden)
		}
	})

	t.Run("non-submitted sessions are returned untouched", func(t *testing.T) {
		f := newFakeRepository()
		id := seedSubmittedSession(t, f)
		f.submissions[id].Status = models.SubmissionInProgress
		svc, publisher := newMarkingServiceForTest(f)

		resp, err := svc.AutoMark(ctx, id, "teacher-1")
		if err != nil {
			t.Fatalf("AutoMark() error = %v", err)
		}
		if resp.Status != models.SubmissionInProgress {
			t.Errorf("status = %s, want in_progress", resp.Status)
		}
		if f.submissions[id].Status != models.SubmissionInProgress {
			t.Errorf("stored status = %s, want in_progress", f.submissions[id].Status)
		}
		if len(publisher.GetPublishedEvents()) != 0 {
			t.Error("no events expected for a no-op marking run")
		}
	})

	t.Run("students may not mark", func(t *testing.T) {
		f := newFakeRepository()
		id := seedSubmittedSession(t, f)
		svc, _ := newMarkingServiceForTest(f)

		_, err := svc.AutoMark(ctx, id, "student-1")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("AutoMark() error = %v, want PermissionError", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newFakeRepository()
		seedUsers(f)
		svc, _ := newMarkingServiceForTest(f)

		if _, err := svc.AutoMark(ctx, 404, "teacher-1"); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("AutoMark() error = %v, want ErrSessionNotFound", err)
		}
	})
}

func TestMarkingService_OverrideAnswerScore(t *testing.T) {
	ctx := context.Background()

	t.Run("override cannot exceed question marks", func(t *testing.T) {
		f := newFakeRepository()
		id := seedSubmittedSession(t, f)
		svc, _ := newMarkingServiceForTest(f)

		if _, err := svc.AutoMark(ctx, id, "teacher-1"); err != nil {
			t.Fatalf("AutoMark() error = %v", err)
		}

		_, err := svc.OverrideAnswerScore(ctx, id, 3, &OverrideAnswerRequest{Marks: 50, Reason: "generous"}, "teacher-1")
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("OverrideAnswerScore() error = %v, want ValidationError", err)
		}
	})

	t.Run("override before marking is rejected", func(t *testing.T) {
		f := newFakeRepository()
		id := seedSubmittedSession(t, f)
		svc, _ := newMarkingServiceForTest(f)

		_, err := svc.OverrideAnswerScore(ctx, id, 1, &OverrideAnswerRequest{Marks: 3, Reason: "early"}, "teacher-1")
		if !errors.Is(err, ErrSessionNotMarked) {
			t.Fatalf("OverrideAnswerScore() error = %v, want ErrSessionNotMarked", err)
		}
	})

	t.Run("marked session flips to manual marking", func(t *testing.T) {
		f := newFakeRepository()
		id := seedSubmittedSession(t, f)
		svc, _ := newMarkingServiceForTest(f)

		if _, err := svc.AutoMark(ctx, id, "teacher-1"); err != nil {
			t.Fatalf("AutoMark() error = %v", err)
		}
		if _, err := svc.OverrideAnswerScore(ctx, id, 1, &OverrideAnswerRequest{Marks: 5, Reason: "misprinted options"}, "teacher-1"); err != nil {
			t.Fatalf("OverrideAnswerScore() error = %v", err)
		}

		if got := f.submissions[id].MarkedBy; got != models.MarkedManual {
			t.Errorf("marked_by = %s, want manual", got)
		}
	})

	t.Run("unknown answer", func(t *testing.T) {
		f := newFakeRepository()
		id := seedSubmittedSession(t, f)
		svc, _ := newMarkingServiceForTest(f)

		if _, err := svc.AutoMark(ctx, id, "teacher-1"); err != nil {
			t.Fatalf("AutoMark() error = %v", err)
		}

		_, err := svc.OverrideAnswerScore(ctx, id, 99, &OverrideAnswerRequest{Marks: 1, Reason: "x"}, "teacher-1")
		if !errors.Is(err, ErrAnswerNotFound) {
			t.Fatalf("OverrideAnswerScore() error = %v, want ErrAnswerNotFound", err)
		}
	})
}
