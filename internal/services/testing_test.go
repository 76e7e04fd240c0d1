package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/brightclass/exam-service/internal/events"
	"github.com/brightclass/exam-service/internal/models"
	"github.com/brightclass/exam-service/internal/repositories"
	"github.com/brightclass/exam-service/internal/validator"
)

// fakeRepository is an in-memory repositories.Repository for service tests.
// Not-found is reported as gorm.ErrRecordNotFound so the services' error
// translation takes the same path as against PostgreSQL.
type fakeRepository struct {
	exams       map[uint]*models.Exam
	questions   map[uint]*models.Question
	submissions map[uint]*models.Submission
	answers     map[uint]map[uint]*models.Answer
	results     map[string]*models.Result
	users       map[string]*models.User

	nextSubmissionID uint
	nextResultID     uint
	nextScoreItemID  uint

	txSupported bool

	// resultErrFor injects a read failure for one student's result row
	resultErrFor map[string]error
	// getByStudentsCalls counts batched result lookups
	getByStudentsCalls int
	// createConflict makes the next submission insert collide, simulating a
	// concurrent start winning the unique index
	createConflict bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		exams:            make(map[uint]*models.Exam),
		questions:        make(map[uint]*models.Question),
		submissions:      make(map[uint]*models.Submission),
		answers:          make(map[uint]map[uint]*models.Answer),
		results:          make(map[string]*models.Result),
		users:            make(map[string]*models.User),
		nextSubmissionID: 1,
		nextResultID:     1,
		nextScoreItemID:  1,
		txSupported:      true,
		resultErrFor:     make(map[string]error),
	}
}

func (f *fakeRepository) Exam() repositories.ExamRepository             { return &fakeExamRepo{f} }
func (f *fakeRepository) Question() repositories.QuestionRepository     { return &fakeQuestionRepo{f} }
func (f *fakeRepository) Submission() repositories.SubmissionRepository { return &fakeSubmissionRepo{f} }
func (f *fakeRepository) Result() repositories.ResultRepository         { return &fakeResultRepo{f} }
func (f *fakeRepository) User() repositories.UserRepository             { return &fakeUserRepo{f} }

func (f *fakeRepository) WithTransaction(ctx context.Context, fn func(repo repositories.Repository) error) error {
	return fn(f)
}

func (f *fakeRepository) TransactionsSupported() bool { return f.txSupported }
func (f *fakeRepository) Ping(ctx context.Context) error {
	return nil
}
func (f *fakeRepository) Close() error { return nil }

func resultKey(studentID string, term int, session string) string {
	return fmt.Sprintf("%s|%d|%s", studentID, term, session)
}

// ===== EXAM =====

type fakeExamRepo struct{ f *fakeRepository }

func (r *fakeExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	exam, ok := r.f.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *exam
	return &copied, nil
}

func (r *fakeExamRepo) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	exam, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	for _, q := range r.f.questions {
		if q.ExamID == id {
			exam.Questions = append(exam.Questions, *q)
		}
	}
	return exam, nil
}

func (r *fakeExamRepo) ListByClassroom(ctx context.Context, tx *gorm.DB, schoolID, classroomID string) ([]models.Exam, error) {
	var out []models.Exam
	for _, exam := range r.f.exams {
		if exam.SchoolID == schoolID && exam.ClassroomID == classroomID {
			out = append(out, *exam)
		}
	}
	return out, nil
}

func (r *fakeExamRepo) ListEndedWithOpenSessions(ctx context.Context, tx *gorm.DB, now time.Time) ([]models.Exam, error) {
	return nil, nil
}

func (r *fakeExamRepo) UpdateSchedule(ctx context.Context, tx *gorm.DB, id uint, startAt, endAt *time.Time) error {
	exam, ok := r.f.exams[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	exam.StartAt = startAt
	exam.EndAt = endAt
	return nil
}

func (r *fakeExamRepo) UpdateTotalMarks(ctx context.Context, tx *gorm.DB, id uint, total float64) error {
	exam, ok := r.f.exams[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	exam.TotalMarks = total
	return nil
}

// ===== QUESTION =====

type fakeQuestionRepo struct{ f *fakeRepository }

func (r *fakeQuestionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	q, ok := r.f.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *q
	return &copied, nil
}

func (r *fakeQuestionRepo) ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]models.Question, error) {
	var out []models.Question
	for _, q := range r.f.questions {
		if q.ExamID == examID {
			out = append(out, *q)
		}
	}
	return out, nil
}

// ===== SUBMISSION =====

type fakeSubmissionRepo struct{ f *fakeRepository }

func (r *fakeSubmissionRepo) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	if r.f.createConflict {
		// Simulate a concurrent start winning the insert race: the row
		// exists by the time this caller's insert hits the unique index.
		r.f.createConflict = false
		racing := *submission
		racing.ID = r.f.nextSubmissionID
		r.f.nextSubmissionID++
		r.f.submissions[racing.ID] = &racing
		return gorm.ErrDuplicatedKey
	}
	for _, existing := range r.f.submissions {
		if existing.ExamID == submission.ExamID && existing.StudentID == submission.StudentID {
			return gorm.ErrDuplicatedKey
		}
	}
	submission.ID = r.f.nextSubmissionID
	r.f.nextSubmissionID++
	copied := *submission
	r.f.submissions[submission.ID] = &copied
	return nil
}

func (r *fakeSubmissionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	sub, ok := r.f.submissions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *sub
	if exam, ok := r.f.exams[sub.ExamID]; ok {
		copied.Exam = *exam
	}
	return &copied, nil
}

func (r *fakeSubmissionRepo) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	sub, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	for _, answer := range r.f.answers[id] {
		copied := *answer
		if q, ok := r.f.questions[answer.QuestionID]; ok {
			copied.Question = *q
		}
		sub.Answers = append(sub.Answers, copied)
	}
	return sub, nil
}

func (r *fakeSubmissionRepo) GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.Submission, error) {
	for id, sub := range r.f.submissions {
		if sub.ExamID == examID && sub.StudentID == studentID {
			return r.GetByID(ctx, tx, id)
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSubmissionRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.SubmissionFilters) ([]models.Submission, int64, error) {
	var out []models.Submission
	for id, sub := range r.f.submissions {
		if filters.ExamID != 0 && sub.ExamID != filters.ExamID {
			continue
		}
		if filters.StudentID != "" && sub.StudentID != filters.StudentID {
			continue
		}
		if filters.Status != "" && sub.Status != filters.Status {
			continue
		}
		if filters.Published != nil && sub.IsPublished != *filters.Published {
			continue
		}
		copied, _ := r.GetByID(ctx, tx, id)
		out = append(out, *copied)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))

	// Same page window semantics as the production repository
	if filters.Page > 0 && filters.PageSize > 0 {
		start := (filters.Page - 1) * filters.PageSize
		if start >= len(out) {
			return nil, total, nil
		}
		end := start + filters.PageSize
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}

	return out, total, nil
}

func (r *fakeSubmissionRepo) Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	if _, ok := r.f.submissions[submission.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *submission
	copied.Exam = models.Exam{}
	copied.Answers = nil
	r.f.submissions[submission.ID] = &copied
	return nil
}

func (r *fakeSubmissionRepo) FinalizeIfInProgress(ctx context.Context, tx *gorm.DB, id uint, submittedAt time.Time) (int64, error) {
	sub, ok := r.f.submissions[id]
	if !ok {
		return 0, nil
	}
	if sub.Status != models.SubmissionInProgress {
		return 0, nil
	}
	sub.Status = models.SubmissionSubmitted
	endsAt := submittedAt
	sub.EndsAt = &endsAt
	return 1, nil
}

func (r *fakeSubmissionRepo) ForceSubmitInProgress(ctx context.Context, tx *gorm.DB, examID uint, submittedAt time.Time) ([]uint, error) {
	var forced []uint
	for id, sub := range r.f.submissions {
		if sub.ExamID != examID {
			continue
		}
		if sub.Status == models.SubmissionInProgress || sub.Status == models.SubmissionPaused {
			sub.Status = models.SubmissionSubmitted
			endsAt := submittedAt
			sub.EndsAt = &endsAt
			forced = append(forced, id)
		}
	}
	return forced, nil
}

func (r *fakeSubmissionRepo) UpsertAnswer(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	byQuestion := r.f.answers[answer.SubmissionID]
	if byQuestion == nil {
		byQuestion = make(map[uint]*models.Answer)
		r.f.answers[answer.SubmissionID] = byQuestion
	}
	if existing, ok := byQuestion[answer.QuestionID]; ok {
		// Content only; awarded marks and override flags are untouched,
		// matching the production upsert.
		existing.AnswerText = answer.AnswerText
		existing.SelectedOption = answer.SelectedOption
		return nil
	}
	copied := *answer
	byQuestion[answer.QuestionID] = &copied
	return nil
}

func (r *fakeSubmissionRepo) GetAnswer(ctx context.Context, tx *gorm.DB, submissionID, questionID uint) (*models.Answer, error) {
	answer, ok := r.f.answers[submissionID][questionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *answer
	if q, ok := r.f.questions[questionID]; ok {
		copied.Question = *q
	}
	return &copied, nil
}

func (r *fakeSubmissionRepo) UpdateAnswer(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	byQuestion := r.f.answers[answer.SubmissionID]
	if byQuestion == nil {
		return gorm.ErrRecordNotFound
	}
	copied := *answer
	copied.Question = models.Question{}
	byQuestion[answer.QuestionID] = &copied
	return nil
}

func (r *fakeSubmissionRepo) SetPublishedBatch(ctx context.Context, tx *gorm.DB, submissionIDs []uint) error {
	for _, id := range submissionIDs {
		if sub, ok := r.f.submissions[id]; ok {
			sub.IsPublished = true
		}
	}
	return nil
}

// ===== RESULT =====

type fakeResultRepo struct{ f *fakeRepository }

func (r *fakeResultRepo) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, term int, session string) (*models.Result, error) {
	if err, ok := r.f.resultErrFor[studentID]; ok {
		return nil, err
	}
	result, ok := r.f.results[resultKey(studentID, term, session)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *result
	copied.Items = append([]models.ScoreItem(nil), result.Items...)
	return &copied, nil
}

func (r *fakeResultRepo) GetByStudents(ctx context.Context, tx *gorm.DB, studentIDs []string, term int, session string) ([]models.Result, error) {
	r.f.getByStudentsCalls++
	var out []models.Result
	for _, id := range studentIDs {
		if result, err := r.GetByStudent(ctx, tx, id, term, session); err == nil {
			out = append(out, *result)
		}
	}
	return out, nil
}

func (r *fakeResultRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.ResultFilters) ([]models.Result, int64, error) {
	var out []models.Result
	for _, result := range r.f.results {
		if filters.SchoolID != "" && result.SchoolID != filters.SchoolID {
			continue
		}
		if filters.Term != 0 && result.Term != filters.Term {
			continue
		}
		if filters.Session != "" && result.Session != filters.Session {
			continue
		}
		out = append(out, *result)
	}
	return out, int64(len(out)), nil
}

func (r *fakeResultRepo) Create(ctx context.Context, tx *gorm.DB, result *models.Result) error {
	result.ID = r.f.nextResultID
	r.f.nextResultID++
	copied := *result
	r.f.results[resultKey(result.StudentID, result.Term, result.Session)] = &copied
	return nil
}

func (r *fakeResultRepo) Update(ctx context.Context, tx *gorm.DB, result *models.Result) error {
	stored, ok := r.f.results[resultKey(result.StudentID, result.Term, result.Session)]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Average = result.Average
	stored.Position = result.Position
	return nil
}

func (r *fakeResultRepo) UpsertScoreItem(ctx context.Context, tx *gorm.DB, item *models.ScoreItem) error {
	for _, result := range r.f.results {
		if result.ID != item.ResultID {
			continue
		}
		for i := range result.Items {
			if result.Items[i].SubjectID == item.SubjectID {
				result.Items[i].CAScore = item.CAScore
				result.Items[i].ExamScore = item.ExamScore
				result.Items[i].Total = item.Total
				return nil
			}
		}
		copied := *item
		copied.ID = r.f.nextScoreItemID
		r.f.nextScoreItemID++
		result.Items = append(result.Items, copied)
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeResultRepo) UpdatePositions(ctx context.Context, tx *gorm.DB, schoolID string, term int, session string) error {
	return nil
}

// ===== USER =====

type fakeUserRepo struct{ f *fakeRepository }

func (r *fakeUserRepo) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user, ok := r.f.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s not found", userID)
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) ListByClassroom(ctx context.Context, schoolID, classroomID string) ([]models.User, error) {
	var out []models.User
	for _, user := range r.f.users {
		if user.SchoolID == schoolID && user.Role == models.RoleStudent {
			if user.ClassroomID != nil && *user.ClassroomID == classroomID {
				out = append(out, *user)
			}
		}
	}
	return out, nil
}

// ===== FIXTURES =====

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedUsers(f *fakeRepository) {
	classroom := "class-1"
	f.users["student-1"] = &models.User{
		ID: "student-1", Role: models.RoleStudent, SchoolID: "school-1", ClassroomID: &classroom,
	}
	f.users["student-2"] = &models.User{
		ID: "student-2", Role: models.RoleStudent, SchoolID: "school-1", ClassroomID: &classroom,
	}
	otherClassroom := "class-2"
	f.users["student-3"] = &models.User{
		ID: "student-3", Role: models.RoleStudent, SchoolID: "school-1", ClassroomID: &otherClassroom,
	}
	f.users["teacher-1"] = &models.User{
		ID: "teacher-1", Role: models.RoleTeacher, SchoolID: "school-1",
	}
	f.users["teacher-2"] = &models.User{
		ID: "teacher-2", Role: models.RoleTeacher, SchoolID: "school-2",
	}
	f.users["admin-1"] = &models.User{
		ID: "admin-1", Role: models.RoleSchoolAdmin, SchoolID: "school-1",
	}
	f.users["proctor-1"] = &models.User{
		ID: "proctor-1", Role: models.RoleProctor, SchoolID: "school-1",
	}
	f.users["outsider-1"] = &models.User{
		ID: "outsider-1", Role: models.RoleStudent, SchoolID: "school-2",
	}
}

func seedExam(f *fakeRepository) *models.Exam {
	exam := &models.Exam{
		ID:          1,
		Title:       "Biology Mid-Term",
		SchoolID:    "school-1",
		ClassroomID: "class-1",
		SubjectID:   "subj-bio",
		Term:        1,
		Session:     "2025/2026",
		Duration:    60,
		MaxPauses:   2,
		TotalMarks:  20,
		CreatedBy:   "teacher-1",
	}
	f.exams[exam.ID] = exam
	return exam
}

func newSessionServiceForTest(f *fakeRepository) (SessionService, *events.MockEventPublisher) {
	logger := testLogger()
	publisher := events.NewMockEventPublisher(logger)
	return NewSessionService(f, nil, logger, validator.New(), publisher), publisher
}

func newMarkingServiceForTest(f *fakeRepository) (MarkingService, *events.MockEventPublisher) {
	logger := testLogger()
	publisher := events.NewMockEventPublisher(logger)
	return NewMarkingService(f, nil, logger, validator.New(), publisher), publisher
}

func newResultServiceForTest(f *fakeRepository) (ResultService, *events.MockEventPublisher) {
	logger := testLogger()
	publisher := events.NewMockEventPublisher(logger)
	return NewResultService(f, nil, logger, validator.New(), publisher), publisher
}
