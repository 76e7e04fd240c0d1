package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/brightclass/exam-service/internal/models"
)

// ===== FILTER TYPES =====

// SubmissionFilters narrows submission listings. Zero values mean "any".
type SubmissionFilters struct {
	ExamID    uint
	StudentID string
	Status    models.SubmissionStatus
	Published *bool
	Page      int
	PageSize  int
}

// ResultFilters narrows consolidated-result listings.
type ResultFilters struct {
	SchoolID  string
	StudentID string
	Term      int
	Session   string
	Page      int
	PageSize  int
}

// ===== DOMAIN REPOSITORIES =====

// ExamRepository reads exam definitions. Exams are authored elsewhere; this
// service only adjusts scheduling fields and the derived total.
type ExamRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	ListByClassroom(ctx context.Context, tx *gorm.DB, schoolID, classroomID string) ([]models.Exam, error)
	ListEndedWithOpenSessions(ctx context.Context, tx *gorm.DB, now time.Time) ([]models.Exam, error)
	UpdateSchedule(ctx context.Context, tx *gorm.DB, id uint, startAt, endAt *time.Time) error
	UpdateTotalMarks(ctx context.Context, tx *gorm.DB, id uint, total float64) error
}

// QuestionRepository reads the question bank for an exam.
type QuestionRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]models.Question, error)
}

// SubmissionRepository manages exam sessions and their answers.
type SubmissionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error)
	GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error)
	GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.Submission, error)
	List(ctx context.Context, tx *gorm.DB, filters SubmissionFilters) ([]models.Submission, int64, error)
	Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error

	// FinalizeIfInProgress flips an active or paused session to submitted
	// in one conditional UPDATE. It returns the number of rows changed:
	// 0 means the session was missing or already submitted, 1 means this
	// caller won.
	FinalizeIfInProgress(ctx context.Context, tx *gorm.DB, id uint, submittedAt time.Time) (int64, error)

	// ForceSubmitInProgress finalizes every active or paused session of an
	// exam, returning the IDs that were flipped.
	ForceSubmitInProgress(ctx context.Context, tx *gorm.DB, examID uint, submittedAt time.Time) ([]uint, error)

	UpsertAnswer(ctx context.Context, tx *gorm.DB, answer *models.Answer) error
	GetAnswer(ctx context.Context, tx *gorm.DB, submissionID, questionID uint) (*models.Answer, error)
	UpdateAnswer(ctx context.Context, tx *gorm.DB, answer *models.Answer) error
	SetPublishedBatch(ctx context.Context, tx *gorm.DB, submissionIDs []uint) error
}

// ResultRepository manages consolidated term results.
type ResultRepository interface {
	GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, term int, session string) (*models.Result, error)
	GetByStudents(ctx context.Context, tx *gorm.DB, studentIDs []string, term int, session string) ([]models.Result, error)
	List(ctx context.Context, tx *gorm.DB, filters ResultFilters) ([]models.Result, int64, error)
	Create(ctx context.Context, tx *gorm.DB, result *models.Result) error
	Update(ctx context.Context, tx *gorm.DB, result *models.Result) error
	UpsertScoreItem(ctx context.Context, tx *gorm.DB, item *models.ScoreItem) error
	UpdatePositions(ctx context.Context, tx *gorm.DB, schoolID string, term int, session string) error
}

// UserRepository resolves users from the identity provider.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	ListByClassroom(ctx context.Context, schoolID, classroomID string) ([]models.User, error)
}
