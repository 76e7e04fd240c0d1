package repositories

import (
	"context"
)

// Repository aggregates all domain repositories behind one handle so services
// depend on a single constructor argument.
type Repository interface {
	Exam() ExamRepository
	Question() QuestionRepository
	Submission() SubmissionRepository
	Result() ResultRepository
	User() UserRepository

	// WithTransaction runs fn against a transaction-scoped copy of the
	// repository. Implementations without transaction support must report
	// false from TransactionsSupported and return an error here.
	WithTransaction(ctx context.Context, fn func(txRepo Repository) error) error
	TransactionsSupported() bool

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager owns the concrete repository and hands out the aggregate
// interface. It exists so main can build the data layer once and pass it on.
type RepositoryManager struct {
	repo Repository
}

func NewRepositoryManager(repo Repository) *RepositoryManager {
	return &RepositoryManager{repo: repo}
}

func (m *RepositoryManager) Repository() Repository {
	return m.repo
}
