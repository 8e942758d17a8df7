package store

import (
	"context"
	"errors"

	"github.com/dvloznov/student-finance/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateCategory is returned when a user already has a category with the same name.
var ErrDuplicateCategory = errors.New("store: category already exists")

// CategoryRepository provides category operations scoped to a user.
type CategoryRepository interface {
	// ListCategories returns the user's categories ordered by creation.
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)

	// CreateCategory inserts a category, assigning ID and CreatedAt when empty.
	CreateCategory(ctx context.Context, c *domain.Category) error
}

// ExpenseRepository provides expense operations.
type ExpenseRepository interface {
	// CreateExpense inserts one expense, assigning ID and CreatedAt when empty.
	CreateExpense(ctx context.Context, e *domain.Expense) error

	// ListExpenses returns expenses matching the filter, newest date first.
	ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]*domain.Expense, error)
}

// ImportLogRepository stores import audit records.
type ImportLogRepository interface {
	// CreateImportLog inserts one import log, assigning ID and CreatedAt when empty.
	CreateImportLog(ctx context.Context, l *domain.ImportLog) error

	// ListImportLogs returns the user's import logs, newest first.
	ListImportLogs(ctx context.Context, userID string, limit int) ([]*domain.ImportLog, error)
}

// Store is the full persistence surface used by the API and CLI.
type Store interface {
	CategoryRepository
	ExpenseRepository
	ImportLogRepository

	Close() error
}

// seeding collapses concurrent seeds for the same user in this process.
var seeding singleflight.Group

// SeedDefaultCategories creates the default category set for a user who has none.
// It returns the user's categories after seeding. Concurrent calls for one user
// share a single seed, and names another writer created first are skipped.
func SeedDefaultCategories(ctx context.Context, repo CategoryRepository, userID string) ([]domain.Category, error) {
	v, err, _ := seeding.Do(userID, func() (any, error) {
		return seedDefaultCategories(ctx, repo, userID)
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Category(nil), v.([]domain.Category)...), nil
}

func seedDefaultCategories(ctx context.Context, repo CategoryRepository, userID string) ([]domain.Category, error) {
	existing, err := repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	for _, name := range domain.DefaultCategoryNames {
		c := &domain.Category{UserID: userID, Name: name}
		if err := repo.CreateCategory(ctx, c); err != nil && !errors.Is(err, ErrDuplicateCategory) {
			return nil, err
		}
	}
	return repo.ListCategories(ctx, userID)
}
