package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/dvloznov/student-finance/internal/store"
)

const (
	categoriesTable = "categories"
	expensesTable   = "expenses"
	importLogsTable = "import_logs"
)

// Repository is the BigQuery implementation of store.Store. It holds a shared
// client to avoid creating a new connection for each operation.
type Repository struct {
	client  *bigquery.Client
	dataset string
	now     func() time.Time
}

var _ store.Store = (*Repository)(nil)

// NewRepository creates a Repository for project and dataset.
func NewRepository(ctx context.Context, projectID, dataset string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, dataset: dataset, now: time.Now}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ListCategories delegates to ListCategoriesWithClient with the shared client.
func (r *Repository) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	return ListCategoriesWithClient(ctx, r.client, r.dataset, userID)
}

// CreateCategory delegates to InsertCategoryWithClient with the shared client.
func (r *Repository) CreateCategory(ctx context.Context, c *domain.Category) error {
	existing, err := r.ListCategories(ctx, c.UserID)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Name == c.Name {
			return fmt.Errorf("CreateCategory: %q: %w", c.Name, store.ErrDuplicateCategory)
		}
	}
	assignIdentity(&c.ID, &c.CreatedAt, r.now)
	return InsertCategoryWithClient(ctx, r.client, r.dataset, &CategoryRow{
		CategoryID: c.ID,
		UserID:     c.UserID,
		Name:       c.Name,
		CreatedTS:  c.CreatedAt,
	})
}

// CreateExpense delegates to InsertExpenseWithClient with the shared client.
func (r *Repository) CreateExpense(ctx context.Context, e *domain.Expense) error {
	assignIdentity(&e.ID, &e.CreatedAt, r.now)
	return InsertExpenseWithClient(ctx, r.client, r.dataset, expenseToRow(e))
}

// ListExpenses delegates to QueryExpensesWithClient with the shared client.
func (r *Repository) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]*domain.Expense, error) {
	rows, err := QueryExpensesWithClient(ctx, r.client, r.dataset, filter)
	if err != nil {
		return nil, err
	}
	expenses := make([]*domain.Expense, len(rows))
	for i, row := range rows {
		expenses[i] = expenseFromRow(row)
	}
	return expenses, nil
}

// CreateImportLog delegates to InsertImportLogWithClient with the shared client.
func (r *Repository) CreateImportLog(ctx context.Context, l *domain.ImportLog) error {
	assignIdentity(&l.ID, &l.CreatedAt, r.now)
	return InsertImportLogWithClient(ctx, r.client, r.dataset, importLogToRow(l))
}

// ListImportLogs delegates to ListImportLogsWithClient with the shared client.
func (r *Repository) ListImportLogs(ctx context.Context, userID string, limit int) ([]*domain.ImportLog, error) {
	rows, err := ListImportLogsWithClient(ctx, r.client, r.dataset, userID, limit)
	if err != nil {
		return nil, err
	}
	logs := make([]*domain.ImportLog, len(rows))
	for i, row := range rows {
		logs[i] = importLogFromRow(row)
	}
	return logs, nil
}
