package pipeline

import (
	"context"

	"github.com/dvloznov/student-finance/internal/store"
)

// StatementFetcher loads statement bytes from a URI (gs://, s3://, local path).
type StatementFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Repository is the persistence surface the importer needs.
// store.Store satisfies it.
type Repository interface {
	store.CategoryRepository
	store.ExpenseRepository
	store.ImportLogRepository
}
