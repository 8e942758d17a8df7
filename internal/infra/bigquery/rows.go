package bigquery

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/student-finance/internal/domain"
)

type CategoryRow struct {
	CategoryID string    `bigquery:"category_id"` // REQUIRED
	UserID     string    `bigquery:"user_id"`     // REQUIRED
	Name       string    `bigquery:"name"`        // REQUIRED
	CreatedTS  time.Time `bigquery:"created_ts"`  // REQUIRED
}

type ExpenseRow struct {
	ExpenseID   string     `bigquery:"expense_id"`   // REQUIRED
	UserID      string     `bigquery:"user_id"`      // REQUIRED
	Amount      int64      `bigquery:"amount"`       // REQUIRED INT64, positive
	CategoryID  string     `bigquery:"category_id"`  // REQUIRED
	Description string     `bigquery:"description"`  // REQUIRED
	ExpenseDate civil.Date `bigquery:"expense_date"` // REQUIRED DATE
	Source      string     `bigquery:"source"`       // REQUIRED

	OriginalData bigquery.NullJSON `bigquery:"original_data"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

type ImportLogRow struct {
	ImportLogID       string   `bigquery:"import_log_id"`      // REQUIRED
	UserID            string   `bigquery:"user_id"`            // REQUIRED
	Filename          string   `bigquery:"filename"`           // REQUIRED
	SourceType        string   `bigquery:"source_type"`        // REQUIRED
	TotalRecords      int64    `bigquery:"total_records"`      // REQUIRED
	SuccessfulImports int64    `bigquery:"successful_imports"` // REQUIRED
	FailedImports     int64    `bigquery:"failed_imports"`     // REQUIRED
	Errors            []string `bigquery:"errors"`             // REPEATED

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func categoryFromRow(r *CategoryRow) domain.Category {
	return domain.Category{
		ID:        r.CategoryID,
		UserID:    r.UserID,
		Name:      r.Name,
		CreatedAt: r.CreatedTS,
	}
}

func expenseToRow(e *domain.Expense) *ExpenseRow {
	row := &ExpenseRow{
		ExpenseID:   e.ID,
		UserID:      e.UserID,
		Amount:      e.Amount,
		CategoryID:  e.CategoryID,
		Description: e.Description,
		ExpenseDate: e.Date,
		Source:      e.Source,
		CreatedTS:   e.CreatedAt,
	}
	if len(e.OriginalData) > 0 {
		row.OriginalData = bigquery.NullJSON{JSONVal: string(e.OriginalData), Valid: true}
	}
	return row
}

func expenseFromRow(r *ExpenseRow) *domain.Expense {
	e := &domain.Expense{
		ID:          r.ExpenseID,
		UserID:      r.UserID,
		Amount:      r.Amount,
		CategoryID:  r.CategoryID,
		Description: r.Description,
		Date:        r.ExpenseDate,
		Source:      r.Source,
		CreatedAt:   r.CreatedTS,
	}
	if r.OriginalData.Valid {
		e.OriginalData = json.RawMessage(r.OriginalData.JSONVal)
	}
	return e
}

func importLogToRow(l *domain.ImportLog) *ImportLogRow {
	return &ImportLogRow{
		ImportLogID:       l.ID,
		UserID:            l.UserID,
		Filename:          l.Filename,
		SourceType:        l.SourceType,
		TotalRecords:      int64(l.TotalRecords),
		SuccessfulImports: int64(l.SuccessfulImports),
		FailedImports:     int64(l.FailedImports),
		Errors:            l.Errors,
		CreatedTS:         l.CreatedAt,
	}
}

func importLogFromRow(r *ImportLogRow) *domain.ImportLog {
	return &domain.ImportLog{
		ID:                r.ImportLogID,
		UserID:            r.UserID,
		Filename:          r.Filename,
		SourceType:        r.SourceType,
		TotalRecords:      int(r.TotalRecords),
		SuccessfulImports: int(r.SuccessfulImports),
		FailedImports:     int(r.FailedImports),
		Errors:            r.Errors,
		CreatedAt:         r.CreatedTS,
	}
}
