package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/google/uuid"
)

// CreateExpense inserts one expense.
func (r *Repository) CreateExpense(ctx context.Context, e *domain.Expense) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}

	var original sql.NullString
	if len(e.OriginalData) > 0 {
		original = sql.NullString{String: string(e.OriginalData), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, amount, category_id, description, date, source, original_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.Amount, e.CategoryID, e.Description, e.Date.String(), e.Source, original, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("CreateExpense: insert: %w", err)
	}
	return nil
}

// ListExpenses returns expenses matching filter, newest date first.
func (r *Repository) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]*domain.Expense, error) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.CategoryID != "" {
		conds = append(conds, "category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.From.IsValid() {
		conds = append(conds, "date >= ?")
		args = append(args, filter.From.String())
	}
	if filter.To.IsValid() {
		conds = append(conds, "date <= ?")
		args = append(args, filter.To.String())
	}

	query := `SELECT id, user_id, amount, category_id, description, date, source, original_data, created_at FROM expenses`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListExpenses: query: %w", err)
	}
	defer rows.Close()

	var expenses []*domain.Expense
	for rows.Next() {
		var (
			e        domain.Expense
			date     string
			original sql.NullString
			created  string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.CategoryID, &e.Description, &date, &e.Source, &original, &created); err != nil {
			return nil, fmt.Errorf("ListExpenses: scan: %w", err)
		}
		if e.Date, err = civil.ParseDate(date); err != nil {
			return nil, fmt.Errorf("ListExpenses: parse date %q: %w", date, err)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("ListExpenses: parse created_at: %w", err)
		}
		if original.Valid {
			e.OriginalData = []byte(original.String)
		}
		expenses = append(expenses, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListExpenses: iterate: %w", err)
	}
	return expenses, nil
}
