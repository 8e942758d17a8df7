package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/google/uuid"
)

// CreateImportLog inserts one import audit record.
func (r *Repository) CreateImportLog(ctx context.Context, l *domain.ImportLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = r.now()
	}

	var errs sql.NullString
	if len(l.Errors) > 0 {
		b, err := json.Marshal(l.Errors)
		if err != nil {
			return fmt.Errorf("CreateImportLog: marshal errors: %w", err)
		}
		errs = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO import_logs (id, user_id, filename, source_type, total_records, successful_imports, failed_imports, errors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.UserID, l.Filename, l.SourceType, l.TotalRecords, l.SuccessfulImports, l.FailedImports, errs, formatTime(l.CreatedAt))
	if err != nil {
		return fmt.Errorf("CreateImportLog: insert: %w", err)
	}
	return nil
}

// ListImportLogs returns the user's import logs, newest first.
func (r *Repository) ListImportLogs(ctx context.Context, userID string, limit int) ([]*domain.ImportLog, error) {
	query := `
		SELECT id, user_id, filename, source_type, total_records, successful_imports, failed_imports, errors, created_at
		FROM import_logs
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListImportLogs: query: %w", err)
	}
	defer rows.Close()

	var logs []*domain.ImportLog
	for rows.Next() {
		var (
			l       domain.ImportLog
			errs    sql.NullString
			created string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.Filename, &l.SourceType, &l.TotalRecords, &l.SuccessfulImports, &l.FailedImports, &errs, &created); err != nil {
			return nil, fmt.Errorf("ListImportLogs: scan: %w", err)
		}
		if errs.Valid {
			if err := json.Unmarshal([]byte(errs.String), &l.Errors); err != nil {
				return nil, fmt.Errorf("ListImportLogs: unmarshal errors: %w", err)
			}
		}
		if l.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("ListImportLogs: parse created_at: %w", err)
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListImportLogs: iterate: %w", err)
	}
	return logs, nil
}
