package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/dvloznov/student-finance/internal/store"
	"github.com/google/uuid"
)

// ListCategories returns the user's categories in creation order.
func (r *Repository) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, created_at
		FROM categories
		WHERE user_id = ?
		ORDER BY created_at, rowid
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var (
			c       domain.Category
			created string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &created); err != nil {
			return nil, fmt.Errorf("ListCategories: scan: %w", err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("ListCategories: parse created_at: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCategories: iterate: %w", err)
	}
	return categories, nil
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, c *domain.Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, created_at)
		VALUES (?, ?, ?, ?)
	`, c.ID, c.UserID, c.Name, formatTime(c.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("CreateCategory: %q: %w", c.Name, store.ErrDuplicateCategory)
		}
		return fmt.Errorf("CreateCategory: insert: %w", err)
	}
	return nil
}
