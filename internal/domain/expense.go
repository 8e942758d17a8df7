package domain

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
)

// SourceImported tags expenses created by the statement importer.
const SourceImported = "imported"

// Expense is one spending record owned by a user.
// Amount is a positive integer in the smallest currency unit (yen).
type Expense struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Amount       int64           `json:"amount"`
	CategoryID   string          `json:"category_id"`
	Description  string          `json:"description"`
	Date         civil.Date      `json:"date"`
	Source       string          `json:"source"`
	OriginalData json.RawMessage `json:"original_data,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ExpenseFilter narrows expense listings. Zero values are ignored.
type ExpenseFilter struct {
	UserID     string
	From       civil.Date
	To         civil.Date
	CategoryID string
	Limit      int
}

// Matches reports whether e satisfies the filter.
func (f ExpenseFilter) Matches(e *Expense) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.CategoryID != "" && e.CategoryID != f.CategoryID {
		return false
	}
	if f.From.IsValid() && e.Date.Before(f.From) {
		return false
	}
	if f.To.IsValid() && e.Date.After(f.To) {
		return false
	}
	return true
}
