package statement

import (
	"math"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/student-finance/internal/domain"
)

// UnspecifiedDescription is used when a row has neither content nor merchant.
const UnspecifiedDescription = "unspecified"

// ExpenseDraft is an expense ready to be persisted for a user.
type ExpenseDraft struct {
	UserID       string
	Amount       int64
	CategoryID   string
	CategoryName string
	Description  string
	Date         civil.Date
	Source       string
	OriginalData Transaction
}

// ConvertToExpenses turns debit transactions into expense drafts for userID.
// Credits are skipped. Each draft's category is resolved against categories,
// falling back to the user's catch-all category.
func ConvertToExpenses(txs []Transaction, categories []domain.Category, userID string) ([]ExpenseDraft, error) {
	if len(categories) == 0 {
		return nil, ErrNoDefaultCategory
	}

	byName := make(map[string]domain.Category, len(categories))
	for _, c := range categories {
		if _, ok := byName[c.Name]; !ok {
			byName[c.Name] = c
		}
	}
	fallback := fallbackCategory(categories)

	var drafts []ExpenseDraft
	for _, tx := range txs {
		// MinInt64 has no positive counterpart.
		if tx.Amount >= 0 || tx.Amount == math.MinInt64 {
			continue
		}

		category, ok := byName[tx.GuessedCategory]
		if !ok {
			category = fallback
		}

		drafts = append(drafts, ExpenseDraft{
			UserID:       userID,
			Amount:       -tx.Amount,
			CategoryID:   category.ID,
			CategoryName: category.Name,
			Description:  draftDescription(tx),
			Date:         tx.Date,
			Source:       domain.SourceImported,
			OriginalData: tx,
		})
	}

	return drafts, nil
}

var otherNames = []string{"other", strings.ToLower(domain.OtherCategoryName)}

// fallbackCategory prefers a category named "other", then one whose name
// contains it, then the first category.
func fallbackCategory(categories []domain.Category) domain.Category {
	for _, c := range categories {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		for _, other := range otherNames {
			if name == other {
				return c
			}
		}
	}
	for _, c := range categories {
		name := strings.ToLower(c.Name)
		for _, other := range otherNames {
			if strings.Contains(name, other) {
				return c
			}
		}
	}
	return categories[0]
}

func draftDescription(tx Transaction) string {
	if tx.Description != "" {
		return tx.Description
	}
	if tx.Merchant != "" {
		return tx.Merchant
	}
	return UnspecifiedDescription
}
