package report

import (
	"fmt"
	"sort"

	"github.com/dvloznov/student-finance/internal/domain"
)

// CategoryAmount is the spend of one category in a month.
type CategoryAmount struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Total        int64  `json:"total"`
	Count        int    `json:"count"`
}

// MonthOverview is the spend of one calendar month.
type MonthOverview struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"` // 1-12
	Total      int64            `json:"total"`
	Count      int              `json:"count"`
	ByCategory []CategoryAmount `json:"by_category"`
}

// Label returns the month as YYYY-MM.
func (m MonthOverview) Label() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// Summary aggregates expenses by month and category.
type Summary struct {
	Total  int64           `json:"total"`
	Count  int             `json:"count"`
	Months []MonthOverview `json:"months"`
}

// Summarize groups expenses by calendar month (ascending) and category
// (descending total, then name). Unknown category IDs are labelled with the ID.
func Summarize(expenses []*domain.Expense, categories []domain.Category) Summary {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	type monthKey struct{ year, month int }
	months := make(map[monthKey]map[string]*CategoryAmount)

	var s Summary
	for _, e := range expenses {
		k := monthKey{e.Date.Year, int(e.Date.Month)}
		byCat, ok := months[k]
		if !ok {
			byCat = make(map[string]*CategoryAmount)
			months[k] = byCat
		}
		ca, ok := byCat[e.CategoryID]
		if !ok {
			name := names[e.CategoryID]
			if name == "" {
				name = e.CategoryID
			}
			ca = &CategoryAmount{CategoryID: e.CategoryID, CategoryName: name}
			byCat[e.CategoryID] = ca
		}
		ca.Total += e.Amount
		ca.Count++
		s.Total += e.Amount
		s.Count++
	}

	for k, byCat := range months {
		m := MonthOverview{Year: k.year, Month: k.month}
		for _, ca := range byCat {
			m.Total += ca.Total
			m.Count += ca.Count
			m.ByCategory = append(m.ByCategory, *ca)
		}
		sort.Slice(m.ByCategory, func(i, j int) bool {
			a, b := m.ByCategory[i], m.ByCategory[j]
			if a.Total != b.Total {
				return a.Total > b.Total
			}
			return a.CategoryName < b.CategoryName
		})
		s.Months = append(s.Months, m)
	}
	sort.Slice(s.Months, func(i, j int) bool {
		if s.Months[i].Year != s.Months[j].Year {
			return s.Months[i].Year < s.Months[j].Year
		}
		return s.Months[i].Month < s.Months[j].Month
	})

	return s
}
