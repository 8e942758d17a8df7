package report

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expense(date string, categoryID string, amount int64) *domain.Expense {
	d, err := civil.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return &domain.Expense{Date: d, CategoryID: categoryID, Amount: amount}
}

func TestSummarize(t *testing.T) {
	categories := []domain.Category{
		{ID: "food", Name: "食費"},
		{ID: "transport", Name: "交通費"},
	}
	expenses := []*domain.Expense{
		expense("2024-06-02", "food", 800),
		expense("2024-05-10", "food", 500),
		expense("2024-05-11", "transport", 1234),
		expense("2024-05-20", "food", 300),
		expense("2024-05-21", "gone", 50),
	}

	s := Summarize(expenses, categories)

	assert.Equal(t, int64(2884), s.Total)
	assert.Equal(t, 5, s.Count)
	require.Len(t, s.Months, 2)

	may := s.Months[0]
	assert.Equal(t, "2024-05", may.Label())
	assert.Equal(t, int64(2084), may.Total)
	assert.Equal(t, 4, may.Count)
	require.Len(t, may.ByCategory, 3)
	assert.Equal(t, CategoryAmount{CategoryID: "transport", CategoryName: "交通費", Total: 1234, Count: 1}, may.ByCategory[0])
	assert.Equal(t, CategoryAmount{CategoryID: "food", CategoryName: "食費", Total: 800, Count: 2}, may.ByCategory[1])
	assert.Equal(t, "gone", may.ByCategory[2].CategoryName)

	june := s.Months[1]
	assert.Equal(t, "2024-06", june.Label())
	assert.Equal(t, int64(800), june.Total)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, nil)
	assert.Zero(t, s.Total)
	assert.Empty(t, s.Months)
}
