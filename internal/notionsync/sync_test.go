package notionsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotion struct {
	pages     [][]notionapi.Page
	queries   []*notionapi.DatabaseQueryRequest
	created   []notionapi.Properties
	updated   map[string]notionapi.Properties
	deleted   []string
	createErr error
}

func (m *mockNotion) CreatePage(ctx context.Context, databaseID string, props notionapi.Properties) (*notionapi.Page, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, props)
	return &notionapi.Page{ID: notionapi.ObjectID(fmt.Sprintf("new-%d", len(m.created)))}, nil
}

func (m *mockNotion) UpdatePage(ctx context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error) {
	if m.updated == nil {
		m.updated = map[string]notionapi.Properties{}
	}
	m.updated[pageID] = props
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *mockNotion) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	m.queries = append(m.queries, req)
	i := len(m.queries) - 1
	if i >= len(m.pages) {
		return &notionapi.DatabaseQueryResponse{}, nil
	}
	return &notionapi.DatabaseQueryResponse{
		Results:    m.pages[i],
		HasMore:    i < len(m.pages)-1,
		NextCursor: notionapi.Cursor(fmt.Sprintf("cursor-%d", i+1)),
	}, nil
}

func (m *mockNotion) DeletePage(ctx context.Context, pageID string) error {
	m.deleted = append(m.deleted, pageID)
	return nil
}

type mockSource struct {
	expenses   []*domain.Expense
	categories []domain.Category
	filter     domain.ExpenseFilter
}

func (m *mockSource) ListExpenses(ctx context.Context, f domain.ExpenseFilter) ([]*domain.Expense, error) {
	m.filter = f
	return m.expenses, nil
}
func (m *mockSource) CreateExpense(ctx context.Context, e *domain.Expense) error { return nil }
func (m *mockSource) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	return m.categories, nil
}
func (m *mockSource) CreateCategory(ctx context.Context, c *domain.Category) error { return nil }

func pageFor(pageID, expenseID string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(pageID),
		Properties: notionapi.Properties{
			PropExpenseID: &notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{PlainText: expenseID}},
			},
		},
	}
}

func testSource() *mockSource {
	d := civil.Date{Year: 2024, Month: 5, Day: 10}
	return &mockSource{
		categories: []domain.Category{{ID: "food", Name: "食費"}},
		expenses: []*domain.Expense{
			{ID: "e1", Description: "弁当", Amount: 500, CategoryID: "food", Date: d},
			{ID: "e2", Description: "電車", Amount: 220, CategoryID: "transport", Date: d},
		},
	}
}

var (
	may1  = civil.Date{Year: 2024, Month: 5, Day: 1}
	may31 = civil.Date{Year: 2024, Month: 5, Day: 31}
)

func TestSyncExpenses_CreatesAndUpdates(t *testing.T) {
	src := testSource()
	notion := &mockNotion{pages: [][]notionapi.Page{
		{pageFor("p1", "e1")},
		{pageFor("p-stale", "gone")},
	}}

	res, err := SyncExpenses(context.Background(), src, notion, "db", "u1", may1, may31, Options{})
	require.NoError(t, err)

	assert.Equal(t, &Result{Created: 1, Updated: 1}, res)
	assert.Equal(t, "u1", src.filter.UserID)
	assert.Len(t, notion.queries, 2, "pagination must follow the cursor")
	assert.Equal(t, notionapi.Cursor("cursor-1"), notion.queries[1].StartCursor)
	assert.NotNil(t, notion.queries[0].Filter)
	assert.Contains(t, notion.updated, "p1")
	require.Len(t, notion.created, 1)
	assert.Empty(t, notion.deleted)

	title := notion.created[0][PropDescription].(notionapi.TitleProperty)
	assert.Equal(t, "電車", title.Title[0].Text.Content)
}

func TestSyncExpenses_Prune(t *testing.T) {
	notion := &mockNotion{pages: [][]notionapi.Page{{pageFor("p1", "e1"), pageFor("p-stale", "gone")}}}

	res, err := SyncExpenses(context.Background(), testSource(), notion, "db", "u1", may1, may31, Options{Prune: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []string{"p-stale"}, notion.deleted)
}

func TestSyncExpenses_DryRun(t *testing.T) {
	notion := &mockNotion{pages: [][]notionapi.Page{{pageFor("p1", "e1"), pageFor("p-stale", "gone")}}}

	res, err := SyncExpenses(context.Background(), testSource(), notion, "db", "u1", may1, may31, Options{DryRun: true, Prune: true})
	require.NoError(t, err)
	assert.Equal(t, &Result{Created: 1, Updated: 1, Deleted: 1}, res)
	assert.Empty(t, notion.created)
	assert.Empty(t, notion.updated)
	assert.Empty(t, notion.deleted)
}

func TestSyncExpenses_PageFailuresAreCounted(t *testing.T) {
	notion := &mockNotion{createErr: errors.New("rate limited")}

	res, err := SyncExpenses(context.Background(), testSource(), notion, "db", "u1", may1, may31, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Zero(t, res.Created)
}

func TestExpenseToNotionProperties(t *testing.T) {
	created := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	e := &domain.Expense{
		ID:          "e1",
		Description: "コンビニ 弁当 - セブン-イレブン",
		Amount:      500,
		Date:        civil.Date{Year: 2024, Month: 5, Day: 10},
		Source:      domain.SourceImported,
		CreatedAt:   created,
	}

	props := ExpenseToNotionProperties(e, "食費")

	assert.Equal(t, float64(500), props[PropAmount].(notionapi.NumberProperty).Number)
	assert.Equal(t, "食費", props[PropCategory].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, "imported", props[PropSource].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, "e1", props[PropExpenseID].(notionapi.RichTextProperty).RichText[0].Text.Content)

	date := props[PropDate].(notionapi.DateProperty).Date.Start
	assert.Equal(t, "2024-05-10", time.Time(*date).Format("2006-01-02"))

	noCat := ExpenseToNotionProperties(&domain.Expense{ID: "x"}, "")
	assert.NotContains(t, noCat, PropCategory)
	assert.NotContains(t, noCat, PropImportedAt)
}

func TestDateRangeFilter(t *testing.T) {
	assert.Nil(t, dateRangeFilter(civil.Date{}, civil.Date{}))

	f, ok := dateRangeFilter(may1, may31).(notionapi.AndCompoundFilter)
	require.True(t, ok)
	assert.Len(t, f, 2)

	f, ok = dateRangeFilter(may1, civil.Date{}).(notionapi.AndCompoundFilter)
	require.True(t, ok)
	assert.Len(t, f, 1)
}

func TestMissingProperties(t *testing.T) {
	configs := notionapi.PropertyConfigs{
		PropDescription: &notionapi.TitlePropertyConfig{},
		PropDate:        &notionapi.DatePropertyConfig{},
	}

	assert.Equal(t, []string{PropExpenseID, PropAmount}, missingProperties(configs))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(fmt.Errorf("DeletePage: %w", &notionapi.Error{Status: 404})))
	assert.False(t, isNotFound(&notionapi.Error{Status: 429}))
	assert.False(t, isNotFound(errors.New("boom")))
}
