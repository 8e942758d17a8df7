package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// ListCategoriesWithClient returns a user's categories ordered by creation time.
func ListCategoriesWithClient(ctx context.Context, client *bigquery.Client, dataset, userID string) ([]domain.Category, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT category_id, user_id, name, created_ts
		FROM %s.%s
		WHERE user_id = @user_id
		ORDER BY created_ts
	`, dataset, categoriesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query read: %w", err)
	}

	var categories []domain.Category
	for {
		var row CategoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategories: iter next: %w", err)
		}
		categories = append(categories, categoryFromRow(&row))
	}
	return categories, nil
}

// InsertCategoryWithClient streams one category row.
func InsertCategoryWithClient(ctx context.Context, client *bigquery.Client, dataset string, row *CategoryRow) error {
	if err := client.Dataset(dataset).Table(categoriesTable).Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("InsertCategory: inserting row: %w", err)
	}
	return nil
}

// InsertExpenseWithClient streams one expense row.
func InsertExpenseWithClient(ctx context.Context, client *bigquery.Client, dataset string, row *ExpenseRow) error {
	if err := client.Dataset(dataset).Table(expensesTable).Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("InsertExpense: inserting row: %w", err)
	}
	return nil
}

// QueryExpensesWithClient returns expenses matching filter, newest date first.
func QueryExpensesWithClient(ctx context.Context, client *bigquery.Client, dataset string, filter domain.ExpenseFilter) ([]*ExpenseRow, error) {
	sql, params := buildExpenseQuery(dataset, filter)
	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryExpenses: query read: %w", err)
	}

	var rows []*ExpenseRow
	for {
		var row ExpenseRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryExpenses: iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

func buildExpenseQuery(dataset string, filter domain.ExpenseFilter) (string, []bigquery.QueryParameter) {
	var (
		conds  []string
		params []bigquery.QueryParameter
	)
	if filter.UserID != "" {
		conds = append(conds, "user_id = @user_id")
		params = append(params, bigquery.QueryParameter{Name: "user_id", Value: filter.UserID})
	}
	if filter.CategoryID != "" {
		conds = append(conds, "category_id = @category_id")
		params = append(params, bigquery.QueryParameter{Name: "category_id", Value: filter.CategoryID})
	}
	if filter.From.IsValid() {
		conds = append(conds, "expense_date >= @from_date")
		params = append(params, bigquery.QueryParameter{Name: "from_date", Value: filter.From})
	}
	if filter.To.IsValid() {
		conds = append(conds, "expense_date <= @to_date")
		params = append(params, bigquery.QueryParameter{Name: "to_date", Value: filter.To})
	}

	var b strings.Builder
	fmt.Fprintf(&b, `SELECT expense_id, user_id, amount, category_id, description, expense_date, source, original_data, created_ts FROM %s.%s`, dataset, expensesTable)
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY expense_date DESC, created_ts DESC")
	if filter.Limit > 0 {
		b.WriteString(" LIMIT @limit")
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: filter.Limit})
	}
	return b.String(), params
}

// InsertImportLogWithClient streams one import log row.
func InsertImportLogWithClient(ctx context.Context, client *bigquery.Client, dataset string, row *ImportLogRow) error {
	if err := client.Dataset(dataset).Table(importLogsTable).Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("InsertImportLog: inserting row: %w", err)
	}
	return nil
}

// ListImportLogsWithClient returns a user's import logs, newest first.
func ListImportLogsWithClient(ctx context.Context, client *bigquery.Client, dataset, userID string, limit int) ([]*ImportLogRow, error) {
	sql := fmt.Sprintf(`
		SELECT import_log_id, user_id, filename, source_type, total_records,
		       successful_imports, failed_imports, errors, created_ts
		FROM %s.%s
		WHERE user_id = @user_id
		ORDER BY created_ts DESC`, dataset, importLogsTable)
	params := []bigquery.QueryParameter{{Name: "user_id", Value: userID}}
	if limit > 0 {
		sql += " LIMIT @limit"
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: limit})
	}

	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListImportLogs: query read: %w", err)
	}

	var rows []*ImportLogRow
	for {
		var row ImportLogRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListImportLogs: iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

func assignIdentity(id *string, created *time.Time, now func() time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if created.IsZero() {
		*created = now()
	}
}
