package pipeline_test

import (
	"context"
	"testing"

	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/dvloznov/student-finance/internal/infra/sqlite"
	"github.com/dvloznov/student-finance/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImport_SQLiteRerunDuplicates(t *testing.T) {
	ctx := context.Background()
	repo, err := sqlite.Open(ctx, "file:pipeline_rerun?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	importer := pipeline.NewImporter(repo, pipeline.WithCategorySeeding())
	req := pipeline.ImportRequest{
		UserID:     "student",
		Filename:   "may.csv",
		SourceType: pipeline.SourceUpload,
		Content: statementCSV(
			"2024/05/10 12:30:00,500,-,コンビニ 弁当,セブン-イレブン",
			"2024/05/11 08:00:00,\"1,234\",-,電車,JR",
			"2024/05/12 09:00:00,-,3000,返金,Amazon",
		),
	}

	for i := 0; i < 2; i++ {
		result, err := importer.Import(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Summary.Succeeded)
	}

	expenses, err := repo.ListExpenses(ctx, domain.ExpenseFilter{UserID: "student"})
	require.NoError(t, err)
	assert.Len(t, expenses, 4)

	var total int64
	for _, e := range expenses {
		total += e.Amount
	}
	assert.Equal(t, int64(2*(500+1234)), total)

	logs, err := repo.ListImportLogs(ctx, "student", 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, 3, logs[0].TotalRecords)
	assert.Equal(t, 2, logs[0].SuccessfulImports)
}
