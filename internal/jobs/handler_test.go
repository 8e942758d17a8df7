package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/dvloznov/student-finance/internal/pipeline"
	"github.com/dvloznov/student-finance/internal/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockImporter struct {
	ImportFunc func(ctx context.Context, req pipeline.ImportRequest) (*pipeline.ImportResult, error)
}

func (m *mockImporter) Import(ctx context.Context, req pipeline.ImportRequest) (*pipeline.ImportResult, error) {
	return m.ImportFunc(ctx, req)
}

func TestImportHandler_Success(t *testing.T) {
	var got pipeline.ImportRequest
	handler := NewImportHandler(&mockImporter{ImportFunc: func(ctx context.Context, req pipeline.ImportRequest) (*pipeline.ImportResult, error) {
		got = req
		return &pipeline.ImportResult{
			Summary:   domain.ImportRunSummary{TotalRows: 3, Succeeded: 2},
			ImportLog: &domain.ImportLog{ID: "log-9"},
		}, nil
	}})

	job := &ImportStatementJob{JobID: "j", UserID: "u1", SourceURI: "gs://bucket/stmts/may.csv"}
	require.NoError(t, handler(context.Background(), job))

	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "may.csv", got.Filename)
	assert.Equal(t, "gcs", got.SourceType)
	assert.Equal(t, "gs://bucket/stmts/may.csv", got.SourceURI)
	assert.Equal(t, "log-9", job.ImportLogID)
	require.NotNil(t, job.Summary)
	assert.Equal(t, 2, job.Summary.Succeeded)
}

func TestImportHandler_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"missing columns", fmt.Errorf("pipeline step 2 failed: %w", &statement.MissingColumnsError{Columns: []string{"取引日"}}), true},
		{"empty file", fmt.Errorf("pipeline step 2 failed: %w", statement.ErrEmptyOrHeaderOnly), true},
		{"no categories", fmt.Errorf("pipeline step 4 failed: %w", statement.ErrNoDefaultCategory), true},
		{"fetch failure", errors.New("pipeline step 1 failed: timeout"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewImportHandler(&mockImporter{ImportFunc: func(context.Context, pipeline.ImportRequest) (*pipeline.ImportResult, error) {
				return &pipeline.ImportResult{ImportLog: &domain.ImportLog{ID: "failed-log"}}, tt.err
			}})
			job := &ImportStatementJob{SourceURI: "s3://b/a.csv", Filename: "a.csv"}
			err := handler(context.Background(), job)
			require.Error(t, err)
			assert.Equal(t, tt.permanent, IsPermanent(err))
			assert.Equal(t, "failed-log", job.ImportLogID)
		})
	}
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	base := errors.New("boom")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.True(t, IsPermanent(fmt.Errorf("wrapped: %w", err)))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
}
