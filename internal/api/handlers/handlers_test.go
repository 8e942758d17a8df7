package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/student-finance/internal/assistant"
	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/dvloznov/student-finance/internal/jobs"
	"github.com/dvloznov/student-finance/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockImporter struct {
	ImportFunc func(ctx context.Context, req pipeline.ImportRequest) (*pipeline.ImportResult, error)
	got        pipeline.ImportRequest
}

func (m *mockImporter) Import(ctx context.Context, req pipeline.ImportRequest) (*pipeline.ImportResult, error) {
	m.got = req
	return m.ImportFunc(ctx, req)
}

type mockChatter struct {
	ChatFunc func(ctx context.Context, userID string, req assistant.ChatRequest) (*assistant.ChatResponse, error)
}

func (m *mockChatter) Chat(ctx context.Context, userID string, req assistant.ChatRequest) (*assistant.ChatResponse, error) {
	return m.ChatFunc(ctx, userID, req)
}

type mockPublisher struct {
	err error
}

func (m *mockPublisher) PublishImportStatement(ctx context.Context, job *jobs.ImportStatementJob) error {
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

type mockLogs struct{}

func (mockLogs) CreateImportLog(ctx context.Context, l *domain.ImportLog) error { return nil }
func (mockLogs) ListImportLogs(ctx context.Context, userID string, limit int) ([]*domain.ImportLog, error) {
	return nil, nil
}

func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadStatement_PassesUploadRequest(t *testing.T) {
	imp := &mockImporter{ImportFunc: func(ctx context.Context, req pipeline.ImportRequest) (*pipeline.ImportResult, error) {
		return &pipeline.ImportResult{Summary: domain.ImportRunSummary{TotalRows: 1, Succeeded: 1}}, nil
	}}
	h := NewImportsHandler(imp, &mockPublisher{}, mockLogs{}, 0, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.UploadStatement(rec, multipartUpload(t, "../../may.csv", "data"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "may.csv", imp.got.Filename)
	assert.Equal(t, pipeline.SourceUpload, imp.got.SourceType)
	assert.Equal(t, []byte("data"), imp.got.Content)
	assert.Contains(t, rec.Body.String(), `"succeeded":1`)
}

func TestUploadStatement_StoreFailureIs500(t *testing.T) {
	imp := &mockImporter{ImportFunc: func(ctx context.Context, req pipeline.ImportRequest) (*pipeline.ImportResult, error) {
		return &pipeline.ImportResult{}, fmt.Errorf("pipeline step 3 failed: %w", errors.New("connection refused"))
	}}
	h := NewImportsHandler(imp, &mockPublisher{}, mockLogs{}, 0, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.UploadStatement(rec, multipartUpload(t, "may.csv", "data"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestEnqueueImport_PublishFailure(t *testing.T) {
	h := NewImportsHandler(nil, &mockPublisher{err: errors.New("broker down")}, mockLogs{}, 0, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/jobs", strings.NewReader(`{"source_uri":"s3://bucket/may.csv"}`))
	rec := httptest.NewRecorder()
	h.EnqueueImport(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListImportLogs_EmptyIsArray(t *testing.T) {
	h := NewImportsHandler(nil, nil, mockLogs{}, 0, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListImportLogs(rec, httptest.NewRequest(http.MethodGet, "/api/imports", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"import_logs":[],"count":0}`, rec.Body.String())
}

func TestAssistantChat(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"reply", `{"message":"今月いくら使った？"}`, nil, http.StatusOK, `"reply":"1920円です"`},
		{"invalid json", `{`, nil, http.StatusBadRequest, "Invalid request body"},
		{"empty message", `{"message":""}`, assistant.ErrEmptyMessage, http.StatusBadRequest, "message is required"},
		{"too long", `{"message":"x"}`, fmt.Errorf("%w: limit", assistant.ErrMessageTooLong), http.StatusBadRequest, "too long"},
		{"model failure", `{"message":"hi"}`, errors.New("quota"), http.StatusBadGateway, "Assistant is unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chatter := &mockChatter{ChatFunc: func(ctx context.Context, userID string, req assistant.ChatRequest) (*assistant.ChatResponse, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &assistant.ChatResponse{Reply: "1920円です"}, nil
			}}
			h := NewAssistantHandler(chatter, zerolog.Nop())

			rec := httptest.NewRecorder()
			h.Chat(rec, httptest.NewRequest(http.MethodPost, "/api/assistant/chat", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", defaultListLimit, false},
		{"limit=10", 10, false},
		{"limit=100000", maxListLimit, false},
		{"limit=0", 0, true},
		{"limit=ten", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := parseLimit(httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
