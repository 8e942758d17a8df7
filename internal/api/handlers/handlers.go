package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/student-finance/internal/api/middleware"
	"github.com/dvloznov/student-finance/internal/assistant"
	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/dvloznov/student-finance/internal/jobs"
	"github.com/dvloznov/student-finance/internal/objectstore"
	"github.com/dvloznov/student-finance/internal/pipeline"
	"github.com/dvloznov/student-finance/internal/report"
	"github.com/dvloznov/student-finance/internal/statement"
	"github.com/dvloznov/student-finance/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	// MaxUploadSize caps multipart statement uploads.
	MaxUploadSize = 10 << 20

	defaultListLimit = 50
	maxListLimit     = 500
)

// Importer runs a statement import.
type Importer interface {
	Import(ctx context.Context, req pipeline.ImportRequest) (*pipeline.ImportResult, error)
}

// Chatter answers assistant messages.
type Chatter interface {
	Chat(ctx context.Context, userID string, req assistant.ChatRequest) (*assistant.ChatResponse, error)
}

// ImportsHandler handles statement import endpoints.
type ImportsHandler struct {
	importer   Importer
	publisher  jobs.Publisher
	logs       store.ImportLogRepository
	maxRetries int
	log        zerolog.Logger
}

// NewImportsHandler creates a new imports handler. Enqueued jobs get
// maxRetries retries; zero applies jobs.DefaultMaxRetries.
func NewImportsHandler(importer Importer, publisher jobs.Publisher, logs store.ImportLogRepository, maxRetries int, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		importer:   importer,
		publisher:  publisher,
		logs:       logs,
		maxRetries: maxRetries,
		log:        log,
	}
}

// UploadStatement handles POST /api/imports
// The multipart field "file" is imported synchronously.
func (h *ImportsHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form or file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	result, err := h.importer.Import(ctx, pipeline.ImportRequest{
		UserID:     userID,
		Filename:   filepath.Base(header.Filename),
		SourceType: pipeline.SourceUpload,
		Content:    content,
	})
	if err != nil {
		if statement.IsFatal(err) && result != nil {
			middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":      err.Error(),
				"summary":    result.Summary,
				"import_log": result.ImportLog,
			})
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to import statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to import statement")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// EnqueueImport handles POST /api/imports/jobs
func (h *ImportsHandler) EnqueueImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceURI string `json:"source_uri"`
		Filename  string `json:"filename"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.SourceURI == "" {
		middleware.WriteError(w, http.StatusBadRequest, "source_uri is required")
		return
	}
	loc, err := objectstore.ParseURI(req.SourceURI)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if loc.Scheme == objectstore.SchemeFile {
		middleware.WriteError(w, http.StatusBadRequest, "source_uri must be a gs:// or s3:// URI")
		return
	}

	ctx := r.Context()
	job := &jobs.ImportStatementJob{
		UserID:     middleware.UserIDFromContext(ctx),
		SourceURI:  req.SourceURI,
		Filename:   req.Filename,
		MaxRetries: h.maxRetries,
	}

	if err := h.publisher.PublishImportStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("source_uri", req.SourceURI).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// ListImportLogs handles GET /api/imports
func (h *ImportsHandler) ListImportLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := parseLimit(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := h.logs.ListImportLogs(ctx, middleware.UserIDFromContext(ctx), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list import logs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list import logs")
		return
	}
	if logs == nil {
		logs = []*domain.ImportLog{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"import_logs": logs,
		"count":       len(logs),
	})
}

// ExpenseReader is what the expense endpoints read.
type ExpenseReader interface {
	store.ExpenseRepository
	store.CategoryRepository
}

// ExpensesHandler handles expense endpoints.
type ExpensesHandler struct {
	repo ExpenseReader
	log  zerolog.Logger
}

// NewExpensesHandler creates a new expenses handler.
func NewExpensesHandler(repo ExpenseReader, log zerolog.Logger) *ExpensesHandler {
	return &ExpensesHandler{
		repo: repo,
		log:  log,
	}
}

// ListExpenses handles GET /api/expenses
func (h *ExpensesHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := expenseFilter(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.CategoryID = r.URL.Query().Get("category_id")
	if filter.Limit, err = parseLimit(r); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	expenses, err := h.repo.ListExpenses(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list expenses")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list expenses")
		return
	}

	// Return array directly for frontend compatibility
	if expenses == nil {
		expenses = []*domain.Expense{}
	}
	middleware.WriteJSON(w, http.StatusOK, expenses)
}

// Summary handles GET /api/expenses/summary
func (h *ExpensesHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := expenseFilter(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	expenses, err := h.repo.ListExpenses(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list expenses")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to summarize expenses")
		return
	}
	categories, err := h.repo.ListCategories(ctx, filter.UserID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to summarize expenses")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report.Summarize(expenses, categories))
}

// CategoriesHandler handles category endpoints.
type CategoriesHandler struct {
	repo store.CategoryRepository
	log  zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(repo store.CategoryRepository, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{
		repo: repo,
		log:  log,
	}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := h.repo.ListCategories(ctx, middleware.UserIDFromContext(ctx))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// CreateCategory handles POST /api/categories
func (h *CategoriesHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	ctx := r.Context()
	c := &domain.Category{UserID: middleware.UserIDFromContext(ctx), Name: name}
	if err := h.repo.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicateCategory) {
			middleware.WriteError(w, http.StatusConflict, "Category already exists")
			return
		}
		h.log.Error().Err(err).Msg("Failed to create category")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create category")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, c)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
// Jobs owned by another user are reported as not found.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if !errors.Is(err, jobs.ErrJobNotFound) {
			h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
			return
		}
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if job.UserID != middleware.UserIDFromContext(ctx) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: middleware.UserIDFromContext(ctx),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.ImportStatementJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// AssistantHandler handles the budgeting assistant endpoint.
type AssistantHandler struct {
	chatter Chatter
	log     zerolog.Logger
}

// NewAssistantHandler creates a new assistant handler. A nil chatter makes
// the endpoint report 503.
func NewAssistantHandler(chatter Chatter, log zerolog.Logger) *AssistantHandler {
	return &AssistantHandler{
		chatter: chatter,
		log:     log,
	}
}

// Chat handles POST /api/assistant/chat
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.chatter == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Assistant is not configured")
		return
	}

	var req assistant.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	resp, err := h.chatter.Chat(ctx, middleware.UserIDFromContext(ctx), req)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyMessage) || errors.Is(err, assistant.ErrMessageTooLong) {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Assistant chat failed")
		middleware.WriteError(w, http.StatusBadGateway, "Assistant is unavailable")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// expenseFilter reads the user and the optional from/to dates (YYYY-MM-DD).
func expenseFilter(r *http.Request) (domain.ExpenseFilter, error) {
	filter := domain.ExpenseFilter{UserID: middleware.UserIDFromContext(r.Context())}
	query := r.URL.Query()

	if s := query.Get("from"); s != "" {
		d, err := civil.ParseDate(s)
		if err != nil {
			return filter, fmt.Errorf("invalid from date %q: expected YYYY-MM-DD", s)
		}
		filter.From = d
	}
	if s := query.Get("to"); s != "" {
		d, err := civil.ParseDate(s)
		if err != nil {
			return filter, fmt.Errorf("invalid to date %q: expected YYYY-MM-DD", s)
		}
		filter.To = d
	}
	if filter.From.IsValid() && filter.To.IsValid() && filter.To.Before(filter.From) {
		return filter, errors.New("to must not be before from")
	}
	return filter, nil
}

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("invalid limit %q: must be a positive number", s)
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}
