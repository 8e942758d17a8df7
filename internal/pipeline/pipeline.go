package pipeline

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/dvloznov/student-finance/internal/logger"
	"github.com/dvloznov/student-finance/internal/statement"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *ImportState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// ImportRequest describes one statement to import.
// Content takes precedence over SourceURI.
type ImportRequest struct {
	UserID     string
	Filename   string
	SourceType string
	SourceURI  string
	Content    []byte
}

// ImportResult is what a finished run produced.
type ImportResult struct {
	Summary   domain.ImportRunSummary `json:"summary"`
	ImportLog *domain.ImportLog       `json:"import_log"`
	Expenses  []*domain.Expense       `json:"-"`
}

// Option configures an Importer.
type Option func(*Importer)

// WithFetcher sets the fetcher used for URI imports.
func WithFetcher(f StatementFetcher) Option {
	return func(i *Importer) { i.fetcher = f }
}

// WithKeywordRules replaces the default category keyword dictionary.
func WithKeywordRules(rules []statement.KeywordRule) Option {
	return func(i *Importer) { i.rules = rules }
}

// WithCategorySeeding seeds the default categories for users who have none.
func WithCategorySeeding() Option {
	return func(i *Importer) { i.seedCategories = true }
}

// Importer runs the statement import pipeline against a repository.
type Importer struct {
	repo           Repository
	fetcher        StatementFetcher
	rules          []statement.KeywordRule
	seedCategories bool
}

// NewImporter creates an Importer backed by repo.
func NewImporter(repo Repository, opts ...Option) *Importer {
	i := &Importer{repo: repo}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Importer) pipeline() *Pipeline {
	return NewPipeline(
		&FetchStatementStep{fetcher: i.fetcher},
		&ParseStatementStep{parser: statement.NewParser(i.rules)},
		&LoadCategoriesStep{repo: i.repo, seed: i.seedCategories},
		&ConvertExpensesStep{},
		&PersistExpensesStep{repo: i.repo},
		&RecordImportLogStep{repo: i.repo},
	)
}

// Import runs one import. When a step fails the importer still records a
// failed import log and returns the step error.
func (i *Importer) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	log := logger.ForImport(logger.FromContext(ctx), req.UserID, req.Filename)
	ctx = logger.WithContext(ctx, log)

	state := &ImportState{
		UserID:     req.UserID,
		Filename:   req.Filename,
		SourceType: req.SourceType,
		SourceURI:  req.SourceURI,
		Content:    req.Content,
	}

	log.Info().Str("source_type", req.SourceType).Msg("starting statement import")

	if err := i.pipeline().Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("statement import failed")
		i.recordFailure(ctx, state, err)
		return &ImportResult{Summary: state.Summary, ImportLog: state.ImportLog, Expenses: state.Expenses}, err
	}

	log.Info().
		Int("total_rows", state.Summary.TotalRows).
		Int("succeeded", state.Summary.Succeeded).
		Int("failed", state.Summary.Failed).
		Int("skipped", state.Summary.Skipped).
		Msg("statement import finished")

	return &ImportResult{Summary: state.Summary, ImportLog: state.ImportLog, Expenses: state.Expenses}, nil
}

// recordFailure writes the failed-run import log. Errors here are logged only.
func (i *Importer) recordFailure(ctx context.Context, state *ImportState, runErr error) {
	if state.ImportLog != nil {
		return
	}

	summary := state.Summary
	var allFailed *statement.AllRowsFailedError
	if !errors.As(runErr, &allFailed) {
		summary.Errors = append(append([]string(nil), summary.Errors...), truncate(runErr.Error(), MaxErrorMessageLength))
	}

	l := domain.NewImportLog(state.UserID, state.Filename, state.SourceType, summary)
	if err := i.repo.CreateImportLog(ctx, l); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("failed to record failed import")
		return
	}
	state.ImportLog = l
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
