package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/dvloznov/student-finance/internal/logger"
	"github.com/dvloznov/student-finance/internal/statement"
	"github.com/dvloznov/student-finance/internal/store"
)

// PipelineStep represents a single step in the import pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *ImportState) error
}

// ImportState holds the shared state across all pipeline steps.
type ImportState struct {
	UserID     string
	Filename   string
	SourceType string
	SourceURI  string
	Content    []byte

	Parsed     *statement.ParseResult
	Categories []domain.Category
	Drafts     []statement.ExpenseDraft
	Expenses   []*domain.Expense

	Summary   domain.ImportRunSummary
	ImportLog *domain.ImportLog
}

// FetchStatementStep loads the statement bytes when they were not uploaded directly.
type FetchStatementStep struct {
	fetcher StatementFetcher
}

func (s *FetchStatementStep) Execute(ctx context.Context, state *ImportState) error {
	if state.Content != nil {
		return nil
	}
	if state.SourceURI == "" {
		return errors.New("FetchStatementStep: no content and no source URI")
	}
	if s.fetcher == nil {
		return errors.New("FetchStatementStep: no fetcher configured")
	}
	content, err := s.fetcher.Fetch(ctx, state.SourceURI)
	if err != nil {
		return fmt.Errorf("FetchStatementStep: %w", err)
	}
	state.Content = content
	return nil
}

// ParseStatementStep normalizes the CSV rows.
// Row failures are tallied; a file-level failure stops the pipeline.
type ParseStatementStep struct {
	parser *statement.Parser
}

func (s *ParseStatementStep) Execute(ctx context.Context, state *ImportState) error {
	log := logger.FromContext(ctx)

	result, err := s.parser.Parse(string(state.Content))
	if err != nil {
		var allFailed *statement.AllRowsFailedError
		if errors.As(err, &allFailed) {
			state.Summary.TotalRows = len(allFailed.Errors)
			for _, rowErr := range allFailed.Errors {
				state.Summary.AddParseError(rowErr.Error())
			}
		}
		return err
	}

	state.Parsed = result
	state.Summary.TotalRows = result.TotalRows
	for _, rowErr := range result.Errors {
		log.Warn().Int("row", rowErr.Row).Err(rowErr.Err).Msg("skipping unparseable row")
		state.Summary.AddParseError(rowErr.Error())
	}

	log.Info().
		Int("total_rows", result.TotalRows).
		Int("parsed", len(result.Transactions)).
		Int("failed", len(result.Errors)).
		Msg("statement parsed")
	return nil
}

// LoadCategoriesStep loads the user's categories, optionally seeding the
// default set for users who have none.
type LoadCategoriesStep struct {
	repo store.CategoryRepository
	seed bool
}

func (s *LoadCategoriesStep) Execute(ctx context.Context, state *ImportState) error {
	var (
		categories []domain.Category
		err        error
	)
	if s.seed {
		categories, err = store.SeedDefaultCategories(ctx, s.repo, state.UserID)
	} else {
		categories, err = s.repo.ListCategories(ctx, state.UserID)
	}
	if err != nil {
		return fmt.Errorf("LoadCategoriesStep: %w", err)
	}
	state.Categories = categories
	return nil
}

// ConvertExpensesStep turns debit transactions into expense drafts.
type ConvertExpensesStep struct{}

func (s *ConvertExpensesStep) Execute(ctx context.Context, state *ImportState) error {
	drafts, err := statement.ConvertToExpenses(state.Parsed.Transactions, state.Categories, state.UserID)
	if err != nil {
		return err
	}
	state.Drafts = drafts
	state.Summary.Skipped = len(state.Parsed.Transactions) - len(drafts)
	return nil
}

// PersistExpensesStep writes drafts one at a time, in order.
// A rejected draft is tallied and the loop moves on.
type PersistExpensesStep struct {
	repo store.ExpenseRepository
}

func (s *PersistExpensesStep) Execute(ctx context.Context, state *ImportState) error {
	log := logger.FromContext(ctx)

	for i, draft := range state.Drafts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("PersistExpensesStep: %w", err)
		}

		expense, err := expenseFromDraft(draft)
		if err == nil {
			err = s.repo.CreateExpense(ctx, expense)
		}
		if err != nil {
			log.Warn().Err(err).Int("draft", i+1).Str("description", draft.Description).Msg("failed to persist expense")
			state.Summary.AddPersistError(fmt.Sprintf("expense %d (%s): %v", i+1, draft.Description, err))
			continue
		}

		state.Expenses = append(state.Expenses, expense)
		state.Summary.Succeeded++
	}
	return nil
}

func expenseFromDraft(d statement.ExpenseDraft) (*domain.Expense, error) {
	original, err := json.Marshal(d.OriginalData)
	if err != nil {
		return nil, fmt.Errorf("encoding original data: %w", err)
	}
	return &domain.Expense{
		UserID:       d.UserID,
		Amount:       d.Amount,
		CategoryID:   d.CategoryID,
		Description:  d.Description,
		Date:         d.Date,
		Source:       d.Source,
		OriginalData: original,
	}, nil
}

// RecordImportLogStep writes the audit record for the run.
type RecordImportLogStep struct {
	repo store.ImportLogRepository
}

func (s *RecordImportLogStep) Execute(ctx context.Context, state *ImportState) error {
	l := domain.NewImportLog(state.UserID, state.Filename, state.SourceType, state.Summary)
	if err := s.repo.CreateImportLog(ctx, l); err != nil {
		return fmt.Errorf("RecordImportLogStep: %w", err)
	}
	state.ImportLog = l
	return nil
}
