package notionsync

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/dvloznov/student-finance/internal/logger"
	"github.com/jomei/notionapi"
)

const (
	// BatchSize defines the number of expenses processed per batch
	BatchSize = 100
)

// Options controls an export run.
type Options struct {
	DryRun bool

	// Prune archives pages in the date range whose expense no longer exists.
	Prune bool
}

// Result counts what a sync did (or would do, in dry-run mode).
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// SyncExpenses exports a user's expenses dated within [from, to] to a Notion
// database. Pages are matched on the Expense ID property: matches are
// updated, the rest created. Individual page failures are counted and logged.
func SyncExpenses(ctx context.Context, src ExpenseSource, notionClient NotionService, notionDBID, userID string, from, to civil.Date, opts Options) (*Result, error) {
	log := logger.FromContext(ctx).With().Str("user_id", userID).Logger()

	log.Info().
		Str("from", from.String()).
		Str("to", to.String()).
		Bool("dry_run", opts.DryRun).
		Msg("Starting expense sync to Notion")

	expenses, err := src.ListExpenses(ctx, domain.ExpenseFilter{UserID: userID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	categories, err := src.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	categoryNames := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	log.Info().Int("expense_count", len(expenses)).Msg("Retrieved expenses")

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID, dateRangeFilter(from, to))
	if err != nil {
		return nil, fmt.Errorf("failed to query Notion pages: %w", err)
	}

	pageByExpense := make(map[string]string, len(pages))
	for _, page := range pages {
		if id := extractExpenseID(page); id != "" {
			pageByExpense[id] = string(page.ID)
		}
	}

	result := &Result{}

	if opts.Prune {
		valid := make(map[string]bool, len(expenses))
		for _, e := range expenses {
			valid[e.ID] = true
		}
		for _, page := range pages {
			id := extractExpenseID(page)
			if valid[id] {
				continue
			}
			if opts.DryRun {
				log.Info().Str("expense_id", id).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would delete stale Notion page")
				result.Deleted++
				continue
			}
			if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
				log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to delete stale Notion page")
				result.Failed++
				continue
			}
			result.Deleted++
		}
	}

	for i := 0; i < len(expenses); i += BatchSize {
		end := i + BatchSize
		if end > len(expenses) {
			end = len(expenses)
		}
		batch := expenses[i:end]
		log.Debug().Int("batch_start", i).Int("batch_end", end).Msg("Processing batch")

		for _, e := range batch {
			pageID, exists := pageByExpense[e.ID]

			if opts.DryRun {
				if exists {
					log.Info().Str("expense_id", e.ID).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
					result.Updated++
				} else {
					log.Info().Str("expense_id", e.ID).Msg("[DRY RUN] Would create Notion page")
					result.Created++
				}
				continue
			}

			props := ExpenseToNotionProperties(e, categoryNames[e.CategoryID])

			if exists {
				if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
					log.Warn().Err(err).Str("expense_id", e.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
					result.Failed++
					continue
				}
				result.Updated++
				continue
			}

			page, err := notionClient.CreatePage(ctx, notionDBID, props)
			if err != nil {
				log.Warn().Err(err).Str("expense_id", e.ID).Msg("Failed to create Notion page")
				result.Failed++
				continue
			}
			log.Debug().Str("expense_id", e.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
			result.Created++
		}
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Int("failed", result.Failed).
		Int("total", len(expenses)).
		Msg("Expense sync completed")

	return result, nil
}

// dateRangeFilter restricts a query to pages whose Date lies in [from, to].
// Invalid bounds are left open.
func dateRangeFilter(from, to civil.Date) notionapi.Filter {
	var conds notionapi.AndCompoundFilter
	if from.IsValid() {
		conds = append(conds, notionapi.PropertyFilter{
			Property: PropDate,
			Date:     &notionapi.DateFilterCondition{OnOrAfter: civilDate(from)},
		})
	}
	if to.IsValid() {
		conds = append(conds, notionapi.PropertyFilter{
			Property: PropDate,
			Date:     &notionapi.DateFilterCondition{OnOrBefore: civilDate(to)},
		})
	}
	if len(conds) == 0 {
		return nil
	}
	return conds
}

// queryAllNotionPages follows the query cursor until every page is fetched.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string, filter notionapi.Filter) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter:   filter,
			PageSize: BatchSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
