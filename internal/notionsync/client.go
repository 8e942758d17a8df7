package notionsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jomei/notionapi"
)

// maxRetries is how often a rate-limited request is retried by the SDK.
const maxRetries = 3

// NotionClient implements NotionService with the jomei/notionapi SDK.
type NotionClient struct {
	client *notionapi.Client
}

// NewNotionClient creates a client for an integration token.
// Requests rejected with 429 are retried.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token), notionapi.WithRetry(maxRetries)),
	}
}

// CreatePage adds a row to the expenses database.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}
	return page, nil
}

// UpdatePage overwrites the given properties of a row.
func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("UpdatePage: %w", err)
	}
	return page, nil
}

// QueryDatabase runs one page of a database query.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}
	return resp, nil
}

// DeletePage archives a row. A page that no longer exists counts as deleted.
func (n *NotionClient) DeletePage(ctx context.Context, pageID string) error {
	_, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Archived: true,
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("DeletePage: %w", err)
	}
	return nil
}

// CheckDatabase verifies that the database has every property the export writes.
func (n *NotionClient) CheckDatabase(ctx context.Context, databaseID string) error {
	db, err := n.client.Database.Get(ctx, notionapi.DatabaseID(databaseID))
	if err != nil {
		return fmt.Errorf("CheckDatabase: %w", err)
	}
	if missing := missingProperties(db.Properties); len(missing) > 0 {
		return fmt.Errorf("CheckDatabase: database %s is missing properties: %s", databaseID, strings.Join(missing, ", "))
	}
	return nil
}

func missingProperties(configs notionapi.PropertyConfigs) []string {
	var missing []string
	for _, name := range requiredProperties {
		if _, ok := configs[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func isNotFound(err error) bool {
	var apiErr *notionapi.Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

var _ NotionService = (*NotionClient)(nil)
