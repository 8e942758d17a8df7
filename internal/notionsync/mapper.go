package notionsync

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the expenses database.
const (
	PropDescription = "Description"
	PropExpenseID   = "Expense ID"
	PropDate        = "Date"
	PropAmount      = "Amount"
	PropCategory    = "Category"
	PropSource      = "Source"
	PropImportedAt  = "Imported At"
)

// requiredProperties must exist on the target database. Category, Source and
// Imported At are optional.
var requiredProperties = []string{PropDescription, PropExpenseID, PropDate, PropAmount}

// ExpenseToNotionProperties converts an expense to properties of the expenses database.
// categoryName is shown as a select option; empty names are omitted.
func ExpenseToNotionProperties(e *domain.Expense, categoryName string) notionapi.Properties {
	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: richText(e.Description),
		},
		PropExpenseID: notionapi.RichTextProperty{
			RichText: richText(e.ID),
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: civilDate(e.Date)},
		},
		PropAmount: notionapi.NumberProperty{
			Number: float64(e.Amount),
		},
	}

	if categoryName != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: categoryName},
		}
	}

	if e.Source != "" {
		props[PropSource] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: e.Source},
		}
	}

	if !e.CreatedAt.IsZero() {
		created := notionapi.Date(e.CreatedAt)
		props[PropImportedAt] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &created},
		}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

func civilDate(d civil.Date) *notionapi.Date {
	nd := notionapi.Date(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC))
	return &nd
}

// extractExpenseID extracts the expense ID from a Notion page's properties.
// Returns empty string if not found.
func extractExpenseID(page notionapi.Page) string {
	prop, ok := page.Properties[PropExpenseID]
	if !ok {
		return ""
	}
	rt, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(rt.RichText) == 0 {
		return ""
	}
	if rt.RichText[0].PlainText != "" {
		return rt.RichText[0].PlainText
	}
	if rt.RichText[0].Text != nil {
		return rt.RichText[0].Text.Content
	}
	return ""
}
