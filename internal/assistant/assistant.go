package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/student-finance/internal/domain"
	"github.com/dvloznov/student-finance/internal/logger"
	"github.com/dvloznov/student-finance/internal/report"
	"github.com/dvloznov/student-finance/internal/store"
)

const (
	// MaxHistory bounds the number of earlier turns included in a prompt.
	MaxHistory = 10

	// SummaryMonths is how far back the spending summary reaches.
	SummaryMonths = 3

	// MaxMessageLength caps a single user message in bytes.
	MaxMessageLength = 2000
)

var (
	// ErrEmptyMessage is returned when the user message is blank.
	ErrEmptyMessage = errors.New("message is required")

	// ErrMessageTooLong is returned when the user message exceeds MaxMessageLength.
	ErrMessageTooLong = errors.New("message is too long")
)

// Message is one turn of a chat. Role is "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a user message with the preceding conversation.
type ChatRequest struct {
	Message string    `json:"message"`
	History []Message `json:"history,omitempty"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// Repository is the data the assistant reads.
type Repository interface {
	store.CategoryRepository
	store.ExpenseRepository
}

// Assistant answers budgeting questions grounded in the user's recent spending.
type Assistant struct {
	gen  Generator
	repo Repository
	now  func() time.Time
}

// New creates an Assistant.
func New(gen Generator, repo Repository) *Assistant {
	return &Assistant{gen: gen, repo: repo, now: time.Now}
}

// Chat builds a prompt from the user's spending summary and the conversation
// and returns the model's reply.
func (a *Assistant) Chat(ctx context.Context, userID string, req ChatRequest) (*ChatResponse, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, ErrEmptyMessage
	}
	if len(msg) > MaxMessageLength {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrMessageTooLong, MaxMessageLength)
	}

	today := civil.DateOf(a.now())
	from := civil.Date{Year: today.Year, Month: today.Month, Day: 1}.AddMonths(-(SummaryMonths - 1))

	expenses, err := a.repo.ListExpenses(ctx, domain.ExpenseFilter{UserID: userID, From: from, To: today})
	if err != nil {
		return nil, fmt.Errorf("Chat: listing expenses: %w", err)
	}
	categories, err := a.repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Chat: listing categories: %w", err)
	}

	prompt := BuildPrompt(report.Summarize(expenses, categories), req.History, msg)

	log := logger.FromContext(ctx)
	log.Debug().
		Str("user_id", userID).
		Int("expenses", len(expenses)).
		Int("history", len(req.History)).
		Msg("sending assistant prompt")

	reply, err := a.gen.GenerateText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("Chat: %w", err)
	}
	return &ChatResponse{Reply: reply}, nil
}

// BuildPrompt assembles the system instructions, the spending summary, the
// last MaxHistory turns and the new message.
func BuildPrompt(summary report.Summary, history []Message, message string) string {
	var b strings.Builder

	b.WriteString("You are a friendly budgeting assistant for a university student in Japan.\n")
	b.WriteString("Amounts are in Japanese yen. Answer in the language the student uses.\n")
	b.WriteString("Base your advice on the spending summary below. If the data does not cover the question, say so.\n\n")

	b.WriteString("SPENDING SUMMARY:\n")
	if len(summary.Months) == 0 {
		b.WriteString("(no expenses recorded)\n")
	}
	for _, m := range summary.Months {
		fmt.Fprintf(&b, "%s: total ¥%d over %d expenses\n", m.Label(), m.Total, m.Count)
		for _, c := range m.ByCategory {
			fmt.Fprintf(&b, "  - %s: ¥%d (%d)\n", c.CategoryName, c.Total, c.Count)
		}
	}

	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	if len(history) > 0 {
		b.WriteString("\nCONVERSATION SO FAR:\n")
		for _, h := range history {
			role := "Student"
			if h.Role == "assistant" {
				role = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, strings.TrimSpace(h.Content))
		}
	}

	b.WriteString("\nStudent: " + message + "\nAssistant:")
	return b.String()
}
