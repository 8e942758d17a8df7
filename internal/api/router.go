package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/student-finance/internal/api/handlers"
	"github.com/dvloznov/student-finance/internal/api/middleware"
	"github.com/dvloznov/student-finance/internal/jobs"
	"github.com/dvloznov/student-finance/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Deps are the services the HTTP API serves.
type Deps struct {
	Store     store.Store
	Importer  handlers.Importer
	Publisher jobs.Publisher
	JobStore  jobs.JobStore

	// MaxRetries applies to enqueued import jobs; zero uses the job default.
	MaxRetries int

	// Assistant may be nil when no model is configured.
	Assistant handlers.Chatter

	DefaultUserID string
	Log           zerolog.Logger
}

// NewRouter wires every route and the shared middleware.
func NewRouter(d Deps) http.Handler {
	imports := handlers.NewImportsHandler(d.Importer, d.Publisher, d.Store, d.MaxRetries, d.Log)
	expenses := handlers.NewExpensesHandler(d.Store, d.Log)
	categories := handlers.NewCategoriesHandler(d.Store, d.Log)
	jobsHandler := handlers.NewJobsHandler(d.JobStore, d.Log)
	chat := handlers.NewAssistantHandler(d.Assistant, d.Log)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Log))
	r.Use(middleware.CORS())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.UserID(d.DefaultUserID))

		r.Route("/imports", func(r chi.Router) {
			r.Get("/", imports.ListImportLogs)
			r.Post("/", imports.UploadStatement)
			r.Post("/jobs", imports.EnqueueImport)
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", expenses.ListExpenses)
			r.Get("/summary", expenses.Summary)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categories.ListCategories)
			r.Post("/", categories.CreateCategory)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", jobsHandler.ListJobs)
			r.Get("/{id}", jobsHandler.GetJob)
		})

		r.Post("/assistant/chat", chat.Chat)
	})

	return r
}
