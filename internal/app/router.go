package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fasal-erp/fasal-erp/internal/ledger/accounts"
	"github.com/fasal-erp/fasal-erp/internal/ledger/cycles"
	"github.com/fasal-erp/fasal-erp/internal/ledger/documents"
	"github.com/fasal-erp/fasal-erp/internal/ledger/posting"
	"github.com/fasal-erp/fasal-erp/internal/ledger/recon"
	"github.com/fasal-erp/fasal-erp/internal/ledger/reports"
	"github.com/fasal-erp/fasal-erp/internal/ledger/reversal"
	"github.com/fasal-erp/fasal-erp/internal/ledger/settlement"
	"github.com/fasal-erp/fasal-erp/internal/observability"
	"github.com/fasal-erp/fasal-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AccountsHandler   *accounts.Handler
	CyclesHandler     *cycles.Handler
	PostingHandler    *posting.Handler
	ReversalHandler   *reversal.Handler
	SettlementHandler *settlement.Handler
	ReportsHandler    *reports.Handler
	ReconHandler      *recon.Handler
	DocumentsHandler  *documents.Handler
	JobsHandler       *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		if params.Config != nil && params.Config.APIKeyHash != "" {
			api.Use(APIKeyMiddleware(params.Logger, params.Config.APIKeyHash))
		}
		if params.AccountsHandler != nil {
			params.AccountsHandler.MountRoutes(api)
		}
		if params.CyclesHandler != nil {
			params.CyclesHandler.MountRoutes(api)
		}
		if params.PostingHandler != nil {
			params.PostingHandler.MountRoutes(api)
		}
		if params.ReversalHandler != nil {
			params.ReversalHandler.MountRoutes(api)
		}
		if params.SettlementHandler != nil {
			params.SettlementHandler.MountRoutes(api)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(api)
		}
		if params.ReconHandler != nil {
			params.ReconHandler.MountRoutes(api)
		}
		if params.DocumentsHandler != nil {
			params.DocumentsHandler.MountRoutes(api)
		}
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
