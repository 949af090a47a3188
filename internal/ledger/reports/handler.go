package reports

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/fasal-erp/fasal-erp/internal/platform/httpx"
)

// Handler exposes the reporting views. Reports are read-heavy and rebuilt
// from ledger truth, so the routes carry a per-tenant rate limit.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(60, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "report rate limit exceeded")
		}),
	)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/reports/trial-balance", h.trialBalance)
		gr.Get("/reports/general-ledger", h.generalLedger)
		gr.Get("/reports/party-ledger", h.partyLedger)
		gr.Get("/reports/ar-statement", h.arStatement)
		gr.Get("/reports/ageing", h.ageing)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if tenant := r.Header.Get("X-Tenant-ID"); tenant != "" {
		return "tenant:" + tenant, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := parseDate(r.URL.Query().Get("as_of"), time.Now().UTC())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), tenantID, asOf)
	if err != nil {
		h.logger.Error("trial balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) generalLedger(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	code := r.URL.Query().Get("account_code")
	if code == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "account_code is required")
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	view, err := h.service.GeneralLedger(r.Context(), tenantID, code, from, to)
	if err != nil {
		h.logger.Error("general ledger", slog.Any("error", err), slog.String("account_code", code))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) partyLedger(w http.ResponseWriter, r *http.Request) {
	h.partyView(w, r, h.service.PartyLedger, "party ledger")
}

func (h *Handler) arStatement(w http.ResponseWriter, r *http.Request) {
	h.partyView(w, r, h.service.ARStatement, "ar statement")
}

func (h *Handler) partyView(w http.ResponseWriter, r *http.Request,
	load func(ctx context.Context, tenantID, partyID int64, controlAccountCode string, from, to time.Time) (LedgerView, error),
	op string,
) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	partyID, err := strconv.ParseInt(r.URL.Query().Get("party_id"), 10, 64)
	if err != nil || partyID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "party_id is required")
		return
	}
	code := r.URL.Query().Get("control_account_code")
	if code == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "control_account_code is required")
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	view, err := load(r.Context(), tenantID, partyID, code, from, to)
	if err != nil {
		h.logger.Error(op, slog.Any("error", err), slog.Int64("party_id", partyID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) ageing(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := parseDate(r.URL.Query().Get("as_of"), time.Now().UTC())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
		return
	}
	projectID := optionalID(r.URL.Query().Get("project_id"))
	cycleID := optionalID(r.URL.Query().Get("crop_cycle_id"))
	buckets, err := h.service.Ageing(r.Context(), tenantID, asOf, projectID, cycleID)
	if err != nil {
		h.logger.Error("ageing", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"as_of": asOf, "buckets": buckets})
}

func parseDate(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", raw)
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseDate(r.URL.Query().Get("from"), time.Time{})
	if err != nil {
		return time.Time{}, time.Time{}, errBadDate("from")
	}
	to, err := parseDate(r.URL.Query().Get("to"), time.Now().UTC())
	if err != nil {
		return time.Time{}, time.Time{}, errBadDate("to")
	}
	return from, to, nil
}

type errBadDate string

func (e errBadDate) Error() string { return string(e) + " must be YYYY-MM-DD" }

func optionalID(raw string) *int64 {
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}
