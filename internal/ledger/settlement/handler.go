package settlement

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fasal-erp/fasal-erp/internal/platform/httpx"
)

// Handler exposes settlement preview and commit endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validator   *validator.Validate
	settlements prometheus.Counter
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// WithMetrics counts committed settlement groups.
func (h *Handler) WithMetrics(settlements prometheus.Counter) *Handler {
	h.settlements = settlements
	return h
}

// MountRoutes registers settlement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/projects/{id}/settlement/preview", h.preview)
	r.Post("/projects/{id}/settlement", h.post)
	r.Post("/cycles/{id}/settlement", h.settleCycle)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	projectID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid project id")
		return
	}
	asOf, err := parseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
		return
	}
	breakdown, err := h.service.Preview(r.Context(), tenantID, projectID, asOf)
	if err != nil {
		h.logger.Error("settlement preview", slog.Any("error", err), slog.Int64("project_id", projectID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, breakdown)
}

type postSettlementReq struct {
	CropCycleID    *int64    `json:"crop_cycle_id,omitempty"`
	AsOf           time.Time `json:"as_of" validate:"required"`
	PostingDate    time.Time `json:"posting_date"`
	IdempotencyKey string    `json:"idempotency_key" validate:"required"`
	IsFinal        bool      `json:"is_final"`
	Notes          string    `json:"notes"`
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	projectID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid project id")
		return
	}
	var req postSettlementReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.PostSettlement(r.Context(), PostInput{
		TenantID:       tenantID,
		ProjectID:      projectID,
		CropCycleID:    req.CropCycleID,
		AsOf:           req.AsOf,
		PostingDate:    req.PostingDate,
		IdempotencyKey: req.IdempotencyKey,
		IsFinal:        req.IsFinal,
		Notes:          req.Notes,
	})
	if err != nil {
		h.logger.Error("post settlement", slog.Any("error", err), slog.Int64("project_id", projectID))
		httpx.RespondError(w, err)
		return
	}
	if h.settlements != nil {
		h.settlements.Inc()
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"group":     result.Group,
		"breakdown": result.Breakdown,
	})
}

type settleCycleReq struct {
	AsOf           time.Time `json:"as_of" validate:"required"`
	PostingDate    time.Time `json:"posting_date"`
	IdempotencyKey string    `json:"idempotency_key" validate:"required"`
	IsFinal        bool      `json:"is_final"`
	Notes          string    `json:"notes"`
}

func (h *Handler) settleCycle(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	cycleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid cycle id")
		return
	}
	var req settleCycleReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.SettleCropCycle(r.Context(), CycleInput{
		TenantID:       tenantID,
		CropCycleID:    cycleID,
		AsOf:           req.AsOf,
		PostingDate:    req.PostingDate,
		IdempotencyKey: req.IdempotencyKey,
		IsFinal:        req.IsFinal,
		Notes:          req.Notes,
	})
	if err != nil {
		h.logger.Error("settle crop cycle", slog.Any("error", err), slog.Int64("cycle_id", cycleID))
		httpx.RespondError(w, err)
		return
	}
	if h.settlements != nil {
		h.settlements.Inc()
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"group":      result.Group,
		"breakdowns": result.Breakdowns,
	})
}

func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}
