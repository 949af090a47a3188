package posting

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/fasal-erp/fasal-erp/internal/ledger/sources"
	"github.com/fasal-erp/fasal-erp/internal/platform/httpx"
)

// Handler exposes the posting engine over HTTP.
type Handler struct {
	logger    *slog.Logger
	engine    *Engine
	validator *validator.Validate
	postings  *prometheus.CounterVec
}

func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	return &Handler{logger: logger, engine: engine, validator: validator.New()}
}

// WithMetrics counts committed groups by source type.
func (h *Handler) WithMetrics(postings *prometheus.CounterVec) *Handler {
	h.postings = postings
	return h
}

// MountRoutes registers posting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/postings", h.create)
	r.Get("/postings/{id}", h.get)
}

type lineReq struct {
	AccountCode string          `json:"account_code" validate:"required"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Currency    string          `json:"currency" validate:"required,len=3"`
}

type allocationReq struct {
	ProjectID *int64           `json:"project_id,omitempty"`
	PartyID   *int64           `json:"party_id,omitempty"`
	MachineID *int64           `json:"machine_id,omitempty"`
	Type      string           `json:"type" validate:"required"`
	Scope     *string          `json:"scope,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	Unit      string           `json:"unit,omitempty"`
}

type createPostingReq struct {
	CropCycleID    *int64          `json:"crop_cycle_id,omitempty"`
	SourceType     string          `json:"source_type" validate:"required"`
	SourceID       uuid.UUID       `json:"source_id" validate:"required"`
	PostingDate    time.Time       `json:"posting_date" validate:"required"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	Lines          []lineReq       `json:"lines" validate:"dive"`
	Allocations    []allocationReq `json:"allocations" validate:"dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createPostingReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	group, err := h.engine.Post(r.Context(), PostingInput{
		TenantID:       tenantID,
		CropCycleID:    req.CropCycleID,
		SourceType:     sources.Kind(req.SourceType),
		SourceID:       req.SourceID,
		PostingDate:    req.PostingDate,
		IdempotencyKey: req.IdempotencyKey,
		Lines:          toLineInputs(req.Lines),
		Allocations:    toAllocationInputs(req.Allocations),
	})
	if err != nil {
		h.logger.Error("post group", slog.Any("error", err), slog.String("source_type", req.SourceType))
		httpx.RespondError(w, err)
		return
	}
	if h.postings != nil {
		h.postings.WithLabelValues(string(group.SourceType)).Inc()
	}
	httpx.JSON(w, http.StatusCreated, group)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid posting group id")
		return
	}
	group, err := h.engine.GetGroup(r.Context(), tenantID, id)
	if err != nil {
		h.logger.Error("get group", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func toLineInputs(lines []lineReq) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineInput{
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Currency:    l.Currency,
		})
	}
	return out
}

func toAllocationInputs(rows []allocationReq) []AllocationInput {
	out := make([]AllocationInput, 0, len(rows))
	for _, a := range rows {
		var scope *AllocationScope
		if a.Scope != nil {
			s := AllocationScope(*a.Scope)
			scope = &s
		}
		out = append(out, AllocationInput{
			ProjectID: a.ProjectID,
			PartyID:   a.PartyID,
			MachineID: a.MachineID,
			Type:      AllocationType(a.Type),
			Scope:     scope,
			Amount:    a.Amount,
			Quantity:  a.Quantity,
			Unit:      a.Unit,
		})
	}
	return out
}
