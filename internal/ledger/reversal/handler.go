package reversal

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/fasal-erp/fasal-erp/internal/ledger/posting"
	"github.com/fasal-erp/fasal-erp/internal/platform/httpx"
)

// Handler exposes reversal and correction endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	reversals prometheus.Counter
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// WithMetrics counts committed reversal groups.
func (h *Handler) WithMetrics(reversals prometheus.Counter) *Handler {
	h.reversals = reversals
	return h
}

// MountRoutes registers reversal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/postings/{id}/reverse", h.reverse)
	r.Post("/postings/{id}/correct", h.correct)
}

type reverseReq struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	groupID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid posting group id")
		return
	}
	var req reverseReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mirror, err := h.service.Reverse(r.Context(), ReverseInput{
		TenantID:       tenantID,
		PostingGroupID: groupID,
		ActorID:        httpx.ActorID(r),
		Reason:         req.Reason,
	})
	if err != nil {
		h.logger.Error("reverse group", slog.Any("error", err), slog.Int64("group_id", groupID))
		httpx.RespondError(w, err)
		return
	}
	if h.reversals != nil {
		h.reversals.Inc()
	}
	httpx.JSON(w, http.StatusCreated, mirror)
}

type correctLineReq struct {
	AccountCode string          `json:"account_code" validate:"required"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Currency    string          `json:"currency" validate:"required,len=3"`
}

type correctAllocationReq struct {
	ProjectID *int64           `json:"project_id,omitempty"`
	PartyID   *int64           `json:"party_id,omitempty"`
	MachineID *int64           `json:"machine_id,omitempty"`
	Type      string           `json:"type" validate:"required"`
	Scope     *string          `json:"scope,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	Unit      string           `json:"unit,omitempty"`
}

type correctReq struct {
	ReasonCode  string                 `json:"reason_code" validate:"required"`
	PostingDate time.Time              `json:"posting_date" validate:"required"`
	Lines       []correctLineReq       `json:"lines" validate:"dive"`
	Allocations []correctAllocationReq `json:"allocations" validate:"dive"`
}

func (h *Handler) correct(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	groupID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid posting group id")
		return
	}
	var req correctReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Correct(r.Context(), CorrectInput{
		TenantID:       tenantID,
		PostingGroupID: groupID,
		ActorID:        httpx.ActorID(r),
		ReasonCode:     req.ReasonCode,
		PostingDate:    req.PostingDate,
		Lines:          toLines(req.Lines),
		Allocations:    toAllocations(req.Allocations),
	})
	if err != nil {
		h.logger.Error("correct group", slog.Any("error", err), slog.Int64("group_id", groupID))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if result.AlreadyApplied {
		status = http.StatusOK
	} else if h.reversals != nil {
		h.reversals.Inc()
	}
	httpx.JSON(w, status, map[string]any{
		"reversal_group":  result.ReversalGroup,
		"corrected_group": result.CorrectedGroup,
		"already_applied": result.AlreadyApplied,
	})
}

func toLines(lines []correctLineReq) []posting.LineInput {
	out := make([]posting.LineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, posting.LineInput{
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Currency:    l.Currency,
		})
	}
	return out
}

func toAllocations(rows []correctAllocationReq) []posting.AllocationInput {
	out := make([]posting.AllocationInput, 0, len(rows))
	for _, a := range rows {
		var scope *posting.AllocationScope
		if a.Scope != nil {
			s := posting.AllocationScope(*a.Scope)
			scope = &s
		}
		out = append(out, posting.AllocationInput{
			ProjectID: a.ProjectID,
			PartyID:   a.PartyID,
			MachineID: a.MachineID,
			Type:      posting.AllocationType(a.Type),
			Scope:     scope,
			Amount:    a.Amount,
			Quantity:  a.Quantity,
			Unit:      a.Unit,
		})
	}
	return out
}
