package recon

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fasal-erp/fasal-erp/internal/platform/httpx"
)

// Handler exposes bank reconciliation link endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers reconciliation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/reconciliations/{id}/clear", h.clear)
	r.Post("/reconciliations/{id}/unclear", h.unclear)
	r.Post("/reconciliations/{id}/match", h.match)
	r.Post("/reconciliations/{id}/unmatch", h.unmatch)
}

type linkReq struct {
	LedgerEntryID    int64  `json:"ledger_entry_id" validate:"required,gt=0"`
	StatementLineRef string `json:"statement_line_ref"`
}

type linkOp func(r *http.Request, input LinkInput) (LinkEvent, error)

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, "clear entry", func(r *http.Request, input LinkInput) (LinkEvent, error) {
		return h.service.Clear(r.Context(), input)
	})
}

func (h *Handler) unclear(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, "unclear entry", func(r *http.Request, input LinkInput) (LinkEvent, error) {
		return h.service.Unclear(r.Context(), input)
	})
}

func (h *Handler) match(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, "match entry", func(r *http.Request, input LinkInput) (LinkEvent, error) {
		return h.service.Match(r.Context(), input)
	})
}

func (h *Handler) unmatch(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, "unmatch entry", func(r *http.Request, input LinkInput) (LinkEvent, error) {
		return h.service.Unmatch(r.Context(), input)
	})
}

func (h *Handler) link(w http.ResponseWriter, r *http.Request, op string, run linkOp) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	reconID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid reconciliation id")
		return
	}
	var req linkReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	event, err := run(r, LinkInput{
		TenantID:         tenantID,
		ReconciliationID: reconID,
		LedgerEntryID:    req.LedgerEntryID,
		StatementLineRef: req.StatementLineRef,
		ActorID:          httpx.ActorID(r),
	})
	if err != nil {
		h.logger.Error(op, slog.Any("error", err), slog.Int64("reconciliation_id", reconID), slog.Int64("entry_id", req.LedgerEntryID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, event)
}
