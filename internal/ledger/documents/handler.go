package documents

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fasal-erp/fasal-erp/internal/ledger/posting"
	"github.com/fasal-erp/fasal-erp/internal/platform/httpx"
)

// Handler exposes the source-document posting facade.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/documents/sales", h.postSale)
	r.Post("/documents/payments", h.postPayment)
	r.Post("/documents/journals", h.postJournal)
	r.Post("/documents/machine-usage", h.postMachineUsage)
	r.Post("/documents/{groupID}/reverse", h.reverse)
}

type saleReq struct {
	CropCycleID    *int64          `json:"crop_cycle_id,omitempty"`
	SaleID         uuid.UUID       `json:"sale_id" validate:"required"`
	ProjectID      *int64          `json:"project_id,omitempty"`
	PartyID        int64           `json:"party_id" validate:"required,gt=0"`
	PostingDate    time.Time       `json:"posting_date" validate:"required"`
	IdempotencyKey string          `json:"idempotency_key" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	IncomeCode     string          `json:"income_code" validate:"required"`
	ControlCode    string          `json:"control_code" validate:"required"`
}

func (h *Handler) postSale(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req saleReq
	if err := h.decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	group, err := h.service.PostSale(r.Context(), SaleInput{
		TenantID:       tenantID,
		CropCycleID:    req.CropCycleID,
		SaleID:         req.SaleID,
		ProjectID:      req.ProjectID,
		PartyID:        req.PartyID,
		PostingDate:    req.PostingDate,
		IdempotencyKey: req.IdempotencyKey,
		Amount:         req.Amount,
		Currency:       req.Currency,
		IncomeCode:     req.IncomeCode,
		ControlCode:    req.ControlCode,
	})
	if err != nil {
		h.logger.Error("post sale", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

type paymentReq struct {
	CropCycleID      *int64          `json:"crop_cycle_id,omitempty"`
	PaymentID        uuid.UUID       `json:"payment_id" validate:"required"`
	SaleGroupID      int64           `json:"sale_group_id" validate:"required,gt=0"`
	PartyID          int64           `json:"party_id" validate:"required,gt=0"`
	PostingDate      time.Time       `json:"posting_date" validate:"required"`
	IdempotencyKey   string          `json:"idempotency_key" validate:"required"`
	Amount           decimal.Decimal `json:"amount" validate:"required"`
	Currency         string          `json:"currency" validate:"required,len=3"`
	BankCode         string          `json:"bank_code" validate:"required"`
	ControlCode      string          `json:"control_code" validate:"required"`
	ControlAccountID int64           `json:"control_account_id" validate:"required,gt=0"`
}

func (h *Handler) postPayment(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req paymentReq
	if err := h.decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	group, err := h.service.PostPayment(r.Context(), PaymentInput{
		TenantID:         tenantID,
		CropCycleID:      req.CropCycleID,
		PaymentID:        req.PaymentID,
		SaleGroupID:      req.SaleGroupID,
		PartyID:          req.PartyID,
		PostingDate:      req.PostingDate,
		IdempotencyKey:   req.IdempotencyKey,
		Amount:           req.Amount,
		Currency:         req.Currency,
		BankCode:         req.BankCode,
		ControlCode:      req.ControlCode,
		ControlAccountID: req.ControlAccountID,
	})
	if err != nil {
		h.logger.Error("post payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

type journalLineReq struct {
	AccountCode string          `json:"account_code" validate:"required"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Currency    string          `json:"currency" validate:"required,len=3"`
}

type journalReq struct {
	CropCycleID    *int64           `json:"crop_cycle_id,omitempty"`
	JournalID      uuid.UUID        `json:"journal_id" validate:"required"`
	PostingDate    time.Time        `json:"posting_date" validate:"required"`
	IdempotencyKey string           `json:"idempotency_key" validate:"required"`
	Lines          []journalLineReq `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) postJournal(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req journalReq
	if err := h.decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lines := make([]posting.LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, posting.LineInput{
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Currency:    l.Currency,
		})
	}
	group, err := h.service.PostJournal(r.Context(), JournalInput{
		TenantID:       tenantID,
		CropCycleID:    req.CropCycleID,
		JournalID:      req.JournalID,
		PostingDate:    req.PostingDate,
		IdempotencyKey: req.IdempotencyKey,
		Lines:          lines,
	})
	if err != nil {
		h.logger.Error("post journal", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

type usageReq struct {
	CropCycleID    *int64          `json:"crop_cycle_id,omitempty"`
	WorkLogID      uuid.UUID       `json:"work_log_id" validate:"required"`
	ProjectID      *int64          `json:"project_id,omitempty"`
	MachineID      int64           `json:"machine_id" validate:"required,gt=0"`
	PostingDate    time.Time       `json:"posting_date" validate:"required"`
	IdempotencyKey string          `json:"idempotency_key" validate:"required"`
	Quantity       decimal.Decimal `json:"quantity" validate:"required"`
	Unit           string          `json:"unit" validate:"required"`
}

func (h *Handler) postMachineUsage(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req usageReq
	if err := h.decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	group, err := h.service.PostMachineUsage(r.Context(), UsageInput{
		TenantID:       tenantID,
		CropCycleID:    req.CropCycleID,
		WorkLogID:      req.WorkLogID,
		ProjectID:      req.ProjectID,
		MachineID:      req.MachineID,
		PostingDate:    req.PostingDate,
		IdempotencyKey: req.IdempotencyKey,
		Quantity:       req.Quantity,
		Unit:           req.Unit,
	})
	if err != nil {
		h.logger.Error("post machine usage", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

type reverseDocReq struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	groupID, err := strconv.ParseInt(chi.URLParam(r, "groupID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid posting group id")
		return
	}
	var req reverseDocReq
	if err := h.decode(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mirror, err := h.service.ReverseDocument(r.Context(), tenantID, groupID, httpx.ActorID(r), req.Reason)
	if err != nil {
		h.logger.Error("reverse document", slog.Any("error", err), slog.Int64("group_id", groupID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mirror)
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return h.validator.Struct(target)
}
