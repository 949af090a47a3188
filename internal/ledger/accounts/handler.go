package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fasal-erp/fasal-erp/internal/platform/httpx"
)

// Handler manages chart-of-accounts endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.list)
	r.Get("/accounts/{code}", h.get)
	r.Post("/accounts/{code}/deprecate", h.deprecate)
	r.Post("/accounts/{code}/reinstate", h.reinstate)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": list})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.GetByCode(r.Context(), tenantID, chi.URLParam(r, "code"))
	if err != nil {
		h.logger.Error("get account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) deprecate(w http.ResponseWriter, r *http.Request) {
	h.setDeprecated(w, r, true)
}

func (h *Handler) reinstate(w http.ResponseWriter, r *http.Request) {
	h.setDeprecated(w, r, false)
}

func (h *Handler) setDeprecated(w http.ResponseWriter, r *http.Request, deprecated bool) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	code := chi.URLParam(r, "code")
	if deprecated {
		err = h.service.Deprecate(r.Context(), tenantID, code)
	} else {
		err = h.service.Reinstate(r.Context(), tenantID, code)
	}
	if err != nil {
		h.logger.Error("set account deprecation", slog.Any("error", err), slog.String("code", code))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"code": code, "deprecated": deprecated})
}
