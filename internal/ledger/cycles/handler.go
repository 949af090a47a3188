package cycles

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fasal-erp/fasal-erp/internal/platform/httpx"
)

// Handler exposes crop cycle listing and close over HTTP.
type Handler struct {
	logger *slog.Logger
	repo   Repository
}

func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers crop cycle routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/cycles", h.listOpen)
	r.Get("/cycles/{id}", h.get)
	r.Post("/cycles/{id}/close", h.close)
}

func (h *Handler) listOpen(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	open, err := h.repo.ListOpen(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("list open cycles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, open)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid cycle id")
		return
	}
	cycle, err := h.repo.Get(r.Context(), tenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cycle)
}

// close flips an OPEN cycle to CLOSED. In-flight postings racing the close
// are serialized by the FOR UPDATE the posting transaction takes.
func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid cycle id")
		return
	}
	if err := h.repo.Close(r.Context(), tenantID, id, httpx.ActorID(r)); err != nil {
		h.logger.Error("close cycle", slog.Any("error", err), slog.Int64("cycle_id", id))
		httpx.RespondError(w, err)
		return
	}
	cycle, err := h.repo.Get(r.Context(), tenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cycle)
}
