package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solterra/solterra/internal/platform/httpx"
	"github.com/solterra/solterra/internal/shared"
)

// Handler manages dashboard endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountAdminRoutes registers back-office dashboards.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/dashboard", h.adminStats)
	r.Get("/dashboard/financial", h.financial)
}

// MountClientRoutes registers the portal landing page.
func (h *Handler) MountClientRoutes(r chi.Router) {
	r.Get("/dashboard", h.clientDashboard)
}

func (h *Handler) adminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.AdminStats(r.Context())
	if err != nil {
		h.logger.Error("admin dashboard failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) financial(w http.ResponseWriter, r *http.Request) {
	fin, err := h.service.Financial(r.Context())
	if err != nil {
		h.logger.Error("financial dashboard failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, fin)
}

func (h *Handler) clientDashboard(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok || principal.ClientID == "" {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	d, err := h.service.ForClient(r.Context(), principal.ClientID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}
