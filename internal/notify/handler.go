package notify

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solterra/solterra/internal/platform/httpx"
	"github.com/solterra/solterra/internal/shared"
)

// Handler manages the client's notification inbox.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountClientRoutes registers inbox routes.
func (h *Handler) MountClientRoutes(r chi.Router) {
	r.Get("/notifications", h.list)
	r.Post("/notifications/{id}/read", h.markRead)
}

// MountAdminRoutes registers back-office announcement routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/notifications", h.announce)
}

type announceRequest struct {
	ClientID string `json:"client_id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

func (h *Handler) announce(w http.ResponseWriter, r *http.Request) {
	var req announceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.ClientID == "" || req.Title == "" || req.Body == "" {
		httpx.Problem(w, http.StatusBadRequest, "client_id, title and body are required")
		return
	}
	notification, err := h.service.Announce(r.Context(), req.ClientID, req.Title, req.Body)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, notification)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok || principal.ClientID == "" {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	onlyUnread := r.URL.Query().Get("unread") == "true"
	list, err := h.service.ListForClient(r.Context(), principal.ClientID, onlyUnread)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok || principal.ClientID == "" {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	if err := h.service.MarkRead(r.Context(), principal.ClientID, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
