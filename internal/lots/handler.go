package lots

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/solterra/solterra/internal/platform/httpx"
)

// Handler manages development and lot endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountAdminRoutes registers development and lot administration routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Route("/developments", func(r chi.Router) {
		r.Get("/", h.listDevelopments)
		r.Post("/", h.createDevelopment)
		r.Get("/{id}", h.getDevelopment)
		r.Get("/{id}/availability", h.availability)
	})
	r.Route("/lots", func(r chi.Router) {
		r.Get("/", h.listLots)
		r.Post("/", h.createLot)
		r.Get("/{id}", h.getLot)
		r.Patch("/{id}", h.updateLot)
		r.Post("/{id}/reserve", h.reserveLot)
	})
}

// MountPublicRoutes exposes read-only availability for the client portal.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/developments", h.listDevelopments)
	r.Get("/lots", h.listLots)
}

func (h *Handler) createDevelopment(w http.ResponseWriter, r *http.Request) {
	var input CreateDevelopmentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	dev, err := h.service.CreateDevelopment(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, dev)
}

func (h *Handler) listDevelopments(w http.ResponseWriter, r *http.Request) {
	devs, err := h.service.ListDevelopments(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"developments": devs})
}

func (h *Handler) getDevelopment(w http.ResponseWriter, r *http.Request) {
	dev, err := h.service.GetDevelopment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dev)
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.Availability(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, counts)
}

func (h *Handler) createLot(w http.ResponseWriter, r *http.Request) {
	var input CreateLotInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	lot, err := h.service.CreateLot(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lot)
}

func (h *Handler) listLots(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filter := LotFilter{
		DevelopmentID: r.URL.Query().Get("development_id"),
		Status:        LotStatus(r.URL.Query().Get("status")),
	}
	list, pagination, err := h.service.ListLots(r.Context(), filter, page, pageSize)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"lots":       list,
		"pagination": pagination,
	})
}

func (h *Handler) getLot(w http.ResponseWriter, r *http.Request) {
	lot, err := h.service.GetLot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lot)
}

func (h *Handler) updateLot(w http.ResponseWriter, r *http.Request) {
	var input UpdateLotInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	lot, err := h.service.UpdateLot(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lot)
}

func (h *Handler) reserveLot(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reserve(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
