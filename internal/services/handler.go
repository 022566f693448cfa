package services

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/solterra/solterra/internal/platform/httpx"
	"github.com/solterra/solterra/internal/shared"
)

// Handler manages service catalog and order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountAdminRoutes registers back-office catalog and order routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Route("/service-types", func(r chi.Router) {
		r.Get("/", h.listTypes)
		r.Post("/", h.createType)
		r.Patch("/{id}", h.updateType)
	})
	r.Route("/service-orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Get("/analytics", h.analytics)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}", h.updateOrder)
	})
}

// MountClientRoutes registers the client's catalog view and order requests.
func (h *Handler) MountClientRoutes(r chi.Router) {
	r.Get("/service-types", h.listActiveTypes)
	r.Get("/service-orders", h.listOwnOrders)
	r.Post("/service-orders", h.requestOrder)
}

func (h *Handler) createType(w http.ResponseWriter, r *http.Request) {
	var input CreateServiceTypeInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	t, err := h.service.CreateType(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) listTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListTypes(r.Context(), false)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"service_types": types})
}

func (h *Handler) listActiveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListTypes(r.Context(), true)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"service_types": types})
}

func (h *Handler) updateType(w http.ResponseWriter, r *http.Request) {
	var input UpdateServiceTypeInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	t, err := h.service.UpdateType(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	filter := OrderFilter{
		ClientID:      r.URL.Query().Get("client_id"),
		Status:        OrderStatus(r.URL.Query().Get("status")),
		ServiceTypeID: r.URL.Query().Get("service_type_id"),
	}
	orders, pagination, err := h.service.ListOrders(r.Context(), filter, page, pageSize)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders":     orders,
		"pagination": pagination,
	})
}

func (h *Handler) listOwnOrders(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok || principal.ClientID == "" {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	page, pageSize := pageParams(r)
	orders, pagination, err := h.service.ListOrders(r.Context(), OrderFilter{ClientID: principal.ClientID}, page, pageSize)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders":     orders,
		"pagination": pagination,
	})
}

func (h *Handler) requestOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok || principal.ClientID == "" {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	var input CreateOrderInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	order, err := h.service.RequestOrder(r.Context(), principal.ClientID, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Analytics(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var input UpdateOrderInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	order, err := h.service.UpdateOrder(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}
