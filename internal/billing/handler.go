package billing

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/solterra/solterra/internal/observability"
	"github.com/solterra/solterra/internal/platform/httpx"
	"github.com/solterra/solterra/internal/shared"
)

// Handler manages invoice and webhook endpoints.
type Handler struct {
	logger       *slog.Logger
	repo         *Repository
	reconciler   *Reconciler
	metrics      *observability.Metrics
	webhookToken string
}

// NewHandler builds a handler. webhookToken is optional; when set, webhook
// calls must present it in the asaas-access-token header.
func NewHandler(logger *slog.Logger, repo *Repository, reconciler *Reconciler, metrics *observability.Metrics, webhookToken string) *Handler {
	return &Handler{logger: logger, repo: repo, reconciler: reconciler, metrics: metrics, webhookToken: webhookToken}
}

// MountWebhookRoutes registers the unauthenticated gateway callback.
func (h *Handler) MountWebhookRoutes(r chi.Router) {
	r.Post("/payments", h.receiveWebhook)
}

// MountClientRoutes registers invoice endpoints for the authenticated client.
func (h *Handler) MountClientRoutes(r chi.Router) {
	r.Get("/invoices", h.listClientInvoices)
	r.Get("/invoices/{id}", h.getClientInvoice)
}

type webhookPayload struct {
	Event   string          `json:"event"`
	Payment *WebhookPayment `json:"payment"`
}

func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookToken != "" {
		presented := r.Header.Get("asaas-access-token")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(h.webhookToken)) != 1 {
			httpx.Problem(w, http.StatusUnauthorized, "invalid webhook token")
			return
		}
	}

	var payload webhookPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if payload.Event == "" || payload.Payment == nil {
		httpx.Problem(w, http.StatusBadRequest, "event and payment are required")
		return
	}

	result, err := h.reconciler.Apply(r.Context(), WebhookEvent{
		Event:   payload.Event,
		Payment: *payload.Payment,
	})
	if err != nil {
		h.logger.Error("webhook reconciliation failed",
			"event", payload.Event, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	h.metrics.ObserveWebhook(payload.Event, string(result.Status))
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) listClientInvoices(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok || principal.ClientID == "" {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filter := InvoiceFilter{
		ClientID:    principal.ClientID,
		ClientLotID: r.URL.Query().Get("client_lot_id"),
		Status:      InvoiceStatus(r.URL.Query().Get("status")),
	}

	invoices, totals, pagination, err := h.repo.ListInvoices(r.Context(), filter, page, pageSize)
	if err != nil {
		h.logger.Error("list invoices failed", "client_id", principal.ClientID, "error", err)
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices":   invoices,
		"totals":     totals,
		"pagination": pagination,
	})
}

func (h *Handler) getClientInvoice(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok || principal.ClientID == "" {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}

	invoice, err := h.repo.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	owned, err := h.repo.clientOwnsLot(r.Context(), principal.ClientID, invoice.ClientLotID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !owned {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}

	httpx.JSON(w, http.StatusOK, invoice)
}
