package billing

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newWebhookServer(t *testing.T, store *memoryReconcilerStore, token string) *httptest.Server {
	t.Helper()
	handler := NewHandler(testLogger(), nil, newTestReconciler(store, &fakeNotifier{}), nil, token)
	router := chi.NewRouter()
	router.Route("/webhooks", handler.MountWebhookRoutes)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postWebhook(t *testing.T, srv *httptest.Server, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/payments", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("asaas-access-token", token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWebhookEndpointAppliesEvent(t *testing.T) {
	store := &memoryReconcilerStore{byRemoteID: map[string]*Invoice{"pay_001": pendingInvoice("pay_001")}}
	srv := newWebhookServer(t, store, "")

	resp := postWebhook(t, srv, "", `{"event":"PAYMENT_RECEIVED","payment":{"id":"pay_001","paymentDate":"2024-05-14"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, InvoiceStatusPaid, store.byRemoteID["pay_001"].Status)
	require.Equal(t, date(2024, time.May, 14), *store.byRemoteID["pay_001"].PaidAt)
}

func TestWebhookEndpointRejectsMalformedJSON(t *testing.T) {
	srv := newWebhookServer(t, &memoryReconcilerStore{byRemoteID: map[string]*Invoice{}}, "")

	resp := postWebhook(t, srv, "", `{"event":`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookEndpointRequiresEventAndPayment(t *testing.T) {
	srv := newWebhookServer(t, &memoryReconcilerStore{byRemoteID: map[string]*Invoice{}}, "")

	resp := postWebhook(t, srv, "", `{"payment":{"id":"pay_001"}}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postWebhook(t, srv, "", `{"event":"PAYMENT_RECEIVED"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookEndpointAcknowledgesUnknownPayment(t *testing.T) {
	srv := newWebhookServer(t, &memoryReconcilerStore{byRemoteID: map[string]*Invoice{}}, "")

	resp := postWebhook(t, srv, "", `{"event":"PAYMENT_RECEIVED","payment":{"id":"pay_missing"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookEndpointChecksToken(t *testing.T) {
	store := &memoryReconcilerStore{byRemoteID: map[string]*Invoice{"pay_001": pendingInvoice("pay_001")}}
	srv := newWebhookServer(t, store, "s3cret")

	resp := postWebhook(t, srv, "wrong", `{"event":"PAYMENT_RECEIVED","payment":{"id":"pay_001"}}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, InvoiceStatusPending, store.byRemoteID["pay_001"].Status)

	resp = postWebhook(t, srv, "s3cret", `{"event":"PAYMENT_RECEIVED","payment":{"id":"pay_001"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, InvoiceStatusPaid, store.byRemoteID["pay_001"].Status)
}
