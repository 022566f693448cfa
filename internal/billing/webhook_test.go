package billing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/solterra/solterra/internal/shared"
)

type memoryReconcilerStore struct {
	byRemoteID map[string]*Invoice
	updates    int
}

func (s *memoryReconcilerStore) GetInvoiceByRemoteID(_ context.Context, remotePaymentID string) (*Invoice, error) {
	inv, ok := s.byRemoteID[remotePaymentID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (s *memoryReconcilerStore) ApplyEventUpdate(_ context.Context, invoiceID string, upd InvoiceEventUpdate) error {
	for _, inv := range s.byRemoteID {
		if inv.ID != invoiceID {
			continue
		}
		s.updates++
		inv.Status = upd.Status
		if upd.PaidAt != nil {
			inv.PaidAt = upd.PaidAt
		}
		if upd.Barcode != nil {
			inv.Barcode = upd.Barcode
		}
		if upd.PaymentURL != nil {
			inv.PaymentURL = upd.PaymentURL
		}
		return nil
	}
	return shared.ErrNotFound
}

type fakeNotifier struct {
	overdueCalls int
	lastAmount   decimal.Decimal
}

func (n *fakeNotifier) PaymentOverdue(_ context.Context, _ string, amount decimal.Decimal, _ time.Time) error {
	n.overdueCalls++
	n.lastAmount = amount
	return nil
}

func pendingInvoice(remoteID string) *Invoice {
	return &Invoice{
		ID:                "inv_001",
		ClientLotID:       "cl_001",
		RemotePaymentID:   &remoteID,
		DueDate:           date(2024, time.May, 15),
		Amount:            decimal.NewFromInt(1000),
		Status:            InvoiceStatusPending,
		InstallmentNumber: 5,
	}
}

func newTestReconciler(store *memoryReconcilerStore, notifier *fakeNotifier) *Reconciler {
	r := NewReconciler(testLogger(), store, notifier)
	r.now = func() time.Time { return date(2024, time.May, 20) }
	return r
}

func TestApplyPaymentReceivedMarksPaid(t *testing.T) {
	store := &memoryReconcilerStore{byRemoteID: map[string]*Invoice{"pay_001": pendingInvoice("pay_001")}}
	r := newTestReconciler(store, &fakeNotifier{})

	result, err := r.Apply(context.Background(), WebhookEvent{
		Event: "PAYMENT_RECEIVED",
		Payment: WebhookPayment{
			ID:          "pay_001",
			PaymentDate: "2024-05-14",
			BankSlipURL: "https://gw.example/boleto/pay_001",
		},
	})
	require.NoError(t, err)
	require.Equal(t, ResultProcessed, result.Status)
	require.Equal(t, InvoiceStatusPaid, result.NewStatus)
	require.Equal(t, "inv_001", result.InvoiceID)

	inv := store.byRemoteID["pay_001"]
	require.Equal(t, InvoiceStatusPaid, inv.Status)
	require.NotNil(t, inv.PaidAt)
	require.Equal(t, date(2024, time.May, 14), *inv.PaidAt)
	require.NotNil(t, inv.Barcode)
}

func TestApplyFallsBackToClockWhenPaymentDateMissing(t *testing.T) {
	store := &memoryReconcilerStore{byRemoteID: map[string]*Invoice{"pay_001": pendingInvoice("pay_001")}}
	r := newTestReconciler(store, &fakeNotifier{})

	_, err := r.Apply(context.Background(), WebhookEvent{
		Event:   "PAYMENT_CONFIRMED",
		Payment: WebhookPayment{ID: "pay_001"},
	})
	require.NoError(t, err)
	require.Equal(t, date(2024, time.May, 20), *store.byRemoteID["pay_001"].PaidAt)
}

func TestApplyEveryKnownEvent(t *testing.T) {
	cases := map[string]InvoiceStatus{
		"PAYMENT_RECEIVED":                     InvoiceStatusPaid,
		"PAYMENT_CONFIRMED":                    InvoiceStatusPaid,
		"PAYMENT_OVERDUE":                      InvoiceStatusOverdue,
		"PAYMENT_DELETED":                      InvoiceStatusCancelled,
		"PAYMENT_RESTORED":                     InvoiceStatusPending,
		"PAYMENT_REFUNDED":                     InvoiceStatusCancelled,
		"PAYMENT_RECEIVED_IN_CASH_UNDONE":      InvoiceStatusPending,
		"PAYMENT_CHARGEBACK_REQUESTED":         InvoiceStatusOverdue,
		"PAYMENT_CHARGEBACK_DISPUTE":           InvoiceStatusOverdue,
		"PAYMENT_AWAITING_CHARGEBACK_REVERSAL": InvoiceStatusOverdue,
		"PAYMENT_DUNNING_RECEIVED":             InvoiceStatusPaid,
		"PAYMENT_DUNNING_REQUESTED":            InvoiceStatusOverdue,
	}
	for event, want := range cases {
		t.Run(event, func(t *testing.T) {
			store := &memoryReconcilerStore{byRemoteID: map[string]*Invoice{"pay_001": pendingInvoice("pay_001")}}
			r := newTestReconciler(store, &fakeNotifier{})

			result, err := r.Apply(context.Background(), WebhookEvent{Event: event, Payment: WebhookPayment{ID: "pay_001"}})
			require.NoError(t, err)
			require.Equal(t, ResultProcessed, result.Status)
			require.Equal(t, want, store.byRemoteID["pay_001"].Status)
		})
	}
}

func TestApplyIgnoresUnknownPayment(t *testing.T) {
	store := &memoryReconcilerStore{byRemoteID: map[string]*Invoice{}}
	r := newTestReconciler(store, &fakeNotifier{})

	result, err := r.Apply(context.Background(), WebhookEvent{
		Event:   "PAYMENT_RECEIVED",
		Payment: WebhookPayment{ID: "pay_missing"},
	})
	require.NoError(t, err)
	require.Equal(t, ResultIgnored, result.Status)
	require.Zero(t, store.updates)
}

func TestApplyIgnoresUnhandledEvent(t *testing.T) {
	store := &memoryReconcilerStore{byRemoteID: map[string]*Invoice{"pay_001": pendingInvoice("pay_001")}}
	r := newTestReconciler(store, &fakeNotifier{})

	result, err := r.Apply(context.Background(), WebhookEvent{
		Event:   "PAYMENT_CREATED",
		Payment: WebhookPayment{ID: "pay_001"},
	})
	require.NoError(t, err)
	require.Equal(t, ResultIgnored, result.Status)
	require.Equal(t, "inv_001", result.InvoiceID)
	require.Equal(t, InvoiceStatusPending, store.byRemoteID["pay_001"].Status)
	require.Zero(t, store.updates)
}

func TestApplyIgnoresEventWithoutPaymentID(t *testing.T) {
	store := &memoryReconcilerStore{byRemoteID: map[string]*Invoice{}}
	r := newTestReconciler(store, &fakeNotifier{})

	result, err := r.Apply(context.Background(), WebhookEvent{Event: "PAYMENT_RECEIVED"})
	require.NoError(t, err)
	require.Equal(t, ResultIgnored, result.Status)
}

func TestApplyOverdueNotifiesOnlyOnStatusChange(t *testing.T) {
	store := &memoryReconcilerStore{byRemoteID: map[string]*Invoice{"pay_001": pendingInvoice("pay_001")}}
	notifier := &fakeNotifier{}
	r := newTestReconciler(store, notifier)

	event := WebhookEvent{Event: "PAYMENT_OVERDUE", Payment: WebhookPayment{ID: "pay_001"}}

	first, err := r.Apply(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, ResultProcessed, first.Status)
	require.Equal(t, 1, notifier.overdueCalls)
	require.True(t, notifier.lastAmount.Equal(decimal.NewFromInt(1000)))

	second, err := r.Apply(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, ResultProcessed, second.Status)
	require.Equal(t, InvoiceStatusOverdue, store.byRemoteID["pay_001"].Status)
	require.Equal(t, 1, notifier.overdueCalls, "replay must not renotify")
}

func TestApplyRefundKeepsPaidAt(t *testing.T) {
	store := &memoryReconcilerStore{byRemoteID: map[string]*Invoice{"pay_001": pendingInvoice("pay_001")}}
	r := newTestReconciler(store, &fakeNotifier{})

	_, err := r.Apply(context.Background(), WebhookEvent{
		Event:   "PAYMENT_RECEIVED",
		Payment: WebhookPayment{ID: "pay_001", PaymentDate: "2024-05-14"},
	})
	require.NoError(t, err)

	result, err := r.Apply(context.Background(), WebhookEvent{
		Event:   "PAYMENT_REFUNDED",
		Payment: WebhookPayment{ID: "pay_001"},
	})
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusCancelled, result.NewStatus)

	inv := store.byRemoteID["pay_001"]
	require.Equal(t, InvoiceStatusCancelled, inv.Status)
	require.NotNil(t, inv.PaidAt, "refund keeps the payment timestamp")
	require.Equal(t, date(2024, time.May, 14), *inv.PaidAt)
}

func TestApplyIsIdempotentOnReplay(t *testing.T) {
	store := &memoryReconcilerStore{byRemoteID: map[string]*Invoice{"pay_001": pendingInvoice("pay_001")}}
	r := newTestReconciler(store, &fakeNotifier{})

	event := WebhookEvent{
		Event:   "PAYMENT_RECEIVED",
		Payment: WebhookPayment{ID: "pay_001", PaymentDate: "2024-05-14"},
	}
	_, err := r.Apply(context.Background(), event)
	require.NoError(t, err)
	after := *store.byRemoteID["pay_001"]

	_, err = r.Apply(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, after, *store.byRemoteID["pay_001"])
}
