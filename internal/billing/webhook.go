package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solterra/solterra/internal/shared"
)

// eventStatus maps every gateway payment event to the invoice status it
// implies. Events missing from this table are acknowledged and ignored.
var eventStatus = map[string]InvoiceStatus{
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

// WebhookPayment is the payment object carried by a gateway event.
type WebhookPayment struct {
	ID          string `json:"id"`
	PaymentDate string `json:"paymentDate"`
	BankSlipURL string `json:"bankSlipUrl"`
	InvoiceURL  string `json:"invoiceUrl"`
}

// WebhookEvent is one gateway notification.
type WebhookEvent struct {
	Event   string
	Payment WebhookPayment
}

// ResultStatus says whether an event mutated an invoice.
type ResultStatus string

const (
	ResultProcessed ResultStatus = "processed"
	ResultIgnored   ResultStatus = "ignored"
)

// ReconciliationResult reports the outcome of applying one event.
type ReconciliationResult struct {
	Status    ResultStatus  `json:"status"`
	Event     string        `json:"event"`
	InvoiceID string        `json:"invoice_id,omitempty"`
	NewStatus InvoiceStatus `json:"new_status,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// ReconcilerStorePort is the persistence surface the reconciler needs.
type ReconcilerStorePort interface {
	GetInvoiceByRemoteID(ctx context.Context, remotePaymentID string) (*Invoice, error)
	ApplyEventUpdate(ctx context.Context, invoiceID string, upd InvoiceEventUpdate) error
}

// NotifierPort delivers user-facing notifications for billing events.
type NotifierPort interface {
	PaymentOverdue(ctx context.Context, clientLotID string, amount decimal.Decimal, dueDate time.Time) error
}

// Reconciler applies gateway webhook events to invoices. Apply is idempotent:
// replaying an event converges on the same invoice state, and the overdue
// notification fires only when the status actually changes.
type Reconciler struct {
	logger   *slog.Logger
	store    ReconcilerStorePort
	notifier NotifierPort
	now      func() time.Time
}

// NewReconciler constructs a reconciler. notifier may be nil.
func NewReconciler(logger *slog.Logger, store ReconcilerStorePort, notifier NotifierPort) *Reconciler {
	return &Reconciler{logger: logger, store: store, notifier: notifier, now: time.Now}
}

// Apply reconciles one webhook event against the invoice it references.
// Events for unknown payments or with unhandled names are ignored, not
// errored, so the gateway never retries them.
func (r *Reconciler) Apply(ctx context.Context, event WebhookEvent) (ReconciliationResult, error) {
	if event.Payment.ID == "" {
		return ReconciliationResult{Status: ResultIgnored, Event: event.Event, Reason: "event carries no payment id"}, nil
	}

	invoice, err := r.store.GetInvoiceByRemoteID(ctx, event.Payment.ID)
	if errors.Is(err, shared.ErrNotFound) {
		r.logger.Info("webhook for unknown payment ignored",
			"event", event.Event, "remote_payment_id", event.Payment.ID)
		return ReconciliationResult{Status: ResultIgnored, Event: event.Event, Reason: "no invoice for payment"}, nil
	}
	if err != nil {
		return ReconciliationResult{}, fmt.Errorf("billing: lookup invoice for webhook: %w", err)
	}

	status, handled := eventStatus[event.Event]
	if !handled {
		return ReconciliationResult{
			Status:    ResultIgnored,
			Event:     event.Event,
			InvoiceID: invoice.ID,
			Reason:    "unhandled event",
		}, nil
	}

	upd := InvoiceEventUpdate{Status: status}
	if status == InvoiceStatusPaid {
		paidAt := r.now()
		if t, ok := parsePaymentDate(event.Payment.PaymentDate); ok {
			paidAt = t
		}
		upd.PaidAt = &paidAt
	}
	if event.Payment.BankSlipURL != "" {
		upd.Barcode = &event.Payment.BankSlipURL
	}
	if event.Payment.InvoiceURL != "" {
		upd.PaymentURL = &event.Payment.InvoiceURL
	}

	if err := r.store.ApplyEventUpdate(ctx, invoice.ID, upd); err != nil {
		return ReconciliationResult{}, fmt.Errorf("billing: apply webhook event: %w", err)
	}

	changed := invoice.Status != status
	if changed && status == InvoiceStatusOverdue && r.notifier != nil {
		if err := r.notifier.PaymentOverdue(ctx, invoice.ClientLotID, invoice.Amount, invoice.DueDate); err != nil {
			// Notification delivery never fails the reconciliation.
			r.logger.Warn("overdue notification failed",
				"invoice_id", invoice.ID, "error", err)
		}
	}

	r.logger.Info("webhook event applied",
		"event", event.Event,
		"invoice_id", invoice.ID,
		"from", invoice.Status,
		"to", status)

	return ReconciliationResult{
		Status:    ResultProcessed,
		Event:     event.Event,
		InvoiceID: invoice.ID,
		NewStatus: status,
	}, nil
}

// parsePaymentDate accepts the two date shapes the gateway emits.
func parsePaymentDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
