package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solterra/solterra/internal/gateway"
)

// RetrierStorePort is the persistence surface the outbox retrier needs.
type RetrierStorePort interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxEntry, error)
	SettleOutbox(ctx context.Context, id int64) error
	RecordOutboxFailure(ctx context.Context, id int64, lastError string) error
	ResolveCustomerRef(ctx context.Context, clientLotID string) (string, error)
	CreateInvoice(ctx context.Context, inv Invoice) (*Invoice, error)
}

// Retrier drains the issuance outbox, re-attempting gateway charges for
// installments that failed at sale time.
type Retrier struct {
	logger  *slog.Logger
	gateway PaymentCreatorPort
	store   RetrierStorePort
}

// NewRetrier constructs a retrier.
func NewRetrier(logger *slog.Logger, gw PaymentCreatorPort, store RetrierStorePort) *Retrier {
	return &Retrier{logger: logger, gateway: gw, store: store}
}

// RetryReport summarizes one drain pass.
type RetryReport struct {
	Settled int
	Failed  int
	Skipped int
}

// Drain retries up to limit pending outbox entries. Entries whose sale still
// has no gateway customer are skipped until one exists.
func (r *Retrier) Drain(ctx context.Context, limit int) (RetryReport, error) {
	entries, err := r.store.ListPendingOutbox(ctx, limit)
	if err != nil {
		return RetryReport{}, fmt.Errorf("billing: drain outbox: %w", err)
	}

	var report RetryReport
	for _, entry := range entries {
		customerRef := entry.CustomerRef
		if customerRef == "" {
			// The ref may have been created since the sale.
			customerRef, err = r.store.ResolveCustomerRef(ctx, entry.ClientLotID)
			if err != nil || customerRef == "" {
				report.Skipped++
				continue
			}
		}

		payment, err := r.gateway.CreatePayment(ctx, gateway.CreatePaymentInput{
			CustomerID:        customerRef,
			Value:             entry.Amount,
			DueDate:           entry.DueDate,
			Description:       entry.Description,
			ExternalReference: entry.ClientLotID,
		})
		if err != nil {
			report.Failed++
			if ferr := r.store.RecordOutboxFailure(ctx, entry.ID, err.Error()); ferr != nil {
				r.logger.Error("outbox failure bookkeeping failed", "outbox_id", entry.ID, "error", ferr)
			}
			continue
		}

		inv := Invoice{
			ClientLotID:       entry.ClientLotID,
			RemotePaymentID:   &payment.ID,
			DueDate:           entry.DueDate,
			Amount:            entry.Amount,
			Status:            InvoiceStatusPending,
			InstallmentNumber: entry.InstallmentNumber,
		}
		if payment.BankSlipURL != "" {
			inv.Barcode = &payment.BankSlipURL
		}
		if payment.InvoiceURL != "" {
			inv.PaymentURL = &payment.InvoiceURL
		}
		if _, err := r.store.CreateInvoice(ctx, inv); err != nil {
			r.logger.Error("invoice persistence failed on outbox retry",
				"outbox_id", entry.ID, "remote_payment_id", payment.ID, "error", err)
			report.Failed++
			continue
		}
		if err := r.store.SettleOutbox(ctx, entry.ID); err != nil {
			r.logger.Error("outbox settle failed", "outbox_id", entry.ID, "error", err)
		}
		report.Settled++
	}

	if report.Settled+report.Failed+report.Skipped > 0 {
		r.logger.Info("issuance outbox drained",
			"settled", report.Settled, "failed", report.Failed, "skipped", report.Skipped)
	}
	return report, nil
}
