package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solterra/solterra/internal/gateway"
	"github.com/solterra/solterra/internal/observability"
)

// IssuerStorePort is the persistence surface the issuer needs.
type IssuerStorePort interface {
	CreateInvoice(ctx context.Context, inv Invoice) (*Invoice, error)
	EnqueueOutbox(ctx context.Context, entry OutboxEntry) error
}

// PaymentCreatorPort issues charges against the payment gateway.
type PaymentCreatorPort interface {
	CreatePayment(ctx context.Context, input gateway.CreatePaymentInput) (*gateway.Payment, error)
}

// Issuer walks a generated schedule and creates one gateway charge plus one
// local invoice per installment. Gateway failures never abort the walk: the
// failed installment is parked in the outbox for the worker to retry and the
// loop moves on, so a sale always completes even when issuance is degraded.
type Issuer struct {
	logger  *slog.Logger
	gateway PaymentCreatorPort
	store   IssuerStorePort
	metrics *observability.Metrics
}

// NewIssuer constructs an issuer. metrics may be nil.
func NewIssuer(logger *slog.Logger, gw PaymentCreatorPort, store IssuerStorePort, metrics *observability.Metrics) *Issuer {
	return &Issuer{logger: logger, gateway: gw, store: store, metrics: metrics}
}

// SaleRef identifies the sale a schedule belongs to.
type SaleRef struct {
	ClientLotID     string
	CustomerRef     string
	DevelopmentName string
	LotNumber       string
}

// IssueReport summarizes one issuance run.
type IssueReport struct {
	Issued   int
	Deferred []int
}

// Issue creates invoices for every installment of a schedule. When the sale
// has no gateway customer yet, every installment goes straight to the outbox.
func (i *Issuer) Issue(ctx context.Context, sale SaleRef, specs []InstallmentSpec) IssueReport {
	var report IssueReport

	for _, spec := range specs {
		description := fmt.Sprintf("%s - Lote %s - Parcela %d/%d",
			sale.DevelopmentName, sale.LotNumber, spec.Number, len(specs))

		if sale.CustomerRef == "" {
			i.park(ctx, sale, spec, description, "no gateway customer", &report)
			continue
		}

		payment, err := i.gateway.CreatePayment(ctx, gateway.CreatePaymentInput{
			CustomerID:        sale.CustomerRef,
			Value:             spec.Value,
			DueDate:           spec.DueDate,
			Description:       description,
			ExternalReference: sale.ClientLotID,
		})
		if err != nil {
			i.logger.Warn("installment issuance failed, deferring to outbox",
				"client_lot_id", sale.ClientLotID,
				"installment", spec.Number,
				"error", err)
			i.park(ctx, sale, spec, description, err.Error(), &report)
			continue
		}

		inv := Invoice{
			ClientLotID:       sale.ClientLotID,
			RemotePaymentID:   &payment.ID,
			DueDate:           spec.DueDate,
			Amount:            spec.Value,
			Status:            InvoiceStatusPending,
			InstallmentNumber: spec.Number,
		}
		if payment.BankSlipURL != "" {
			inv.Barcode = &payment.BankSlipURL
		}
		if payment.InvoiceURL != "" {
			inv.PaymentURL = &payment.InvoiceURL
		}

		if _, err := i.store.CreateInvoice(ctx, inv); err != nil {
			// The charge exists remotely but not locally; the webhook
			// reconciler cannot attach events until this is repaired.
			i.logger.Error("invoice persistence failed after gateway issuance",
				"client_lot_id", sale.ClientLotID,
				"installment", spec.Number,
				"remote_payment_id", payment.ID,
				"error", err)
			continue
		}
		report.Issued++
	}

	i.metrics.ObserveIssuance(report.Issued, len(report.Deferred))
	i.logger.Info("issuance run finished",
		"client_lot_id", sale.ClientLotID,
		"issued", report.Issued,
		"deferred", len(report.Deferred))
	return report
}

func (i *Issuer) park(ctx context.Context, sale SaleRef, spec InstallmentSpec, description, reason string, report *IssueReport) {
	entry := OutboxEntry{
		ClientLotID:       sale.ClientLotID,
		InstallmentNumber: spec.Number,
		Amount:            spec.Value,
		DueDate:           spec.DueDate,
		Description:       description,
		CustomerRef:       sale.CustomerRef,
		Attempts:          1,
		LastError:         reason,
	}
	if err := i.store.EnqueueOutbox(ctx, entry); err != nil {
		i.logger.Error("outbox enqueue failed, installment lost until manual repair",
			"client_lot_id", sale.ClientLotID,
			"installment", spec.Number,
			"error", err)
		return
	}
	report.Deferred = append(report.Deferred, spec.Number)
}
