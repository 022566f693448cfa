package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice represents one installment of a lot sale. Invoices are created in
// pending by the issuer and mutated only by the webhook reconciler; they are
// never deleted, cancellation is a status.
type Invoice struct {
	ID                string          `json:"id"`
	ClientLotID       string          `json:"client_lot_id"`
	RemotePaymentID   *string         `json:"remote_payment_id,omitempty"`
	DueDate           time.Time       `json:"due_date"`
	Amount            decimal.Decimal `json:"amount"`
	Status            InvoiceStatus   `json:"status"`
	InstallmentNumber int             `json:"installment_number"`
	Barcode           *string         `json:"barcode,omitempty"`
	PaymentURL        *string         `json:"payment_url,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// PaymentPlan is the installment plan chosen at sale time, stored on the
// client_lots row.
type PaymentPlan struct {
	TotalInstallments int              `json:"total_installments" validate:"required,gte=1,lte=360"`
	InstallmentValue  decimal.Decimal  `json:"installment_value"`
	FirstDueDate      time.Time        `json:"first_due_date" validate:"required"`
	DownPayment       *decimal.Decimal `json:"down_payment,omitempty"`
}

// InstallmentSpec is one entry of a generated schedule.
type InstallmentSpec struct {
	Number  int
	Value   decimal.Decimal
	DueDate time.Time
}

// OutboxEntry is a durable record of an installment whose remote issuance
// failed and is awaiting retry by the worker.
type OutboxEntry struct {
	ID                int64
	ClientLotID       string
	InstallmentNumber int
	Amount            decimal.Decimal
	DueDate           time.Time
	Description       string
	CustomerRef       string
	Attempts          int
	LastError         string
	CreatedAt         time.Time
	SettledAt         *time.Time
}

// InvoiceTotals aggregates invoice amounts by status for a client.
type InvoiceTotals struct {
	Pending decimal.Decimal `json:"total_pending"`
	Paid    decimal.Decimal `json:"total_paid"`
	Overdue decimal.Decimal `json:"total_overdue"`
}
