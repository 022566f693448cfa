package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/solterra/solterra/internal/billing"
)

// SaleStatus enumerates contract lifecycle states.
type SaleStatus string

const (
	SaleStatusActive    SaleStatus = "active"
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusCancelled SaleStatus = "cancelled"
)

// Sale is a client_lots row: one lot sold to one client under an installment
// plan.
type Sale struct {
	ID                string           `json:"id"`
	ClientID          string           `json:"client_id"`
	LotID             string           `json:"lot_id"`
	Status            SaleStatus       `json:"status"`
	TotalValue        decimal.Decimal  `json:"total_value"`
	DownPayment       *decimal.Decimal `json:"down_payment,omitempty"`
	TotalInstallments int              `json:"total_installments"`
	InstallmentValue  decimal.Decimal  `json:"installment_value"`
	FirstDueDate      time.Time        `json:"first_due_date"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// CreateSaleInput carries the fields accepted when selling a lot.
// Total of zero means sell at the lot's list price.
type CreateSaleInput struct {
	ClientID string              `json:"client_id" validate:"required"`
	LotID    string              `json:"lot_id" validate:"required"`
	Total    decimal.Decimal     `json:"total_value"`
	Plan     billing.PaymentPlan `json:"plan" validate:"required"`

	// IdempotencyKey comes from the Idempotency-Key header, not the body.
	IdempotencyKey string `json:"-"`
}

// SaleResult is the outcome of a sale: the contract plus how issuance went.
// Deferred lists installment numbers parked for retry; the sale itself
// succeeded regardless.
type SaleResult struct {
	Sale     Sale  `json:"sale"`
	Issued   int   `json:"invoices_issued"`
	Deferred []int `json:"installments_deferred,omitempty"`
}

// SaleDetail is a sale with its invoices attached.
type SaleDetail struct {
	Sale     Sale                  `json:"sale"`
	Invoices []billing.Invoice     `json:"invoices"`
	Totals   billing.InvoiceTotals `json:"totals"`
}
