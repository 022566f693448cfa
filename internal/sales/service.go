package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/solterra/solterra/internal/billing"
	"github.com/solterra/solterra/internal/clients"
	"github.com/solterra/solterra/internal/lots"
	"github.com/solterra/solterra/internal/shared"
)

// RepositoryPort defines data access methods for sales.
type RepositoryPort interface {
	CreateSale(ctx context.Context, sale Sale) (*Sale, error)
	CancelSale(ctx context.Context, saleID string) (*Sale, error)
	Complete(ctx context.Context, saleID string) (*Sale, error)
	Get(ctx context.Context, id string) (*Sale, error)
	ListByClient(ctx context.Context, clientID string) ([]Sale, error)
	List(ctx context.Context, status SaleStatus, page, pageSize int) ([]Sale, *shared.Pagination, error)
}

// LotReaderPort reads lot and development data for sale orchestration.
type LotReaderPort interface {
	GetLot(ctx context.Context, id string) (*lots.Lot, error)
	GetDevelopment(ctx context.Context, id string) (*lots.Development, error)
}

// ClientReaderPort reads client data for sale orchestration.
type ClientReaderPort interface {
	Get(ctx context.Context, id string) (*clients.Client, error)
}

// IssuerPort runs installment issuance after a sale commits.
type IssuerPort interface {
	Issue(ctx context.Context, sale billing.SaleRef, specs []billing.InstallmentSpec) billing.IssueReport
}

// InvoicePort exposes the invoice operations sales needs.
type InvoicePort interface {
	ListInvoicesForLot(ctx context.Context, clientLotID string) ([]billing.Invoice, billing.InvoiceTotals, error)
	CancelOpenInvoicesForLot(ctx context.Context, clientLotID string) ([]string, error)
}

// PaymentVoiderPort voids charges at the payment gateway.
type PaymentVoiderPort interface {
	CancelPayment(ctx context.Context, id string) error
}

// IdempotencyPort dedups sale submissions by their Idempotency-Key header.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Remove(ctx context.Context, key, module string) error
}

const idempotencyModule = "sales"

// Service orchestrates lot sales: the atomic contract transaction first, then
// installment issuance. Issuance runs after the sale is committed and its
// failures never undo the sale.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	lots     LotReaderPort
	clients  ClientReaderPort
	issuer   IssuerPort
	invoices InvoicePort
	gateway  PaymentVoiderPort
	validate *validator.Validate
	audit    *shared.AuditLogger
	idem     IdempotencyPort
}

// NewService builds a Service instance. gateway, audit and idem may be nil.
func NewService(
	logger *slog.Logger,
	repo RepositoryPort,
	lotReader LotReaderPort,
	clientReader ClientReaderPort,
	issuer IssuerPort,
	invoices InvoicePort,
	gw PaymentVoiderPort,
	audit *shared.AuditLogger,
	idem IdempotencyPort,
) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		lots:     lotReader,
		clients:  clientReader,
		issuer:   issuer,
		invoices: invoices,
		gateway:  gw,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		audit:    audit,
		idem:     idem,
	}
}

// CreateSale sells a lot: generates the installment schedule, commits the
// contract together with the lot transition, then issues the invoices.
func (s *Service) CreateSale(ctx context.Context, actorID string, input CreateSaleInput) (*SaleResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	keyHeld := input.IdempotencyKey != "" && s.idem != nil
	if keyHeld {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, fmt.Errorf("%w: sale already submitted with this key", shared.ErrConflict)
			}
			return nil, err
		}
	}
	// A rejected sale releases its key so the caller can retry the same
	// submission once the underlying problem is gone.
	fail := func(err error) (*SaleResult, error) {
		if keyHeld {
			if rerr := s.idem.Remove(ctx, input.IdempotencyKey, idempotencyModule); rerr != nil {
				s.logger.Warn("idempotency key release failed", "key", input.IdempotencyKey, "error", rerr)
			}
		}
		return nil, err
	}

	lot, err := s.lots.GetLot(ctx, input.LotID)
	if err != nil {
		return fail(fmt.Errorf("lot: %w", err))
	}
	client, err := s.clients.Get(ctx, input.ClientID)
	if err != nil {
		return fail(fmt.Errorf("client: %w", err))
	}

	total := input.Total
	if total.IsZero() {
		total = lot.Price
	}
	financed := total
	if input.Plan.DownPayment != nil {
		if input.Plan.DownPayment.IsNegative() || input.Plan.DownPayment.GreaterThanOrEqual(total) {
			return fail(fmt.Errorf("%w: down payment must be smaller than the total", shared.ErrValidation))
		}
		financed = total.Sub(*input.Plan.DownPayment)
	}

	specs, err := billing.GenerateSchedule(financed, input.Plan.TotalInstallments, input.Plan.FirstDueDate)
	if err != nil {
		return fail(err)
	}

	sale, err := s.repo.CreateSale(ctx, Sale{
		ClientID:          input.ClientID,
		LotID:             input.LotID,
		TotalValue:        total,
		DownPayment:       input.Plan.DownPayment,
		TotalInstallments: input.Plan.TotalInstallments,
		InstallmentValue:  specs[0].Value,
		FirstDueDate:      input.Plan.FirstDueDate,
	})
	if err != nil {
		return fail(err)
	}

	ref := billing.SaleRef{
		ClientLotID: sale.ID,
		LotNumber:   lot.Number,
	}
	if client.GatewayCustomerID != nil {
		ref.CustomerRef = *client.GatewayCustomerID
	}
	if dev, err := s.lots.GetDevelopment(ctx, lot.DevelopmentID); err == nil {
		ref.DevelopmentName = dev.Name
	} else {
		s.logger.Warn("development lookup failed, issuing with bare description",
			"lot_id", lot.ID, "error", err)
	}

	report := s.issuer.Issue(ctx, ref, specs)

	s.recordAudit(ctx, actorID, "sale.create", sale.ID)
	return &SaleResult{Sale: *sale, Issued: report.Issued, Deferred: report.Deferred}, nil
}

// CancelSale cancels a contract, releases the lot, cancels open invoices and
// voids their gateway charges best effort.
func (s *Service) CancelSale(ctx context.Context, actorID, saleID string) (*Sale, error) {
	sale, err := s.repo.CancelSale(ctx, saleID)
	if err != nil {
		return nil, err
	}

	remoteIDs, err := s.invoices.CancelOpenInvoicesForLot(ctx, sale.ID)
	if err != nil {
		s.logger.Error("cancelling open invoices failed", "sale_id", sale.ID, "error", err)
	}
	if s.gateway != nil {
		for _, remoteID := range remoteIDs {
			if err := s.gateway.CancelPayment(ctx, remoteID); err != nil {
				s.logger.Warn("gateway payment void failed",
					"sale_id", sale.ID, "remote_payment_id", remoteID, "error", err)
			}
		}
	}

	s.recordAudit(ctx, actorID, "sale.cancel", sale.ID)
	return sale, nil
}

// CompleteSale marks a contract completed once every installment is paid.
func (s *Service) CompleteSale(ctx context.Context, actorID, saleID string) (*Sale, error) {
	invoices, _, err := s.invoices.ListInvoicesForLot(ctx, saleID)
	if err != nil {
		return nil, err
	}
	var open decimal.Decimal
	for _, inv := range invoices {
		if inv.Status == billing.InvoiceStatusPending || inv.Status == billing.InvoiceStatusOverdue {
			open = open.Add(inv.Amount)
		}
	}
	if !open.IsZero() {
		return nil, fmt.Errorf("%w: %s still open on this contract", shared.ErrConflict, open.StringFixed(2))
	}

	sale, err := s.repo.Complete(ctx, saleID)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "sale.complete", sale.ID)
	return sale, nil
}

// Get fetches one sale with its invoices.
func (s *Service) Get(ctx context.Context, id string) (*SaleDetail, error) {
	sale, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	invoices, totals, err := s.invoices.ListInvoicesForLot(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	return &SaleDetail{Sale: *sale, Invoices: invoices, Totals: totals}, nil
}

// List returns contracts page by page.
func (s *Service) List(ctx context.Context, status SaleStatus, page, pageSize int) ([]Sale, *shared.Pagination, error) {
	return s.repo.List(ctx, status, page, pageSize)
}

// ListByClient returns one client's contracts.
func (s *Service) ListByClient(ctx context.Context, clientID string) ([]Sale, error) {
	return s.repo.ListByClient(ctx, clientID)
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sale",
		EntityID: entityID,
	}); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}
