package clients

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/solterra/solterra/internal/gateway"
	"github.com/solterra/solterra/internal/shared"
)

// RepositoryPort defines data access methods for clients.
type RepositoryPort interface {
	Create(ctx context.Context, c Client) (*Client, error)
	Get(ctx context.Context, id string) (*Client, error)
	GetByUserID(ctx context.Context, userID string) (*Client, error)
	List(ctx context.Context, search string, page, pageSize int) ([]Client, *shared.Pagination, error)
	Update(ctx context.Context, id string, input UpdateClientInput) (*Client, error)
	SetGatewayCustomer(ctx context.Context, id, customerID string) error
	SoftDelete(ctx context.Context, id string) error
}

// CustomerCreatorPort provisions customers at the payment gateway.
type CustomerCreatorPort interface {
	CreateCustomer(ctx context.Context, input gateway.CreateCustomerInput) (*gateway.Customer, error)
}

// Service handles client business logic.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	gateway  CustomerCreatorPort
	validate *validator.Validate
	audit    *shared.AuditLogger
}

// NewService builds a Service instance. gateway and audit may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, gw CustomerCreatorPort, audit *shared.AuditLogger) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		gateway:  gw,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		audit:    audit,
	}
}

// Create registers a client and provisions its gateway customer. Gateway
// provisioning is best effort: the client is created locally even when the
// gateway is down, and the customer ref is filled in later.
func (s *Service) Create(ctx context.Context, actorID string, input CreateClientInput) (*Client, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if !shared.ValidDocument(input.Document) {
		return nil, fmt.Errorf("%w: invalid CPF/CNPJ", shared.ErrValidation)
	}

	client, err := s.repo.Create(ctx, Client{
		FullName: input.FullName,
		Document: shared.OnlyDigits(input.Document),
		Email:    input.Email,
		Phone:    input.Phone,
		Address:  input.Address,
	})
	if err != nil {
		return nil, err
	}

	if s.gateway != nil {
		customer, err := s.gateway.CreateCustomer(ctx, gateway.CreateCustomerInput{
			Name:    client.FullName,
			CPFCNPJ: client.Document,
			Email:   client.Email,
			Phone:   client.Phone,
		})
		if err != nil {
			s.logger.Warn("gateway customer provisioning failed, client created without ref",
				"client_id", client.ID, "error", err)
		} else if err := s.repo.SetGatewayCustomer(ctx, client.ID, customer.ID); err != nil {
			s.logger.Error("storing gateway customer ref failed",
				"client_id", client.ID, "customer_id", customer.ID, "error", err)
		} else {
			client.GatewayCustomerID = &customer.ID
		}
	}

	s.recordAudit(ctx, actorID, "client.create", client.ID)
	return client, nil
}

// Get fetches one client.
func (s *Service) Get(ctx context.Context, id string) (*Client, error) {
	return s.repo.Get(ctx, id)
}

// GetByUserID fetches the client bound to an authenticated user.
func (s *Service) GetByUserID(ctx context.Context, userID string) (*Client, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// List searches clients by name or document.
func (s *Service) List(ctx context.Context, search string, page, pageSize int) ([]Client, *shared.Pagination, error) {
	return s.repo.List(ctx, search, page, pageSize)
}

// Update applies partial changes.
func (s *Service) Update(ctx context.Context, actorID, id string, input UpdateClientInput) (*Client, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	client, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "client.update", id)
	return client, nil
}

// Delete soft deletes a client.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "client.delete", id)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "client",
		EntityID: entityID,
	}); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}
