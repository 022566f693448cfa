package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/solterra/solterra/internal/shared"
)

// RepositoryPort defines data access methods for services.
type RepositoryPort interface {
	CreateType(ctx context.Context, t ServiceType) (*ServiceType, error)
	GetType(ctx context.Context, id string) (*ServiceType, error)
	ListTypes(ctx context.Context, onlyActive bool) ([]ServiceType, error)
	UpdateType(ctx context.Context, id string, input UpdateServiceTypeInput) (*ServiceType, error)
	CreateOrder(ctx context.Context, o Order) (*Order, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	UpdateOrder(ctx context.Context, id string, input UpdateOrderInput) (*Order, error)
	ListOrders(ctx context.Context, filter OrderFilter, page, pageSize int) ([]Order, *shared.Pagination, error)
	Analytics(ctx context.Context) (*Analytics, error)
}

// NotifierPort tells a client their order changed.
type NotifierPort interface {
	ServiceUpdate(ctx context.Context, clientID, orderID string, status string) error
}

// validTransitions holds the allowed order status moves. Terminal states have
// no exits.
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusRequested:  {OrderStatusApproved, OrderStatusCancelled},
	OrderStatusApproved:   {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusCancelled},
}

func canTransition(from, to OrderStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Service handles catalog and order business logic.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	notifier NotifierPort
	validate *validator.Validate
}

// NewService builds a Service instance. notifier may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, notifier NotifierPort) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		notifier: notifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// CreateType adds a catalog entry.
func (s *Service) CreateType(ctx context.Context, input CreateServiceTypeInput) (*ServiceType, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if input.BasePrice.IsNegative() {
		return nil, fmt.Errorf("%w: base price cannot be negative", shared.ErrValidation)
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	return s.repo.CreateType(ctx, ServiceType{
		Name:        input.Name,
		Description: input.Description,
		BasePrice:   input.BasePrice,
		IsActive:    active,
	})
}

// ListTypes returns catalog entries.
func (s *Service) ListTypes(ctx context.Context, onlyActive bool) ([]ServiceType, error) {
	return s.repo.ListTypes(ctx, onlyActive)
}

// UpdateType applies partial catalog changes.
func (s *Service) UpdateType(ctx context.Context, id string, input UpdateServiceTypeInput) (*ServiceType, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if input.BasePrice != nil && input.BasePrice.IsNegative() {
		return nil, fmt.Errorf("%w: base price cannot be negative", shared.ErrValidation)
	}
	return s.repo.UpdateType(ctx, id, input)
}

// RequestOrder creates an order for a client. Cost defaults to the catalog
// base price, and only active catalog entries can be ordered.
func (s *Service) RequestOrder(ctx context.Context, clientID string, input CreateOrderInput) (*Order, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	serviceType, err := s.repo.GetType(ctx, input.ServiceTypeID)
	if err != nil {
		return nil, fmt.Errorf("service type: %w", err)
	}
	if !serviceType.IsActive {
		return nil, fmt.Errorf("%w: service type is inactive", shared.ErrValidation)
	}

	return s.repo.CreateOrder(ctx, Order{
		ClientID:      clientID,
		LotID:         input.LotID,
		ServiceTypeID: input.ServiceTypeID,
		RequestedDate: input.RequestedDate,
		Cost:          serviceType.BasePrice,
		Notes:         input.Notes,
	})
}

// UpdateOrder applies back-office changes. Status moves follow the order
// lifecycle and the client is notified when one happens.
func (s *Service) UpdateOrder(ctx context.Context, id string, input UpdateOrderInput) (*Order, error) {
	if (input.Cost != nil && input.Cost.IsNegative()) || (input.Revenue != nil && input.Revenue.IsNegative()) {
		return nil, fmt.Errorf("%w: cost and revenue cannot be negative", shared.ErrValidation)
	}

	current, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	statusChanged := input.Status != nil && *input.Status != current.Status
	if statusChanged && !canTransition(current.Status, *input.Status) {
		return nil, fmt.Errorf("%w: cannot move order from %s to %s", shared.ErrConflict, current.Status, *input.Status)
	}

	order, err := s.repo.UpdateOrder(ctx, id, input)
	if err != nil {
		return nil, err
	}

	if statusChanged && s.notifier != nil {
		if err := s.notifier.ServiceUpdate(ctx, order.ClientID, order.ID, string(order.Status)); err != nil {
			s.logger.Warn("service update notification failed", "order_id", order.ID, "error", err)
		}
	}
	return order, nil
}

// GetOrder fetches one order.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders returns orders matching the filter.
func (s *Service) ListOrders(ctx context.Context, filter OrderFilter, page, pageSize int) ([]Order, *shared.Pagination, error) {
	return s.repo.ListOrders(ctx, filter, page, pageSize)
}

// Analytics aggregates order economics.
func (s *Service) Analytics(ctx context.Context) (*Analytics, error) {
	return s.repo.Analytics(ctx)
}
