package lots

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/solterra/solterra/internal/shared"
)

// RepositoryPort defines data access methods for developments and lots.
type RepositoryPort interface {
	CreateDevelopment(ctx context.Context, input CreateDevelopmentInput) (*Development, error)
	GetDevelopment(ctx context.Context, id string) (*Development, error)
	ListDevelopments(ctx context.Context) ([]Development, error)
	CreateLot(ctx context.Context, input CreateLotInput) (*Lot, error)
	GetLot(ctx context.Context, id string) (*Lot, error)
	ListLots(ctx context.Context, filter LotFilter, page, pageSize int) ([]Lot, *shared.Pagination, error)
	UpdateLot(ctx context.Context, id string, input UpdateLotInput) (*Lot, error)
	Reserve(ctx context.Context, lotID string) error
	CountByStatus(ctx context.Context, developmentID string) (map[LotStatus]int, error)
}

// Service handles development and lot business logic.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort) *Service {
	return &Service{logger: logger, repo: repo, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// CreateDevelopment registers a development.
func (s *Service) CreateDevelopment(ctx context.Context, input CreateDevelopmentInput) (*Development, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return s.repo.CreateDevelopment(ctx, input)
}

// GetDevelopment fetches one development.
func (s *Service) GetDevelopment(ctx context.Context, id string) (*Development, error) {
	return s.repo.GetDevelopment(ctx, id)
}

// ListDevelopments returns all developments.
func (s *Service) ListDevelopments(ctx context.Context) ([]Development, error) {
	return s.repo.ListDevelopments(ctx)
}

// CreateLot registers a lot in a development.
func (s *Service) CreateLot(ctx context.Context, input CreateLotInput) (*Lot, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if !input.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", shared.ErrValidation)
	}
	return s.repo.CreateLot(ctx, input)
}

// GetLot fetches one lot.
func (s *Service) GetLot(ctx context.Context, id string) (*Lot, error) {
	return s.repo.GetLot(ctx, id)
}

// ListLots returns lots matching the filter.
func (s *Service) ListLots(ctx context.Context, filter LotFilter, page, pageSize int) ([]Lot, *shared.Pagination, error) {
	return s.repo.ListLots(ctx, filter, page, pageSize)
}

// UpdateLot applies partial changes.
func (s *Service) UpdateLot(ctx context.Context, id string, input UpdateLotInput) (*Lot, error) {
	if input.Price != nil && !input.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", shared.ErrValidation)
	}
	return s.repo.UpdateLot(ctx, id, input)
}

// Reserve holds an available lot.
func (s *Service) Reserve(ctx context.Context, id string) error {
	return s.repo.Reserve(ctx, id)
}

// Availability reports lot counts by status for a development ("" for all).
func (s *Service) Availability(ctx context.Context, developmentID string) (map[LotStatus]int, error) {
	return s.repo.CountByStatus(ctx, developmentID)
}
