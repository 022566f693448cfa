package lots

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/solterra/solterra/internal/shared"
)

type memoryLotRepo struct {
	developments map[string]Development
	lots         map[string]Lot
	seq          int
}

func newMemoryLotRepo() *memoryLotRepo {
	return &memoryLotRepo{
		developments: make(map[string]Development),
		lots:         make(map[string]Lot),
	}
}

func (m *memoryLotRepo) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s_%03d", prefix, m.seq)
}

func (m *memoryLotRepo) CreateDevelopment(_ context.Context, input CreateDevelopmentInput) (*Development, error) {
	dev := Development{ID: m.nextID("dev"), Name: input.Name, Location: input.Location}
	m.developments[dev.ID] = dev
	return &dev, nil
}

func (m *memoryLotRepo) GetDevelopment(_ context.Context, id string) (*Development, error) {
	dev, ok := m.developments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &dev, nil
}

func (m *memoryLotRepo) ListDevelopments(context.Context) ([]Development, error) {
	out := make([]Development, 0, len(m.developments))
	for _, dev := range m.developments {
		out = append(out, dev)
	}
	return out, nil
}

func (m *memoryLotRepo) CreateLot(_ context.Context, input CreateLotInput) (*Lot, error) {
	if _, ok := m.developments[input.DevelopmentID]; !ok {
		return nil, shared.ErrNotFound
	}
	lot := Lot{
		ID:            m.nextID("lot"),
		DevelopmentID: input.DevelopmentID,
		Number:        input.Number,
		Block:         input.Block,
		AreaM2:        input.AreaM2,
		Price:         input.Price,
		Status:        LotStatusAvailable,
	}
	m.lots[lot.ID] = lot
	return &lot, nil
}

func (m *memoryLotRepo) GetLot(_ context.Context, id string) (*Lot, error) {
	lot, ok := m.lots[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &lot, nil
}

func (m *memoryLotRepo) ListLots(_ context.Context, filter LotFilter, _, _ int) ([]Lot, *shared.Pagination, error) {
	var out []Lot
	for _, lot := range m.lots {
		if filter.DevelopmentID != "" && lot.DevelopmentID != filter.DevelopmentID {
			continue
		}
		if filter.Status != "" && lot.Status != filter.Status {
			continue
		}
		out = append(out, lot)
	}
	p := shared.NewPagination(1, len(out)+1, len(out))
	return out, &p, nil
}

func (m *memoryLotRepo) UpdateLot(_ context.Context, id string, input UpdateLotInput) (*Lot, error) {
	lot, ok := m.lots[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if input.Price != nil {
		lot.Price = *input.Price
	}
	if input.Number != nil {
		lot.Number = *input.Number
	}
	m.lots[id] = lot
	return &lot, nil
}

func (m *memoryLotRepo) Reserve(_ context.Context, lotID string) error {
	lot, ok := m.lots[lotID]
	if !ok {
		return shared.ErrNotFound
	}
	if lot.Status != LotStatusAvailable {
		return shared.ErrConflict
	}
	lot.Status = LotStatusReserved
	m.lots[lotID] = lot
	return nil
}

func (m *memoryLotRepo) CountByStatus(_ context.Context, developmentID string) (map[LotStatus]int, error) {
	counts := make(map[LotStatus]int)
	for _, lot := range m.lots {
		if developmentID != "" && lot.DevelopmentID != developmentID {
			continue
		}
		counts[lot.Status]++
	}
	return counts, nil
}

func newLotService(repo RepositoryPort) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo)
}

func TestCreateLotRejectsNonPositivePrice(t *testing.T) {
	repo := newMemoryLotRepo()
	svc := newLotService(repo)

	dev, err := svc.CreateDevelopment(context.Background(), CreateDevelopmentInput{Name: "Jardim das Acácias"})
	require.NoError(t, err)

	_, err = svc.CreateLot(context.Background(), CreateLotInput{
		DevelopmentID: dev.ID,
		Number:        "12",
		Price:         decimal.Zero,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateLot(context.Background(), CreateLotInput{
		DevelopmentID: dev.ID,
		Number:        "12",
		Price:         decimal.RequireFromString("-100"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReserveOnlyAvailableLots(t *testing.T) {
	repo := newMemoryLotRepo()
	svc := newLotService(repo)

	dev, err := svc.CreateDevelopment(context.Background(), CreateDevelopmentInput{Name: "Vale Verde"})
	require.NoError(t, err)
	lot, err := svc.CreateLot(context.Background(), CreateLotInput{
		DevelopmentID: dev.ID,
		Number:        "07",
		Price:         decimal.RequireFromString("65000"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Reserve(context.Background(), lot.ID))
	require.ErrorIs(t, svc.Reserve(context.Background(), lot.ID), shared.ErrConflict)
}

func TestAvailabilityCountsByStatus(t *testing.T) {
	repo := newMemoryLotRepo()
	svc := newLotService(repo)

	dev, err := svc.CreateDevelopment(context.Background(), CreateDevelopmentInput{Name: "Vale Verde"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.CreateLot(context.Background(), CreateLotInput{
			DevelopmentID: dev.ID,
			Number:        fmt.Sprintf("%02d", i+1),
			Price:         decimal.RequireFromString("70000"),
		})
		require.NoError(t, err)
	}
	lots, _, err := svc.ListLots(context.Background(), LotFilter{DevelopmentID: dev.ID}, 1, 10)
	require.NoError(t, err)
	require.NoError(t, svc.Reserve(context.Background(), lots[0].ID))

	counts, err := svc.Availability(context.Background(), dev.ID)
	require.NoError(t, err)
	require.Equal(t, 2, counts[LotStatusAvailable])
	require.Equal(t, 1, counts[LotStatusReserved])
}

func TestUpdateLotRejectsNonPositivePrice(t *testing.T) {
	repo := newMemoryLotRepo()
	svc := newLotService(repo)

	dev, err := svc.CreateDevelopment(context.Background(), CreateDevelopmentInput{Name: "Vale Verde"})
	require.NoError(t, err)
	lot, err := svc.CreateLot(context.Background(), CreateLotInput{
		DevelopmentID: dev.ID,
		Number:        "01",
		Price:         decimal.RequireFromString("70000"),
	})
	require.NoError(t, err)

	bad := decimal.Zero
	_, err = svc.UpdateLot(context.Background(), lot.ID, UpdateLotInput{Price: &bad})
	require.ErrorIs(t, err, shared.ErrValidation)
}
