package dashboard

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/solterra/solterra/internal/notify"
	"github.com/solterra/solterra/internal/sales"
)

type fakeAggregates struct {
	clientCountCalls int
	invoiceCalls     int
}

func (f *fakeAggregates) ClientCounts(context.Context) (int, int, int, error) {
	f.clientCountCalls++
	return 40, 25, 3, nil
}

func (f *fakeAggregates) LotCounts(context.Context) (int, int, int, error) {
	return 120, 80, 35, nil
}

func (f *fakeAggregates) OrderCounts(context.Context) (int, int, error) {
	return 7, 19, nil
}

func (f *fakeAggregates) InvoiceTotals(context.Context) (decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	f.invoiceCalls++
	return decimal.NewFromInt(50000), decimal.NewFromInt(30000), decimal.NewFromInt(4500), nil
}

func (f *fakeAggregates) ServiceTotals(context.Context) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.NewFromInt(9000), decimal.NewFromInt(4000), nil
}

func (f *fakeAggregates) Defaulters(context.Context, int) ([]Defaulter, error) {
	return []Defaulter{{ClientID: "client_1", ClientName: "Maria Souza", OverdueAmount: decimal.NewFromInt(4500), OverdueInvoices: 3}}, nil
}

func (f *fakeAggregates) ClientBillingSummary(context.Context, string) (int, decimal.Decimal, *time.Time, error) {
	next := time.Date(2024, time.July, 15, 0, 0, 0, 0, time.UTC)
	return 5, decimal.NewFromInt(5000), &next, nil
}

func (f *fakeAggregates) ClientOpenOrders(context.Context, string) (int, error) {
	return 2, nil
}

func (f *fakeAggregates) ClientName(context.Context, string) (string, error) {
	return "Maria Souza", nil
}

type fakeContracts struct{}

func (fakeContracts) ListByClient(context.Context, string) ([]sales.Sale, error) {
	return []sales.Sale{{ID: "sale_001", Status: sales.SaleStatusActive}}, nil
}

type fakeInbox struct{}

func (fakeInbox) ListForClient(context.Context, string, bool, int) ([]notify.Notification, error) {
	return []notify.Notification{{ID: "ntf_001", Title: "Aviso"}}, nil
}

func newCache(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestAdminStatsFansOut(t *testing.T) {
	repo := &fakeAggregates{}
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, fakeContracts{}, fakeInbox{}, nil)

	stats, err := svc.AdminStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, &AdminStats{
		TotalClients: 40, ActiveClients: 25, DefaulterClients: 3,
		TotalLots: 120, AvailableLots: 80, SoldLots: 35,
		OpenServiceOrders: 7, CompletedServiceOrders: 19,
	}, stats)
}

func TestAdminStatsServedFromCache(t *testing.T) {
	repo := &fakeAggregates{}
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, fakeContracts{}, fakeInbox{}, newCache(t))

	first, err := svc.AdminStats(context.Background())
	require.NoError(t, err)
	second, err := svc.AdminStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.clientCountCalls, "second read hits the cache")
}

func TestInvalidateDropsCache(t *testing.T) {
	repo := &fakeAggregates{}
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, fakeContracts{}, fakeInbox{}, newCache(t))

	_, err := svc.AdminStats(context.Background())
	require.NoError(t, err)
	svc.Invalidate(context.Background())

	_, err = svc.AdminStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, repo.clientCountCalls)
}

func TestFinancialComputesProfit(t *testing.T) {
	repo := &fakeAggregates{}
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, fakeContracts{}, fakeInbox{}, nil)

	fin, err := svc.Financial(context.Background())
	require.NoError(t, err)
	require.True(t, fin.ServiceProfit.Equal(decimal.NewFromInt(5000)))
	require.Len(t, fin.Defaulters, 1)
	require.True(t, fin.TotalOverdue.Equal(decimal.NewFromInt(4500)))
}

func TestClientDashboardAssemblesEverything(t *testing.T) {
	repo := &fakeAggregates{}
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, fakeContracts{}, fakeInbox{}, nil)

	d, err := svc.ForClient(context.Background(), "client_1")
	require.NoError(t, err)
	require.Equal(t, "Maria Souza", d.ClientName)
	require.Len(t, d.Contracts, 1)
	require.Equal(t, 5, d.PendingInvoices)
	require.NotNil(t, d.NextDueDate)
	require.Equal(t, 2, d.OpenServiceOrders)
	require.Len(t, d.RecentNotifications, 1)
}
