package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/solterra/solterra/internal/notify"
	"github.com/solterra/solterra/internal/sales"
)

// RepositoryPort defines the aggregate queries dashboards run.
type RepositoryPort interface {
	ClientCounts(ctx context.Context) (total, active, defaulters int, err error)
	LotCounts(ctx context.Context) (total, available, sold int, err error)
	OrderCounts(ctx context.Context) (open, completed int, err error)
	InvoiceTotals(ctx context.Context) (receivable, received, overdue decimal.Decimal, err error)
	ServiceTotals(ctx context.Context) (revenue, cost decimal.Decimal, err error)
	Defaulters(ctx context.Context, limit int) ([]Defaulter, error)
	ClientBillingSummary(ctx context.Context, clientID string) (int, decimal.Decimal, *time.Time, error)
	ClientOpenOrders(ctx context.Context, clientID string) (int, error)
	ClientName(ctx context.Context, clientID string) (string, error)
}

// ContractReaderPort lists a client's contracts for the portal landing page.
type ContractReaderPort interface {
	ListByClient(ctx context.Context, clientID string) ([]sales.Sale, error)
}

// InboxReaderPort lists a client's recent notifications.
type InboxReaderPort interface {
	ListForClient(ctx context.Context, clientID string, onlyUnread bool, limit int) ([]notify.Notification, error)
}

const (
	adminStatsKey     = "dashboard:admin:stats"
	adminFinancialKey = "dashboard:admin:financial"
	cacheTTL          = 10 * time.Minute
	defaulterLimit    = 50
)

// Service assembles the dashboards. The admin views fan out their aggregate
// queries concurrently and are cached in Redis; the cache is a read-through,
// never authoritative.
type Service struct {
	logger    *slog.Logger
	repo      RepositoryPort
	contracts ContractReaderPort
	inbox     InboxReaderPort
	cache     *redis.Client
}

// NewService builds a Service instance. cache may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, contracts ContractReaderPort, inbox InboxReaderPort, cache *redis.Client) *Service {
	return &Service{logger: logger, repo: repo, contracts: contracts, inbox: inbox, cache: cache}
}

// AdminStats returns the back-office landing summary.
func (s *Service) AdminStats(ctx context.Context) (*AdminStats, error) {
	var cached AdminStats
	if s.readCache(ctx, adminStatsKey, &cached) {
		return &cached, nil
	}

	var stats AdminStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalClients, stats.ActiveClients, stats.DefaulterClients, err = s.repo.ClientCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalLots, stats.AvailableLots, stats.SoldLots, err = s.repo.LotCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.OpenServiceOrders, stats.CompletedServiceOrders, err = s.repo.OrderCounts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.writeCache(ctx, adminStatsKey, stats)
	return &stats, nil
}

// Financial returns the money view with the defaulter list.
func (s *Service) Financial(ctx context.Context) (*FinancialDashboard, error) {
	var cached FinancialDashboard
	if s.readCache(ctx, adminFinancialKey, &cached) {
		return &cached, nil
	}

	var fin FinancialDashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fin.TotalReceivables, fin.TotalReceived, fin.TotalOverdue, err = s.repo.InvoiceTotals(gctx)
		return err
	})
	g.Go(func() (err error) {
		fin.RevenueFromServices, fin.ServiceCosts, err = s.repo.ServiceTotals(gctx)
		return err
	})
	g.Go(func() (err error) {
		fin.Defaulters, err = s.repo.Defaulters(gctx, defaulterLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	fin.ServiceProfit = fin.RevenueFromServices.Sub(fin.ServiceCosts)

	s.writeCache(ctx, adminFinancialKey, fin)
	return &fin, nil
}

// ForClient returns the portal landing page for one client.
func (s *Service) ForClient(ctx context.Context, clientID string) (*ClientDashboard, error) {
	var d ClientDashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.ClientName, err = s.repo.ClientName(gctx, clientID)
		return err
	})
	g.Go(func() (err error) {
		d.Contracts, err = s.contracts.ListByClient(gctx, clientID)
		return err
	})
	g.Go(func() (err error) {
		d.PendingInvoices, d.TotalPendingAmount, d.NextDueDate, err = s.repo.ClientBillingSummary(gctx, clientID)
		return err
	})
	g.Go(func() (err error) {
		d.OpenServiceOrders, err = s.repo.ClientOpenOrders(gctx, clientID)
		return err
	})
	g.Go(func() (err error) {
		d.RecentNotifications, err = s.inbox.ListForClient(gctx, clientID, false, 5)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Invalidate drops the cached admin views. Called by the worker after sweeps.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, adminStatsKey, adminFinancialKey).Err(); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", "error", err)
	}
}

func (s *Service) readCache(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("dashboard cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("dashboard cache decode failed", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		s.logger.Warn("dashboard cache write failed", "key", key, "error", err)
	}
}
