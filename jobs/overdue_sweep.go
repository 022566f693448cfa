package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/solterra/solterra/internal/billing"
	jobmetrics "github.com/solterra/solterra/internal/jobs"
)

// OverdueStorePort is the billing surface the sweep depends on.
type OverdueStorePort interface {
	MarkOverdueBefore(ctx context.Context, cutoff time.Time) ([]billing.OverdueInvoice, error)
}

// CacheInvalidatorPort drops stale dashboard aggregates after a sweep.
type CacheInvalidatorPort interface {
	Invalidate(ctx context.Context)
}

// OverdueSweepJob flags past-due invoices the gateway never reported on and
// notifies the affected owners.
type OverdueSweepJob struct {
	Store    OverdueStorePort
	Notifier billing.NotifierPort
	Caches   CacheInvalidatorPort
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewOverdueSweepJob initialises the overdue sweep handler.
func NewOverdueSweepJob(store OverdueStorePort, notifier billing.NotifierPort, caches CacheInvalidatorPort, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	return &OverdueSweepJob{
		Store:    store,
		Notifier: notifier,
		Caches:   caches,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the overdue sweep.
func (j *OverdueSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	var payload OverdueSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskBillingOverdueSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	cutoff := j.now().Truncate(24 * time.Hour)
	flagged, err := j.Store.MarkOverdueBefore(ctx, cutoff)
	if err != nil {
		resultErr = err
		j.logger().Error("sweep failed", slog.Any("error", err))
		return resultErr
	}

	notified := 0
	for _, inv := range flagged {
		if j.Notifier == nil {
			break
		}
		if err := j.Notifier.PaymentOverdue(ctx, inv.ClientLotID, inv.Amount, inv.DueDate); err != nil {
			j.logger().Warn("overdue notification failed",
				slog.String("invoice_id", inv.ID), slog.Any("error", err))
			continue
		}
		notified++
	}

	if len(flagged) > 0 && j.Caches != nil {
		j.Caches.Invalidate(ctx)
	}

	j.metrics().AddOverdue(len(flagged))
	j.logger().Info("completed overdue sweep",
		slog.Time("cutoff", cutoff),
		slog.Int("flagged", len(flagged)),
		slog.Int("notified", notified),
	)
	return resultErr
}

func (j *OverdueSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBillingOverdueSweep))
	}
	return slog.Default().With(slog.String("job", TaskBillingOverdueSweep))
}

func (j *OverdueSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OverdueSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
