package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/solterra/solterra/internal/billing"
	jobmetrics "github.com/solterra/solterra/internal/jobs"
)

// OutboxDrainJob re-attempts installment issuances parked after gateway failures.
type OutboxDrainJob struct {
	Retrier *billing.Retrier
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOutboxDrainJob initialises the issuance retry handler.
func NewOutboxDrainJob(retrier *billing.Retrier, logger *slog.Logger, metrics *jobmetrics.Metrics) *OutboxDrainJob {
	return &OutboxDrainJob{Retrier: retrier, Logger: logger, Metrics: metrics}
}

// Handle executes the outbox retry pass.
func (j *OutboxDrainJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Retrier == nil {
		return errors.New("outbox drain: handler not configured")
	}
	var payload OutboxDrainPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = 50
	}

	tracker := j.metrics().Track(TaskBillingOutboxDrain)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	report, err := j.Retrier.Drain(ctx, payload.Limit)
	if err != nil {
		resultErr = err
		j.logger().Error("outbox drain failed", slog.Any("error", err))
		return resultErr
	}

	j.metrics().AddRetries("settled", report.Settled)
	j.metrics().AddRetries("failed", report.Failed)
	j.metrics().AddRetries("skipped", report.Skipped)
	j.logger().Info("outbox drained",
		slog.Int("settled", report.Settled),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
	)
	return resultErr
}

func (j *OutboxDrainJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBillingOutboxDrain))
	}
	return slog.Default().With(slog.String("job", TaskBillingOutboxDrain))
}

func (j *OutboxDrainJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
