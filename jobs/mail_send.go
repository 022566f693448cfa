package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/solterra/solterra/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// MailJob delivers queued transactional emails over SMTP.
type MailJob struct {
	Host    string
	Port    int
	From    string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewMailJob initialises the mail delivery handler.
func NewMailJob(host string, port int, from string, logger *slog.Logger, metrics *jobmetrics.Metrics) *MailJob {
	return &MailJob{Host: host, Port: port, From: from, Logger: logger, Metrics: metrics}
}

// Handle executes TaskTypeSendEmail tasks.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("mail: handler not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.To == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeSendEmail)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		j.From, payload.To, payload.Subject, payload.Body)
	addr := net.JoinHostPort(j.Host, strconv.Itoa(j.Port))
	if err := smtp.SendMail(addr, nil, j.From, []string{payload.To}, []byte(msg)); err != nil {
		resultErr = err
		j.logger().Error("send mail", slog.String("to", payload.To), slog.Any("error", err))
		return resultErr
	}

	j.logger().Info("mail delivered", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return resultErr
}

func (j *MailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeSendEmail))
	}
	return slog.Default().With(slog.String("job", TaskTypeSendEmail))
}

func (j *MailJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
