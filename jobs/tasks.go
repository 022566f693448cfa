package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskBillingOutboxDrain retries parked installment issuances.
	TaskBillingOutboxDrain = "billing:outbox_drain"
	// TaskBillingOverdueSweep flags past-due invoices and notifies owners.
	TaskBillingOverdueSweep = "billing:overdue_sweep"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// OutboxDrainPayload bounds how many parked issuances one run re-attempts.
type OutboxDrainPayload struct {
	Limit int `json:"limit"`
}

// NewOutboxDrainTask constructs an Asynq task for the issuance retry pass.
func NewOutboxDrainTask(limit int) (*asynq.Task, error) {
	data, err := json.Marshal(OutboxDrainPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBillingOutboxDrain, data, asynq.Queue(QueueDefault)), nil
}

// OverdueSweepPayload carries scheduling metadata.
type OverdueSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewOverdueSweepTask constructs an Asynq task for the overdue sweep.
func NewOverdueSweepTask(at time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(OverdueSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBillingOverdueSweep, data, asynq.Queue(QueueDefault)), nil
}
