// Package jobs holds the asynchronous task definitions and the Asynq
// worker that processes them.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeWebhookDispatch delivers workflow events to tenant webhooks.
	TaskTypeWebhookDispatch = "webhook:dispatch"
	// TaskTypeAutoReport drafts the previous month's reports for every tenant.
	TaskTypeAutoReport = "report:autogenerate"
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

// WebhookPayload describes an event to deliver to a tenant's webhook.
type WebhookPayload struct {
	TenantID  uuid.UUID       `json:"tenant_id"`
	EventType string          `json:"event_type"`
	EntityID  string          `json:"entity_id"`
	Body      json.RawMessage `json:"body"`
	At        time.Time       `json:"at"`
}

// NewWebhookTask constructs an Asynq task.
func NewWebhookTask(payload WebhookPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWebhookDispatch, data), nil
}

// NewAutoReportTask constructs the scheduled report drafting task. It
// carries no payload; the handler resolves the period at run time.
func NewAutoReportTask() *asynq.Task {
	return asynq.NewTask(TaskTypeAutoReport, nil)
}
