package jobs

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-billing/internal/adjustment"
	jobmetrics "github.com/odyssey-erp/odyssey-billing/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskChargeSubmit posts a charge to the billing API.
	TaskChargeSubmit = "billing:charge"
	// TaskJournalPrune removes expired submissions from the journal.
	TaskJournalPrune = "billing:journal_prune"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ChargePayload is the queued form of a charge request.
type ChargePayload struct {
	Charge    adjustment.ChargeInput `json:"charge"`
	RequestID string                 `json:"request_id,omitempty"`
}

// NewChargeTask constructs a charge task. The idempotency key doubles as the
// task id so the queue refuses duplicates; one is generated when missing.
// Charges are never retried.
func NewChargeTask(payload ChargePayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.Charge.IdempotencyKey) == "" {
		payload.Charge.IdempotencyKey = uuid.NewString()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChargeSubmit, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(0),
		asynq.TaskID(ChargeTaskID(payload.Charge.IdempotencyKey)),
	), nil
}

// ChargeTaskID is the queue task id of the charge carrying key.
func ChargeTaskID(key string) string {
	return TaskChargeSubmit + ":" + key
}

// JournalPrunePayload carries the retention window in hours.
type JournalPrunePayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewJournalPruneTask builds the retention task.
func NewJournalPruneTask(retentionHours int) (*asynq.Task, error) {
	body, err := json.Marshal(JournalPrunePayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskJournalPrune, body, asynq.Queue(QueueDefault)), nil
}
