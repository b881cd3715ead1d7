package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-billing/internal/adjustment"
	jobmetrics "github.com/odyssey-erp/odyssey-billing/internal/jobs"
)

// Charger submits charges.
type Charger interface {
	Charge(ctx context.Context, in adjustment.ChargeInput) (adjustment.Submission, error)
}

// ChargeJob processes queued charge requests.
type ChargeJob struct {
	Charger Charger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewChargeJob initialises the charge handler.
func NewChargeJob(charger Charger, logger *slog.Logger, metrics *jobmetrics.Metrics) *ChargeJob {
	return &ChargeJob{Charger: charger, Logger: logger, Metrics: metrics}
}

// Handle submits one queued charge. Invalid and duplicate requests are not
// retried.
func (j *ChargeJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Charger == nil {
		return errors.New("charge submit: handler not configured")
	}
	var payload ChargePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskChargeSubmit)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("account", payload.Charge.AccountCode),
		slog.String("idempotency_key", payload.Charge.IdempotencyKey),
		slog.String("request_id", payload.RequestID),
	)

	sub, err := j.Charger.Charge(ctx, payload.Charge)
	switch {
	case errors.Is(err, adjustment.ErrInvalidCharge), errors.Is(err, adjustment.ErrDuplicateRequest):
		logger.Warn("charge rejected", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case err != nil:
		logger.Error("charge failed", slog.Any("error", err))
		return err
	}
	logger.Info("charge processed", slog.String("submission_id", sub.ID.String()))
	return nil
}

func (j *ChargeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskChargeSubmit))
	}
	return slog.Default().With(slog.String("job", TaskChargeSubmit))
}

func (j *ChargeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
