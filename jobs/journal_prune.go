package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-billing/internal/jobs"
)

// Pruner removes old journal entries.
type Pruner interface {
	PruneJournal(ctx context.Context, retention time.Duration) (int64, error)
}

// JournalPruneJob enforces journal retention.
type JournalPruneJob struct {
	Pruner           Pruner
	DefaultRetention time.Duration
	Logger           *slog.Logger
	Metrics          *jobmetrics.Metrics
}

// NewJournalPruneJob initialises the retention handler.
func NewJournalPruneJob(pruner Pruner, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *JournalPruneJob {
	return &JournalPruneJob{Pruner: pruner, DefaultRetention: retention, Logger: logger, Metrics: metrics}
}

// Handle deletes submissions older than the payload retention, falling back to
// DefaultRetention.
func (j *JournalPruneJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Pruner == nil {
		return errors.New("journal prune: handler not configured")
	}
	var payload JournalPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = j.DefaultRetention
	}
	if retention <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskJournalPrune)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	removed, err := j.Pruner.PruneJournal(ctx, retention)
	if err != nil {
		j.logger().Error("prune journal", slog.Any("error", err))
		return err
	}
	j.metrics().AddPruned(removed)
	j.logger().Info("pruned journal", slog.Int64("removed", removed), slog.Duration("retention", retention))
	return nil
}

func (j *JournalPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskJournalPrune))
	}
	return slog.Default().With(slog.String("job", TaskJournalPrune))
}

func (j *JournalPruneJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
