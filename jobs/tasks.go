// Package jobs wires background task processing on Asynq.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/forge-club/forge/internal/jobs"
	"github.com/forge-club/forge/internal/judging"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionPurge removes expired judge session rows.
	TaskSessionPurge = "judging:purge_sessions"
	// SessionPurgeCron runs the purge at the top of every hour.
	SessionPurgeCron = "0 * * * *"
)

// SessionPurgePayload carries scheduling metadata.
type SessionPurgePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewSessionPurgeTask constructs an Asynq task for the session purge.
func NewSessionPurgeTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SessionPurgePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPurge, body, asynq.Queue(QueueDefault)), nil
}

// NewSessionPurgeHandler processes TaskSessionPurge tasks. Expired rows are
// already invisible to lookups, the purge only reclaims storage, so failures
// retry on the next run without any urgency.
func NewSessionPurgeHandler(svc *judging.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskSessionPurge)
		var payload SessionPurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			_ = tracker.End(err)
			return asynq.SkipRetry
		}
		purged, err := svc.PurgeExpired(ctx)
		if err != nil {
			return tracker.End(err)
		}
		metrics.AddPurgedSessions(purged)
		if logger != nil {
			logger.Info("purged expired judge sessions",
				slog.Int64("purged", purged),
				slog.Time("scheduled_for", payload.ScheduledFor))
		}
		return tracker.End(nil)
	}
}
