package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/metrics"
	"github.com/finstream-guard/dashboard/internal/models"
)

const (
	// QueueAlerts is the Redis list key for risk alert jobs.
	QueueAlerts = "worker:risk_alerts"
	// QueueReports is the Redis list key for session report jobs.
	QueueReports = "worker:session_reports"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeRiskAlert     JobType = "risk_alert"
	JobTypeSessionReport JobType = "session_report"
)

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// KeyFor returns the list a job type is queued on.
func KeyFor(t JobType) (string, error) {
	switch t {
	case JobTypeRiskAlert:
		return QueueAlerts, nil
	case JobTypeSessionReport:
		return QueueReports, nil
	default:
		return "", fmt.Errorf("unknown job type: %s", t)
	}
}

// NewJob wraps a payload in a fresh job envelope.
func NewJob(t JobType, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}, nil
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueRiskAlert enqueues a risk alert for archiving.
func (q *Queue) EnqueueRiskAlert(ctx context.Context, alert models.RiskAlert) error {
	job, err := NewJob(JobTypeRiskAlert, alert)
	if err != nil {
		return err
	}
	if err := q.push(ctx, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued risk alert job", zap.String("job_id", job.ID), zap.String("streamer_id", alert.StreamerID), zap.Int("risk_score", alert.RiskScore))
	return nil
}

// EnqueueSessionReport enqueues a finished session's report for upload.
func (q *Queue) EnqueueSessionReport(ctx context.Context, report models.SessionReport) error {
	job, err := NewJob(JobTypeSessionReport, report)
	if err != nil {
		return err
	}
	if err := q.push(ctx, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued session report job", zap.String("job_id", job.ID), zap.String("session_id", report.SessionID))
	return nil
}

func (q *Queue) push(ctx context.Context, job *Job) error {
	key, err := KeyFor(job.Type)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	metrics.Init()
	metrics.JobsEnqueued.WithLabelValues(string(job.Type)).Inc()
	return nil
}

// Dequeue blocks until a job is available or ctx is done. Returns job and key (queue name).
// Alerts are drained before reports.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueAlerts, QueueReports).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	key, err := KeyFor(job.Type)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
