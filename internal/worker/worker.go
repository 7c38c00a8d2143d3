package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/models"
	"github.com/finstream-guard/dashboard/pkg/queue"
	"github.com/finstream-guard/dashboard/pkg/storage"
)

// Source yields jobs and takes back failed ones.
type Source interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// AlertStore archives risk alerts.
type AlertStore interface {
	Insert(ctx context.Context, alert models.RiskAlert) error
}

// ReportUploader stores session reports.
type ReportUploader interface {
	UploadReport(ctx context.Context, key string, body []byte) (string, error)
}

// Processor handles risk alert and session report jobs. A nil sink drops its job type with a warning.
type Processor struct {
	source  Source
	alerts  AlertStore
	reports ReportUploader
	logger  *zap.Logger
	backoff time.Duration
}

// NewProcessor creates a job processor.
func NewProcessor(source Source, alerts AlertStore, reports ReportUploader, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{source: source, alerts: alerts, reports: reports, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeRiskAlert:
		var alert models.RiskAlert
		if err := json.Unmarshal(job.Payload, &alert); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		if p.alerts == nil {
			p.logger.Warn("alert archive not configured, dropping job", zap.String("job_id", job.ID))
			return nil
		}
		if err := p.alerts.Insert(ctx, alert); err != nil {
			return err
		}
		p.logger.Info("risk alert archived",
			zap.String("session_id", alert.SessionID),
			zap.String("streamer", alert.StreamerName),
			zap.Int("risk_score", alert.RiskScore))
		return nil

	case queue.JobTypeSessionReport:
		var report models.SessionReport
		if err := json.Unmarshal(job.Payload, &report); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		if p.reports == nil {
			p.logger.Warn("report storage not configured, dropping job", zap.String("job_id", job.ID))
			return nil
		}
		key := storage.ReportKey(report.StreamerID, report.SessionID, time.UnixMilli(report.EndedAt))
		body, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		url, err := p.reports.UploadReport(ctx, key, body)
		if err != nil {
			return fmt.Errorf("s3 upload: %w", err)
		}
		p.logger.Info("session report uploaded", zap.String("session_id", report.SessionID), zap.String("url", url))
		return nil

	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, _, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.source.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *Processor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
