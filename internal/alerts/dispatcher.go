package alerts

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/models"
	"github.com/finstream-guard/dashboard/internal/monitor"
)

// Enqueuer queues background jobs.
type Enqueuer interface {
	EnqueueRiskAlert(ctx context.Context, alert models.RiskAlert) error
	EnqueueSessionReport(ctx context.Context, report models.SessionReport) error
}

// Dispatcher turns session events into background jobs: analyses at or above the
// threshold become risk alerts, and every ended session becomes a report.
type Dispatcher struct {
	queue     Enqueuer
	threshold int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher. A nil queue disables both job kinds.
func NewDispatcher(queue Enqueuer, threshold int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{queue: queue, threshold: threshold, timeout: 5 * time.Second, logger: logger}
}

// Hooks returns the session callbacks, or empty hooks when there is no queue.
func (d *Dispatcher) Hooks() monitor.Hooks {
	if d.queue == nil {
		return monitor.Hooks{}
	}
	return monitor.Hooks{
		OnAnalysis: func(s *monitor.Session, res models.AnalysisResult) {
			d.Analysis(s.ID(), s.Streamer(), res)
		},
		OnEnd: d.SessionEnded,
	}
}

// Analysis enqueues a risk alert when res crosses the threshold.
func (d *Dispatcher) Analysis(sessionID string, st models.Streamer, res models.AnalysisResult) {
	if d.queue == nil || res.RiskScore < d.threshold {
		return
	}
	alert := models.RiskAlert{
		SessionID:    sessionID,
		StreamerID:   st.ID,
		StreamerName: st.Name,
		Platform:     st.Platform,
		RiskScore:    res.RiskScore,
		Summary:      res.Summary,
		Issues:       res.ComplianceIssues,
		DetectedAt:   res.Timestamp,
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.queue.EnqueueRiskAlert(ctx, alert); err != nil {
		d.logger.Warn("enqueue risk alert failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// SessionEnded enqueues the session report.
func (d *Dispatcher) SessionEnded(report models.SessionReport) {
	if d.queue == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.queue.EnqueueSessionReport(ctx, report); err != nil {
		d.logger.Warn("enqueue session report failed", zap.String("session_id", report.SessionID), zap.Error(err))
	}
}
