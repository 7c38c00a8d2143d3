// Package alerts archives high-risk analyses in PostgreSQL.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finstream-guard/dashboard/internal/models"
)

// Repository handles risk alert persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an alerts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores an alert. Re-delivering the same alert is a no-op.
func (r *Repository) Insert(ctx context.Context, a models.RiskAlert) error {
	issues := a.Issues
	if issues == nil {
		issues = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO risk_alerts (session_id, streamer_id, streamer_name, platform, risk_score, summary, issues, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, detected_at) DO NOTHING`,
		a.SessionID, a.StreamerID, a.StreamerName, string(a.Platform), a.RiskScore, a.Summary, issues,
		time.UnixMilli(a.DetectedAt).UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert risk alert: %w", err)
	}
	return nil
}

// CountByStreamer returns the number of archived alerts per streamer name.
func (r *Repository) CountByStreamer(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT streamer_name, COUNT(*) FROM risk_alerts GROUP BY streamer_name`)
	if err != nil {
		return nil, fmt.Errorf("count risk alerts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}

// ListRecent returns the newest alerts first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]models.RiskAlert, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT session_id, streamer_id, streamer_name, platform, risk_score, summary, issues, detected_at
		FROM risk_alerts ORDER BY detected_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list risk alerts: %w", err)
	}
	defer rows.Close()

	list := []models.RiskAlert{}
	for rows.Next() {
		var a models.RiskAlert
		var platform string
		var detected time.Time
		if err := rows.Scan(&a.SessionID, &a.StreamerID, &a.StreamerName, &platform, &a.RiskScore, &a.Summary, &a.Issues, &detected); err != nil {
			return nil, err
		}
		a.Platform = models.ParsePlatform(platform)
		a.DetectedAt = detected.UnixMilli()
		list = append(list, a)
	}
	return list, rows.Err()
}
