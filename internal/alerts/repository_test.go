package alerts

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/models"
	"github.com/finstream-guard/dashboard/pkg/database"
)

// Runs against a real PostgreSQL when TEST_DATABASE_URL is set.
func TestRepository_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, database.Migrate(ctx, pool))

	repo := NewRepository(pool)
	name := "it-" + uuid.NewString()
	alert := models.RiskAlert{
		SessionID:    uuid.NewString(),
		StreamerID:   "1",
		StreamerName: name,
		Platform:     models.PlatformDouyin,
		RiskScore:    85,
		Summary:      "承诺收益",
		DetectedAt:   time.Now().UnixMilli(),
	}
	require.NoError(t, repo.Insert(ctx, alert))
	require.NoError(t, repo.Insert(ctx, alert), "redelivery is idempotent")

	counts, err := repo.CountByStreamer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[name])

	recent, err := repo.ListRecent(ctx, 500)
	require.NoError(t, err)
	var found bool
	for _, a := range recent {
		if a.StreamerName == name {
			found = true
			assert.Equal(t, models.PlatformDouyin, a.Platform)
			assert.Empty(t, a.Issues)
		}
	}
	assert.True(t, found)
}
