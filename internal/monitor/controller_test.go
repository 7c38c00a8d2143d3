package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/models"
)

func fastConfig() Config {
	cfg := manualConfig()
	cfg.TranscriptInterval = 5 * time.Millisecond
	return cfg
}

func TestController_SelectSwitchIsolatesSessions(t *testing.T) {
	src := newStubSource(liveStreamer("1"), liveStreamer("2"))
	var (
		mu      sync.Mutex
		reports []models.SessionReport
	)
	c := NewController(fastConfig(), src, &stubAnalyzer{}, nil, Hooks{
		OnEnd: func(r models.SessionReport) {
			mu.Lock()
			reports = append(reports, r)
			mu.Unlock()
		},
	}, zap.NewNop())
	t.Cleanup(c.Close)

	first, err := c.Select("1")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return len(first.Messages()) >= 2 }, 2*time.Second, 5*time.Millisecond)

	second, err := c.Select("2")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Same(t, second, c.Current())

	frozen := first.Messages()
	assert.Eventually(t, func() bool { return len(second.Messages()) >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, frozen, first.Messages(), "stopped session must not receive messages")

	ids := map[string]bool{}
	for _, m := range frozen {
		ids[m.ID] = true
	}
	for _, m := range second.Messages() {
		assert.False(t, ids[m.ID], "message from stream 1 leaked into stream 2")
	}

	mu.Lock()
	require.Len(t, reports, 1)
	assert.Equal(t, "1", reports[0].StreamerID)
	assert.Len(t, reports[0].Messages, len(frozen))
	mu.Unlock()
}

func TestController_SelectSameKeepsSession(t *testing.T) {
	c := NewController(manualConfig(), newStubSource(liveStreamer("1")), &stubAnalyzer{}, nil, Hooks{}, zap.NewNop())
	t.Cleanup(c.Close)

	a, err := c.Select("1")
	require.NoError(t, err)
	b, err := c.Select("1")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestController_SelectUnknown(t *testing.T) {
	c := NewController(manualConfig(), newStubSource(), &stubAnalyzer{}, nil, Hooks{}, zap.NewNop())
	_, err := c.Select("missing")
	assert.ErrorIs(t, err, ErrUnknownStream)
	assert.Nil(t, c.Current())
}

func TestController_Clear(t *testing.T) {
	var ended int
	c := NewController(manualConfig(), newStubSource(liveStreamer("1")), &stubAnalyzer{}, nil, Hooks{
		OnEnd: func(models.SessionReport) { ended++ },
	}, zap.NewNop())

	sess, err := c.Select("1")
	require.NoError(t, err)
	c.Clear()
	assert.Nil(t, c.Current())
	assert.Equal(t, 1, ended)

	_, again := sess.Stop()
	assert.False(t, again)

	c.Clear()
	assert.Equal(t, 1, ended)
}

func TestController_ReconcileDropsVanishedStream(t *testing.T) {
	src := newStubSource(liveStreamer("1"), liveStreamer("2"))
	c := NewController(manualConfig(), src, &stubAnalyzer{}, nil, Hooks{}, zap.NewNop())
	t.Cleanup(c.Close)

	_, err := c.Select("1")
	require.NoError(t, err)

	c.Reconcile([]models.Streamer{liveStreamer("1"), liveStreamer("2")})
	require.NotNil(t, c.Current())

	src.remove("1")
	c.Reconcile([]models.Streamer{liveStreamer("2")})
	assert.Nil(t, c.Current())
}

func TestController_SessionSeesStatusUpdates(t *testing.T) {
	src := newStubSource(liveStreamer("1"))
	c := NewController(manualConfig(), src, &stubAnalyzer{}, nil, Hooks{}, zap.NewNop())
	t.Cleanup(c.Close)

	sess, err := c.Select("1")
	require.NoError(t, err)

	sess.transcriptTick()
	require.Len(t, sess.Messages(), 1)

	src.mu.Lock()
	st := src.streamers["1"]
	st.Status = models.StatusOffline
	src.streamers["1"] = st
	src.mu.Unlock()

	sess.transcriptTick()
	assert.Len(t, sess.Messages(), 1)
	assert.Equal(t, models.StatusOffline, sess.View().Streamer.Status)
}
