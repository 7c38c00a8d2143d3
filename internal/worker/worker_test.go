package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/models"
	"github.com/finstream-guard/dashboard/pkg/queue"
)

type fakeSource struct {
	jobs    chan *queue.Job
	mu      sync.Mutex
	retried []*queue.Job
}

func (f *fakeSource) Dequeue(ctx context.Context) (*queue.Job, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case job := <-f.jobs:
		return job, "test", nil
	}
}

func (f *fakeSource) Retry(ctx context.Context, job *queue.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.Attempt++
	f.retried = append(f.retried, job)
	return nil
}

func (f *fakeSource) retriedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.retried)
}

type fakeAlerts struct {
	mu     sync.Mutex
	stored []models.RiskAlert
	err    error
}

func (f *fakeAlerts) Insert(ctx context.Context, a models.RiskAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, a)
	return nil
}

func (f *fakeAlerts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

type fakeUploader struct {
	key  string
	body []byte
}

func (f *fakeUploader) UploadReport(ctx context.Context, key string, body []byte) (string, error) {
	f.key, f.body = key, body
	return "https://bucket/" + key, nil
}

func mustJob(t *testing.T, typ queue.JobType, payload interface{}) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(typ, payload)
	require.NoError(t, err)
	return job
}

func TestProcess_RiskAlert(t *testing.T) {
	alerts := &fakeAlerts{}
	p := NewProcessor(nil, alerts, nil, zap.NewNop())

	err := p.Process(context.Background(), mustJob(t, queue.JobTypeRiskAlert, models.RiskAlert{SessionID: "s", RiskScore: 80}))
	require.NoError(t, err)
	require.Len(t, alerts.stored, 1)
	assert.Equal(t, 80, alerts.stored[0].RiskScore)
}

func TestProcess_SessionReport(t *testing.T) {
	up := &fakeUploader{}
	p := NewProcessor(nil, nil, up, zap.NewNop())
	ended := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	report := models.SessionReport{SessionID: "sess", StreamerID: "9", Name: "Alpha", EndedAt: ended.UnixMilli(), Messages: []models.ChatMessage{{ID: "m"}}}

	require.NoError(t, p.Process(context.Background(), mustJob(t, queue.JobTypeSessionReport, report)))
	assert.Equal(t, "reports/2026/05/01/9/sess.json", up.key)

	var got models.SessionReport
	require.NoError(t, json.Unmarshal(up.body, &got))
	assert.Equal(t, "Alpha", got.Name)
	assert.Len(t, got.Messages, 1)
}

func TestProcess_MissingSinkDropsJob(t *testing.T) {
	p := NewProcessor(nil, nil, nil, zap.NewNop())
	assert.NoError(t, p.Process(context.Background(), mustJob(t, queue.JobTypeRiskAlert, models.RiskAlert{})))
	assert.NoError(t, p.Process(context.Background(), mustJob(t, queue.JobTypeSessionReport, models.SessionReport{})))
}

func TestProcess_RejectsUnknownAndMalformed(t *testing.T) {
	p := NewProcessor(nil, &fakeAlerts{}, nil, zap.NewNop())
	assert.Error(t, p.Process(context.Background(), &queue.Job{Type: "email"}))
	assert.Error(t, p.Process(context.Background(), &queue.Job{Type: queue.JobTypeRiskAlert, Payload: json.RawMessage(`"x"`)}))
}

func TestRun_ProcessesAndRetries(t *testing.T) {
	src := &fakeSource{jobs: make(chan *queue.Job, 4)}
	alerts := &fakeAlerts{}
	p := NewProcessor(src, alerts, nil, zap.NewNop())
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	src.jobs <- mustJob(t, queue.JobTypeRiskAlert, models.RiskAlert{SessionID: "ok"})
	assert.Eventually(t, func() bool { return alerts.count() == 1 }, time.Second, time.Millisecond)

	alerts.mu.Lock()
	alerts.err = errors.New("db down")
	alerts.mu.Unlock()
	src.jobs <- mustJob(t, queue.JobTypeRiskAlert, models.RiskAlert{SessionID: "fail"})
	assert.Eventually(t, func() bool { return src.retriedCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
