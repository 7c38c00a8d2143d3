// Package poller keeps the recorder status and the stream target list in sync with the backend.
package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/gateway"
	"github.com/finstream-guard/dashboard/internal/metrics"
	"github.com/finstream-guard/dashboard/internal/models"
)

var (
	// ErrEmptyURL is returned by AddStream when the URL is blank after trimming.
	ErrEmptyURL = errors.New("live url is required")
	// ErrActionInFlight is returned when the same control is already waiting on the backend.
	ErrActionInFlight = errors.New("action already in progress")
)

// Operator-facing messages for failed actions.
const (
	msgAddFailed    = "添加失败，请确认后端服务已启动。"
	msgToggleFailed = "操作失败，请检查后端服务日志。"
)

// Backend is the subset of the recorder backend the synchronizer drives.
type Backend interface {
	Status(ctx context.Context) (models.SystemStatus, error)
	StartRecorder(ctx context.Context) (gateway.Ack, error)
	StopRecorder(ctx context.Context) (gateway.Ack, error)
	Tasks(ctx context.Context) ([]models.Task, error)
	AddTask(ctx context.Context, task models.NewTask) (gateway.Ack, error)
}

// Snapshot is a consistent read of everything the dashboard shows.
type Snapshot struct {
	Status    models.SystemStatus `json:"status"`
	Streamers []models.Streamer   `json:"streamers"`
	UIError   string              `json:"ui_error,omitempty"`
	StatusAt  time.Time           `json:"status_at"`
	TasksAt   time.Time           `json:"tasks_at"`
}

// Synchronizer owns the SystemStatus snapshot and the Streamer collection.
type Synchronizer struct {
	backend Backend
	logger  *zap.Logger

	root       context.Context
	rootCancel context.CancelFunc

	status    atomic.Pointer[models.SystemStatus]
	streamers atomic.Pointer[[]models.Streamer]
	statusAt  atomic.Int64
	tasksAt   atomic.Int64

	statusGate refreshGate
	tasksGate  refreshGate
	statusLoop *loop
	tasksLoop  *loop

	toggling atomic.Bool
	adding   atomic.Bool

	mu          sync.RWMutex
	uiError     string
	onStatus    []func(models.SystemStatus)
	onStreamers []func([]models.Streamer)
}

// New creates a synchronizer. interval <= 0 defaults to 5s. Call Run to start polling.
func New(backend Backend, interval time.Duration, logger *zap.Logger) *Synchronizer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	root, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		backend:    backend,
		logger:     logger,
		root:       root,
		rootCancel: cancel,
	}
	st := models.DefaultSystemStatus()
	s.status.Store(&st)
	empty := []models.Streamer{}
	s.streamers.Store(&empty)

	s.statusLoop = newLoop("status", interval, func(ctx context.Context) { s.RefreshStatus(ctx) }, logger)
	s.tasksLoop = newLoop("tasks", interval, func(ctx context.Context) { s.RefreshTasks(ctx) }, logger)
	return s
}

// OnStatus registers a listener called after every status snapshot replace.
func (s *Synchronizer) OnStatus(fn func(models.SystemStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = append(s.onStatus, fn)
}

// OnStreamers registers a listener called after every collection replace.
func (s *Synchronizer) OnStreamers(fn func([]models.Streamer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStreamers = append(s.onStreamers, fn)
}

// Run starts both refresh loops. They fire immediately and then on every interval until ctx is
// done or Close is called.
func (s *Synchronizer) Run(ctx context.Context) {
	s.statusLoop.start(ctx)
	s.tasksLoop.start(ctx)
}

// Close stops both loops and cancels any refresh still talking to the backend.
func (s *Synchronizer) Close() {
	s.rootCancel()
	s.statusLoop.stop()
	s.tasksLoop.stop()
}

// RefreshStatus fetches the status once. Failures are absorbed: the snapshot becomes the safe default.
// If a status fetch is already in flight, no second request is issued; the call waits for one
// follow-up fetch instead (or until ctx is done).
func (s *Synchronizer) RefreshStatus(ctx context.Context) {
	wait(ctx, s.statusGate.do(s.fetchStatus))
}

// RefreshTasks fetches the task list once and replaces the whole collection. Failures leave an
// empty collection. Concurrent calls coalesce like RefreshStatus.
func (s *Synchronizer) RefreshTasks(ctx context.Context) {
	wait(ctx, s.tasksGate.do(s.fetchTasks))
}

func (s *Synchronizer) fetchStatus() {
	st, err := s.backend.Status(s.root)
	metrics.ObservePoll("status", err)
	if err != nil {
		s.logger.Debug("status refresh failed", zap.Error(err))
		st = models.DefaultSystemStatus()
	}
	s.status.Store(&st)
	s.statusAt.Store(time.Now().UnixNano())

	s.mu.RLock()
	listeners := s.onStatus
	s.mu.RUnlock()
	for _, fn := range listeners {
		s.notify("status", func() { fn(st) })
	}
}

func (s *Synchronizer) fetchTasks() {
	tasks, err := s.backend.Tasks(s.root)
	metrics.ObservePoll("tasks", err)
	list := []models.Streamer{}
	if err != nil {
		s.logger.Debug("task refresh failed", zap.Error(err))
	} else {
		list = models.MapTasks(tasks)
	}
	s.streamers.Store(&list)
	s.tasksAt.Store(time.Now().UnixNano())

	s.mu.RLock()
	listeners := s.onStreamers
	s.mu.RUnlock()
	for _, fn := range listeners {
		s.notify("streamers", func() { fn(list) })
	}
}

// AddStream validates and submits a new stream target, then refreshes the collection right away.
// Only the URL is required; a blank name becomes "Unknown".
func (s *Synchronizer) AddStream(ctx context.Context, name, url, platform string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrEmptyURL
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = models.UnknownName
	}
	if !s.adding.CompareAndSwap(false, true) {
		return ErrActionInFlight
	}
	defer s.adding.Store(false)

	s.setUIError("")
	task := models.NewTask{Name: name, URL: url, Platform: string(models.ParsePlatform(platform))}
	if _, err := s.backend.AddTask(ctx, task); err != nil {
		s.setUIError(msgAddFailed)
		s.logger.Warn("add stream failed", zap.String("url", url), zap.Error(err))
		return fmt.Errorf("add task: %w", err)
	}
	s.logger.Info("stream added", zap.String("name", name), zap.String("url", url), zap.String("platform", task.Platform))
	s.RefreshTasks(ctx)
	return nil
}

// ToggleRecorder starts the recorder if the last confirmed status says it is stopped, and stops it
// otherwise, then refreshes the status. The running flag only ever reflects backend-confirmed state.
func (s *Synchronizer) ToggleRecorder(ctx context.Context) (models.SystemStatus, error) {
	if !s.toggling.CompareAndSwap(false, true) {
		return s.Status(), ErrActionInFlight
	}
	defer s.toggling.Store(false)

	s.setUIError("")
	var err error
	if s.Status().RecorderRunning {
		_, err = s.backend.StopRecorder(ctx)
	} else {
		_, err = s.backend.StartRecorder(ctx)
	}
	if err != nil {
		s.setUIError(msgToggleFailed)
		s.logger.Warn("toggle recorder failed", zap.Error(err))
		return s.Status(), fmt.Errorf("toggle recorder: %w", err)
	}
	s.RefreshStatus(ctx)
	return s.Status(), nil
}

// Status returns the current status snapshot.
func (s *Synchronizer) Status() models.SystemStatus {
	return *s.status.Load()
}

// Streamers returns the current collection. The slice is shared and must not be modified.
func (s *Synchronizer) Streamers() []models.Streamer {
	return *s.streamers.Load()
}

// Streamer looks up one stream target by id in the current collection.
func (s *Synchronizer) Streamer(id string) (models.Streamer, bool) {
	for _, st := range s.Streamers() {
		if st.ID == id {
			return st, true
		}
	}
	return models.Streamer{}, false
}

// Filter returns the streamers matching query by name or platform.
func (s *Synchronizer) Filter(query string) []models.Streamer {
	return models.FilterStreamers(s.Streamers(), query)
}

// UIError returns the message of the last failed operator action, if any.
func (s *Synchronizer) UIError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uiError
}

// ClearUIError dismisses the operator-visible error.
func (s *Synchronizer) ClearUIError() { s.setUIError("") }

// Snapshot returns status, collection and error state together.
func (s *Synchronizer) Snapshot() Snapshot {
	return Snapshot{
		Status:    s.Status(),
		Streamers: s.Streamers(),
		UIError:   s.UIError(),
		StatusAt:  unixNanoTime(s.statusAt.Load()),
		TasksAt:   unixNanoTime(s.tasksAt.Load()),
	}
}

// notify runs one listener; a panicking listener is logged and does not abort the refresh.
func (s *Synchronizer) notify(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("listener panicked", zap.String("kind", kind), zap.Any("panic", r))
		}
	}()
	fn()
}

func (s *Synchronizer) setUIError(msg string) {
	s.mu.Lock()
	s.uiError = msg
	s.mu.Unlock()
}

func wait(ctx context.Context, ch <-chan struct{}) {
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

func unixNanoTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
