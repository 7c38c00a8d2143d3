package monitor

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/analysis"
	"github.com/finstream-guard/dashboard/internal/metrics"
	"github.com/finstream-guard/dashboard/internal/models"
)

// ErrUnknownStream is returned when selecting an id the collection does not contain.
var ErrUnknownStream = errors.New("stream not found")

// Controller owns at most one active session. Changing the selection stops the previous
// session, including both of its timers, before the next one starts.
type Controller struct {
	cfg       Config
	source    StreamerSource
	analyzer  analysis.Gateway
	publisher Publisher
	hooks     Hooks
	logger    *zap.Logger
	newFeed   func() *Feed

	mu      sync.Mutex
	current *Session
}

// NewController creates a controller. publisher may be nil.
func NewController(cfg Config, source StreamerSource, analyzer analysis.Gateway, publisher Publisher, hooks Hooks, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:       cfg,
		source:    source,
		analyzer:  analyzer,
		publisher: publisher,
		hooks:     hooks,
		logger:    logger,
		newFeed:   func() *Feed { return NewFeed(time.Now().UnixNano()) },
	}
}

// Select makes id the monitored stream. Selecting the already active stream keeps its session.
func (c *Controller) Select(id string) (*Session, error) {
	st, ok := c.source.Streamer(id)
	if !ok {
		return nil, ErrUnknownStream
	}

	c.mu.Lock()
	if c.current != nil && c.current.StreamerID() == id {
		sess := c.current
		c.mu.Unlock()
		return sess, nil
	}
	prev := c.current
	c.current = nil
	report, ended := c.stop(prev)

	sess := newSession(st, c.cfg, c.source, c.analyzer, c.newFeed(), c.publisher, c.hooks, c.logger)
	sess.start()
	c.current = sess
	metrics.Init()
	metrics.SessionsActive.Set(1)
	c.mu.Unlock()

	if ended {
		c.emit(report)
	}
	return sess, nil
}

// Clear stops the active session, if any.
func (c *Controller) Clear() {
	c.mu.Lock()
	prev := c.current
	c.current = nil
	report, ended := c.stop(prev)
	c.mu.Unlock()

	if ended {
		metrics.Init()
		metrics.SessionsActive.Set(0)
		c.emit(report)
	}
}

// Current returns the active session or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Reconcile clears the active session when its stream is no longer in the collection.
func (c *Controller) Reconcile(streamers []models.Streamer) {
	sess := c.Current()
	if sess == nil {
		return
	}
	for _, st := range streamers {
		if st.ID == sess.StreamerID() {
			return
		}
	}
	c.logger.Info("selected stream left the collection, clearing session", zap.String("streamer_id", sess.StreamerID()))

	c.mu.Lock()
	if c.current != sess {
		c.mu.Unlock()
		return
	}
	c.current = nil
	report, ended := c.stop(sess)
	c.mu.Unlock()

	if ended {
		metrics.Init()
		metrics.SessionsActive.Set(0)
		c.emit(report)
	}
}

// Close stops the active session during shutdown.
func (c *Controller) Close() { c.Clear() }

func (c *Controller) stop(sess *Session) (models.SessionReport, bool) {
	if sess == nil {
		return models.SessionReport{}, false
	}
	return sess.Stop()
}

func (c *Controller) emit(report models.SessionReport) {
	if c.hooks.OnEnd != nil {
		c.hooks.OnEnd(report)
	}
}
