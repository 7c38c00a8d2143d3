package monitor

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/analysis"
	"github.com/finstream-guard/dashboard/internal/metrics"
	"github.com/finstream-guard/dashboard/internal/models"
)

// Event names published on a session's topic.
const (
	EventMessage       = "message"
	EventAnalysis      = "analysis"
	EventSessionClosed = "session_closed"
)

// Config controls session timing and buffer sizes.
type Config struct {
	TranscriptInterval time.Duration
	AnalysisInterval   time.Duration
	AnalysisTimeout    time.Duration
	MessageCapacity    int
	ChartCapacity      int
	ExcerptSize        int
	MinMessages        int
}

// DefaultConfig returns the standard session settings.
func DefaultConfig() Config {
	return Config{
		TranscriptInterval: 2 * time.Second,
		AnalysisInterval:   15 * time.Second,
		AnalysisTimeout:    30 * time.Second,
		MessageCapacity:    50,
		ChartCapacity:      20,
		ExcerptSize:        10,
		MinMessages:        6,
	}
}

// StreamerSource resolves the latest snapshot of a stream.
type StreamerSource interface {
	Streamer(id string) (models.Streamer, bool)
}

// Publisher fans events out to subscribers of a topic.
type Publisher interface {
	Publish(topic, event string, payload interface{})
}

// Hooks are optional callbacks into the rest of the server.
type Hooks struct {
	// OnAnalysis runs after every stored result, fallback included.
	OnAnalysis func(s *Session, res models.AnalysisResult)
	// OnEnd receives the session report once the session has stopped.
	OnEnd func(report models.SessionReport)
}

// Topic returns the realtime topic for a stream's session events.
func Topic(streamerID string) string { return "stream:" + streamerID }

// Session holds the transcript buffer and analysis state for one selected stream.
type Session struct {
	id         string
	streamerID string
	cfg        Config
	source     StreamerSource
	analyzer   analysis.Gateway
	feed       *Feed
	publisher  Publisher
	hooks      Hooks
	logger     *zap.Logger
	now        func() time.Time
	startedAt  time.Time

	mu        sync.RWMutex
	streamer  models.Streamer
	messages  *Window[models.ChatMessage]
	chart     *Window[models.ChartSample]
	current   *models.AnalysisResult
	analyzing atomic.Bool
	stopped   atomic.Bool

	// held shared while an analysis result is stored and delivered; Stop takes it exclusively
	// so no analysis event follows session_closed.
	delivery sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// View is a consistent copy of a session's state.
type View struct {
	SessionID string                 `json:"sessionId"`
	Streamer  models.Streamer        `json:"streamer"`
	Messages  []models.ChatMessage   `json:"messages"`
	Analysis  *models.AnalysisResult `json:"analysis"`
	Chart     []models.ChartSample   `json:"chart"`
	Analyzing bool                   `json:"analyzing"`
	StartedAt time.Time              `json:"startedAt"`
}

func newSession(st models.Streamer, cfg Config, source StreamerSource, analyzer analysis.Gateway, feed *Feed, pub Publisher, hooks Hooks, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         uuid.NewString(),
		streamerID: st.ID,
		cfg:        cfg,
		source:     source,
		analyzer:   analyzer,
		feed:       feed,
		publisher:  pub,
		hooks:      hooks,
		logger:     logger.With(zap.String("streamer_id", st.ID)),
		now:        time.Now,
		startedAt:  time.Now().UTC(),
		streamer:   st,
		messages:   NewWindow[models.ChatMessage](cfg.MessageCapacity),
		chart:      NewWindow[models.ChartSample](cfg.ChartCapacity),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *Session) start() {
	s.wg.Add(2)
	go s.every(s.cfg.TranscriptInterval, s.transcriptTick)
	go s.every(s.cfg.AnalysisInterval, s.analysisTick)
	s.logger.Info("monitor session started", zap.String("session_id", s.id))
}

func (s *Session) every(interval time.Duration, fn func()) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.safe(fn)
		}
	}
}

func (s *Session) safe(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("monitor tick panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

// ID is the session's own identifier, distinct from the stream id.
func (s *Session) ID() string { return s.id }

// StreamerID is the monitored stream's id.
func (s *Session) StreamerID() string { return s.streamerID }

// Streamer returns the most recent known snapshot of the monitored stream.
func (s *Session) Streamer() models.Streamer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source != nil {
		if st, ok := s.source.Streamer(s.streamerID); ok {
			s.streamer = st
		}
	}
	return s.streamer
}

func (s *Session) transcriptTick() {
	if s.Streamer().Status == models.StatusOffline {
		return
	}
	msg := s.feed.Next()

	s.mu.Lock()
	if s.stopped.Load() {
		s.mu.Unlock()
		return
	}
	s.messages.Push(msg)
	s.mu.Unlock()

	s.publish(EventMessage, msg)
}

func (s *Session) analysisTick() {
	s.mu.RLock()
	n := s.messages.Len()
	s.mu.RUnlock()
	if n < s.cfg.MinMessages {
		return
	}
	s.Analyze(s.ctx)
}

// Analyze runs one analysis over the newest buffered messages. It returns false without
// calling the gateway when another analysis is outstanding, the buffer is empty, or the
// session has stopped. Gateway failures store the fallback result.
func (s *Session) Analyze(ctx context.Context) bool {
	if s.stopped.Load() {
		return false
	}
	if !s.analyzing.CompareAndSwap(false, true) {
		metrics.ObserveAnalysis("skipped")
		return false
	}
	defer s.analyzing.Store(false)

	s.mu.RLock()
	recent := s.messages.Last(s.cfg.ExcerptSize)
	s.mu.RUnlock()
	if len(recent) == 0 {
		return false
	}
	texts := make([]string, len(recent))
	for i, m := range recent {
		texts[i] = m.Text
	}
	excerpt := strings.Join(texts, " ")
	subject := s.Streamer().Name

	callCtx, cancel := context.WithTimeout(s.ctx, s.cfg.AnalysisTimeout)
	stopAfter := context.AfterFunc(ctx, cancel)
	res, err := s.analyzer.Analyze(callCtx, excerpt, subject)
	stopAfter()
	cancel()

	result := "ok"
	if err != nil {
		s.logger.Warn("analysis failed, storing fallback", zap.Error(err))
		res = analysis.Fallback(s.now())
		result = "fallback"
	}

	s.delivery.RLock()
	defer s.delivery.RUnlock()
	if s.stopped.Load() {
		return false
	}

	s.mu.Lock()
	stored := res
	s.current = &stored
	s.chart.Push(models.ChartSample{
		Time:      s.now().Format("15:04:05"),
		Risk:      res.RiskScore,
		Sentiment: res.SentimentScore,
	})
	s.mu.Unlock()

	metrics.ObserveAnalysis(result)
	s.publish(EventAnalysis, res)
	if s.hooks.OnAnalysis != nil {
		s.hooks.OnAnalysis(s, res)
	}
	return true
}

// Analyzing reports whether an analysis call is outstanding.
func (s *Session) Analyzing() bool { return s.analyzing.Load() }

// Messages returns the buffered transcript, oldest first.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages.Items()
}

// Current returns the current analysis result, or nil before the first one.
func (s *Session) Current() *models.AnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	res := *s.current
	return &res
}

// Chart returns the risk and sentiment samples, oldest first.
func (s *Session) Chart() []models.ChartSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chart.Items()
}

// View returns a copy of all session state taken under one lock.
func (s *Session) View() View {
	st := s.Streamer()
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := View{
		SessionID: s.id,
		Streamer:  st,
		Messages:  s.messages.Items(),
		Chart:     s.chart.Items(),
		Analyzing: s.analyzing.Load(),
		StartedAt: s.startedAt,
	}
	if s.current != nil {
		res := *s.current
		v.Analysis = &res
	}
	return v
}

// Stop cancels both timers and waits for them to exit. The returned report reflects the
// buffers at the moment of stopping. Calling Stop again returns false.
func (s *Session) Stop() (models.SessionReport, bool) {
	if !s.stopped.CompareAndSwap(false, true) {
		return models.SessionReport{}, false
	}
	s.cancel()
	// wait out any analysis already delivering its result
	s.delivery.Lock()
	s.delivery.Unlock()
	s.wg.Wait()

	st := s.Streamer()
	s.mu.RLock()
	report := models.SessionReport{
		SessionID:  s.id,
		StreamerID: st.ID,
		Name:       st.Name,
		Platform:   st.Platform,
		StartedAt:  s.startedAt.UnixMilli(),
		EndedAt:    s.now().UnixMilli(),
		Messages:   s.messages.Items(),
		Chart:      s.chart.Items(),
	}
	if s.current != nil {
		res := *s.current
		report.Latest = &res
	}
	s.mu.RUnlock()

	s.publish(EventSessionClosed, map[string]string{"sessionId": s.id, "streamerId": s.streamerID})
	s.logger.Info("monitor session stopped", zap.String("session_id", s.id), zap.Int("messages", len(report.Messages)))
	return report, true
}

func (s *Session) publish(event string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(Topic(s.streamerID), event, payload)
}
