package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// loop runs fn immediately and then every interval until stopped. Each loop owns its own
// cancellation so the status and task refreshes never share fate.
type loop struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newLoop(name string, interval time.Duration, fn func(ctx context.Context), logger *zap.Logger) *loop {
	return &loop{name: name, interval: interval, fn: fn, logger: logger}
}

func (l *loop) start(parent context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
	l.logger.Info("poll loop started", zap.String("loop", l.name), zap.Duration("interval", l.interval))
}

func (l *loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
	<-l.done
	l.logger.Info("poll loop stopped", zap.String("loop", l.name))
}

func (l *loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *loop) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("poll tick panicked", zap.String("loop", l.name), zap.Any("panic", r))
		}
	}()
	l.fn(ctx)
}
