package poller

import "sync"

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// refreshGate serializes one kind of refresh. A call arriving while a refresh is in flight does not
// start a second request; it schedules a single follow-up run (shared by every caller that arrives
// meanwhile) and gets a channel that is closed once that follow-up has completed.
type refreshGate struct {
	mu      sync.Mutex
	running bool
	pending chan struct{}
}

func (g *refreshGate) do(fn func()) <-chan struct{} {
	g.mu.Lock()
	if g.running {
		if g.pending == nil {
			g.pending = make(chan struct{})
		}
		ch := g.pending
		g.mu.Unlock()
		return ch
	}
	g.running = true
	g.mu.Unlock()

	var finished chan struct{}
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		// fn panicked: release the run in progress and everyone queued behind it, then reopen the gate.
		g.mu.Lock()
		if finished != nil {
			close(finished)
		}
		if g.pending != nil {
			close(g.pending)
			g.pending = nil
		}
		g.running = false
		g.mu.Unlock()
		panic(r)
	}()
	for {
		fn()
		if finished != nil {
			close(finished)
			finished = nil
		}
		g.mu.Lock()
		finished = g.pending
		g.pending = nil
		if finished == nil {
			g.running = false
			g.mu.Unlock()
			return closedCh
		}
		g.mu.Unlock()
	}
}
