package editor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"pagesmith/internal/html"
)

// manualClock fires timers only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer

	// ignoreStop makes Stop fail as if the timer had already fired
	ignoreStop bool
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.stopped || t.fired || t.clock.ignoreStop {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every timer that came due, earliest
// first.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Pending counts timers neither stopped nor fired.
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type persistCall struct {
	id, html string
	at       time.Duration
}

// recordingPersister remembers every call and can be told to fail.
type recordingPersister struct {
	mu    sync.Mutex
	clock *manualClock
	calls []persistCall
	fail  error
}

func (p *recordingPersister) Persist(_ context.Context, id, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var at time.Duration
	if p.clock != nil {
		p.clock.mu.Lock()
		at = p.clock.now
		p.clock.mu.Unlock()
	}
	p.calls = append(p.calls, persistCall{id: id, html: content, at: at})
	return p.fail
}

func (p *recordingPersister) Calls() []persistCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]persistCall(nil), p.calls...)
}

func (p *recordingPersister) SetFail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fail = err
}

var errUnavailable = errors.New("store unavailable")

func loaded(t *testing.T, opts Options, content string) *Session {
	t.Helper()
	s := New(opts)
	if err := s.Load(content); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { _ = s.Unmount() })
	return s
}

func find(t *testing.T, s *Session, selector string) html.Node {
	t.Helper()
	n, err := s.Find(selector)
	if err != nil {
		t.Fatalf("Find(%q): %v", selector, err)
	}
	return n
}

func flush(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func styleAttr(n html.Node) string {
	v, _ := n.Attr("style")
	return v
}
