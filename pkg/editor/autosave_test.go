package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAutosave_Debounce(t *testing.T) {
	clock := &manualClock{}
	persister := &recordingPersister{clock: clock}
	s := loaded(t, Options{
		AutosaveEnabled: true,
		PersistenceID:   "comp_42",
		Persister:       persister,
		Clock:           clock,
	}, `<p>start</p>`)

	if _, err := s.Click(find(t, s, "p")); err != nil {
		t.Fatal(err)
	}
	if err := s.EditText("first"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(200 * time.Millisecond)
	if err := s.EditText("second"); err != nil {
		t.Fatal(err)
	}
	if n := clock.Pending(); n != 1 {
		t.Fatalf("%d timers armed, want 1", n)
	}

	clock.Advance(999 * time.Millisecond)
	flush(t, s)
	if n := len(persister.Calls()); n != 0 {
		t.Fatalf("persisted %d times before the quiet period ended", n)
	}

	clock.Advance(time.Millisecond)
	flush(t, s)

	calls := persister.Calls()
	if len(calls) != 1 {
		t.Fatalf("persisted %d times, want 1", len(calls))
	}
	if calls[0].at != 1200*time.Millisecond {
		t.Errorf("persisted at %v, want 1.2s", calls[0].at)
	}
	if calls[0].id != "comp_42" {
		t.Errorf("id = %q", calls[0].id)
	}
	if !strings.Contains(calls[0].html, "<p>second</p>") {
		t.Errorf("persisted stale content:\n%s", calls[0].html)
	}
	if s.Dirty() || s.AutosavePending() {
		t.Errorf("dirty=%v pending=%v after autosave", s.Dirty(), s.AutosavePending())
	}
}

func TestAutosave_FailureKeepsDirty(t *testing.T) {
	clock := &manualClock{}
	persister := &recordingPersister{clock: clock}
	persister.SetFail(errUnavailable)

	var notified int
	var mu sync.Mutex
	s := loaded(t, Options{
		AutosaveEnabled: true,
		PersistenceID:   "comp_1",
		Persister:       persister,
		Clock:           clock,
		OnSave: func(string) {
			mu.Lock()
			notified++
			mu.Unlock()
		},
	}, `<p>x</p>`)

	if _, err := s.Click(find(t, s, "p")); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyStyle("color", "red"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Second)
	flush(t, s)

	if n := len(persister.Calls()); n != 1 {
		t.Fatalf("persisted %d times", n)
	}
	if !s.Dirty() {
		t.Error("failed persistence must keep the session dirty")
	}
	if s.State() != StateSelected {
		t.Errorf("state = %v", s.State())
	}

	if err := s.Save(context.Background()); !errors.Is(err, errUnavailable) {
		t.Errorf("Save = %v, want %v", err, errUnavailable)
	}

	persister.SetFail(nil)
	if err := s.ApplyStyle("color", "blue"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Second)
	flush(t, s)

	calls := persister.Calls()
	if len(calls) != 3 {
		t.Fatalf("persisted %d times, want 3", len(calls))
	}
	if !strings.Contains(calls[2].html, "color: blue !important") {
		t.Errorf("retry content:\n%s", calls[2].html)
	}
	if s.Dirty() {
		t.Error("successful retry should clear dirty")
	}

	mu.Lock()
	defer mu.Unlock()
	if notified != 3 {
		t.Errorf("OnSave called %d times, want 3", notified)
	}
}

func TestAutosave_EditDuringSaveKeepsDirty(t *testing.T) {
	clock := &manualClock{}
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	persister := PersisterFunc(func(context.Context, string, string) error {
		started <- struct{}{}
		<-release
		return nil
	})
	s := loaded(t, Options{
		AutosaveEnabled: true,
		PersistenceID:   "comp_1",
		Persister:       persister,
		Clock:           clock,
	}, `<p>x</p>`)

	if _, err := s.Click(find(t, s, "p")); err != nil {
		t.Fatal(err)
	}
	if err := s.EditText("one"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Second)
	<-started

	if err := s.EditText("two"); err != nil {
		t.Fatal(err)
	}
	release <- struct{}{}
	flush(t, s)

	if !s.Dirty() {
		t.Error("an edit made while saving must keep the session dirty")
	}
	if !s.AutosavePending() {
		t.Error("the later edit should have its own autosave armed")
	}

	clock.Advance(time.Second)
	<-started
	release <- struct{}{}
	flush(t, s)
	if s.Dirty() {
		t.Error("second autosave should clear dirty")
	}
}

func TestAutosave_StaleTimerDoesNothing(t *testing.T) {
	tests := []struct {
		name   string
		after  func(t *testing.T, s *Session)
		closed bool
	}{
		{
			name: "unmount",
			after: func(t *testing.T, s *Session) {
				if err := s.Unmount(); err != nil {
					t.Fatal(err)
				}
			},
			closed: true,
		},
		{
			name: "reload",
			after: func(t *testing.T, s *Session) {
				if err := s.Load(`<p>other</p>`); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "explicit save",
			after: func(t *testing.T, s *Session) {
				if err := s.Save(context.Background()); err != nil {
					t.Fatal(err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &manualClock{ignoreStop: true}
			persister := &recordingPersister{clock: clock}
			s := loaded(t, Options{
				AutosaveEnabled: true,
				PersistenceID:   "comp_1",
				Persister:       persister,
				Clock:           clock,
			}, `<p>x</p>`)

			if _, err := s.Click(find(t, s, "p")); err != nil {
				t.Fatal(err)
			}
			if err := s.EditText("edited"); err != nil {
				t.Fatal(err)
			}
			tt.after(t, s)
			before := len(persister.Calls())

			// the timer could not be stopped and fires anyway
			clock.Advance(time.Second)
			if !tt.closed {
				flush(t, s)
			}
			if got := len(persister.Calls()); got != before {
				t.Errorf("stale timer persisted %d times", got-before)
			}
		})
	}
}

func TestAutosave_Disabled(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"autosave off", Options{PersistenceID: "comp_1"}},
		{"no identifier", Options{AutosaveEnabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &manualClock{}
			persister := &recordingPersister{}
			tt.opts.Clock = clock
			tt.opts.Persister = persister

			var saved []string
			tt.opts.OnSave = func(h string) { saved = append(saved, h) }

			s := loaded(t, tt.opts, `<p>x</p>`)
			if _, err := s.Click(find(t, s, "p")); err != nil {
				t.Fatal(err)
			}
			if err := s.EditText("y"); err != nil {
				t.Fatal(err)
			}
			if s.AutosavePending() || clock.Pending() != 0 {
				t.Fatal("no autosave should be armed")
			}

			if err := s.Save(context.Background()); err != nil {
				t.Fatal(err)
			}
			if len(saved) != 1 || !strings.Contains(saved[0], "<p>y</p>") {
				t.Errorf("OnSave got %q", saved)
			}
			if n := len(persister.Calls()); n != 0 {
				t.Errorf("persister called %d times", n)
			}
			if s.Dirty() {
				t.Error("save should clear dirty")
			}
		})
	}
}

func TestAutosave_PersisterPanic(t *testing.T) {
	s := loaded(t, Options{
		AutosaveEnabled: true,
		PersistenceID:   "comp_1",
		Clock:           &manualClock{},
		Persister: PersisterFunc(func(context.Context, string, string) error {
			panic("boom")
		}),
	}, `<p>x</p>`)

	if _, err := s.Click(find(t, s, "p")); err != nil {
		t.Fatal(err)
	}
	if err := s.EditText("y"); err != nil {
		t.Fatal(err)
	}
	err := s.Save(context.Background())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Save = %v", err)
	}
	if !s.Dirty() {
		t.Error("session should stay dirty")
	}
	if err := s.EditText("z"); err != nil {
		t.Errorf("session unusable after panic: %v", err)
	}
}

func TestSaveQueue_FIFO(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	q := newSaveQueue(func(_ context.Context, job *saveJob) {
		mu.Lock()
		got = append(got, job.id)
		mu.Unlock()
		if job.done != nil {
			job.done <- nil
		}
	})

	want := []string{"a", "b", "c", "d", "e"}
	for _, id := range want {
		if !q.push(&saveJob{id: id}) {
			t.Fatalf("push(%s) refused", id)
		}
	}
	q.close()

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(got, "") != strings.Join(want, "") {
		t.Errorf("order = %v, want %v", got, want)
	}
	if q.push(&saveJob{id: "late"}) {
		t.Error("push after close should be refused")
	}
	q.close()
}

func TestSaveQueue_OneAtATime(t *testing.T) {
	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	q := newSaveQueue(func(context.Context, *saveJob) {
		mu.Lock()
		running++
		peak = max(peak, running)
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.push(&saveJob{})
		}()
	}
	wg.Wait()
	q.close()

	if peak != 1 {
		t.Errorf("%d jobs ran concurrently", peak)
	}
}

// blockingPersister holds every call until released or cancelled.
type blockingPersister struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingPersister() *blockingPersister {
	return &blockingPersister{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (p *blockingPersister) Persist(ctx context.Context, _, _ string) error {
	p.started <- struct{}{}
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func returnsWithin(t *testing.T, d time.Duration, what string, fn func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		t.Fatalf("%s still blocked after %v", what, d)
		return nil
	}
}

func TestAutosave_InFlightDoesNotBlockTeardown(t *testing.T) {
	tests := []struct {
		name string
		op   func(s *Session) error
	}{
		{"unmount", func(s *Session) error { return s.Unmount() }},
		{"reload", func(s *Session) error { return s.Load(`<p>next</p>`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &manualClock{}
			persister := newBlockingPersister()
			defer close(persister.release)
			s := loaded(t, Options{
				AutosaveEnabled: true,
				PersistenceID:   "comp_1",
				Persister:       persister,
				Clock:           clock,
			}, `<p>start</p>`)

			if _, err := s.Click(find(t, s, "p")); err != nil {
				t.Fatal(err)
			}
			if err := s.EditText("edited"); err != nil {
				t.Fatal(err)
			}
			clock.Advance(time.Second)
			select {
			case <-persister.started:
			case <-time.After(2 * time.Second):
				t.Fatal("autosave never reached the persister")
			}

			if err := returnsWithin(t, 2*time.Second, tt.name, func() error { return tt.op(s) }); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestUnmount_DropsQueuedSaves(t *testing.T) {
	clock := &manualClock{}
	persister := newBlockingPersister()
	defer close(persister.release)
	var (
		mu    sync.Mutex
		saves int
	)
	s := loaded(t, Options{
		AutosaveEnabled: true,
		PersistenceID:   "comp_1",
		Persister:       persister,
		OnSave: func(string) {
			mu.Lock()
			saves++
			mu.Unlock()
		},
		Clock: clock,
	}, `<p>start</p>`)

	if _, err := s.Click(find(t, s, "p")); err != nil {
		t.Fatal(err)
	}
	if err := s.EditText("one"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Second)
	<-persister.started
	if err := s.EditText("two"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Second)

	if err := returnsWithin(t, 2*time.Second, "unmount", s.Unmount); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	// the in-flight save still notifies the host; the queued one is dropped
	if saves > 1 {
		t.Errorf("host notified %d times after unmount", saves)
	}
	if s.State() != StateEmpty {
		t.Errorf("state = %v", s.State())
	}
}

func TestSave_PersistOnSave(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		persist bool
	}{
		{"manual sessions keep saves local", Options{PersistenceID: "comp_1"}, false},
		{"persist on save", Options{PersistenceID: "comp_1", PersistOnSave: true}, true},
		{"needs an id", Options{PersistOnSave: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			persister := &recordingPersister{}
			tt.opts.Persister = persister
			s := loaded(t, tt.opts, `<p>start</p>`)
			if _, err := s.Click(find(t, s, "p")); err != nil {
				t.Fatal(err)
			}
			if err := s.EditText("saved"); err != nil {
				t.Fatal(err)
			}
			if s.AutosavePending() {
				t.Fatal("explicit persistence must not arm autosave")
			}

			persister.SetFail(errUnavailable)
			err := s.Save(context.Background())
			if tt.persist != errors.Is(err, errUnavailable) {
				t.Fatalf("Save = %v", err)
			}
			if s.Dirty() != tt.persist {
				t.Errorf("dirty after failed persistence = %v", s.Dirty())
			}

			persister.SetFail(nil)
			if err := s.Save(context.Background()); err != nil {
				t.Fatal(err)
			}
			if s.Dirty() {
				t.Error("successful save should clear dirty")
			}
			if got := len(persister.Calls()); (got > 0) != tt.persist {
				t.Errorf("%d persistence calls", got)
			}
		})
	}
}
