package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"
	xhtml "golang.org/x/net/html"

	"pagesmith/internal/html"
	"pagesmith/internal/resolver"
)

var (
	ErrNotLoaded     = errors.New("no document loaded")
	ErrNoSelection   = errors.New("no element selected")
	ErrNotSelectable = errors.New("element is not selectable")
)

// State of an editing session.
type State int

const (
	StateEmpty State = iota
	StateLoaded
	StateSelected
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateSelected:
		return "selected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Selection describes the element currently targeted for editing.
type Selection struct {
	Element html.Node
	Rule    Rule
	Panel   Panel
}

// Changes summarizes the difference between the last saved serialization
// and the current one, in runes.
type Changes struct {
	Insertions int  `json:"insertions"`
	Deletions  int  `json:"deletions"`
	Dirty      bool `json:"dirty"`
}

// Session is a direct-manipulation editor over one document at a time.
// All methods are safe for concurrent use; autosave timers and the save
// worker synchronize on the same lock as host calls.
type Session struct {
	mu       sync.Mutex
	opts     Options
	log      *zap.Logger
	parser   html.Parser
	resolver *resolver.Resolver

	state    State
	doc      html.Document
	ctrl     *controller
	bind     *binding
	selected *record
	rule     Rule

	dirty bool
	seq   uint64 // edit counter
	gen   uint64 // document counter
	tick  uint64 // autosave timer counter
	timer Timer

	queue *saveQueue
	saved string
}

// New creates an empty session.
func New(opts Options) *Session {
	opts = opts.withDefaults()
	log := opts.Logger.Named("editor")
	return &Session{
		opts:     opts,
		log:      log,
		parser:   html.NewParser(),
		resolver: resolver.New(log),
	}
}

// Load mounts content, tearing down any previous document first.
func (s *Session) Load(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEmpty {
		// teardown failures are logged by the controller and must not keep
		// the new document from loading
		_ = s.teardown()
	}
	s.gen++

	doc, err := s.parser.Parse(content)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	s.doc = doc
	s.ctrl = newController(doc, s.log)
	s.bind = s.mount()
	s.state = StateLoaded
	s.dirty = false
	if s.queue == nil {
		s.queue = newSaveQueue(s.process)
	}
	if s.saved, err = s.serialize(); err != nil {
		s.log.Debug("No baseline serialization", zap.Error(err))
	}

	s.log.Debug("Document loaded", zap.Uint64("generation", s.gen), zap.Int("listeners", s.bind.count()))
	return nil
}

// mount wires listeners and the pointer affordance on every interactive
// element.
func (s *Session) mount() *binding {
	b := newBinding()
	for _, n := range interactive(s.doc) {
		rec := s.ctrl.record(n)
		if err := s.ctrl.setOverlay(rec, affordance); err != nil {
			s.log.Debug("Unable to mark element", zap.String("tag", n.Data), zap.Error(err))
		}
		b.on(n, EventClick, s.onClick)
		b.on(n, EventPointerEnter, s.onPointerEnter)
		b.on(n, EventPointerLeave, s.onPointerLeave)
		b.on(n, EventDragStart, func(ev *Event) { ev.PreventDefault() })
	}
	return b
}

func (s *Session) onClick(ev *Event) {
	ev.PreventDefault()
	ev.StopPropagation()

	target, rule := ResolveTarget(ev.Current)
	s.selectNode(target, rule)
}

func (s *Session) onPointerEnter(ev *Event) {
	rec := s.ctrl.record(ev.Current)
	if rec == s.selected {
		return
	}
	if err := s.ctrl.setOverlay(rec, s.opts.Overlay.hover()...); err != nil {
		s.log.Debug("Hover overlay failed", zap.Error(err))
	}
}

func (s *Session) onPointerLeave(ev *Event) {
	rec := s.ctrl.record(ev.Current)
	if rec == s.selected {
		return
	}
	if err := s.ctrl.clearOverlay(rec, decorations...); err != nil {
		s.log.Debug("Hover overlay not cleared", zap.Error(err))
	}
}

// selectNode moves the selection to n. The previous element loses its
// overlay before n gets one.
func (s *Session) selectNode(n *xhtml.Node, rule Rule) {
	rec := s.ctrl.record(n)
	if s.selected != nil && s.selected != rec {
		if err := s.ctrl.clearOverlay(s.selected, decorations...); err != nil {
			s.log.Debug("Selection overlay not cleared", zap.Error(err))
		}
	}
	if err := s.ctrl.clearOverlay(rec, decorations...); err != nil {
		s.log.Debug("Hover overlay not cleared", zap.Error(err))
	}
	if err := s.ctrl.setOverlay(rec, s.opts.Overlay.selected()...); err != nil {
		s.log.Debug("Selection overlay failed", zap.Error(err))
	}

	s.selected = rec
	s.rule = rule
	s.state = StateSelected
}

func (s *Session) dispatch(t EventType, target html.Node) (bool, error) {
	if s.state == StateEmpty {
		return false, ErrNotLoaded
	}
	if target == nil || target.Raw() == nil || !html.Contains(s.doc.Root().Raw(), target.Raw()) {
		return false, ErrNotSelectable
	}
	return s.bind.dispatch(&Event{Type: t, Target: target.Raw()}), nil
}

// Click delivers a click on target and returns the resulting selection.
func (s *Session) Click(target html.Node) (*Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.dispatch(EventClick, target); err != nil {
		return nil, err
	}
	return s.selection(), nil
}

// PointerEnter delivers a pointer entering target.
func (s *Session) PointerEnter(target html.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.dispatch(EventPointerEnter, target)
	return err
}

// PointerLeave delivers a pointer leaving target.
func (s *Session) PointerLeave(target html.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.dispatch(EventPointerLeave, target)
	return err
}

// DragStart reports whether a native drag may begin on target.
func (s *Session) DragStart(target html.Node) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dispatch(EventDragStart, target)
}

// Select targets n directly, bypassing click resolution.
func (s *Session) Select(n html.Node) (*Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEmpty {
		return nil, ErrNotLoaded
	}
	if n == nil || n.Raw() == nil || !s.bind.bound(n.Raw()) {
		return nil, ErrNotSelectable
	}
	s.selectNode(n.Raw(), RuleExplicit)
	return s.selection(), nil
}

// Selection returns the current selection or nil.
func (s *Session) Selection() *Selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selection()
}

func (s *Session) selection() *Selection {
	if s.state != StateSelected || s.selected == nil {
		return nil
	}
	return &Selection{
		Element: s.selected.node,
		Rule:    s.rule,
		Panel:   s.panel(s.selected, s.rule),
	}
}

func (s *Session) current() (*record, error) {
	switch {
	case s.state == StateEmpty:
		return nil, ErrNotLoaded
	case s.state != StateSelected || s.selected == nil:
		return nil, ErrNoSelection
	}
	return s.selected, nil
}

// Panel returns the edit state of the selection.
func (s *Session) Panel() (Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.current()
	if err != nil {
		return Panel{}, err
	}
	return s.panel(rec, s.rule), nil
}

// EditText replaces the selection's content with text. Newlines become line
// breaks; any other markup inside the element is discarded.
func (s *Session) EditText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.current()
	if err != nil {
		return err
	}

	root := rec.node.Raw()
	var detached []*xhtml.Node
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == xhtml.ElementNode {
				detached = append(detached, c)
				walk(c)
			}
		}
	}
	walk(root)
	for _, n := range detached {
		s.bind.unbind(n)
		if err := s.ctrl.forget(n); err != nil {
			s.log.Debug("Detached rule not removed", zap.Error(err))
		}
	}

	html.SetPlainText(root, text)
	s.touch()
	return nil
}

// ApplyStyle sets property on the selection. property may be given in
// script form (fontSize) or CSS form (font-size).
func (s *Session) ApplyStyle(property, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.current()
	if err != nil {
		return err
	}
	if err := s.ctrl.applyStyle(rec, property, value); err != nil {
		return fmt.Errorf("failed to apply %s: %w", property, err)
	}
	s.touch()
	return nil
}

// ToggleBold switches the selection between bold and normal weight.
func (s *Session) ToggleBold() error {
	return s.toggle("font-weight", func(current string) string {
		if isBold(current) {
			return "normal"
		}
		return "bold"
	})
}

// ToggleItalic switches the selection between italic and normal style.
func (s *Session) ToggleItalic() error {
	return s.toggle("font-style", func(current string) string {
		if current == "italic" {
			return "normal"
		}
		return "italic"
	})
}

// ToggleUnderline switches the selection's underline on or off.
func (s *Session) ToggleUnderline() error {
	return s.toggle("text-decoration", func(current string) string {
		if styleActive("text-decoration", current, "underline") {
			return "none"
		}
		return "underline"
	})
}

func (s *Session) toggle(property string, next func(current string) string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.current()
	if err != nil {
		return err
	}
	sheet, err := s.resolver.Stylesheet(s.doc)
	if err != nil {
		return err
	}
	if err := s.ctrl.applyStyle(rec, property, next(s.styleValue(rec, property, sheet))); err != nil {
		return fmt.Errorf("failed to toggle %s: %w", property, err)
	}
	s.touch()
	return nil
}

// IsStyleActive reports whether the selection currently shows value for
// property. False without a selection.
func (s *Session) IsStyleActive(property, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.current()
	if err != nil {
		return false
	}
	sheet, err := s.resolver.Stylesheet(s.doc)
	if err != nil {
		return false
	}
	return styleActive(property, s.styleValue(rec, property, sheet), value)
}

// Deselect clears the selection. A pending autosave stays scheduled.
func (s *Session) Deselect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.current()
	if err != nil {
		return err
	}
	if err := s.ctrl.clearOverlay(rec, decorations...); err != nil {
		s.log.Debug("Selection overlay not cleared", zap.Error(err))
	}
	s.selected = nil
	s.rule = 0
	s.state = StateLoaded
	return nil
}

// touch records an edit and restarts the autosave debounce.
func (s *Session) touch() {
	s.dirty = true
	s.seq++
	if s.opts.autosave() {
		s.schedule()
	}
}

func (s *Session) schedule() {
	s.stopTimer()
	tick := s.tick
	s.timer = s.opts.Clock.AfterFunc(s.opts.AutosaveDelay, func() { s.autosave(tick) })
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.tick++
}

// autosave runs when the debounce timer fires. A timer that was replaced
// or belongs to a torn down document does nothing.
func (s *Session) autosave(tick uint64) {
	s.mu.Lock()
	if tick != s.tick || s.timer == nil || s.state == StateEmpty {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	job, err := s.snapshot(false)
	q := s.queue
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("Autosave skipped", zap.Error(err))
		return
	}
	q.push(job)
}

// snapshot captures the current serialization as a save job. Callers hold
// s.mu.
func (s *Session) snapshot(explicit bool) (*saveJob, error) {
	content, err := s.serialize()
	if err != nil {
		return nil, err
	}
	return &saveJob{
		gen:     s.gen,
		seq:     s.seq,
		id:      s.opts.PersistenceID,
		html:    content,
		persist: s.opts.persists(explicit),
	}, nil
}

// process runs on the save worker: persist, notify the host, then clear
// dirty if nothing was edited in the meantime. A job whose queue was
// cancelled before it ran is dropped without notifying the host.
func (s *Session) process(queue context.Context, job *saveJob) {
	if job.barrier {
		job.done <- nil
		return
	}

	ctx := queue
	if job.ctx != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(job.ctx)
		release := context.AfterFunc(queue, cancel)
		defer release()
		defer cancel()
	}

	var err error
	if err = ctx.Err(); err != nil {
		s.log.Debug("Save cancelled", zap.String("id", job.id), zap.Error(err))
		if job.done != nil {
			job.done <- err
		}
		return
	}
	if job.persist {
		if err = s.persist(ctx, job); err != nil {
			s.log.Warn("Persistence failed", zap.String("id", job.id), zap.Error(err))
		}
	}
	if s.opts.OnSave != nil {
		s.opts.OnSave(job.html)
	}

	s.mu.Lock()
	if err == nil && job.gen == s.gen {
		s.saved = job.html
		if job.seq == s.seq {
			s.dirty = false
		}
	}
	s.mu.Unlock()

	if job.done != nil {
		job.done <- err
	}
}

func (s *Session) persist(ctx context.Context, job *saveJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("persister panic: %v", r)
		}
	}()
	return s.opts.Persister.Persist(ctx, job.id, job.html)
}

// Save serializes the document and hands it to the host, cancelling any
// pending autosave, and waits for the save to finish. Unlike autosave,
// which only logs persistence failures, Save returns them; the session
// stays usable and dirty.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateEmpty {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	s.stopTimer()
	job, err := s.snapshot(true)
	q := s.queue
	s.mu.Unlock()
	if err != nil {
		return err
	}

	job.ctx = ctx
	job.done = make(chan error, 1)
	return s.wait(ctx, q, job)
}

// Flush waits until every queued save has been processed.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		return nil
	}
	return s.wait(ctx, q, &saveJob{barrier: true, done: make(chan error, 1)})
}

func (s *Session) wait(ctx context.Context, q *saveQueue, job *saveJob) error {
	if !q.push(job) {
		return ErrNotLoaded
	}
	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serialize renders the document without overlay decorations. Callers
// hold s.mu.
func (s *Session) serialize() (string, error) {
	return s.ctrl.withoutOverlay(s.doc.HTML)
}

// HTML returns the current serialization.
func (s *Session) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEmpty {
		return "", ErrNotLoaded
	}
	return s.serialize()
}

// Changes diffs the current serialization against the last saved one.
func (s *Session) Changes() (Changes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEmpty {
		return Changes{}, ErrNotLoaded
	}
	current, err := s.serialize()
	if err != nil {
		return Changes{}, err
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(s.saved, current, false))

	changes := Changes{Dirty: s.dirty}
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			changes.Insertions += utf8.RuneCountInString(d.Text)
		case diffmatchpatch.DiffDelete:
			changes.Deletions += utf8.RuneCountInString(d.Text)
		}
	}
	return changes, nil
}

// Find returns the first element of the document matching selector.
func (s *Session) Find(selector string) (html.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEmpty {
		return nil, ErrNotLoaded
	}
	return s.doc.QuerySelector(selector)
}

// Unmount tears the session down and returns it to Empty. In-flight and
// queued saves are cancelled rather than awaited. Calling it again does
// nothing.
func (s *Session) Unmount() error {
	s.mu.Lock()
	if s.state == StateEmpty && s.queue == nil {
		s.mu.Unlock()
		return nil
	}
	var err error
	if s.state != StateEmpty {
		err = s.teardown()
	}
	s.gen++
	q := s.queue
	s.queue = nil
	s.mu.Unlock()

	if q != nil {
		q.close()
	}
	if s.opts.OnUnmount != nil {
		s.opts.OnUnmount()
	}
	s.log.Debug("Session unmounted")
	return err
}

// teardown cancels the pending autosave, releases listeners, overlays,
// identifiers and injected rules, and clears the selection. Callers hold
// s.mu.
func (s *Session) teardown() error {
	s.stopTimer()

	released := s.bind.dispose()
	err := s.ctrl.teardown()

	s.selected = nil
	s.rule = 0
	s.doc = nil
	s.ctrl = nil
	s.bind = nil
	s.state = StateEmpty

	s.log.Debug("Document torn down", zap.Int("listeners", released))
	return err
}

// Dirty reports whether there are edits not yet saved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dirty
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Listeners returns the number of attached listeners.
func (s *Session) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bind == nil {
		return 0
	}
	return s.bind.count()
}

// InjectedRules returns the number of injected style rule nodes.
func (s *Session) InjectedRules() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl == nil {
		return 0
	}
	return s.ctrl.injectedRules()
}

// AutosavePending reports whether an autosave timer is armed.
func (s *Session) AutosavePending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.timer != nil
}
