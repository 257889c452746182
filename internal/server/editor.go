package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"pagesmith/internal/config"
	"pagesmith/internal/html"
	"pagesmith/internal/sanitize"
	"pagesmith/internal/store"
	"pagesmith/pkg/editor"
)

var (
	errSessionNotFound = errors.New("editor session not found")
	errTooManySessions = errors.New("too many editor sessions")
)

// session is one live editor bound to an optional stored component.
type session struct {
	id          string
	componentID string
	autosave    bool
	ed          *editor.Session

	used time.Time // guarded by sessions.mu
}

type sessionView struct {
	ID          string `json:"id"`
	ComponentID string `json:"componentId,omitempty"`
	Autosave    bool   `json:"autosave"`
	State       string `json:"state"`
	Listeners   int    `json:"listeners"`
	Dirty       bool   `json:"dirty"`
}

func (ss *session) view() sessionView {
	return sessionView{
		ID:          ss.id,
		ComponentID: ss.componentID,
		Autosave:    ss.autosave,
		State:       ss.ed.State().String(),
		Listeners:   ss.ed.Listeners(),
		Dirty:       ss.ed.Dirty(),
	}
}

// shutdown saves pending autosave edits, then flushes and unmounts.
func (ss *session) shutdown(ctx context.Context) error {
	var err error
	if ss.autosave && ss.ed.Dirty() {
		err = multierr.Append(err, ss.ed.Save(ctx))
	}
	err = multierr.Append(err, ss.ed.Flush(ctx))
	return multierr.Append(err, ss.ed.Unmount())
}

// sessions is the registry of open editors. Idle sessions are closed by a
// background sweep.
type sessions struct {
	cfg   config.EditorConfig
	store *store.Store
	log   *zap.Logger
	now   func() time.Time

	mu    sync.Mutex
	items map[string]*session

	stop     chan struct{}
	stopOnce sync.Once
	swept    chan struct{}
}

func newSessions(cfg config.EditorConfig, st *store.Store, log *zap.Logger) *sessions {
	m := &sessions{
		cfg:   cfg,
		store: st,
		log:   log,
		now:   time.Now,
		items: make(map[string]*session),
		stop:  make(chan struct{}),
		swept: make(chan struct{}),
	}
	if cfg.IdleTimeout > 0 {
		go m.sweeper(cfg.IdleTimeout / 2)
	} else {
		close(m.swept)
	}
	return m
}

func (m *sessions) sweeper(every time.Duration) {
	defer close(m.swept)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), every)
			if err := m.sweep(ctx); err != nil {
				m.log.Warn("Idle editor sessions not closed cleanly", zap.Error(err))
			}
			cancel()
		}
	}
}

// sweep closes every session idle for longer than the configured timeout.
func (m *sessions) sweep(ctx context.Context) error {
	deadline := m.now().Add(-m.cfg.IdleTimeout)
	var idle []*session
	m.mu.Lock()
	for id, ss := range m.items {
		if ss.used.Before(deadline) {
			idle = append(idle, ss)
			delete(m.items, id)
		}
	}
	m.mu.Unlock()

	var err error
	for _, ss := range idle {
		m.log.Info("Editor session expired", zap.String("session", ss.id))
		err = multierr.Append(err, ss.shutdown(ctx))
	}
	return err
}

// open loads content into a new session. Autosave needs a component to
// write to; without autosave, explicit saves still go to the component.
func (m *sessions) open(componentID, content string, autosave bool) (*session, error) {
	ss := &session{
		id:          uuid.NewString(),
		componentID: componentID,
		autosave:    autosave && componentID != "",
	}
	log := m.log.With(zap.String("session", ss.id))

	opts := m.cfg.Options()
	opts.AutosaveEnabled = ss.autosave
	opts.PersistenceID = componentID
	opts.PersistOnSave = componentID != ""
	opts.OnSave = func(html string) { log.Debug("Editor session saved", zap.Int("size", len(html))) }
	opts.OnUnmount = func() { log.Debug("Editor session closed") }
	opts.Logger = log
	if m.store != nil {
		opts.Persister = m.store
	}
	ss.ed = editor.New(opts)
	if err := ss.ed.Load(content); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.cfg.MaxSessions > 0 && len(m.items) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, multierr.Append(errTooManySessions, ss.ed.Unmount())
	}
	ss.used = m.now()
	m.items[ss.id] = ss
	m.mu.Unlock()
	log.Info("Editor session opened", zap.String("component", componentID), zap.Bool("autosave", ss.autosave))
	return ss, nil
}

// get returns the session and marks it used.
func (m *sessions) get(id string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ss, ok := m.items[id]
	if !ok {
		return nil, errSessionNotFound
	}
	ss.used = m.now()
	return ss, nil
}

// close removes the session and unmounts it. Pending and in-flight
// autosaves are cancelled.
func (m *sessions) close(id string) error {
	m.mu.Lock()
	ss, ok := m.items[id]
	delete(m.items, id)
	m.mu.Unlock()
	if !ok {
		return errSessionNotFound
	}
	return ss.ed.Unmount()
}

// closeAll stops the sweep, saves dirty autosaving sessions and unmounts
// everything.
func (m *sessions) closeAll(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.swept

	m.mu.Lock()
	all := make([]*session, 0, len(m.items))
	for _, ss := range m.items {
		all = append(all, ss)
	}
	m.items = make(map[string]*session)
	m.mu.Unlock()

	var err error
	for _, ss := range all {
		err = multierr.Append(err, ss.shutdown(ctx))
	}
	return err
}

func (m *sessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// withSession resolves the {sid} URL parameter.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fallback string) (*session, bool) {
	ss, err := s.sessions.get(chi.URLParam(r, "sid"))
	if err != nil {
		s.fail(w, r, fallback, err)
		return nil, false
	}
	return ss, true
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	const fallback = "Failed to open editor session"
	var body struct {
		ComponentID string `json:"component_id"`
		HTML        string `json:"html"`
		Autosave    *bool  `json:"autosave"`
	}
	if err := decode(r, &body); err != nil {
		s.fail(w, r, fallback, err)
		return
	}

	content := body.HTML
	switch {
	case body.ComponentID != "":
		c, err := s.store.Get(r.Context(), body.ComponentID)
		if err != nil {
			s.fail(w, r, fallback, err)
			return
		}
		content = c.Content
	case content == "":
		s.fail(w, r, fallback, badRequest("component_id or html is required"))
		return
	default:
		if err := sanitize.Validate(content); err != nil {
			s.fail(w, r, fallback, err)
			return
		}
	}

	autosave := s.cfg.Editor.Autosave
	if body.Autosave != nil {
		autosave = *body.Autosave
	}
	ss, err := s.sessions.open(body.ComponentID, content, autosave)
	if err != nil {
		s.fail(w, r, fallback, err)
		return
	}
	s.ok(w, http.StatusCreated, "Editor session opened", ss.view())
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.close(chi.URLParam(r, "sid")); err != nil {
		s.fail(w, r, "Failed to close editor session", err)
		return
	}
	s.ok(w, http.StatusOK, "Editor session closed", nil)
}

func (s *Server) sessionHTML(w http.ResponseWriter, r *http.Request) {
	ss, ok := s.withSession(w, r, "Failed to render editor session")
	if !ok {
		return
	}
	page, err := ss.ed.HTML()
	if err != nil {
		s.fail(w, r, "Failed to render editor session", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

// target finds the element named by the request's selector.
func (s *Server) target(r *http.Request, ss *session) (html.Node, error) {
	var body struct {
		Selector string `json:"selector"`
	}
	if err := decode(r, &body); err != nil {
		return nil, err
	}
	if body.Selector == "" {
		return nil, badRequest("selector is required")
	}
	n, err := ss.ed.Find(body.Selector)
	if errors.Is(err, editor.ErrNotLoaded) {
		return nil, err
	}
	if err != nil {
		return nil, &httpError{status: http.StatusNotFound, message: fmt.Sprintf("No element matches %q", body.Selector), err: err}
	}
	return n, nil
}

type selectionView struct {
	Selected bool          `json:"selected"`
	Panel    *editor.Panel `json:"panel,omitempty"`
}

func viewOf(sel *editor.Selection) selectionView {
	if sel == nil {
		return selectionView{}
	}
	p := sel.Panel
	return selectionView{Selected: true, Panel: &p}
}

func (s *Server) click(w http.ResponseWriter, r *http.Request) {
	const fallback = "Failed to select element"
	ss, ok := s.withSession(w, r, fallback)
	if !ok {
		return
	}
	n, err := s.target(r, ss)
	if err != nil {
		s.fail(w, r, fallback, err)
		return
	}
	sel, err := ss.ed.Click(n)
	if err != nil {
		s.fail(w, r, fallback, err)
		return
	}
	s.ok(w, http.StatusOK, "Click delivered", viewOf(sel))
}

func (s *Server) hover(w http.ResponseWriter, r *http.Request) {
	s.pointer(w, r, "Hover delivered", (*editor.Session).PointerEnter)
}

func (s *Server) leave(w http.ResponseWriter, r *http.Request) {
	s.pointer(w, r, "Leave delivered", (*editor.Session).PointerLeave)
}

func (s *Server) pointer(w http.ResponseWriter, r *http.Request, message string, deliver func(*editor.Session, html.Node) error) {
	const fallback = "Failed to deliver pointer event"
	ss, ok := s.withSession(w, r, fallback)
	if !ok {
		return
	}
	n, err := s.target(r, ss)
	if err != nil {
		s.fail(w, r, fallback, err)
		return
	}
	if err := deliver(ss.ed, n); err != nil {
		s.fail(w, r, fallback, err)
		return
	}
	s.ok(w, http.StatusOK, message, nil)
}

// edited answers an edit with the refreshed panel.
func (s *Server) edited(w http.ResponseWriter, r *http.Request, ss *session, message string) {
	p, err := ss.ed.Panel()
	if err != nil {
		s.fail(w, r, "Failed to read edit state", err)
		return
	}
	s.ok(w, http.StatusOK, message, p)
}

func (s *Server) editText(w http.ResponseWriter, r *http.Request) {
	const fallback = "Failed to edit text"
	ss, ok := s.withSession(w, r, fallback)
	if !ok {
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := decode(r, &body); err != nil {
		s.fail(w, r, fallback, err)
		return
	}
	if err := ss.ed.EditText(body.Text); err != nil {
		s.fail(w, r, fallback, err)
		return
	}
	s.edited(w, r, ss, "Text updated")
}

func (s *Server) applyStyle(w http.ResponseWriter, r *http.Request) {
	const fallback = "Failed to apply style"
	ss, ok := s.withSession(w, r, fallback)
	if !ok {
		return
	}
	var body struct {
		Property string `json:"property"`
		Value    string `json:"value"`
	}
	if err := decode(r, &body); err != nil {
		s.fail(w, r, fallback, err)
		return
	}
	if body.Property == "" {
		s.fail(w, r, fallback, badRequest("property is required"))
		return
	}
	if err := ss.ed.ApplyStyle(body.Property, body.Value); err != nil {
		s.fail(w, r, fallback, err)
		return
	}
	s.edited(w, r, ss, "Style applied")
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request) {
	const fallback = "Failed to toggle style"
	ss, ok := s.withSession(w, r, fallback)
	if !ok {
		return
	}

	var toggle func() error
	switch style := chi.URLParam(r, "style"); style {
	case "bold":
		toggle = ss.ed.ToggleBold
	case "italic":
		toggle = ss.ed.ToggleItalic
	case "underline":
		toggle = ss.ed.ToggleUnderline
	default:
		s.fail(w, r, fallback, badRequest("unknown style %q", style))
		return
	}
	if err := toggle(); err != nil {
		s.fail(w, r, fallback, err)
		return
	}
	s.edited(w, r, ss, "Style toggled")
}

func (s *Server) deselect(w http.ResponseWriter, r *http.Request) {
	const fallback = "Failed to deselect"
	ss, ok := s.withSession(w, r, fallback)
	if !ok {
		return
	}
	if err := ss.ed.Deselect(); err != nil {
		s.fail(w, r, fallback, err)
		return
	}
	s.ok(w, http.StatusOK, "Selection cleared", ss.view())
}

// save writes the session to its component, if any. A failed write keeps
// the session dirty.
func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	const fallback = "Failed to save editor session"
	ss, ok := s.withSession(w, r, fallback)
	if !ok {
		return
	}
	if err := ss.ed.Save(r.Context()); err != nil {
		s.fail(w, r, fallback, err)
		return
	}

	data := map[string]any{"session": ss.view()}
	if ss.componentID != "" {
		c, err := s.store.Get(r.Context(), ss.componentID)
		if err != nil {
			s.fail(w, r, fallback, err)
			return
		}
		data["version"] = c.Version
	}
	s.ok(w, http.StatusOK, "Editor session saved", data)
}

func (s *Server) panel(w http.ResponseWriter, r *http.Request) {
	ss, ok := s.withSession(w, r, "Failed to read edit state")
	if !ok {
		return
	}
	s.edited(w, r, ss, "Edit state retrieved")
}

func (s *Server) changes(w http.ResponseWriter, r *http.Request) {
	const fallback = "Failed to diff editor session"
	ss, ok := s.withSession(w, r, fallback)
	if !ok {
		return
	}
	c, err := ss.ed.Changes()
	if err != nil {
		s.fail(w, r, fallback, err)
		return
	}
	s.ok(w, http.StatusOK, "Changes retrieved", c)
}
