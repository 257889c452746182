// Package server exposes generation, component storage, deployment and
// editor sessions over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"pagesmith/internal/config"
	"pagesmith/internal/deploy"
	"pagesmith/internal/generator"
	"pagesmith/internal/sanitize"
	"pagesmith/internal/store"
)

// Generator produces a landing page from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*generator.Result, error)
}

// Deployer publishes a page.
type Deployer interface {
	Deploy(ctx context.Context, page string) (*deploy.Result, error)
}

// Deps are the collaborators a Server routes to.
type Deps struct {
	Store     *store.Store
	Generator Generator
	Deployer  Deployer
}

// Server holds the HTTP handlers.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	gen      Generator
	deployer Deployer
	outliner *sanitize.Outliner
	sessions *sessions
	log      *zap.Logger
	started  time.Time
	now      func() time.Time
}

// New creates a Server. The store is required.
func New(cfg *config.Config, deps Deps, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("server")
	s := &Server{
		cfg:      cfg,
		store:    deps.Store,
		gen:      deps.Generator,
		deployer: deps.Deployer,
		outliner: sanitize.NewOutliner(),
		log:      log,
		now:      time.Now,
	}
	s.started = s.now()
	s.sessions = newSessions(cfg.Editor, deps.Store, log)
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.cfg.Server.BodyLimit > 0 {
		r.Use(middleware.RequestSize(s.cfg.Server.BodyLimit))
	}
	if s.cfg.Server.RateLimit > 0 {
		r.Use(httprate.Limit(s.cfg.Server.RateLimit, s.cfg.Server.RateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(s.tooManyRequests),
		))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, failure{
			Error:     fmt.Sprintf("Route %s not found", r.URL.RequestURI()),
			Timestamp: s.now().UTC(),
		})
	})

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", s.generate)
		r.Post("/deploy", s.deploy)

		r.Post("/component", s.createComponent)
		r.Get("/preview/{id}", s.getComponent)
		r.Route("/component/{id}", func(r chi.Router) {
			r.Get("/", s.getComponent)
			r.Put("/", s.updateComponent)
			r.Delete("/", s.deleteComponent)
			r.Get("/outline", s.outline)
			r.Get("/export", s.export)
		})
		r.Get("/debug/components", s.listComponents)

		r.Route("/editor/sessions", func(r chi.Router) {
			r.Post("/", s.createSession)
			r.Route("/{sid}", func(r chi.Router) {
				r.Delete("/", s.deleteSession)
				r.Get("/", s.sessionHTML)
				r.Post("/click", s.click)
				r.Post("/hover", s.hover)
				r.Post("/leave", s.leave)
				r.Put("/text", s.editText)
				r.Put("/style", s.applyStyle)
				r.Post("/toggle/{style}", s.toggle)
				r.Post("/deselect", s.deselect)
				r.Post("/save", s.save)
				r.Get("/panel", s.panel)
				r.Get("/changes", s.changes)
			})
		})
	})

	return r
}

// Close unmounts every open editor session, flushing pending autosaves.
func (s *Server) Close(ctx context.Context) error {
	return s.sessions.closeAll(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "OK",
		"timestamp":   s.now().UTC(),
		"uptime":      s.now().Sub(s.started).Seconds(),
		"environment": s.cfg.Server.Environment,
		"sessions":    s.sessions.count(),
	})
}

func (s *Server) tooManyRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"success":    false,
		"error":      "Too many requests, please try again later",
		"retryAfter": int(s.cfg.Server.RateWindow.Seconds()),
	})
}

// requestLogger logs every request once it has been answered.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.RequestURI()),
				zap.Int("status", status),
				zap.Duration("took", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("request", middleware.GetReqID(r.Context())),
			}
			if status >= http.StatusBadRequest {
				s.log.Warn("Request", fields...)
				return
			}
			s.log.Info("Request", fields...)
		}()
		next.ServeHTTP(ww, r)
	})
}
