package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pagesmith/internal/deploy"
	"pagesmith/internal/generator"
	"pagesmith/internal/sanitize"
	"pagesmith/pkg/inliner"
)

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := decode(r, &body); err != nil {
		s.fail(w, r, "Failed to generate landing page", err)
		return
	}
	if s.gen == nil {
		s.fail(w, r, "Failed to generate landing page", generator.ErrNotConfigured)
		return
	}

	res, err := s.gen.Generate(r.Context(), body.Prompt)
	if err != nil {
		s.fail(w, r, "Failed to generate landing page", err)
		return
	}
	s.ok(w, http.StatusOK, "Landing page generated successfully", res)
}

func (s *Server) deploy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HTML string `json:"html"`
	}
	if err := decode(r, &body); err != nil {
		s.fail(w, r, "Deployment failed", err)
		return
	}
	if body.HTML == "" {
		s.fail(w, r, "Deployment failed", badRequest("HTML content is required"))
		return
	}
	if s.deployer == nil {
		s.fail(w, r, "Deployment failed", deploy.ErrNotConfigured)
		return
	}

	res, err := s.deployer.Deploy(r.Context(), body.HTML)
	if err != nil {
		s.fail(w, r, "Deployment failed", err)
		return
	}
	s.log.Info("Page deployed", zap.String("site", res.SiteName), zap.String("url", res.URL))
	s.ok(w, http.StatusCreated, "Deployment successful", res)
}

type contentBody struct {
	Content string `json:"content"`
}

func (b contentBody) validate() error {
	if b.Content == "" {
		return badRequest("Component content is required")
	}
	return sanitize.Validate(b.Content)
}

func (s *Server) createComponent(w http.ResponseWriter, r *http.Request) {
	var body contentBody
	if err := decode(r, &body); err != nil {
		s.fail(w, r, "Failed to create component", err)
		return
	}
	if err := body.validate(); err != nil {
		s.fail(w, r, "Failed to create component", err)
		return
	}

	c, err := s.store.Create(r.Context(), body.Content)
	if err != nil {
		s.fail(w, r, "Failed to create component", err)
		return
	}
	s.log.Info("Component created", zap.String("id", c.ID))
	s.ok(w, http.StatusCreated, "Component created successfully", map[string]string{"id": c.ID})
}

func (s *Server) getComponent(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "Failed to retrieve component", err)
		return
	}
	s.ok(w, http.StatusOK, "Component retrieved successfully", c)
}

func (s *Server) updateComponent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body contentBody
	if err := decode(r, &body); err != nil {
		s.fail(w, r, "Failed to update component", err)
		return
	}
	if err := body.validate(); err != nil {
		s.fail(w, r, "Failed to update component", err)
		return
	}

	version, err := s.store.Update(r.Context(), id, body.Content)
	if err != nil {
		s.fail(w, r, "Failed to update component", err)
		return
	}
	s.ok(w, http.StatusOK, "Component updated successfully", map[string]any{"id": id, "version": version})
}

func (s *Server) deleteComponent(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, "Failed to delete component", err)
		return
	}
	s.ok(w, http.StatusOK, "Component deleted successfully", nil)
}

func (s *Server) listComponents(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to retrieve components", err)
		return
	}
	s.ok(w, http.StatusOK, "Components retrieved successfully", map[string]any{
		"total":      len(list),
		"components": list,
	})
}

// outline returns the component's text structure as Markdown.
func (s *Server) outline(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "Failed to outline component", err)
		return
	}
	md, err := s.outliner.Outline(c.Content)
	if err != nil {
		s.fail(w, r, "Failed to outline component", err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(md))
}

// export downloads the component as a standalone page. With inline=true the
// document's style rules are copied onto its elements first.
func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Failed to export component", err)
		return
	}

	page := sanitize.Wrap(sanitize.StripFences(c.Content))
	if v := r.URL.Query().Get("inline"); v != "" {
		inline, err := strconv.ParseBool(v)
		if err != nil {
			s.fail(w, r, "Failed to export component", badRequest("inline must be a boolean"))
			return
		}
		if inline {
			keep, _ := strconv.ParseBool(r.URL.Query().Get("keep_styles"))
			res, err := inliner.New(inliner.Options{KeepStyleTags: keep}, s.log).Inline(page)
			if err != nil {
				s.fail(w, r, "Failed to export component", err)
				return
			}
			page = res.HTML
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.html"`)
	_, _ = w.Write([]byte(page))
}
