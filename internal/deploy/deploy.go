// Package deploy publishes a page as a new static site and waits until the
// host reports it live.
package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pagesmith/internal/config"
	"pagesmith/internal/sanitize"
)

// SiteNamePrefix starts every generated site name.
const SiteNamePrefix = "landing-page-"

var (
	// ErrNotConfigured is returned when no access token is available.
	ErrNotConfigured = errors.New("deploy access token not configured")
	// ErrTimeout is returned when the deploy never became ready.
	ErrTimeout = errors.New("deployment timeout")
	// ErrFailed is returned when the host reports the deploy as failed.
	ErrFailed = errors.New("deployment failed")
)

// APIError is a non-success response from the hosting API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s: %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Result describes a finished deployment.
type Result struct {
	SiteID       string    `json:"siteId"`
	SiteName     string    `json:"siteName"`
	SiteURL      string    `json:"siteUrl"`
	URL          string    `json:"url"`
	AdminURL     string    `json:"adminUrl"`
	DeployID     string    `json:"deployId"`
	DeployStatus string    `json:"deployStatus"`
	DeployedAt   time.Time `json:"deployedAt"`
}

type site struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	SSLURL string `json:"ssl_url"`
}

type deployment struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	URL    string `json:"url"`
	SSLURL string `json:"ssl_url"`
}

// Client talks to a Netlify compatible API.
type Client struct {
	http     *http.Client
	baseURL  string
	token    string
	interval time.Duration
	attempts int
	log      *zap.Logger
	now      func() time.Time
}

// New creates a Client from cfg.
func New(cfg config.DeployConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:     &http.Client{Timeout: 60 * time.Second},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		interval: cfg.PollInterval,
		attempts: cfg.MaxAttempts,
		log:      log.Named("deploy"),
		now:      time.Now,
	}
}

// Deploy validates page, creates a fresh site, uploads the bundle and polls
// until the deploy is ready. Invalid pages are reported as
// *sanitize.ValidationError.
func (c *Client) Deploy(ctx context.Context, page string) (*Result, error) {
	if err := sanitize.Validate(page); err != nil {
		return nil, err
	}
	if c.token == "" {
		return nil, ErrNotConfigured
	}
	page = sanitize.Wrap(sanitize.StripFences(page))

	started := c.now()
	bundle, err := Bundle(page, started)
	if err != nil {
		return nil, err
	}

	var s site
	name := SiteNamePrefix + strconv.FormatInt(started.UnixMilli(), 10)
	if err := c.call(ctx, "create site", http.MethodPost, "/sites", "application/json",
		mustJSON(map[string]string{"name": name}), &s); err != nil {
		return nil, err
	}
	c.log.Info("Site created", zap.String("site", s.ID), zap.String("name", s.Name))

	var d deployment
	if err := c.call(ctx, "upload deploy", http.MethodPost, "/sites/"+s.ID+"/deploys", "application/zip",
		bundle, &d); err != nil {
		return nil, err
	}
	c.log.Info("Deployment started", zap.String("deploy", d.ID), zap.Int("bytes", len(bundle)))

	final, err := c.wait(ctx, s.ID, d.ID)
	if err != nil {
		return nil, err
	}

	url := final.SSLURL
	if url == "" {
		url = final.URL
	}
	return &Result{
		SiteID:       s.ID,
		SiteName:     s.Name,
		SiteURL:      url,
		URL:          url,
		AdminURL:     "https://app.netlify.com/sites/" + s.Name + "/overview",
		DeployID:     final.ID,
		DeployStatus: final.State,
		DeployedAt:   c.now().UTC(),
	}, nil
}

// wait polls the deploy until it is ready, fails, or the attempts run out.
func (c *Client) wait(ctx context.Context, siteID, deployID string) (*deployment, error) {
	path := "/sites/" + siteID + "/deploys/" + deployID
	for attempt := 1; attempt <= c.attempts; attempt++ {
		var d deployment
		if err := c.call(ctx, "check deploy status", http.MethodGet, path, "", nil, &d); err != nil {
			return nil, err
		}
		c.log.Debug("Deploy status", zap.String("state", d.State), zap.Int("attempt", attempt))

		switch d.State {
		case "ready":
			return &d, nil
		case "error", "failed":
			return nil, fmt.Errorf("%w with state: %s", ErrFailed, d.State)
		}

		if attempt == c.attempts {
			break
		}
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, ErrTimeout
}

func (c *Client) call(ctx context.Context, op, method, path, contentType string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
