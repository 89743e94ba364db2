// Package orchestrator talks to the orchestrator's HTTP API for everything the
// dashboard needs besides the execution stream: job names, job layouts and the
// schedule toggle.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/hashicorp/go-cleanhttp"
	log "github.com/sirupsen/logrus"

	"github.com/fawad-mazhar/statusboard/internal/config"
	"github.com/fawad-mazhar/statusboard/internal/models"
	"github.com/fawad-mazhar/statusboard/internal/surface"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrNoLayout     = errors.New("no layout available")
	errUnconfigured = errors.New("orchestrator url is not configured")
)

// LayoutCache keeps fetched layouts between restarts
type LayoutCache interface {
	GetLayout(job string) (*models.JobLayout, error)
	PutLayout(layout *models.JobLayout) error
}

type Client struct {
	baseURL string
	http    *http.Client
	cache   LayoutCache
	logger  *log.Entry
}

type jobList struct {
	Jobs []string `json:"jobs"`
}

type toggleResponse struct {
	Job     string `json:"job"`
	Success bool   `json:"success"`
	Active  bool   `json:"active"`
}

// NewClient creates an API client. cache may be nil.
func NewClient(cfg config.OrchestratorConfig, cache LayoutCache, logger *log.Entry) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = cfg.RequestTimeout()
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    httpClient,
		cache:   cache,
		logger:  logger.WithField("component", "orchestrator-client"),
	}
}

// Configured reports whether an orchestrator URL was given
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/api/" + strings.Join(escaped, "/")
}

// call performs one API request and decodes the JSON response into out.
// Transport failures and 5xx responses are retried.
func (c *Client) call(ctx context.Context, method, endpoint string, out interface{}) error {
	if !c.Configured() {
		return errUnconfigured
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			req.Header.Set("Accept", "application/json")

			resp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("failed to call %s: %w", endpoint, err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(ErrJobNotFound)
			case resp.StatusCode >= 500:
				return fmt.Errorf("orchestrator returned %s", resp.Status)
			case resp.StatusCode != http.StatusOK:
				return retry.Unrecoverable(fmt.Errorf("orchestrator returned %s", resp.Status))
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to decode response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

// ListJobs returns the names of all jobs known to the orchestrator
func (c *Client) ListJobs(ctx context.Context) ([]string, error) {
	var list jobList
	if err := c.call(ctx, http.MethodGet, c.endpoint("jobs"), &list); err != nil {
		return nil, err
	}
	return list.Jobs, nil
}

// GetLayout returns the layout of job, from the cache when possible
func (c *Client) GetLayout(ctx context.Context, job string) (*models.JobLayout, error) {
	logger := c.logger.WithField("job", job)

	if c.cache != nil {
		cached, err := c.cache.GetLayout(job)
		if err != nil {
			logger.WithError(err).Warn("Failed to read cached layout")
		} else if cached != nil {
			logger.Debug("Cache hit: retrieved job layout from cache")
			return cached, nil
		}
	}

	var layout models.JobLayout
	if err := c.call(ctx, http.MethodGet, c.endpoint("jobs", job), &layout); err != nil {
		return nil, fmt.Errorf("failed to get layout of %s: %w", job, err)
	}
	if layout.Name == "" {
		layout.Name = job
	}

	if c.cache != nil {
		if err := c.cache.PutLayout(&layout); err != nil {
			logger.WithError(err).Warn("Failed to cache job layout")
		} else {
			logger.Debug("Cached job layout")
		}
	}

	return &layout, nil
}

// Toggle flips the schedule of job and returns whether it is now active
func (c *Client) Toggle(ctx context.Context, job string) (bool, error) {
	var resp toggleResponse
	if err := c.call(ctx, http.MethodPost, c.endpoint("jobs", job, "toggle"), &resp); err != nil {
		return false, fmt.Errorf("failed to toggle %s: %w", job, err)
	}
	if !resp.Success {
		return false, fmt.Errorf("failed to toggle %s: %w", job, ErrJobNotFound)
	}

	if c.cache != nil {
		if cached, err := c.cache.GetLayout(job); err == nil && cached != nil {
			cached.Active = resp.Active
			if err := c.cache.PutLayout(cached); err != nil {
				c.logger.WithError(err).WithField("job", job).Warn("Failed to update cached job layout")
			}
		}
	}

	return resp.Active, nil
}

// Layouts gathers the layouts view needs to be scaffolded. Static layouts take
// precedence over fetched ones. The index view lists every job when the
// orchestrator is reachable and skips jobs whose layout cannot be fetched.
func (c *Client) Layouts(ctx context.Context, view surface.View, static []models.JobLayout) ([]models.JobLayout, error) {
	known := make(map[string]models.JobLayout, len(static))
	var names []string
	for _, layout := range static {
		known[layout.Name] = layout
		names = append(names, layout.Name)
	}

	if view.Kind != surface.ViewIndex {
		if layout, ok := known[view.Job]; ok {
			return []models.JobLayout{layout}, nil
		}
		if !c.Configured() {
			return nil, fmt.Errorf("%w for job %s", ErrNoLayout, view.Job)
		}
		layout, err := c.GetLayout(ctx, view.Job)
		if err != nil {
			return nil, err
		}
		return []models.JobLayout{*layout}, nil
	}

	if c.Configured() {
		jobs, err := c.ListJobs(ctx)
		if err != nil {
			c.logger.WithError(err).Warn("Failed to list jobs, using configured layouts only")
		}
		for _, job := range jobs {
			if _, ok := known[job]; !ok {
				names = append(names, job)
			}
		}
	}

	layouts := make([]models.JobLayout, 0, len(names))
	for _, name := range names {
		if layout, ok := known[name]; ok {
			layouts = append(layouts, layout)
			continue
		}
		layout, err := c.GetLayout(ctx, name)
		if err != nil {
			c.logger.WithError(err).WithField("job", name).Warn("Skipping job without layout")
			continue
		}
		layouts = append(layouts, *layout)
	}
	return layouts, nil
}
