package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	"github.com/fawad-mazhar/statusboard/internal/metrics"
)

const seenCacheSize = 4096

// PollOptions configures a PollSource
type PollOptions struct {
	URL      string
	Job      string
	Interval time.Duration
	Client   *http.Client
	Logger   *log.Entry
}

// PollSource fetches the execution list on a fixed interval and delivers each
// execution as one message. An execution is delivered again only once its
// encoding changes, or after Reset.
type PollSource struct {
	url      string
	interval time.Duration
	client   *http.Client
	seen     *lru.Cache
	logger   *log.Entry
}

type executionList struct {
	Executions []json.RawMessage `json:"executions"`
}

func NewPollSource(opts PollOptions) (*PollSource, error) {
	target, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse poll url: %w", err)
	}
	if opts.Job != "" {
		query := target.Query()
		query.Set("jobname", opts.Job)
		target.RawQuery = query.Encode()
	}

	seen, err := lru.New(seenCacheSize)
	if err != nil {
		return nil, err
	}
	if opts.Client == nil {
		opts.Client = cleanhttp.DefaultPooledClient()
		opts.Client.Timeout = 30 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.NewEntry(log.StandardLogger())
	}

	return &PollSource{
		url:      target.String(),
		interval: opts.Interval,
		client:   opts.Client,
		seen:     seen,
		logger:   opts.Logger.WithField("url", target.String()),
	}, nil
}

func (p *PollSource) Name() string {
	return "poll"
}

// Reset forgets every delivered execution, so the next poll delivers the full
// list again
func (p *PollSource) Reset() {
	p.seen.Purge()
}

func (p *PollSource) Run(ctx context.Context, handle Handler) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.poll(ctx, handle); err != nil && ctx.Err() == nil {
			p.logger.WithError(err).Warn("Poll failed, retrying on next tick")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *PollSource) poll(ctx context.Context, handle Handler) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch executions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var list executionList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("failed to decode executions: %w", err)
	}

	for _, raw := range list.Executions {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if seen, _ := p.seen.ContainsOrAdd(string(raw), struct{}{}); seen {
			continue
		}
		metrics.RecordMessageReceived(p.Name())
		handle(raw)
	}
	return nil
}
