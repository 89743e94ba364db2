package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	log "github.com/sirupsen/logrus"

	"github.com/fawad-mazhar/statusboard/internal/metrics"
)

const maxEventSize = 1024 * 1024

var errStreamClosed = errors.New("event stream closed by server")

// SSEOptions configures an SSESource
type SSEOptions struct {
	URL      string
	Attempts uint
	Delay    time.Duration
	Client   *http.Client
	Logger   *log.Entry
}

// SSESource reads a server-sent event stream in which every event carries one
// snapshot in its data lines. Dropped connections are re-established with
// exponential backoff for as long as the context lives.
type SSESource struct {
	url     string
	backoff Backoff
	client  *http.Client
	logger  *log.Entry
}

func NewSSESource(opts SSEOptions) *SSESource {
	if opts.Client == nil {
		opts.Client = cleanhttp.DefaultPooledClient()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewEntry(log.StandardLogger())
	}
	return &SSESource{
		url:     opts.URL,
		backoff: Backoff{Attempts: opts.Attempts, Delay: opts.Delay}.withDefaults(),
		client:  opts.Client,
		logger:  opts.Logger.WithField("url", opts.URL),
	}
}

func (s *SSESource) Name() string {
	return "sse"
}

func (s *SSESource) Run(ctx context.Context, handle Handler) error {
	Reconnect(ctx, s.backoff, s.logger, func(ctx context.Context) error {
		return s.stream(ctx, handle)
	})
	return nil
}

// stream holds one connection open and returns when it ends
func (s *SSESource) stream(ctx context.Context, handle Handler) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	s.logger.Info("Connected to event stream")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)

	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Bytes()
		switch {
		case len(line) == 0:
			if data.Len() > 0 {
				metrics.RecordMessageReceived(s.Name())
				handle(bytes.Clone(data.Bytes()))
				data.Reset()
			}
		case line[0] == ':':
			// comment or keep-alive
		case bytes.HasPrefix(line, []byte("data:")):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(bytes.TrimPrefix(bytes.TrimPrefix(line, []byte("data:")), []byte(" ")))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read event stream: %w", err)
	}
	return errStreamClosed
}
