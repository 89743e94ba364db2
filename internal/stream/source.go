// Package stream delivers raw execution snapshot messages from the
// orchestrator to the dashboard, one message per call, in arrival order.
package stream

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/fawad-mazhar/statusboard/internal/config"
)

// Handler receives one message. Sources call it from a single goroutine.
type Handler func(payload []byte)

// Source is a lazy, unbounded sequence of snapshot messages. Run blocks,
// delivering messages to handle, until ctx is cancelled (which unsubscribes
// and returns nil). Sources handle transport failures themselves; an error
// from Run means the source cannot be used at all.
type Source interface {
	Name() string
	Run(ctx context.Context, handle Handler) error
}

// Resetter is implemented by sources that skip messages they already
// delivered. After Reset every message is delivered again.
type Resetter interface {
	Reset()
}

// SourceBackoff returns the reconnect settings of cfg
func SourceBackoff(cfg config.SourceConfig) Backoff {
	return Backoff{
		Attempts: uint(cfg.ReconnectAttempts),
		Delay:    cfg.ReconnectBackoff(),
	}
}

// Factory builds a source from the application configuration
type Factory func(cfg *config.Config, logger *log.Entry) (Source, error)

// Registry manages the available source types
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates a registry holding the HTTP and NATS sources
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
	}
	r.factories[config.SourceSSE] = func(cfg *config.Config, logger *log.Entry) (Source, error) {
		backoff := SourceBackoff(cfg.Source)
		return NewSSESource(SSEOptions{
			URL:      cfg.Source.URL,
			Attempts: backoff.Attempts,
			Delay:    backoff.Delay,
			Logger:   logger,
		}), nil
	}
	r.factories[config.SourcePoll] = func(cfg *config.Config, logger *log.Entry) (Source, error) {
		return NewPollSource(PollOptions{
			URL:      cfg.Source.URL,
			Job:      cfg.Source.Job,
			Interval: cfg.Source.PollPeriod(),
			Logger:   logger,
		})
	}
	r.factories[config.SourceNATS] = func(cfg *config.Config, logger *log.Entry) (Source, error) {
		return NewNATSSource(cfg.NATS, SourceBackoff(cfg.Source), logger), nil
	}
	return r
}

// Register adds a new source type to the registry
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("source type %s already registered", name)
	}

	r.factories[name] = factory
	return nil
}

// Build creates the source selected by cfg.Source.Type
func (r *Registry) Build(cfg *config.Config, logger *log.Entry) (Source, error) {
	r.mu.RLock()
	factory, exists := r.factories[cfg.Source.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("source type %s not found", cfg.Source.Type)
	}

	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return factory(cfg, logger.WithField("source", cfg.Source.Type))
}
