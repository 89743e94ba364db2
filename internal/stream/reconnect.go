package stream

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	log "github.com/sirupsen/logrus"
)

const (
	defaultReconnectAttempts = 10
	defaultReconnectDelay    = 500 * time.Millisecond
	maxReconnectDelay        = 30 * time.Second
)

// Backoff controls how a source reconnects after losing its connection
type Backoff struct {
	Attempts uint          // attempts per cycle
	Delay    time.Duration // initial delay, doubled after every failed attempt
}

func (b Backoff) withDefaults() Backoff {
	if b.Attempts == 0 {
		b.Attempts = defaultReconnectAttempts
	}
	if b.Delay <= 0 {
		b.Delay = defaultReconnectDelay
	}
	return b
}

// Reconnect calls session until ctx is cancelled. A session holds one
// connection open and returns when it ends; the next one starts after an
// exponential backoff. Once a cycle of Attempts sessions has failed, the
// failure is logged and a new cycle starts after the initial delay.
func Reconnect(ctx context.Context, backoff Backoff, logger *log.Entry, session func(ctx context.Context) error) {
	backoff = backoff.withDefaults()
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	for {
		err := retry.Do(
			func() error { return session(ctx) },
			retry.Context(ctx),
			retry.Attempts(backoff.Attempts),
			retry.Delay(backoff.Delay),
			retry.DelayType(retry.BackOffDelay),
			retry.MaxDelay(maxReconnectDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(error) bool { return ctx.Err() == nil }),
			retry.OnRetry(func(n uint, err error) {
				logger.WithError(err).WithField("attempt", n+1).Warn("Connection lost, reconnecting")
			}),
		)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.WithError(err).Errorf("Source unavailable after %d attempts", backoff.Attempts)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff.Delay):
		}
	}
}
