package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/fawad-mazhar/statusboard/internal/config"
	"github.com/fawad-mazhar/statusboard/internal/metrics"
)

var errConnectionClosed = errors.New("NATS connection closed")

// NATSSource subscribes to a subject on which the orchestrator publishes one
// snapshot per message. The client keeps reconnecting on its own, including
// when no server is reachable at start; a connection that gets closed anyway
// is replaced with backoff.
type NATSSource struct {
	url     string
	subject string
	backoff Backoff
	logger  *log.Entry
}

func NewNATSSource(cfg config.NATSConfig, backoff Backoff, logger *log.Entry) *NATSSource {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &NATSSource{
		url:     cfg.URL,
		subject: cfg.Subject,
		backoff: backoff.withDefaults(),
		logger:  logger.WithField("subject", cfg.Subject),
	}
}

func (n *NATSSource) Name() string {
	return "nats"
}

func (n *NATSSource) Run(ctx context.Context, handle Handler) error {
	Reconnect(ctx, n.backoff, n.logger, func(ctx context.Context) error {
		return n.consume(ctx, handle)
	})
	return nil
}

// consume holds one connection open until ctx ends or the client gives up
func (n *NATSSource) consume(ctx context.Context, handle Handler) error {
	closed := make(chan struct{})
	conn, err := nats.Connect(n.url,
		nats.Name("statusboard-"+uuid.New().String()),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			n.logger.WithError(err).Warn("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			n.logger.WithField("server", c.ConnectedUrl()).Info("Reconnected to NATS")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			close(closed)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer conn.Close()

	msgs := make(chan *nats.Msg, 256)
	sub, err := conn.ChanSubscribe(n.subject, msgs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", n.subject, err)
	}
	defer sub.Unsubscribe()

	n.logger.Info("Subscribed to NATS subject")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return errConnectionClosed
		case msg := <-msgs:
			metrics.RecordMessageReceived(n.Name())
			handle(msg.Data)
		}
	}
}
