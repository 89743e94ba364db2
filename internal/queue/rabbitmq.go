// internal/queue/rabbitmq.go
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/fawad-mazhar/statusboard/internal/config"
	"github.com/fawad-mazhar/statusboard/internal/metrics"
	"github.com/fawad-mazhar/statusboard/internal/stream"
)

// statusTTL must match the orchestrator's declaration of the status queue
const statusTTL = 72 * 60 * 60 * 1000 // 72 hours in milliseconds

var errDeliveriesClosed = errors.New("status deliveries channel closed")

// RabbitMQ consumes execution snapshots from the orchestrator's status queue.
// A lost connection or channel is re-established with backoff.
type RabbitMQ struct {
	config  config.RabbitMQConfig
	tag     string
	backoff stream.Backoff
	logger  *log.Entry
}

var _ stream.Source = (*RabbitMQ)(nil)

func NewRabbitMQ(cfg config.RabbitMQConfig, backoff stream.Backoff, logger *log.Entry) *RabbitMQ {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &RabbitMQ{
		config:  cfg,
		tag:     "statusboard-" + uuid.New().String(),
		backoff: backoff,
		logger:  logger.WithField("queue", cfg.StatusQueue),
	}
}

func (r *RabbitMQ) Name() string {
	return "rabbitmq"
}

func (r *RabbitMQ) setupQueue(ch *amqp.Channel) error {
	args := make(amqp.Table)
	args["x-message-ttl"] = statusTTL

	_, err := ch.QueueDeclare(
		r.config.StatusQueue, // name
		true,                 // durable
		false,                // delete when unused
		false,                // exclusive
		false,                // no-wait
		args,                 // arguments - including TTL
	)
	return err
}

// Run consumes until ctx is cancelled. Each delivery is acknowledged once the
// handler has returned.
func (r *RabbitMQ) Run(ctx context.Context, handle stream.Handler) error {
	stream.Reconnect(ctx, r.backoff, r.logger, func(ctx context.Context) error {
		return r.consume(ctx, handle)
	})
	return nil
}

// consume holds one connection open until ctx ends or the broker closes it
func (r *RabbitMQ) consume(ctx context.Context, handle stream.Handler) error {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open status channel: %w", err)
	}
	defer ch.Close()

	if err := r.setupQueue(ch); err != nil {
		return fmt.Errorf("failed to setup queues: %w", err)
	}

	deliveries, err := ch.Consume(
		r.config.StatusQueue, // queue
		r.tag,                // consumer
		false,                // auto-ack
		false,                // exclusive
		false,                // no-local
		false,                // no-wait
		nil,                  // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming statuses: %w", err)
	}

	r.logger.WithField("consumer", r.tag).Info("Consuming status queue")

	for {
		select {
		case <-ctx.Done():
			if err := ch.Cancel(r.tag, false); err != nil {
				r.logger.WithError(err).Warn("Failed to cancel consumer")
			}
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			metrics.RecordMessageReceived(r.Name())
			handle(delivery.Body)
			if err := delivery.Ack(false); err != nil {
				r.logger.WithError(err).Warn("Failed to acknowledge delivery")
			}
		}
	}
}
