package rabbit

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/robertarktes/bus-booking-gateway/internal/events"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

type Handler func(ctx context.Context, e events.Event) error

type Consumer struct {
	ch     *amqp.Channel
	queue  string
	logger observability.Logger
}

// NewConsumer declares queue and binds it to every event on the exchange.
func NewConsumer(conn *amqp.Connection, queue string, logger observability.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, err
	}
	if err := ch.QueueBind(queue, "#", Exchange, false, nil); err != nil {
		return nil, err
	}
	if err := ch.Qos(16, 0, false); err != nil {
		return nil, err
	}
	return &Consumer{ch: ch, queue: queue, logger: logger}, nil
}

func (c *Consumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
}

// Run handles deliveries until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	deliveries, err := c.Consume(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return amqp.ErrClosed
			}
			c.handle(ctx, d, handle)
		}
	}
}

// handle acks a handled event, drops an undecodable one and requeues one
// whose handler failed.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, handle Handler) {
	var e events.Event
	if err := json.Unmarshal(d.Body, &e); err != nil {
		c.logger.WithField("message_id", d.MessageId).WithError(err).Error("dropping undecodable event")
		d.Nack(false, false)
		return
	}

	carrier := propagation.MapCarrier{}
	for k, v := range d.Headers {
		if s, ok := v.(string); ok {
			carrier[k] = s
		}
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	if err := handle(ctx, e); err != nil {
		c.logger.WithField("event_id", e.ID).WithError(err).Warn("event handler failed, requeueing")
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
