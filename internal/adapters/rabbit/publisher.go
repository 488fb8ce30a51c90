package rabbit

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/robertarktes/bus-booking-gateway/internal/events"
)

const Exchange = "bbg.events"

// Publisher sends workflow events to the bbg.events topic exchange, routed
// by event type.
type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	msg, err := message(ctx, e)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, Exchange, e.RoutingKey(), false, false, msg)
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func message(ctx context.Context, e events.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, errors.Wrap(err, "encode event")
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := amqp.Table{}
	for k, v := range carrier {
		headers[k] = v
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID.String(),
		Timestamp:    e.OccurredAt,
		Type:         string(e.Type),
		Headers:      headers,
		Body:         body,
	}, nil
}
