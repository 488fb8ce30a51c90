// Package outbox keeps broker latency off the request path. Workflow events
// are queued in memory and a background loop hands them to the broker sinks,
// retrying a failed publish before giving up on it.
package outbox

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/bus-booking-gateway/internal/events"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

var ErrQueueFull = errors.New("outbox queue full")

type Publisher struct {
	sink        events.Sink
	queue       chan events.Event
	maxAttempts int
	backoff     time.Duration
	logger      observability.Logger
}

type Option func(*Publisher)

func WithRetry(attempts int, backoff time.Duration) Option {
	return func(p *Publisher) {
		p.maxAttempts = attempts
		p.backoff = backoff
	}
}

func NewPublisher(sink events.Sink, size int, logger observability.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		sink:        sink,
		queue:       make(chan events.Event, size),
		maxAttempts: 3,
		backoff:     time.Second,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish queues e and never blocks. A full queue drops the event.
func (p *Publisher) Publish(_ context.Context, e events.Event) error {
	select {
	case p.queue <- e:
		return nil
	default:
		observability.EventPublishFailures.WithLabelValues("outbox").Inc()
		p.logger.WithField("event", e.Type).Warn("outbox full, event dropped")
		return ErrQueueFull
	}
}

// Run relays queued events until ctx is done, then drains what is left
// within drainTimeout.
func (p *Publisher) Run(ctx context.Context, drainTimeout time.Duration) {
	p.logger.Info("outbox publisher started")
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			p.drain(drainCtx)
			cancel()
			p.logger.Info("outbox publisher stopped")
			return
		case e := <-p.queue:
			p.publishWithRetry(ctx, e)
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	for {
		select {
		case e := <-p.queue:
			if err := p.sink.Publish(ctx, e); err != nil {
				p.logger.WithField("event", e.Type).WithError(err).Warn("event lost on shutdown")
			}
		default:
			return
		}
	}
}

func (p *Publisher) publishWithRetry(ctx context.Context, e events.Event) {
	var err error
	for i := 0; i < p.maxAttempts; i++ {
		if err = p.sink.Publish(ctx, e); err == nil {
			return
		}
		backoff := time.Duration(1<<i) * p.backoff
		select {
		case <-ctx.Done():
			select {
			case p.queue <- e:
			default:
			}
			return
		case <-time.After(backoff):
		}
	}
	p.logger.WithField("event", e.Type).WithField("event_id", e.ID).WithError(err).Error("event dropped after retries")
}
