// Package events describes what the booking workflow tells the outside world.
// Delivery is best effort; a sink failure never changes workflow state.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

type Type string

const (
	HoldCreated    Type = "booking.hold.created"
	HoldConflict   Type = "booking.hold.conflict"
	HoldReleased   Type = "booking.hold.released"
	PaymentFailed  Type = "booking.payment.failed"
	Confirmed      Type = "booking.confirmed"
	ConfirmFailed  Type = "booking.confirm.failed"
	Cancelled      Type = "booking.cancelled"
	SessionExpired Type = "session.expired"
)

type Event struct {
	ID         uuid.UUID       `json:"id" bson:"_id"`
	Type       Type            `json:"type" bson:"type"`
	UserID     int64           `json:"userId" bson:"user_id"`
	TripID     int64           `json:"tripId,omitempty" bson:"trip_id,omitempty"`
	BookingID  string          `json:"bookingId,omitempty" bson:"booking_id,omitempty"`
	Seats      []string        `json:"seats,omitempty" bson:"seats,omitempty"`
	Amount     decimal.Decimal `json:"amount" bson:"-"`
	Reason     string          `json:"reason,omitempty" bson:"reason,omitempty"`
	OccurredAt time.Time       `json:"occurredAt" bson:"occurred_at"`
}

func New(t Type, userID, tripID int64) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		UserID:     userID,
		TripID:     tripID,
		OccurredAt: time.Now().UTC(),
	}
}

// RoutingKey is the topic used on brokers that route by key.
func (e Event) RoutingKey() string {
	return string(e.Type)
}

type Sink interface {
	Publish(ctx context.Context, e Event) error
}

type nop struct{}

func (nop) Publish(context.Context, Event) error { return nil }

func Nop() Sink { return nop{} }

type named struct {
	name string
	sink Sink
}

// Multi fans an event out to every sink and joins their errors.
type Multi struct {
	sinks  []named
	logger observability.Logger
}

func NewMulti(logger observability.Logger) *Multi {
	return &Multi{logger: logger}
}

func (m *Multi) Add(name string, s Sink) *Multi {
	m.sinks = append(m.sinks, named{name: name, sink: s})
	return m
}

func (m *Multi) Publish(ctx context.Context, e Event) error {
	var errs error
	for _, s := range m.sinks {
		if err := s.sink.Publish(ctx, e); err != nil {
			observability.EventPublishFailures.WithLabelValues(s.name).Inc()
			m.logger.WithField("sink", s.name).WithField("event", e.Type).WithError(err).Warn("event publish failed")
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "sink %s", s.name))
		}
	}
	return errs
}

// Recorder keeps published events in memory. Used by the terminal front-end
// and tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
