package workflow

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/events"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

type BookingView struct {
	domain.Booking
	Trip        *domain.Trip `json:"trip,omitempty"`
	Bus         string       `json:"bus"`
	Route       string       `json:"route"`
	Cancellable bool         `json:"cancellable"`
}

// Bookings is the rider's "my bookings" list. The last listing per session is
// kept so a cancel can be applied to it without a re-fetch.
type Bookings struct {
	booking BookingService
	trips   TripSource
	catalog *Catalog
	events  events.Sink
	logger  observability.Logger

	mu   sync.Mutex
	last map[string][]domain.Booking
}

func NewBookings(booking BookingService, trips TripSource, catalog *Catalog, sink events.Sink, logger observability.Logger) *Bookings {
	if sink == nil {
		sink = events.Nop()
	}
	return &Bookings{
		booking: booking,
		trips:   trips,
		catalog: catalog,
		events:  sink,
		logger:  logger,
		last:    make(map[string][]domain.Booking),
	}
}

type tripDetails struct {
	trip  domain.Trip
	bus   *domain.Bus
	route *domain.Route
}

// List fetches the rider's bookings and decorates them with trip, bus and
// route details fetched concurrently. A failed lookup only loses the labels
// for that trip.
func (b *Bookings) List(ctx context.Context, r Rider) ([]BookingView, error) {
	token, err := r.Tokens.Token()
	if err != nil {
		return nil, err
	}
	list, err := b.booking.UserBookings(ctx, token, r.UserID)
	if err != nil {
		return nil, err
	}
	b.remember(r.SessionID, list)

	var (
		mu      sync.Mutex
		details = map[int64]*tripDetails{}
		seen    = map[int64]bool{}
		g       errgroup.Group
	)
	g.SetLimit(8)
	for _, bk := range list {
		if seen[bk.TripID] {
			continue
		}
		seen[bk.TripID] = true
		tripID := bk.TripID
		g.Go(func() error {
			d, err := b.details(ctx, token, tripID)
			if err != nil {
				b.logger.WithField("trip_id", tripID).WithError(err).Warn("failed to fetch info for trip")
				return nil
			}
			mu.Lock()
			details[tripID] = d
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	views := make([]BookingView, 0, len(list))
	for _, bk := range list {
		v := BookingView{Booking: bk, Bus: BusLabel(nil), Route: RouteLabel(nil), Cancellable: bk.Status.CanBeCancelled()}
		if d, ok := details[bk.TripID]; ok {
			t := d.trip
			v.Trip = &t
			v.Bus = BusLabel(d.bus)
			v.Route = RouteLabel(d.route)
		}
		views = append(views, v)
	}
	return views, nil
}

func (b *Bookings) details(ctx context.Context, token string, tripID int64) (*tripDetails, error) {
	trip, err := b.trips.Trip(ctx, token, tripID)
	if err != nil {
		return nil, err
	}
	d := &tripDetails{trip: trip}
	if bus, err := b.catalog.Bus(ctx, token, trip.BusID); err == nil {
		d.bus = &bus
	} else {
		b.logger.WithField("bus_id", trip.BusID).WithError(err).Warn("bus lookup failed")
	}
	if route, err := b.catalog.Route(ctx, token, trip.RouteID); err == nil {
		d.route = &route
	} else {
		b.logger.WithField("route_id", trip.RouteID).WithError(err).Warn("route lookup failed")
	}
	return d, nil
}

// Cancel releases a CONFIRMED booking. confirmed must carry the rider's
// explicit yes. On success the booking flips to CANCELLED locally without a
// re-fetch.
func (b *Bookings) Cancel(ctx context.Context, r Rider, bookingID string, confirmed bool) (*domain.Booking, error) {
	if !confirmed {
		return nil, errors.Wrapf(domain.ErrConfirmationRequired, "cancel booking %s", bookingID)
	}
	token, err := r.Tokens.Token()
	if err != nil {
		return nil, err
	}

	bk, ok := b.find(r.SessionID, bookingID)
	if !ok {
		list, err := b.booking.UserBookings(ctx, token, r.UserID)
		if err != nil {
			return nil, err
		}
		b.remember(r.SessionID, list)
		if bk, ok = b.find(r.SessionID, bookingID); !ok {
			return nil, errors.Wrapf(domain.ErrNotFound, "booking %s", bookingID)
		}
	}
	if !bk.Status.CanBeCancelled() {
		return nil, errors.Wrapf(domain.ErrInvalidTransition, "booking %s is %s", bookingID, bk.Status)
	}

	if err := b.booking.Cancel(ctx, token, bookingID); err != nil {
		return nil, err
	}

	bk.Status = domain.StatusCancelled
	b.update(r.SessionID, bk)

	e := events.New(events.Cancelled, r.UserID, bk.TripID)
	e.BookingID = bk.ID
	e.Seats = bk.Seats
	e.Amount = bk.TotalAmount
	_ = b.events.Publish(ctx, e)
	return &bk, nil
}

// Forget drops the cached listing of a session.
func (b *Bookings) Forget(sessionID string) {
	b.mu.Lock()
	delete(b.last, sessionID)
	b.mu.Unlock()
}

func (b *Bookings) remember(sessionID string, list []domain.Booking) {
	b.mu.Lock()
	b.last[sessionID] = append([]domain.Booking(nil), list...)
	b.mu.Unlock()
}

func (b *Bookings) find(sessionID, bookingID string) (domain.Booking, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, bk := range b.last[sessionID] {
		if bk.ID == bookingID {
			return bk, true
		}
	}
	return domain.Booking{}, false
}

func (b *Bookings) update(sessionID string, bk domain.Booking) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.last[sessionID] {
		if b.last[sessionID][i].ID == bk.ID {
			b.last[sessionID][i] = bk
		}
	}
}
