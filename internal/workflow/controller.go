// Package workflow drives a rider from a trip's seat map to a confirmed
// booking: seat selection, passenger details, seat hold, simulated payment,
// confirm. Each rider session owns exactly one workflow State.
package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/events"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
	"github.com/robertarktes/bus-booking-gateway/internal/passenger"
	"github.com/robertarktes/bus-booking-gateway/internal/payment"
	"github.com/robertarktes/bus-booking-gateway/internal/receipt"
	"github.com/robertarktes/bus-booking-gateway/internal/seatmap"
	"github.com/robertarktes/bus-booking-gateway/internal/session"
)

type TokenSource interface {
	Token() (string, error)
}

// Rider identifies the session a workflow call is made for.
type Rider struct {
	SessionID string
	UserID    int64
	Tokens    TokenSource
}

func RiderFrom(s *session.Session) Rider {
	return Rider{SessionID: s.ID, UserID: s.UserID, Tokens: s}
}

type TripSource interface {
	Trip(ctx context.Context, token string, id int64) (domain.Trip, error)
}

type BookingService interface {
	SeatMap(ctx context.Context, token string, tripID int64) ([]domain.Seat, error)
	Hold(ctx context.Context, token string, req domain.HoldRequest) (domain.BookingHold, error)
	Confirm(ctx context.Context, token, bookingID, idempotencyKey string) (domain.Booking, error)
	Cancel(ctx context.Context, token, bookingID string) error
	UserBookings(ctx context.Context, token string, userID int64) ([]domain.Booking, error)
}

type Settings struct {
	HoldTTL     time.Duration
	LockTTL     time.Duration
	FallbackVPA string
	PayeeName   string
}

type Deps struct {
	Trips    TripSource
	Booking  BookingService
	Payments payment.Provider
	Store    Store
	Locker   Locker
	Events   events.Sink
	Logger   observability.Logger
}

type Controller struct {
	trips     TripSource
	booking   BookingService
	payments  payment.Provider
	validator *passenger.Validator
	store     Store
	locker    Locker
	events    events.Sink
	settings  Settings
	logger    observability.Logger
	now       func() time.Time
}

func NewController(d Deps, s Settings) *Controller {
	c := &Controller{
		trips:     d.Trips,
		booking:   d.Booking,
		payments:  d.Payments,
		validator: passenger.NewValidator(),
		store:     d.Store,
		locker:    d.Locker,
		events:    d.Events,
		settings:  s,
		logger:    d.Logger,
		now:       time.Now,
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.locker == nil {
		c.locker = NewLocalLocker()
	}
	if c.events == nil {
		c.events = events.Nop()
	}
	if c.logger == nil {
		c.logger = observability.NopLogger()
	}
	if c.settings.HoldTTL <= 0 {
		c.settings.HoldTTL = 10 * time.Minute
	}
	if c.settings.LockTTL <= 0 {
		c.settings.LockTTL = time.Minute
	}
	return c
}

// PaymentInput is the rider's payment choice.
type PaymentInput struct {
	Method payment.Method      `json:"method"`
	UPIID  string              `json:"upiId,omitempty"`
	Card   payment.CardDetails `json:"card"`
	Bank   string              `json:"bank,omitempty"`
}

// Start opens the seat map of tripID. Any attempt already in progress for the
// session is dropped, releasing its hold locally.
func (c *Controller) Start(ctx context.Context, r Rider, tripID int64) (*State, error) {
	unlock, err := c.locker.TryLock(ctx, lockKey(r.SessionID), c.settings.LockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	token, err := r.Tokens.Token()
	if err != nil {
		return nil, err
	}

	if prev, err := c.store.Load(ctx, r.SessionID); err == nil {
		c.releaseHold(ctx, prev, "restarted")
	}

	trip, err := c.trips.Trip(ctx, token, tripID)
	if err != nil {
		return nil, errors.Wrapf(err, "load trip %d", tripID)
	}
	if trip.Cancelled {
		return nil, errors.Wrapf(domain.ErrTripCancelled, "trip %d", tripID)
	}

	st := &State{
		SessionID: r.SessionID,
		UserID:    r.UserID,
		Step:      StepSeatSelection,
		Hold:      domain.HoldNone,
		Trip:      trip,
		UpdatedAt: c.now().UTC(),
	}
	c.loadSeats(ctx, token, st)

	if err := c.store.Save(ctx, st); err != nil {
		return nil, errors.Wrap(err, "save workflow state")
	}
	c.transition(ctx, st, StepSeatSelection, "started")
	return st, nil
}

// Get returns the session's workflow without changing it.
func (c *Controller) Get(ctx context.Context, r Rider) (*State, error) {
	return c.store.Load(ctx, r.SessionID)
}

// ToggleSeat adds or removes a seat. Booked seats are ignored.
func (c *Controller) ToggleSeat(ctx context.Context, r Rider, seatNumber string) (*State, error) {
	return c.mutate(ctx, r, "toggle_seat", func(_ context.Context, _ string, st *State) error {
		if st.Step != StepSeatSelection {
			return domain.InvalidStep("toggle seat", string(st.Step))
		}
		sel := st.selection()
		sel.Toggle(st.SeatMap, seatNumber)
		st.setSelection(sel)
		return nil
	})
}

func (c *Controller) ConfirmSelection(ctx context.Context, r Rider) (*State, error) {
	return c.mutate(ctx, r, "confirm_selection", func(ctx context.Context, _ string, st *State) error {
		if st.Step != StepSeatSelection {
			return domain.InvalidStep("confirm selection", string(st.Step))
		}
		sel := st.selection()
		if !sel.CanConfirm() {
			verr := &domain.ValidationError{}
			verr.Add("seats", "Select at least one seat")
			return verr
		}
		st.TotalAmount = domain.TotalFare(st.Trip.Fare, sel.Len())
		c.transition(ctx, st, StepPassengers, "ok")
		return nil
	})
}

func (c *Controller) BackToSeats(ctx context.Context, r Rider) (*State, error) {
	return c.mutate(ctx, r, "back_to_seats", func(ctx context.Context, _ string, st *State) error {
		if st.Step != StepPassengers {
			return domain.InvalidStep("back to seats", string(st.Step))
		}
		c.transition(ctx, st, StepSeatSelection, "back")
		return nil
	})
}

// SubmitPassengers validates the form locally and, only when it is valid,
// asks the booking service to hold the selected seats.
func (c *Controller) SubmitPassengers(ctx context.Context, r Rider, form passenger.Form) (*State, error) {
	return c.mutate(ctx, r, "submit_passengers", func(ctx context.Context, token string, st *State) error {
		if st.Step != StepPassengers {
			return domain.InvalidStep("submit passengers", string(st.Step))
		}
		form = form.Normalize()
		sel := st.selection()
		if err := c.validator.Validate(form, sel.Len()); err != nil {
			c.count(st.Step, "invalid")
			return err
		}

		if dropped := sel.Prune(st.SeatMap); len(dropped) > 0 {
			st.setSelection(sel)
			st.TotalAmount = domain.TotalFare(st.Trip.Fare, sel.Len())
			c.transition(ctx, st, StepSeatSelection, "conflict")
			return errors.Wrapf(domain.ErrHoldConflict, "seats %s already booked", strings.Join(dropped, ", "))
		}

		st.Passengers = &form
		req := domain.HoldRequest{
			TripID:      st.Trip.ID,
			UserID:      st.UserID,
			SeatIDs:     sel.Seats(),
			TotalAmount: domain.TotalFare(st.Trip.Fare, sel.Len()),
			Contact:     form.Mobile,
			Passengers:  form.Passengers,
		}

		hold, err := c.booking.Hold(ctx, token, req)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrHoldConflict):
			c.publish(ctx, st, events.HoldConflict, err.Error())
			c.loadSeats(ctx, token, st)
			sel.Prune(st.SeatMap)
			st.setSelection(sel)
			st.TotalAmount = domain.TotalFare(st.Trip.Fare, sel.Len())
			c.transition(ctx, st, StepSeatSelection, "conflict")
			return err
		case errors.Is(err, domain.ErrTimeout):
			c.restart(ctx, token, st, "timeout")
			return err
		default:
			c.count(st.Step, "error")
			return err
		}

		if st.Hold.Terminal() {
			st.Hold = domain.HoldNone
		}
		if st.Hold, err = st.Hold.Transition(domain.HoldHeld); err != nil {
			return err
		}
		st.TotalAmount = req.TotalAmount
		st.BookingHold = &hold
		st.HoldExpiry = hold.ExpiresAt
		if st.HoldExpiry.IsZero() {
			st.HoldExpiry = c.now().Add(c.settings.HoldTTL).UTC()
		}
		c.transition(ctx, st, StepPayment, "held")
		c.publish(ctx, st, events.HoldCreated, "")
		return nil
	})
}

// Pay runs the payment provider and, on success, confirms the hold exactly
// once using the payment reference as idempotency key.
func (c *Controller) Pay(ctx context.Context, r Rider, in PaymentInput) (*State, error) {
	return c.mutate(ctx, r, "pay", func(ctx context.Context, token string, st *State) error {
		if st.Step != StepPayment || st.Hold != domain.HoldHeld {
			return domain.InvalidStep("pay", string(st.Step))
		}
		if st.BookingHold == nil || st.BookingHold.ID == "" {
			c.publish(ctx, st, events.ConfirmFailed, "missing booking identifier")
			c.releaseHold(ctx, st, "missing booking identifier")
			c.restart(ctx, token, st, "confirm_error")
			return errors.Wrap(domain.ErrConfirm, "hold response did not include a booking identifier")
		}

		hold := *st.BookingHold
		res, err := c.payments.Pay(ctx, payment.Request{
			Method: in.Method,
			Amount: st.TotalAmount,
			Hold:   hold,
			UPIID:  in.UPIID,
			Card:   in.Card,
			Bank:   in.Bank,
		})
		st.PaymentAttempts++
		if err != nil {
			if !errors.Is(err, domain.ErrPaymentSimulation) {
				err = errors.Mark(err, domain.ErrPaymentSimulation)
			}
			c.count(st.Step, "payment_failed")
			c.publish(ctx, st, events.PaymentFailed, err.Error())
			return err
		}
		st.LastPayment = res

		booking, err := c.booking.Confirm(ctx, token, hold.ID, res.Reference)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrConfirm), errors.Is(err, domain.ErrTimeout):
			c.publish(ctx, st, events.ConfirmFailed, err.Error())
			c.releaseHold(ctx, st, "confirm failed")
			c.restart(ctx, token, st, "confirm_error")
			return err
		default:
			c.count(st.Step, "confirm_error")
			return err
		}

		if st.Hold, err = st.Hold.Transition(domain.HoldConfirmed); err != nil {
			return err
		}
		b := c.completeBooking(st, booking)
		st.Booking = &b
		rc := receipt.New(b, receipt.Payee{
			VPA:  payment.ResolveVPA("", hold, c.settings.FallbackVPA),
			Name: payment.ResolvePayeeName(hold, c.settings.PayeeName),
		})
		st.Receipt = &rc
		st.HoldExpiry = time.Time{}
		c.transition(ctx, st, StepCompleted, "confirmed")
		c.publish(ctx, st, events.Confirmed, "")
		return nil
	})
}

// PaymentURI is the UPI payload shown while paying, or the receipt payload
// once the booking is confirmed.
func (c *Controller) PaymentURI(ctx context.Context, r Rider) (string, error) {
	st, err := c.store.Load(ctx, r.SessionID)
	if err != nil {
		return "", err
	}
	switch {
	case st.Step == StepPayment && st.BookingHold != nil:
		return payment.UPIRequest{
			VPA:       payment.ResolveVPA("", *st.BookingHold, c.settings.FallbackVPA),
			PayeeName: payment.ResolvePayeeName(*st.BookingHold, c.settings.PayeeName),
			Amount:    st.TotalAmount,
		}.URI(), nil
	case st.Step == StepCompleted && st.Receipt != nil:
		return st.Receipt.PaymentURI, nil
	default:
		return "", domain.InvalidStep("payment qr", string(st.Step))
	}
}

// Abandon gives up the current attempt and returns to seat selection on the
// same trip. A held seat is left to expire on the booking service.
func (c *Controller) Abandon(ctx context.Context, r Rider) (*State, error) {
	return c.mutate(ctx, r, "abandon", func(ctx context.Context, token string, st *State) error {
		c.releaseHold(ctx, st, "abandoned")
		c.restart(ctx, token, st, "abandoned")
		return nil
	})
}

// Close discards the session's workflow. It needs no token so it can run
// while a session is being torn down, and it waits for an operation already
// in flight to finish rather than leaving its state behind.
func (c *Controller) Close(ctx context.Context, sessionID string) error {
	unlock, err := waitLock(ctx, c.locker, lockKey(sessionID), c.settings.LockTTL)
	if err != nil {
		return err
	}
	defer unlock()

	st, err := c.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	c.releaseHold(ctx, st, "closed")
	return c.store.Delete(ctx, sessionID)
}

func (c *Controller) mutate(ctx context.Context, r Rider, op string, fn func(ctx context.Context, token string, st *State) error) (*State, error) {
	unlock, err := c.locker.TryLock(ctx, lockKey(r.SessionID), c.settings.LockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	token, err := r.Tokens.Token()
	if err != nil {
		return nil, err
	}
	st, err := c.store.Load(ctx, r.SessionID)
	if err != nil {
		return nil, err
	}

	opErr := fn(ctx, token, st)
	st.UpdatedAt = c.now().UTC()
	if err := c.store.Save(ctx, st); err != nil {
		c.log(ctx, st).WithError(err).Error("failed to save workflow state")
		if opErr == nil {
			return st, errors.Wrap(err, "save workflow state")
		}
	}
	if opErr != nil {
		c.log(ctx, st).WithField("op", op).WithError(opErr).Warn("workflow operation failed")
	}
	return st, opErr
}

func (c *Controller) loadSeats(ctx context.Context, token string, st *State) {
	loader := seatmap.NewLoader(seatmap.SeatSourceFunc(func(ctx context.Context, tripID int64) ([]domain.Seat, error) {
		return c.booking.SeatMap(ctx, token, tripID)
	}), observability.LoggerFrom(ctx, c.logger))
	m, err := loader.Load(ctx, st.Trip.ID)
	st.SeatMap = m
	st.SeatMapUnavailable = err != nil
}

// releaseHold marks a HELD hold released locally. The booking service expires
// it on its own schedule.
func (c *Controller) releaseHold(ctx context.Context, st *State, reason string) {
	if st.Hold != domain.HoldHeld {
		return
	}
	st.Hold, _ = st.Hold.Transition(domain.HoldReleased)
	c.publish(ctx, st, events.HoldReleased, reason)
}

func (c *Controller) restart(ctx context.Context, token string, st *State, result string) {
	st.restart()
	if token != "" {
		c.loadSeats(ctx, token, st)
	}
	c.transition(ctx, st, StepSeatSelection, result)
}

// completeBooking fills what the confirm response left out from the local
// attempt so the receipt always matches what the rider held.
func (c *Controller) completeBooking(st *State, b domain.Booking) domain.Booking {
	if b.ID == "" {
		b.ID = st.BookingHold.ID
	}
	if b.TripID == 0 {
		b.TripID = st.Trip.ID
	}
	if len(b.Seats) == 0 {
		b.Seats = append([]string(nil), st.Selected...)
	}
	if len(b.Passengers) == 0 && st.Passengers != nil {
		b.Passengers = st.Passengers.Passengers
	}
	if b.TotalAmount.IsZero() {
		b.TotalAmount = st.TotalAmount
	}
	if b.Status == "" {
		b.Status = domain.StatusConfirmed
	}
	if b.BookingDate.IsZero() {
		b.BookingDate = c.now().UTC()
	}
	return b
}

func (c *Controller) transition(ctx context.Context, st *State, to Step, result string) {
	from := st.Step
	st.Step = to
	c.count(to, result)
	c.log(ctx, st).WithField("from", from).WithField("result", result).Info("workflow transition")
}

func (c *Controller) count(step Step, result string) {
	observability.WorkflowTransitions.WithLabelValues(string(step), result).Inc()
}

func (c *Controller) publish(ctx context.Context, st *State, t events.Type, reason string) {
	e := events.New(t, st.UserID, st.Trip.ID)
	e.Seats = append([]string(nil), st.Selected...)
	e.Amount = st.TotalAmount
	e.Reason = reason
	if st.BookingHold != nil {
		e.BookingID = st.BookingHold.ID
	}
	if st.Booking != nil {
		e.BookingID = st.Booking.ID
	}
	_ = c.events.Publish(ctx, e)
}

func (c *Controller) log(ctx context.Context, st *State) observability.Logger {
	return observability.LoggerFrom(ctx, c.logger).
		WithField("session_id", st.SessionID).
		WithField("trip_id", st.Trip.ID).
		WithField("step", st.Step).
		WithField("hold", st.Hold)
}

func lockKey(sessionID string) string {
	return "wf:" + sessionID
}
