package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

// Booking is the booking service: seat maps plus the hold, confirm and
// cancel calls. Seat conflicts are arbitrated there, never here.
type Booking struct {
	c *Client
}

func NewBooking(baseURL string, timeout time.Duration, logger observability.Logger, opts ...Option) *Booking {
	return &Booking{c: newClient("booking", baseURL, timeout, logger, opts...)}
}

type holdPayload struct {
	TripID      int64                    `json:"tripId"`
	UserID      int64                    `json:"userId"`
	SeatIDs     []string                 `json:"seatIds"`
	TotalAmount json.Number              `json:"totalAmount"`
	Contact     string                   `json:"contact"`
	Passengers  []domain.PassengerRecord `json:"passengers"`
}

func (b *Booking) SeatMap(ctx context.Context, token string, tripID int64) ([]domain.Seat, error) {
	var out []domain.Seat
	err := b.c.do(ctx, call{op: "seat_map", method: http.MethodGet, path: fmt.Sprintf("/api/v1/trips/%d", tripID), token: token, out: &out})
	return out, err
}

// Hold reserves seats. A 409 means at least one seat was taken meanwhile.
func (b *Booking) Hold(ctx context.Context, token string, req domain.HoldRequest) (domain.BookingHold, error) {
	payload := holdPayload{
		TripID:      req.TripID,
		UserID:      req.UserID,
		SeatIDs:     req.SeatIDs,
		TotalAmount: json.Number(req.TotalAmount.StringFixed(2)),
		Contact:     req.Contact,
		Passengers:  req.Passengers,
	}

	var out domain.BookingHold
	err := b.c.do(ctx, call{op: "hold", method: http.MethodPost, path: "/api/v1/bookings/hold", token: token, body: payload, out: &out})
	if StatusOf(err) == http.StatusConflict {
		return out, errors.Wrapf(domain.ErrHoldConflict, "hold: %v", err)
	}
	return out, err
}

// Confirm finalizes a hold. idempotencyKey lets the service dedupe a replayed
// confirm for the same payment.
func (b *Booking) Confirm(ctx context.Context, token, bookingID, idempotencyKey string) (domain.Booking, error) {
	var out domain.Booking
	err := b.c.do(ctx, call{
		op:             "confirm",
		method:         http.MethodPost,
		path:           "/api/v1/bookings/confirm/" + url.PathEscape(bookingID),
		token:          token,
		idempotencyKey: idempotencyKey,
		out:            &out,
	})
	switch StatusOf(err) {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusGone, http.StatusUnprocessableEntity:
		return out, errors.Wrapf(domain.ErrConfirm, "confirm %s: %v", bookingID, err)
	}
	return out, err
}

func (b *Booking) Cancel(ctx context.Context, token, bookingID string) error {
	return b.c.do(ctx, call{op: "cancel", method: http.MethodPost, path: "/api/v1/bookings/cancel/" + url.PathEscape(bookingID), token: token})
}

func (b *Booking) UserBookings(ctx context.Context, token string, userID int64) ([]domain.Booking, error) {
	var out []domain.Booking
	err := b.c.do(ctx, call{op: "user_bookings", method: http.MethodGet, path: fmt.Sprintf("/api/v1/bookings/user/%d", userID), token: token, out: &out})
	return out, err
}
