package workflow

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/passenger"
	"github.com/robertarktes/bus-booking-gateway/internal/payment"
	"github.com/robertarktes/bus-booking-gateway/internal/receipt"
	"github.com/robertarktes/bus-booking-gateway/internal/seatmap"
)

// Step is where the rider currently is in the booking flow.
type Step string

const (
	StepSeatSelection Step = "SEAT_SELECTION"
	StepPassengers    Step = "PASSENGER_DETAILS"
	StepPayment       Step = "PAYMENT"
	StepCompleted     Step = "COMPLETED"
)

// State is one rider's in-flight booking. It is owned by a single session
// and persisted between requests through a Store.
type State struct {
	SessionID string `json:"sessionId"`
	UserID    int64  `json:"userId"`

	Step Step             `json:"step"`
	Hold domain.HoldState `json:"hold"`

	Trip               domain.Trip      `json:"trip"`
	SeatMap            *seatmap.SeatMap `json:"seatMap"`
	SeatMapUnavailable bool             `json:"seatMapUnavailable,omitempty"`
	Selected           []string         `json:"selected"`
	TotalAmount        decimal.Decimal  `json:"totalAmount"`

	Passengers  *passenger.Form     `json:"passengers,omitempty"`
	BookingHold *domain.BookingHold `json:"bookingHold,omitempty"`
	HoldExpiry  time.Time           `json:"holdExpiry,omitempty"`

	LastPayment     *payment.Result  `json:"lastPayment,omitempty"`
	PaymentAttempts int              `json:"paymentAttempts"`
	Booking         *domain.Booking  `json:"booking,omitempty"`
	Receipt         *receipt.Receipt `json:"receipt,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *State) selection() *seatmap.Selection {
	return seatmap.NewSelection(s.Selected...)
}

func (s *State) setSelection(sel *seatmap.Selection) {
	s.Selected = sel.Seats()
}

// CanConfirm reports whether the seat selection may move on to passengers.
func (s *State) CanConfirm() bool {
	return s.Step == StepSeatSelection && len(s.Selected) > 0
}

func (s *State) Rows() []seatmap.Row {
	if s.SeatMap == nil {
		return nil
	}
	return s.SeatMap.Rows()
}

// restart drops the current attempt and puts the rider back on seat selection.
// A released hold stays visible until the next hold is requested.
func (s *State) restart() {
	s.Step = StepSeatSelection
	if s.Hold != domain.HoldReleased {
		s.Hold = domain.HoldNone
	}
	s.Selected = nil
	s.TotalAmount = decimal.Zero
	s.Passengers = nil
	s.BookingHold = nil
	s.HoldExpiry = time.Time{}
	s.LastPayment = nil
	s.PaymentAttempts = 0
	s.Booking = nil
	s.Receipt = nil
}

func (s *State) Snapshot() ([]byte, error) {
	return json.Marshal(s)
}

func Restore(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "restore workflow state")
	}
	if s.Hold == "" {
		s.Hold = domain.HoldNone
	}
	if s.SeatMap == nil {
		s.SeatMap = seatmap.New(s.Trip.ID, nil)
	}
	return &s, nil
}
