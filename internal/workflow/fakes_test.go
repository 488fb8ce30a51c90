package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/passenger"
	"github.com/robertarktes/bus-booking-gateway/internal/payment"
)

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

var rider = Rider{SessionID: "sess-1", UserID: 7, Tokens: staticToken("tok")}

// fakeBackend stands in for the trip, inventory and booking services.
type fakeBackend struct {
	mu sync.Mutex

	trips      map[int64]domain.Trip
	tripErr    map[int64]error
	seats      map[int64][]domain.Seat
	seatMapErr error
	buses      map[int64]domain.Bus
	routes     map[int64]domain.Route

	holdErr   error
	holdResp  *domain.BookingHold
	onHold    func(req domain.HoldRequest)
	holdCalls []domain.HoldRequest

	confirmErr   error
	confirmResp  domain.Booking
	confirmCalls []string
	confirmKeys  []string

	bookings    []domain.Booking
	cancelCalls []string
	searchTrips []domain.Trip
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		trips: map[int64]domain.Trip{
			42: {ID: 42, BusID: 3, RouteID: 4, Fare: decimalOf("500")},
		},
		tripErr: map[int64]error{},
		seats: map[int64][]domain.Seat{
			42: {
				{SeatID: 1, SeatNumber: "7"},
				{SeatID: 2, SeatNumber: "11", Booked: true},
				{SeatID: 3, SeatNumber: "12"},
				{SeatID: 4, SeatNumber: "13"},
				{SeatID: 5, SeatNumber: "14"},
			},
		},
		buses:  map[int64]domain.Bus{3: {ID: 3, BusNumber: "MH12", BusType: "AC"}, 5: {ID: 5, BusNumber: "KA01", BusType: "Sleeper"}},
		routes: map[int64]domain.Route{4: {ID: 4, Source: "Pune", Destination: "Goa"}},
	}
}

func (f *fakeBackend) markBooked(tripID int64, number string) {
	for i, s := range f.seats[tripID] {
		if s.SeatNumber == number {
			f.seats[tripID][i].Booked = true
		}
	}
}

func (f *fakeBackend) Trip(_ context.Context, _ string, id int64) (domain.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.tripErr[id]; err != nil {
		return domain.Trip{}, err
	}
	t, ok := f.trips[id]
	if !ok {
		return domain.Trip{}, errors.Wrapf(domain.ErrNotFound, "trip %d", id)
	}
	return t, nil
}

func (f *fakeBackend) Search(context.Context, string, domain.TripQuery) ([]domain.Trip, error) {
	return f.searchTrips, nil
}

func (f *fakeBackend) SeatMap(_ context.Context, _ string, tripID int64) ([]domain.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seatMapErr != nil {
		return nil, f.seatMapErr
	}
	return append([]domain.Seat(nil), f.seats[tripID]...), nil
}

func (f *fakeBackend) Hold(_ context.Context, _ string, req domain.HoldRequest) (domain.BookingHold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holdCalls = append(f.holdCalls, req)
	if f.onHold != nil {
		f.onHold(req)
	}
	if f.holdErr != nil {
		return domain.BookingHold{}, f.holdErr
	}
	if f.holdResp != nil {
		return *f.holdResp, nil
	}
	return domain.BookingHold{ID: "B-42", TotalAmount: req.TotalAmount}, nil
}

func (f *fakeBackend) Confirm(_ context.Context, _ string, bookingID, key string) (domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmCalls = append(f.confirmCalls, bookingID)
	f.confirmKeys = append(f.confirmKeys, key)
	if f.confirmErr != nil {
		return domain.Booking{}, f.confirmErr
	}
	return f.confirmResp, nil
}

func (f *fakeBackend) Cancel(_ context.Context, _ string, bookingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls = append(f.cancelCalls, bookingID)
	for i := range f.bookings {
		if f.bookings[i].ID == bookingID {
			f.bookings[i].Status = domain.StatusCancelled
		}
	}
	return nil
}

func (f *fakeBackend) UserBookings(context.Context, string, int64) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Booking(nil), f.bookings...), nil
}

func (f *fakeBackend) Buses(context.Context, string) ([]domain.Bus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Bus
	for _, b := range f.buses {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBackend) Bus(_ context.Context, _ string, id int64) (domain.Bus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buses[id]
	if !ok {
		return domain.Bus{}, domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeBackend) Route(_ context.Context, _ string, id int64) (domain.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.routes[id]
	if !ok {
		return domain.Route{}, domain.ErrNotFound
	}
	return r, nil
}

type failingProvider struct{}

func (failingProvider) Pay(context.Context, payment.Request) (*payment.Result, error) {
	return nil, errors.Wrap(domain.ErrPaymentSimulation, "card declined")
}

func validForm(n int) passenger.Form {
	f := passenger.Form{Contact: domain.Contact{Mobile: "9876543210", Email: "rider@example.com"}}
	for i := 0; i < n; i++ {
		f.Passengers = append(f.Passengers, domain.PassengerRecord{Name: fmt.Sprintf("Passenger %d", i+1), Age: 30, Gender: domain.GenderFemale})
	}
	return f
}
