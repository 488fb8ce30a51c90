package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Trip struct {
	ID            int64           `json:"id"`
	BusID         int64           `json:"busId"`
	RouteID       int64           `json:"routeId"`
	DepartureTime time.Time       `json:"departureTime"`
	ArrivalTime   time.Time       `json:"arrivalTime"`
	Fare          decimal.Decimal `json:"fare"`
	Cancelled     bool            `json:"cancelled"`
}

// Seat is one entry of a trip's seat map. Booked is owned by the booking service.
type Seat struct {
	SeatID     int64  `json:"seatId"`
	SeatNumber string `json:"seatNumber"`
	SeatType   string `json:"seatType"`
	Booked     bool   `json:"booked"`
}

type Bus struct {
	ID        int64  `json:"id"`
	BusNumber string `json:"busNumber"`
	BusType   string `json:"busType"`
}

type Route struct {
	ID          int64  `json:"id"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Duration    int    `json:"duration"`
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type PassengerRecord struct {
	Name   string `json:"name" validate:"required"`
	Age    int    `json:"age" validate:"required,gt=0"`
	Gender Gender `json:"gender" validate:"required,oneof=male female other"`
}

type Contact struct {
	Mobile string `json:"mobile" validate:"required,mobile10"`
	Email  string `json:"email" validate:"required,email"`
}

// HoldRequest asks the booking service to reserve SeatIDs (seat numbers) for a trip.
type HoldRequest struct {
	TripID      int64
	UserID      int64
	SeatIDs     []string
	TotalAmount decimal.Decimal
	Contact     string
	Passengers  []PassengerRecord
}

// BookingHold is the hold call's response. ID is the single identifier the
// confirm call accepts.
type BookingHold struct {
	ID          string          `json:"bookingId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	PayeeVPA    string          `json:"payeeVpa,omitempty"`
	PayeeName   string          `json:"payeeName,omitempty"`
	ExpiresAt   time.Time       `json:"expiresAt,omitempty"`
}

type Booking struct {
	ID          string            `json:"bookingId"`
	TripID      int64             `json:"tripId"`
	Seats       []string          `json:"seats"`
	Passengers  []PassengerRecord `json:"passengers"`
	TotalAmount decimal.Decimal   `json:"totalAmount"`
	Status      BookingStatus     `json:"status"`
	BookingDate time.Time         `json:"bookingDate"`
}

// TotalFare is fare times the number of seats.
func TotalFare(fare decimal.Decimal, seats int) decimal.Decimal {
	return fare.Mul(decimal.NewFromInt(int64(seats)))
}

// TripQuery searches scheduled trips. BusType is applied locally.
type TripQuery struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Date        string `json:"date"`
	BusType     string `json:"busType,omitempty"`
}
