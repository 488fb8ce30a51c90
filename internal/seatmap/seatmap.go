// Package seatmap holds a trip's seat inventory as last seen by the rider and
// the rider's local seat selection.
package seatmap

import (
	"context"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

// SeatsPerRow is the fixed coach layout: two seats, the aisle, two seats.
const SeatsPerRow = 4

type SeatMap struct {
	TripID int64         `json:"tripId"`
	Seats  []domain.Seat `json:"seats"`
}

type Row struct {
	Left  []domain.Seat `json:"left"`
	Right []domain.Seat `json:"right"`
}

func New(tripID int64, seats []domain.Seat) *SeatMap {
	return &SeatMap{TripID: tripID, Seats: seats}
}

func (m *SeatMap) Seat(number string) (domain.Seat, bool) {
	for _, s := range m.Seats {
		if s.SeatNumber == number {
			return s, true
		}
	}
	return domain.Seat{}, false
}

// Booked reports whether number is unknown or already taken. Unknown seats
// count as booked so they can never be selected.
func (m *SeatMap) Booked(number string) bool {
	s, ok := m.Seat(number)
	return !ok || s.Booked
}

func (m *SeatMap) Available() int {
	n := 0
	for _, s := range m.Seats {
		if !s.Booked {
			n++
		}
	}
	return n
}

func (m *SeatMap) Rows() []Row {
	var rows []Row
	for i := 0; i < len(m.Seats); i += SeatsPerRow {
		end := i + SeatsPerRow
		if end > len(m.Seats) {
			end = len(m.Seats)
		}
		chunk := m.Seats[i:end]
		row := Row{Left: chunk[:min(2, len(chunk))]}
		if len(chunk) > 2 {
			row.Right = chunk[2:]
		}
		rows = append(rows, row)
	}
	return rows
}

// SeatSource is the inventory call the loader needs.
type SeatSource interface {
	SeatMap(ctx context.Context, tripID int64) ([]domain.Seat, error)
}

// SeatSourceFunc adapts a function to SeatSource.
type SeatSourceFunc func(ctx context.Context, tripID int64) ([]domain.Seat, error)

func (f SeatSourceFunc) SeatMap(ctx context.Context, tripID int64) ([]domain.Seat, error) {
	return f(ctx, tripID)
}

type Loader struct {
	source SeatSource
	logger observability.Logger
}

func NewLoader(source SeatSource, logger observability.Logger) *Loader {
	return &Loader{source: source, logger: logger}
}

// Load fetches the seat map. A failed fetch yields an empty map together with
// the error; it is logged and not retried.
func (l *Loader) Load(ctx context.Context, tripID int64) (*SeatMap, error) {
	seats, err := l.source.SeatMap(ctx, tripID)
	if err != nil {
		l.logger.WithField("trip_id", tripID).WithError(err).Error("failed to fetch seats")
		return New(tripID, nil), err
	}
	return New(tripID, seats), nil
}
