package domain

import (
	"encoding/json"
	"strings"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCancelled BookingStatus = "CANCELLED"
)

// ParseBookingStatus accepts any casing the booking service emits ("Cancelled", "confirmed").
func ParseBookingStatus(s string) BookingStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CONFIRMED":
		return StatusConfirmed
	case "CANCELLED", "CANCELED":
		return StatusCancelled
	default:
		return StatusPending
	}
}

func (s *BookingStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseBookingStatus(raw)
	return nil
}

func (s BookingStatus) CanBeCancelled() bool {
	return s == StatusConfirmed
}
