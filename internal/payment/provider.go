// Package payment collects the rider's payment choice and settles it through a
// Provider. Only the sandbox provider exists; a gateway implementation plugs in
// behind the same interface.
package payment

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
)

type Method string

const (
	MethodUPI     Method = "upi"
	MethodCard    Method = "card"
	MethodNetbank Method = "netbank"
)

type CardDetails struct {
	Number string `json:"number"`
	Name   string `json:"name"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
}

type Request struct {
	Method Method             `json:"method"`
	Amount decimal.Decimal    `json:"amount"`
	Hold   domain.BookingHold `json:"hold"`
	UPIID  string             `json:"upiId,omitempty"`
	Card   CardDetails        `json:"card,omitempty"`
	Bank   string             `json:"bank,omitempty"`
}

type Result struct {
	Reference string            `json:"reference"`
	Method    Method            `json:"method"`
	Amount    decimal.Decimal   `json:"amount"`
	HoldID    string            `json:"holdId"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details"`
}

// Provider settles a payment for a held booking. Errors must match
// domain.ErrPaymentSimulation (or ErrTimeout) so the caller keeps the hold.
type Provider interface {
	Pay(ctx context.Context, req Request) (*Result, error)
}

// MaskCard keeps the last four digits.
func MaskCard(num string) string {
	s := strings.Join(strings.Fields(num), "")
	if s == "" {
		return ""
	}
	if len(s) > 4 {
		s = s[len(s)-4:]
	}
	return "**** **** **** " + s
}
