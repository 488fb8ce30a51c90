package payment

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
)

const upiScheme = "upi"

// UPIRequest describes a UPI collect payload. Zero Amount omits the am field.
type UPIRequest struct {
	VPA       string
	PayeeName string
	Amount    decimal.Decimal
	Note      string
}

// URI renders upi://pay?pa=..&pn=..&am=..&cu=INR[&tn=..], keeping that field order.
func (r UPIRequest) URI() string {
	params := [][2]string{{"pa", r.VPA}, {"pn", r.PayeeName}}
	if !r.Amount.IsZero() {
		params = append(params, [2]string{"am", r.Amount.StringFixed(2)})
	}
	params = append(params, [2]string{"cu", "INR"})
	if r.Note != "" {
		params = append(params, [2]string{"tn", r.Note})
	}

	var b strings.Builder
	b.WriteString(upiScheme + "://pay?")
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p[0])
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[1]))
	}
	return b.String()
}

// ResolveVPA picks the payee address: what the rider entered, then the one
// the hold carried, then the configured fallback.
func ResolveVPA(entered string, hold domain.BookingHold, fallback string) string {
	if v := strings.TrimSpace(entered); v != "" {
		return v
	}
	if v := strings.TrimSpace(hold.PayeeVPA); v != "" {
		return v
	}
	return fallback
}

func ResolvePayeeName(hold domain.BookingHold, fallback string) string {
	if n := strings.TrimSpace(hold.PayeeName); n != "" {
		return n
	}
	return fallback
}
