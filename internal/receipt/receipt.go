package receipt

import (
	"fmt"
	"io"
	"text/template"

	"github.com/shopspring/decimal"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/payment"
)

// Receipt is shown once a booking is confirmed. PaymentURI repeats the UPI
// payload with the booking id in the note so payments can be reconciled.
type Receipt struct {
	BookingID  string          `json:"bookingId"`
	TripID     int64           `json:"tripId"`
	Seats      []string        `json:"seats"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	PaymentURI string          `json:"paymentUri"`
}

type Payee struct {
	VPA  string
	Name string
}

func New(b domain.Booking, payee Payee) Receipt {
	return Receipt{
		BookingID: b.ID,
		TripID:    b.TripID,
		Seats:     b.Seats,
		Amount:    b.TotalAmount,
		Status:    string(b.Status),
		PaymentURI: payment.UPIRequest{
			VPA:       payee.VPA,
			PayeeName: payee.Name,
			Amount:    b.TotalAmount,
			Note:      fmt.Sprintf("Booking:%s", b.ID),
		}.URI(),
	}
}

var receiptTmpl = template.Must(template.New("receipt").Parse(`Booking confirmed
  Booking ID : {{.BookingID}}
  Trip       : {{.TripID}}
  Seats      : {{range $i, $s := .Seats}}{{if $i}}, {{end}}{{$s}}{{end}}
  Amount     : INR {{.Amount.StringFixed 2}}
  Status     : {{.Status}}
  UPI note   : {{.PaymentURI}}
`))

func (r Receipt) Render(w io.Writer) error {
	return receiptTmpl.Execute(w, r)
}
