package payment

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
)

func TestUPIRequest_URI(t *testing.T) {
	uri := UPIRequest{
		VPA:       "merchant@bank",
		PayeeName: "Merchant",
		Amount:    decimal.NewFromInt(1000),
	}.URI()
	assert.Equal(t, "upi://pay?pa=merchant%40bank&pn=Merchant&am=1000.00&cu=INR", uri)

	withNote := UPIRequest{VPA: "ops@upi", PayeeName: "Blue Line Travels", Amount: decimal.RequireFromString("250.5"), Note: "Booking:B-77"}.URI()
	assert.Equal(t, "upi://pay?pa=ops%40upi&pn=Blue+Line+Travels&am=250.50&cu=INR&tn=Booking%3AB-77", withNote)

	noAmount := UPIRequest{VPA: "a@b", PayeeName: "M"}.URI()
	assert.Equal(t, "upi://pay?pa=a%40b&pn=M&cu=INR", noAmount)
}

func TestResolveVPA(t *testing.T) {
	hold := domain.BookingHold{ID: "H1", PayeeVPA: "seller@upi"}

	assert.Equal(t, "me@upi", ResolveVPA(" me@upi ", hold, "merchant@bank"))
	assert.Equal(t, "seller@upi", ResolveVPA("", hold, "merchant@bank"))
	assert.Equal(t, "merchant@bank", ResolveVPA("  ", domain.BookingHold{ID: "H1"}, "merchant@bank"))
}

func TestMaskCard(t *testing.T) {
	assert.Equal(t, "**** **** **** 4242", MaskCard("4242 4242 4242 4242"))
	assert.Equal(t, "", MaskCard(""))
}

func TestSandbox_Pay(t *testing.T) {
	s := NewSandbox(10*time.Millisecond, "merchant@bank")
	hold := domain.BookingHold{ID: "H1"}

	start := time.Now()
	res, err := s.Pay(context.Background(), Request{Method: MethodUPI, Amount: decimal.NewFromInt(1000), Hold: hold})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	assert.Equal(t, "H1", res.HoldID)
	assert.Equal(t, "merchant@bank", res.Details["upiId"])
	assert.NotEmpty(t, res.Reference)

	res, err = s.Pay(context.Background(), Request{Method: MethodCard, Card: CardDetails{Number: "5555 4444 3333 1111"}, Hold: hold})
	require.NoError(t, err)
	assert.Equal(t, "**** **** **** 1111", res.Details["maskedCard"])
}

func TestSandbox_PayFailures(t *testing.T) {
	s := NewSandbox(time.Second, "merchant@bank")

	_, err := s.Pay(context.Background(), Request{Method: "cash"})
	assert.True(t, errors.Is(err, domain.ErrPaymentSimulation))

	_, err = s.Pay(context.Background(), Request{Method: MethodNetbank})
	assert.True(t, errors.Is(err, domain.ErrPaymentSimulation))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Pay(ctx, Request{Method: MethodUPI})
	assert.True(t, errors.Is(err, domain.ErrPaymentSimulation))
}

func TestQRPNG(t *testing.T) {
	png, err := QRPNG("upi://pay?pa=merchant%40bank&pn=Merchant&cu=INR")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	txt, err := QRText("upi://pay?pa=a%40b")
	require.NoError(t, err)
	assert.NotEmpty(t, txt)
}
