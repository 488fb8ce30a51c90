package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
)

// Sandbox accepts every well-formed payment after a fixed processing delay.
// No money moves.
type Sandbox struct {
	delay       time.Duration
	fallbackVPA string
	now         func() time.Time
}

func NewSandbox(delay time.Duration, fallbackVPA string) *Sandbox {
	return &Sandbox{delay: delay, fallbackVPA: fallbackVPA, now: time.Now}
}

func (s *Sandbox) Pay(ctx context.Context, req Request) (*Result, error) {
	details, err := s.details(req)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, errors.Mark(errors.Wrap(ctx.Err(), "payment processing interrupted"), domain.ErrPaymentSimulation)
	case <-timer.C:
	}

	return &Result{
		Reference: fmt.Sprintf("PAY-%s", uuid.NewString()),
		Method:    req.Method,
		Amount:    req.Amount,
		HoldID:    req.Hold.ID,
		Timestamp: s.now().UTC(),
		Details:   details,
	}, nil
}

func (s *Sandbox) details(req Request) (map[string]string, error) {
	switch req.Method {
	case MethodUPI:
		return map[string]string{"upiId": ResolveVPA(req.UPIID, req.Hold, s.fallbackVPA)}, nil
	case MethodCard:
		return map[string]string{"maskedCard": MaskCard(req.Card.Number)}, nil
	case MethodNetbank:
		if req.Bank == "" {
			return nil, errors.Wrap(domain.ErrPaymentSimulation, "no bank selected")
		}
		return map[string]string{"bank": req.Bank}, nil
	default:
		return nil, errors.Wrapf(domain.ErrPaymentSimulation, "unsupported payment method %q", req.Method)
	}
}
