package receipt

import (
	"github.com/cockroachdb/errors"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
)

// Action tells the front-end where the rider goes after acknowledging a notice.
type Action string

const (
	ActionFixForm      Action = "fix-form"
	ActionReselect     Action = "reselect-seats"
	ActionRestart      Action = "restart"
	ActionRetry        Action = "retry"
	ActionRetryPayment Action = "retry-payment"
	ActionLogin        Action = "login"
	ActionNone         Action = "none"
)

// Notice is a blocking message the rider must acknowledge.
type Notice struct {
	Code    string              `json:"error"`
	Message string              `json:"message"`
	Action  Action              `json:"action"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

// Describe maps a workflow error onto the message shown to the rider.
func Describe(err error) Notice {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return Notice{Code: "validation", Message: "Please correct the highlighted fields.", Action: ActionFixForm, Fields: verr.Fields}
	case errors.Is(err, domain.ErrHoldConflict):
		return Notice{Code: "hold_conflict", Message: "Some selected seats were just booked by someone else. Please try again.", Action: ActionReselect}
	case errors.Is(err, domain.ErrConfirm):
		return Notice{Code: "confirm_failed", Message: "Your seat hold has expired. No booking was made; please start again from seat selection.", Action: ActionRestart}
	case errors.Is(err, domain.ErrTimeout):
		return Notice{Code: "timeout", Message: "The booking service did not respond in time. Please start again.", Action: ActionRestart}
	case errors.Is(err, domain.ErrPaymentSimulation):
		return Notice{Code: "payment_failed", Message: "Payment failed. Please try again.", Action: ActionRetryPayment}
	case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, domain.ErrUnauthorized):
		return Notice{Code: "unauthorized", Message: "Your session has ended. Please log in again.", Action: ActionLogin}
	case errors.Is(err, domain.ErrConfirmationRequired):
		return Notice{Code: "confirmation_required", Message: "Please confirm that you want to cancel this booking.", Action: ActionNone}
	case errors.Is(err, domain.ErrTripCancelled):
		return Notice{Code: "trip_cancelled", Message: "This trip has been cancelled and can no longer be booked.", Action: ActionRestart}
	case errors.Is(err, domain.ErrNotFound):
		return Notice{Code: "not_found", Message: "We could not find what you were looking for.", Action: ActionNone}
	case errors.Is(err, domain.ErrInvalidTransition):
		return Notice{Code: "invalid_step", Message: "That action is not available right now.", Action: ActionNone}
	case errors.Is(err, domain.ErrNetwork):
		return Notice{Code: "network", Message: "We could not reach the booking service. Please try again.", Action: ActionRetry}
	default:
		return Notice{Code: "internal", Message: "Something went wrong. Please try again.", Action: ActionRetry}
	}
}
