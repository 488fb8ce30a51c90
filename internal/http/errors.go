package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
	"github.com/robertarktes/bus-booking-gateway/internal/receipt"
)

var (
	noticeForbidden   = receipt.Notice{Code: "forbidden", Message: "This page is only available to riders.", Action: receipt.ActionLogin}
	noticeRateLimited = receipt.Notice{Code: "rate_limited", Message: "Too many requests. Please slow down.", Action: receipt.ActionRetry}
	noticeBadRequest  = receipt.Notice{Code: "bad_request", Message: "The request could not be read.", Action: receipt.ActionNone}
)

type errorBody struct {
	receipt.Notice
	State *stateView `json:"state,omitempty"`
}

func statusFor(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrHoldConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConfirm):
		return http.StatusGone
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrPaymentSimulation):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	case errors.Is(err, domain.ErrTripCancelled), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError turns a workflow error into the blocking notice the front-end
// shows, together with the workflow state it left behind.
func writeError(w http.ResponseWriter, r *http.Request, err error, state *stateView) {
	status := statusFor(err)
	log := observability.LoggerFrom(r.Context(), observability.NopLogger()).WithError(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Debug("request rejected")
	}
	writeJSON(w, status, errorBody{Notice: receipt.Describe(err), State: state})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
