package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/user_agent"

	"github.com/robertarktes/bus-booking-gateway/internal/adapters/backend"
	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
	"github.com/robertarktes/bus-booking-gateway/internal/passenger"
	"github.com/robertarktes/bus-booking-gateway/internal/payment"
	"github.com/robertarktes/bus-booking-gateway/internal/seatmap"
	"github.com/robertarktes/bus-booking-gateway/internal/session"
	"github.com/robertarktes/bus-booking-gateway/internal/workflow"
)

type Authenticator interface {
	Login(ctx context.Context, creds backend.Credentials) (session.LoginResponse, error)
}

type Handlers struct {
	auth     Authenticator
	sessions *session.Registry
	workflow *workflow.Controller
	bookings *workflow.Bookings
	finder   *workflow.Finder
	ready    func(ctx context.Context) error
	logger   observability.Logger
}

type Deps struct {
	Auth     Authenticator
	Sessions *session.Registry
	Workflow *workflow.Controller
	Bookings *workflow.Bookings
	Finder   *workflow.Finder
	// Ready reports whether shared dependencies (redis) answer. Nil means always ready.
	Ready  func(ctx context.Context) error
	Logger observability.Logger
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		auth:     d.Auth,
		sessions: d.Sessions,
		workflow: d.Workflow,
		bookings: d.Bookings,
		finder:   d.Finder,
		ready:    d.Ready,
		logger:   d.Logger,
	}
}

// stateView is the workflow state plus what the page derives from it.
type stateView struct {
	*workflow.State
	Rows           []seatmap.Row `json:"rows,omitempty"`
	AvailableSeats int           `json:"availableSeats"`
	CanConfirm     bool          `json:"canConfirm"`
}

func viewOf(st *workflow.State) *stateView {
	if st == nil {
		return nil
	}
	v := &stateView{State: st, Rows: st.Rows(), CanConfirm: st.CanConfirm()}
	if st.SeatMap != nil {
		v.AvailableSeats = st.SeatMap.Available()
	}
	return v
}

func rider(r *http.Request) workflow.Rider {
	return workflow.RiderFrom(sessionFrom(r.Context()))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Notice: noticeBadRequest})
		return false
	}
	return true
}

// respond writes the state on success, or the notice with whatever state the
// failed step left behind.
func respond(w http.ResponseWriter, r *http.Request, st *workflow.State, err error) {
	if err != nil {
		writeError(w, r, err, viewOf(st))
		return
	}
	writeJSON(w, http.StatusOK, viewOf(st))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		verr := &domain.ValidationError{}
		if req.Email == "" {
			verr.Add("email", "Required")
		}
		if req.Password == "" {
			verr.Add("password", "Required")
		}
		writeError(w, r, verr, nil)
		return
	}

	resp, err := h.auth.Login(r.Context(), backend.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	s, err := h.sessions.Open(resp, deviceLabel(r.UserAgent()))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, s)
}

// deviceLabel renders a user agent as e.g. "Chrome 120.0 on Linux x86_64".
func deviceLabel(ua string) string {
	if ua == "" {
		return ""
	}
	agent := user_agent.New(ua)
	name, version := agent.Browser()
	label := name
	if version != "" {
		label += " " + version
	}
	if os := agent.OS(); os != "" {
		label = fmt.Sprintf("%s on %s", label, os)
	}
	if agent.Mobile() {
		label += " (mobile)"
	}
	return label
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(sessionFrom(r.Context()).ID)
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r.Context()))
}

func (h *Handlers) SearchTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	trips, err := h.finder.Search(r.Context(), rider(r), domain.TripQuery{
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
		Date:        q.Get("date"),
		BusType:     q.Get("busType"),
	})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, trips)
}

type startRequest struct {
	TripID int64 `json:"tripId"`
}

func (h *Handlers) StartBooking(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TripID <= 0 {
		verr := &domain.ValidationError{}
		verr.Add("tripId", "Required")
		writeError(w, r, verr, nil)
		return
	}
	st, err := h.workflow.Start(r.Context(), rider(r), req.TripID)
	respond(w, r, st, err)
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	st, err := h.workflow.Get(r.Context(), rider(r))
	respond(w, r, st, err)
}

func (h *Handlers) ToggleSeat(w http.ResponseWriter, r *http.Request) {
	st, err := h.workflow.ToggleSeat(r.Context(), rider(r), chi.URLParam(r, "seatNumber"))
	respond(w, r, st, err)
}

func (h *Handlers) ConfirmSelection(w http.ResponseWriter, r *http.Request) {
	st, err := h.workflow.ConfirmSelection(r.Context(), rider(r))
	respond(w, r, st, err)
}

func (h *Handlers) BackToSeats(w http.ResponseWriter, r *http.Request) {
	st, err := h.workflow.BackToSeats(r.Context(), rider(r))
	respond(w, r, st, err)
}

func (h *Handlers) SubmitPassengers(w http.ResponseWriter, r *http.Request) {
	var form passenger.Form
	if !decode(w, r, &form) {
		return
	}
	st, err := h.workflow.SubmitPassengers(r.Context(), rider(r), form)
	respond(w, r, st, err)
}

func (h *Handlers) Pay(w http.ResponseWriter, r *http.Request) {
	var in workflow.PaymentInput
	if !decode(w, r, &in) {
		return
	}
	st, err := h.workflow.Pay(r.Context(), rider(r), in)
	respond(w, r, st, err)
}

func (h *Handlers) PaymentURI(w http.ResponseWriter, r *http.Request) {
	uri, err := h.workflow.PaymentURI(r.Context(), rider(r))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uri": uri})
}

func (h *Handlers) PaymentQR(w http.ResponseWriter, r *http.Request) {
	uri, err := h.workflow.PaymentURI(r.Context(), rider(r))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	png, err := payment.QRPNG(uri)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handlers) Abandon(w http.ResponseWriter, r *http.Request) {
	st, err := h.workflow.Abandon(r.Context(), rider(r))
	respond(w, r, st, err)
}

func (h *Handlers) CloseBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.workflow.Close(r.Context(), sessionFrom(r.Context()).ID); err != nil {
		writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	list, err := h.bookings.List(r.Context(), rider(r))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type cancelRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	b, err := h.bookings.Cancel(r.Context(), rider(r), chi.URLParam(r, "id"), req.Confirm)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			observability.LoggerFrom(r.Context(), h.logger).WithError(err).Warn("not ready")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Not Ready"))
			return
		}
	}
	w.Header().Set("X-Live-Sessions", strconv.Itoa(h.sessions.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
