package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/bus-booking-gateway/internal/adapters/backend"
	"github.com/robertarktes/bus-booking-gateway/internal/events"
	"github.com/robertarktes/bus-booking-gateway/internal/idempotency"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
	"github.com/robertarktes/bus-booking-gateway/internal/payment"
	"github.com/robertarktes/bus-booking-gateway/internal/session"
	"github.com/robertarktes/bus-booking-gateway/internal/workflow"
)

// services stubs the auth, inventory, trip and booking services.
type services struct {
	mu           sync.Mutex
	holdConflict bool
	holds        int
	confirms     int
	cancelled    []string
}

func signedToken(t *testing.T, role string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "7",
		"role": role,
		"exp":  exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func (s *services) authMux(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds backend.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Password != "secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		role := "ROLE_USER"
		if strings.HasPrefix(creds.Email, "seller") {
			role = "ROLE_SELLER"
		}
		json.NewEncoder(w).Encode(map[string]any{
			"accessToken": signedToken(t, role, time.Now().Add(time.Hour)),
			"email":       creds.Email,
			"role":        role,
			"userId":      7,
		})
	})
	mux.HandleFunc("GET /api/v1/buses/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":3,"busNumber":"MH12","busType":"AC"}`))
	})
	mux.HandleFunc("GET /api/v1/routes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":4,"source":"Pune","destination":"Goa"}`))
	})
	return mux
}

func tripsMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/trips/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":42,"busId":3,"routeId":4,"fare":"500"},{"id":43,"busId":3,"routeId":4,"fare":"450","cancelled":true}]`))
	})
	mux.HandleFunc("GET /api/v1/trips/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "42" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"id":42,"busId":3,"routeId":4,"fare":"500"}`))
	})
	return mux
}

func (s *services) bookingMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/trips/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"seatId":1,"seatNumber":"11","booked":true},{"seatId":2,"seatNumber":"12"},{"seatId":3,"seatNumber":"13"},{"seatId":4,"seatNumber":"14"}]`))
	})
	mux.HandleFunc("POST /api/v1/bookings/hold", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.holds++
		if s.holdConflict {
			http.Error(w, "seat already booked", http.StatusConflict)
			return
		}
		w.Write([]byte(`{"bookingId":"B-1","totalAmount":1000}`))
	})
	mux.HandleFunc("POST /api/v1/bookings/confirm/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.confirms++
		s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{
			"bookingId":   r.PathValue("id"),
			"tripId":      42,
			"seats":       []string{"12", "13"},
			"totalAmount": 1000,
			"status":      "CONFIRMED",
		})
	})
	mux.HandleFunc("GET /api/v1/bookings/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"bookingId":"B-9","tripId":42,"seats":["7"],"totalAmount":500,"status":"Confirmed"}]`))
	})
	mux.HandleFunc("POST /api/v1/bookings/cancel/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.cancelled = append(s.cancelled, r.PathValue("id"))
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

type memIdempotency struct {
	mu     sync.Mutex
	data   map[string]idempotency.Response
	claims map[string]bool
}

func (m *memIdempotency) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims[key] {
		return false, nil
	}
	m.claims[key] = true
	return true, nil
}

func (m *memIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, key)
	return nil
}

func (m *memIdempotency) Get(_ context.Context, key string) (*idempotency.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.data[key]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *memIdempotency) Set(_ context.Context, key string, resp idempotency.Response, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = resp
	delete(m.claims, key)
	return nil
}

type gateway struct {
	url      string
	svc      *services
	sessions *session.Registry
	events   *events.Recorder
}

// wiring lets a test swap the in-memory pieces for real adapters.
type wiring struct {
	store       workflow.Store
	locker      workflow.Locker
	sink        events.Sink
	limiter     Limiter
	idempotency idempotency.Store
}

func newGateway(t *testing.T, opts ...func(*wiring)) *gateway {
	t.Helper()
	svc := &services{}
	serve := func(h http.Handler) string {
		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)
		return srv.URL
	}
	authURL, tripsURL, bookingURL := serve(svc.authMux(t)), serve(tripsMux()), serve(svc.bookingMux())

	rec := events.NewRecorder()
	w := wiring{idempotency: &memIdempotency{data: map[string]idempotency.Response{}, claims: map[string]bool{}}}
	for _, opt := range opts {
		opt(&w)
	}
	sink := events.NewMulti(observability.NopLogger()).Add("recorder", rec)
	if w.sink != nil {
		sink.Add("extra", w.sink)
	}

	logger := observability.NopLogger()
	trips := backend.NewTrips(tripsURL, time.Second, logger)
	booking := backend.NewBooking(bookingURL, time.Second, logger)
	catalog := workflow.NewCatalog(backend.NewInventory(authURL, time.Second, logger), workflow.NewMemoryCache(), time.Minute, logger)

	ctrl := workflow.NewController(workflow.Deps{
		Trips:    trips,
		Booking:  booking,
		Payments: payment.NewSandbox(0, "merchant@bank"),
		Store:    w.store,
		Locker:   w.locker,
		Events:   sink,
		Logger:   logger,
	}, workflow.Settings{FallbackVPA: "merchant@bank", PayeeName: "Merchant"})
	bookings := workflow.NewBookings(booking, trips, catalog, sink, logger)

	registry := session.NewRegistry(logger)
	registry.OnEnd(workflow.SessionEnded(ctrl, bookings))

	h := NewHandlers(Deps{
		Auth:     backend.NewAuth(authURL, time.Second, logger),
		Sessions: registry,
		Workflow: ctrl,
		Bookings: bookings,
		Finder:   workflow.NewFinder(trips, catalog, logger),
		Logger:   logger,
	})
	router := SetupRouter(h, logger, RouterOptions{
		AllowedOrigins: []string{"http://localhost:3000"},
		Limiter:        w.limiter,
		Idempotency:    idempotency.NewIdempotency(w.idempotency, time.Hour, logger),
	})
	bff := httptest.NewServer(router)
	t.Cleanup(bff.Close)

	return &gateway{url: bff.URL, svc: svc, sessions: registry, events: rec}
}

func (g *gateway) call(t *testing.T, method, path, sessionID string, body any, headers ...string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, g.url+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (g *gateway) login(t *testing.T, email string) string {
	t.Helper()
	resp := g.call(t, http.MethodPost, "/v1/session/login", "", map[string]string{"email": email, "password": "secret"},
		"User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var s struct {
		ID     string `json:"id"`
		Role   string `json:"role"`
		Device string `json:"device"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	require.NotEmpty(t, s.ID)
	return s.ID
}

type stateBody struct {
	Error      string            `json:"error"`
	Action     string            `json:"action"`
	Fields     []fieldError      `json:"fields"`
	Step       string            `json:"step"`
	Hold       string            `json:"hold"`
	Selected   []string          `json:"selected"`
	CanConfirm bool              `json:"canConfirm"`
	Available  int               `json:"availableSeats"`
	Rows       []json.RawMessage `json:"rows"`
	Receipt    *struct {
		BookingID  string `json:"bookingId"`
		PaymentURI string `json:"paymentUri"`
	} `json:"receipt"`
	State *stateBody `json:"state"`
}

type fieldError struct {
	Field string `json:"field"`
}

func (b stateBody) fieldNames() []string {
	var out []string
	for _, f := range b.Fields {
		out = append(out, f.Field)
	}
	return out
}

func readState(t *testing.T, resp *http.Response) stateBody {
	t.Helper()
	var body stateBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func passengers(n int) map[string]any {
	list := make([]map[string]any, n)
	for i := range list {
		list[i] = map[string]any{"name": "Rider", "age": 30, "gender": "female"}
	}
	return map[string]any{"passengers": list, "mobile": "9876543210", "email": "rider@example.com"}
}

func (g *gateway) toPayment(t *testing.T, sid string) {
	t.Helper()
	resp := g.call(t, http.MethodPost, "/v1/booking/start", sid, map[string]int64{"tripId": 42})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, seat := range []string{"12", "13"} {
		resp = g.call(t, http.MethodPost, "/v1/booking/seats/"+seat+"/toggle", sid, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp = g.call(t, http.MethodPost, "/v1/booking/selection/confirm", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = g.call(t, http.MethodPost, "/v1/booking/passengers", sid, passengers(2))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readState(t, resp)
	require.Equal(t, "PAYMENT", body.Step)
	require.Equal(t, "HELD", body.Hold)
}

func TestLogin(t *testing.T) {
	g := newGateway(t)

	resp := g.call(t, http.MethodPost, "/v1/session/login", "", map[string]string{"email": "a@b.c", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = g.call(t, http.MethodPost, "/v1/session/login", "", map[string]string{"email": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, readState(t, resp).fieldNames(), "password")

	sid := g.login(t, "rider@example.com")
	assert.Equal(t, 1, g.sessions.Len())

	resp = g.call(t, http.MethodGet, "/v1/session", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "USER", me["role"])
	assert.Equal(t, "Chrome 120.0.0.0 on Linux x86_64", me["device"])

	resp = g.call(t, http.MethodPost, "/v1/session/logout", sid, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, g.sessions.Len())

	resp = g.call(t, http.MethodGet, "/v1/booking", sid, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "login", readState(t, resp).Action)
}

func TestBookingRoutesNeedRiderRole(t *testing.T) {
	g := newGateway(t)

	resp := g.call(t, http.MethodGet, "/v1/trips?origin=Pune&destination=Goa&date=2024-05-01", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	sid := g.login(t, "seller@example.com")
	resp = g.call(t, http.MethodGet, "/v1/trips?origin=Pune&destination=Goa&date=2024-05-01", sid, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSearchTrips(t *testing.T) {
	g := newGateway(t)
	sid := g.login(t, "rider@example.com")

	resp := g.call(t, http.MethodGet, "/v1/trips?origin=Pune&destination=Goa&date=2024-05-01", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var trips []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&trips))
	require.Len(t, trips, 1)
	assert.Equal(t, "MH12 (AC)", trips[0]["bus"])
	assert.Equal(t, "Pune → Goa", trips[0]["route"])

	resp = g.call(t, http.MethodGet, "/v1/trips?origin=Pune", sid, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestBookingHappyPath(t *testing.T) {
	g := newGateway(t)
	sid := g.login(t, "rider@example.com")

	resp := g.call(t, http.MethodPost, "/v1/booking/start", sid, map[string]int64{"tripId": 42})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readState(t, resp)
	assert.Equal(t, "SEAT_SELECTION", body.Step)
	assert.False(t, body.CanConfirm)
	assert.NotEmpty(t, body.Rows)
	assert.Equal(t, 3, body.Available)

	resp = g.call(t, http.MethodPost, "/v1/booking/selection/confirm", sid, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = g.call(t, http.MethodPost, "/v1/booking/seats/11/toggle", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, readState(t, resp).Selected)

	g.toPayment(t, sid)

	resp = g.call(t, http.MethodGet, "/v1/booking/payment/uri", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var uri map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uri))
	assert.Equal(t, "upi://pay?pa=merchant%40bank&pn=Merchant&am=1000.00&cu=INR", uri["uri"])

	resp = g.call(t, http.MethodGet, "/v1/booking/payment/qr.png", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp = g.call(t, http.MethodPost, "/v1/booking/payment", sid, map[string]string{"method": "upi"}, idempotency.Header, "pay-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = readState(t, resp)
	assert.Equal(t, "COMPLETED", body.Step)
	assert.Equal(t, "CONFIRMED", body.Hold)
	require.NotNil(t, body.Receipt)
	assert.Equal(t, "B-1", body.Receipt.BookingID)
	assert.Contains(t, body.Receipt.PaymentURI, "tn=Booking%3AB-1")

	resp = g.call(t, http.MethodPost, "/v1/booking/payment", sid, map[string]string{"method": "upi"}, idempotency.Header, "pay-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("Idempotent-Replay"))
	assert.Equal(t, 1, g.svc.confirms)

	assert.Contains(t, g.events.Types(), events.Confirmed)
}

func TestBookingHoldConflict(t *testing.T) {
	g := newGateway(t)
	g.svc.holdConflict = true
	sid := g.login(t, "rider@example.com")

	g.call(t, http.MethodPost, "/v1/booking/start", sid, map[string]int64{"tripId": 42})
	g.call(t, http.MethodPost, "/v1/booking/seats/12/toggle", sid, nil)
	g.call(t, http.MethodPost, "/v1/booking/selection/confirm", sid, nil)

	resp := g.call(t, http.MethodPost, "/v1/booking/passengers", sid, passengers(1))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := readState(t, resp)
	assert.Equal(t, "hold_conflict", body.Error)
	assert.Equal(t, "reselect-seats", body.Action)
	require.NotNil(t, body.State)
	assert.Equal(t, "SEAT_SELECTION", body.State.Step)
}

func TestBookingInvalidPassengers(t *testing.T) {
	g := newGateway(t)
	sid := g.login(t, "rider@example.com")

	g.call(t, http.MethodPost, "/v1/booking/start", sid, map[string]int64{"tripId": 42})
	g.call(t, http.MethodPost, "/v1/booking/seats/12/toggle", sid, nil)
	g.call(t, http.MethodPost, "/v1/booking/selection/confirm", sid, nil)

	form := passengers(1)
	form["mobile"] = "12345"
	resp := g.call(t, http.MethodPost, "/v1/booking/passengers", sid, form)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := readState(t, resp)
	assert.Equal(t, "validation", body.Error)
	assert.Contains(t, body.fieldNames(), "mobile")
	assert.Equal(t, 0, g.svc.holds)

	resp = g.call(t, http.MethodPost, "/v1/booking/passengers", sid, "not a form")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBookingOutOfOrderStep(t *testing.T) {
	g := newGateway(t)
	sid := g.login(t, "rider@example.com")

	resp := g.call(t, http.MethodGet, "/v1/booking", sid, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	g.call(t, http.MethodPost, "/v1/booking/start", sid, map[string]int64{"tripId": 42})
	resp = g.call(t, http.MethodPost, "/v1/booking/payment", sid, map[string]string{"method": "upi"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = g.call(t, http.MethodPost, "/v1/booking/start", sid, map[string]int64{"tripId": 99})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAbandonAndLogoutReleaseHold(t *testing.T) {
	g := newGateway(t)
	sid := g.login(t, "rider@example.com")
	g.toPayment(t, sid)

	resp := g.call(t, http.MethodPost, "/v1/booking/abandon", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readState(t, resp)
	assert.Equal(t, "SEAT_SELECTION", body.Step)
	assert.Equal(t, "RELEASED", body.Hold)
	assert.Empty(t, body.Selected)

	g.toPayment(t, sid)
	resp = g.call(t, http.MethodPost, "/v1/session/logout", sid, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, g.events.Types(), events.HoldReleased)
}

func TestMyBookingsAndCancel(t *testing.T) {
	g := newGateway(t)
	sid := g.login(t, "rider@example.com")

	resp := g.call(t, http.MethodGet, "/v1/bookings", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, true, list[0]["cancellable"])

	resp = g.call(t, http.MethodPost, "/v1/bookings/B-9/cancel", sid, map[string]bool{"confirm": false})
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)
	assert.Empty(t, g.svc.cancelled)

	resp = g.call(t, http.MethodPost, "/v1/bookings/B-9/cancel", sid, map[string]bool{"confirm": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var b map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&b))
	assert.Equal(t, "CANCELLED", b["status"])
	assert.Equal(t, []string{"B-9"}, g.svc.cancelled)

	resp = g.call(t, http.MethodPost, "/v1/bookings/B-9/cancel", sid, map[string]bool{"confirm": true})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHealthAndReadiness(t *testing.T) {
	g := newGateway(t)

	resp := g.call(t, http.MethodGet, "/v1/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = g.call(t, http.MethodGet, "/v1/readyz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = g.call(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

func TestRateLimit(t *testing.T) {
	h := NewHandlers(Deps{Sessions: session.NewRegistry(observability.NopLogger()), Logger: observability.NopLogger()})
	router := SetupRouter(h, observability.NopLogger(), RouterOptions{Limiter: denyAll{}})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/session/login", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

// oncePerKey allows one request per bucket key.
type oncePerKey struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (l *oncePerKey) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen[key] {
		return false, nil
	}
	l.seen[key] = true
	return true, nil
}

func TestRateLimit_UnknownSessionIDsShareAddressBucket(t *testing.T) {
	reg := session.NewRegistry(observability.NopLogger())
	h := NewHandlers(Deps{Sessions: reg, Logger: observability.NopLogger()})
	router := SetupRouter(h, observability.NopLogger(), RouterOptions{Limiter: &oncePerKey{seen: map[string]bool{}}})

	limited := 0
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/session/login", strings.NewReader(`{}`))
		req.RemoteAddr = "203.0.113.9:" + strconv.Itoa(40000+i)
		req.Header.Set(SessionHeader, "made-up-"+strconv.Itoa(i))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 4, limited)

	s, err := reg.Open(session.LoginResponse{AccessToken: signedToken(t, "USER", time.Now().Add(time.Hour)), Role: "USER", UserID: 7}, "")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
	req.RemoteAddr = "203.0.113.9:40100"
	req.Header.Set(SessionHeader, s.ID)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestDeviceLabel(t *testing.T) {
	assert.Equal(t, "", deviceLabel(""))
	label := deviceLabel("Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1")
	assert.Contains(t, label, "Safari")
	assert.Contains(t, label, "(mobile)")
}
