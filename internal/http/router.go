package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robertarktes/bus-booking-gateway/internal/idempotency"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
	"github.com/robertarktes/bus-booking-gateway/internal/session"
)

type RouterOptions struct {
	AllowedOrigins []string
	Limiter        Limiter
	Idempotency    *idempotency.Idempotency
}

func SetupRouter(h *Handlers, logger observability.Logger, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", idempotency.Header, SessionHeader},
		ExposedHeaders:   []string{"Idempotent-Replay"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Use(RateLimitMiddleware(opts.Limiter, h.sessions, logger))

		r.Post("/session/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(h.sessions))
			r.Post("/session/logout", h.Logout)
			r.Get("/session", h.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(h.sessions, session.RoleUser))
			if opts.Idempotency != nil {
				r.Use(opts.Idempotency.Middleware(func(r *http.Request) string {
					return sessionFrom(r.Context()).ID
				}))
			}

			r.Get("/trips", h.SearchTrips)

			r.Get("/booking", h.GetBooking)
			r.Delete("/booking", h.CloseBooking)
			r.Post("/booking/start", h.StartBooking)
			r.Post("/booking/seats/{seatNumber}/toggle", h.ToggleSeat)
			r.Post("/booking/selection/confirm", h.ConfirmSelection)
			r.Post("/booking/selection/back", h.BackToSeats)
			r.Post("/booking/passengers", h.SubmitPassengers)
			r.Post("/booking/payment", h.Pay)
			r.Get("/booking/payment/uri", h.PaymentURI)
			r.Get("/booking/payment/qr.png", h.PaymentQR)
			r.Post("/booking/abandon", h.Abandon)

			r.Get("/bookings", h.ListBookings)
			r.Post("/bookings/{id}/cancel", h.CancelBooking)
		})
	})

	return r
}
