// Command rider is a terminal front-end for booking bus seats. It drives the
// same booking workflow as the gateway, keeping state in memory.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/robertarktes/bus-booking-gateway/internal/adapters/backend"
	"github.com/robertarktes/bus-booking-gateway/internal/config"
	"github.com/robertarktes/bus-booking-gateway/internal/events"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
	"github.com/robertarktes/bus-booking-gateway/internal/payment"
	"github.com/robertarktes/bus-booking-gateway/internal/session"
	"github.com/robertarktes/bus-booking-gateway/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := newApp(cfg, observability.NopLogger(), os.Stdin, os.Stdout)
	if err := app.run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newApp(cfg *config.Config, logger observability.Logger, in io.Reader, out io.Writer) *app {
	trips := backend.NewTrips(cfg.TripsURL, cfg.RequestTimeout, logger)
	booking := backend.NewBooking(cfg.BookingURL, cfg.RequestTimeout, logger)
	catalog := workflow.NewCatalog(backend.NewInventory(cfg.InventoryURL, cfg.RequestTimeout, logger), nil, cfg.LabelCacheTTL, logger)
	rec := events.NewRecorder()

	ctrl := workflow.NewController(workflow.Deps{
		Trips:    trips,
		Booking:  booking,
		Payments: payment.NewSandbox(cfg.PaymentDelay, cfg.FallbackVPA),
		Events:   rec,
		Logger:   logger,
	}, workflow.Settings{HoldTTL: cfg.HoldTTL, FallbackVPA: cfg.FallbackVPA, PayeeName: cfg.PayeeName})
	bookings := workflow.NewBookings(booking, trips, catalog, rec, logger)

	sessions := session.NewRegistry(logger)
	sessions.OnEnd(workflow.SessionEnded(ctrl, bookings))

	return &app{
		term:     newTerminal(in, out),
		auth:     backend.NewAuth(cfg.AuthURL, cfg.RequestTimeout, logger),
		sessions: sessions,
		ctrl:     ctrl,
		bookings: bookings,
		finder:   workflow.NewFinder(trips, catalog, logger),
	}
}
