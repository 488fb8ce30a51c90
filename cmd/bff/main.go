package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/robertarktes/bus-booking-gateway/internal/adapters/backend"
	"github.com/robertarktes/bus-booking-gateway/internal/adapters/kafka"
	mongoadapter "github.com/robertarktes/bus-booking-gateway/internal/adapters/mongo"
	"github.com/robertarktes/bus-booking-gateway/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/bus-booking-gateway/internal/adapters/redis"
	"github.com/robertarktes/bus-booking-gateway/internal/config"
	"github.com/robertarktes/bus-booking-gateway/internal/events"
	httphandler "github.com/robertarktes/bus-booking-gateway/internal/http"
	"github.com/robertarktes/bus-booking-gateway/internal/idempotency"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
	"github.com/robertarktes/bus-booking-gateway/internal/outbox"
	"github.com/robertarktes/bus-booking-gateway/internal/payment"
	"github.com/robertarktes/bus-booking-gateway/internal/rateLimit"
	"github.com/robertarktes/bus-booking-gateway/internal/session"
	"github.com/robertarktes/bus-booking-gateway/internal/workflow"
)

const outboxSize = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "bbg-bff")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger(cfg.LogLevel)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	cache := redisadapter.NewCache(redisClient)

	g, gctx := errgroup.WithContext(ctx)

	// Each broker gets its own outbox so a slow or failing broker never
	// delays or duplicates delivery to the others.
	sinks := events.NewMulti(logger)
	relay := func(name string, s events.Sink) {
		p := outbox.NewPublisher(s, outboxSize, logger.WithField("sink", name))
		g.Go(func() error {
			p.Run(gctx, 5*time.Second)
			return nil
		})
		sinks.Add(name, p)
	}

	if cfg.RabbitURL != "" {
		conn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer conn.Close()
		pub, err := rabbit.NewPublisher(conn)
		if err != nil {
			log.Fatalf("failed to create publisher: %v", err)
		}
		defer pub.Close()
		relay("rabbit", pub)
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatalf("failed to create kafka producer: %v", err)
		}
		defer producer.Close()
		relay("kafka", producer)
	}
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		audit := mongoadapter.NewAuditLogger(mongoClient.Database("bbg"), logger)
		if err := audit.EnsureIndexes(ctx); err != nil {
			log.Fatalf("failed to create audit indexes: %v", err)
		}
		relay("mongo", audit)
	}

	auth := backend.NewAuth(cfg.AuthURL, cfg.RequestTimeout, logger)
	trips := backend.NewTrips(cfg.TripsURL, cfg.RequestTimeout, logger)
	inventory := backend.NewInventory(cfg.InventoryURL, cfg.RequestTimeout, logger)
	booking := backend.NewBooking(cfg.BookingURL, cfg.RequestTimeout, logger)
	catalog := workflow.NewCatalog(inventory, cache, cfg.LabelCacheTTL, logger)

	ctrl := workflow.NewController(workflow.Deps{
		Trips:    trips,
		Booking:  booking,
		Payments: payment.NewSandbox(cfg.PaymentDelay, cfg.FallbackVPA),
		Store:    redisadapter.NewStore(redisClient, cfg.WorkflowTTL),
		Locker:   redisadapter.NewLocker(redisClient),
		Events:   sinks,
		Logger:   logger,
	}, workflow.Settings{
		HoldTTL:     cfg.HoldTTL,
		LockTTL:     cfg.LockTTL,
		FallbackVPA: cfg.FallbackVPA,
		PayeeName:   cfg.PayeeName,
	})
	bookings := workflow.NewBookings(booking, trips, catalog, sinks, logger)

	sessions := session.NewRegistry(logger)
	sessions.OnEnd(workflow.SessionEnded(ctrl, bookings))

	handlers := httphandler.NewHandlers(httphandler.Deps{
		Auth:     auth,
		Sessions: sessions,
		Workflow: ctrl,
		Bookings: bookings,
		Finder:   workflow.NewFinder(trips, catalog, logger),
		Ready: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
		Logger: logger,
	})

	r := httphandler.SetupRouter(handlers, logger, httphandler.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Limiter:        rateLimit.NewRateLimiter(cache, cfg.RateLimit, cfg.RateWindow),
		Idempotency:    idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL, logger),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("bff listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown Server ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("bff stopped with error")
	}
	logger.Info("Server exiting")
}
