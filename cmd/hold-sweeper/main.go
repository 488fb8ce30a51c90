package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"

	"github.com/robertarktes/bus-booking-gateway/internal/adapters/kafka"
	"github.com/robertarktes/bus-booking-gateway/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/bus-booking-gateway/internal/adapters/redis"
	"github.com/robertarktes/bus-booking-gateway/internal/config"
	"github.com/robertarktes/bus-booking-gateway/internal/events"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
	"github.com/robertarktes/bus-booking-gateway/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "bbg-hold-sweeper")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger(cfg.LogLevel)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	sinks := events.NewMulti(logger)
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
		sinks.Add("rabbit", pub)
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatalf("failed to create kafka producer: %v", err)
		}
		defer producer.Close()
		sinks.Add("kafka", producer)
	}

	// The sweeper only touches stored state, so no backend services are wired.
	ctrl := workflow.NewController(workflow.Deps{
		Store:  redisadapter.NewStore(redisClient, cfg.WorkflowTTL),
		Locker: redisadapter.NewLocker(redisClient),
		Events: sinks,
		Logger: logger,
	}, workflow.Settings{HoldTTL: cfg.HoldTTL, LockTTL: cfg.LockTTL})

	worker := NewSweepWorker(ctrl, logger)
	worker.Run(ctx, cfg.SweepInterval)
	logger.Info("Shutdown hold sweeper")
}

type Sweeper interface {
	SweepExpiredHolds(ctx context.Context, now time.Time) (int, error)
}

type SweepWorker struct {
	sweeper    Sweeper
	logger     observability.Logger
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
}

func NewSweepWorker(s Sweeper, logger observability.Logger) *SweepWorker {
	return &SweepWorker{sweeper: s, logger: logger, maxRetries: 3, backoff: time.Second, now: time.Now}
}

func (w *SweepWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.sweepWithRetry(ctx)
			if err != nil {
				w.logger.WithError(err).Error("failed to sweep expired holds after retries")
				continue
			}
			if n > 0 {
				w.logger.WithField("released", n).Info("released expired holds")
			}
		}
	}
}

func (w *SweepWorker) sweepWithRetry(ctx context.Context) (int, error) {
	var err error
	for i := 0; i < w.maxRetries; i++ {
		var n int
		if n, err = w.sweeper.SweepExpiredHolds(ctx, w.now()); err == nil {
			return n, nil
		}
		backoff := time.Duration(1<<i) * w.backoff
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return 0, err
}
