package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/robertarktes/bus-booking-gateway/internal/adapters/mongo"
	"github.com/robertarktes/bus-booking-gateway/internal/adapters/rabbit"
	"github.com/robertarktes/bus-booking-gateway/internal/config"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

const auditQueue = "bbg.audit"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.RabbitURL == "" || cfg.MongoURI == "" {
		log.Fatalf("event-audit needs RABBIT_URL and MONGO_URI")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "bbg-event-audit")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger(cfg.LogLevel)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("bbg"), logger)
	if err := audit.EnsureIndexes(ctx); err != nil {
		log.Fatalf("failed to create audit indexes: %v", err)
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	consumer, err := rabbit.NewConsumer(conn, auditQueue, logger)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	logger.WithField("queue", auditQueue).Info("event audit started")
	if err := consumer.Run(ctx, audit.Record); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("event audit stopped")
		return
	}
	logger.Info("Shutdown event audit")
}
