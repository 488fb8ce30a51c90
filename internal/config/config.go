package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	AuthURL      string
	InventoryURL string
	TripsURL     string
	BookingURL   string

	RequestTimeout time.Duration
	HoldTTL        time.Duration
	WorkflowTTL    time.Duration
	LabelCacheTTL  time.Duration
	SweepInterval  time.Duration
	LockTTL        time.Duration
	IdempotencyTTL time.Duration

	RateLimit  int
	RateWindow time.Duration

	PaymentDelay time.Duration
	FallbackVPA  string
	PayeeName    string

	RedisAddr    string
	RabbitURL    string
	KafkaBrokers []string
	KafkaTopic   string
	MongoURI     string

	OTLPEndpoint     string
	TraceSampleRatio float64
	AllowedOrigins   []string
	LogLevel         string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		AuthURL:      getenv("AUTH_URL", "http://localhost:9001"),
		InventoryURL: getenv("INVENTORY_URL", "http://localhost:9002"),
		TripsURL:     getenv("TRIPS_URL", "http://localhost:9003"),
		BookingURL:   getenv("BOOKING_URL", "http://localhost:9004"),

		RequestTimeout: duration("REQUEST_TIMEOUT", 15*time.Second),
		HoldTTL:        duration("HOLD_TTL", 10*time.Minute),
		WorkflowTTL:    duration("WORKFLOW_TTL", 30*time.Minute),
		LabelCacheTTL:  duration("LABEL_CACHE_TTL", 10*time.Minute),
		SweepInterval:  duration("SWEEP_INTERVAL", time.Minute),
		LockTTL:        duration("LOCK_TTL", 30*time.Second),
		IdempotencyTTL: duration("IDEMPOTENCY_TTL", 24*time.Hour),

		RateLimit:  integer("RATE_LIMIT", 60),
		RateWindow: duration("RATE_WINDOW", time.Minute),

		PaymentDelay: duration("PAYMENT_DELAY", 800*time.Millisecond),
		FallbackVPA:  getenv("FALLBACK_VPA", "merchant@bank"),
		PayeeName:    getenv("PAYEE_NAME", "Merchant"),

		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		RabbitURL:    os.Getenv("RABBIT_URL"),
		KafkaBrokers: list("KAFKA_BROKERS"),
		KafkaTopic:   getenv("KAFKA_TOPIC", "bbg.events"),
		MongoURI:     os.Getenv("MONGO_URI"),

		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TraceSampleRatio: ratio("OTEL_TRACES_SAMPLER_ARG", 1),
		AllowedOrigins:   listOr("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		LogLevel:         getenv("LOG_LEVEL", "info"),
	}
	cfg.LockTTL = max(cfg.LockTTL, minLockTTL(cfg))
	return cfg, nil
}

// minLockTTL covers the longest locked workflow step: the simulated payment,
// the confirm call, then a seat map reload when confirm fails.
func minLockTTL(cfg *Config) time.Duration {
	return 2*cfg.RequestTimeout + cfg.PaymentDelay
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// duration falls back to def when the variable is unset, unparsable or non-positive.
func duration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func integer(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// ratio falls back to def unless the variable parses into (0, 1].
func ratio(key string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil || f <= 0 || f > 1 {
		return def
	}
	return f
}

func list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func listOr(key string, def []string) []string {
	if l := list(key); len(l) > 0 {
		return l
	}
	return def
}
