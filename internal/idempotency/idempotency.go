// Package idempotency replays the stored response of a mutating request that
// is retried with the same Idempotency-Key, so a double-clicked "Pay" never
// runs twice.
package idempotency

import (
	"bytes"
	"context"
	"net/http"
	"time"

	redisadapter "github.com/robertarktes/bus-booking-gateway/internal/adapters/redis"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

const Header = "Idempotency-Key"

type Response = redisadapter.IdempResponse

type Store interface {
	Get(ctx context.Context, key string) (*Response, error)
	Set(ctx context.Context, key string, resp Response, ttl time.Duration) error
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// claimTTL bounds how long a crashed request can block its key.
const claimTTL = time.Minute

type Idempotency struct {
	store  Store
	ttl    time.Duration
	logger observability.Logger
}

func NewIdempotency(store Store, ttl time.Duration, logger observability.Logger) *Idempotency {
	return &Idempotency{store: store, ttl: ttl, logger: logger}
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	return i.store.Get(ctx, key)
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	return i.store.Set(ctx, key, resp, i.ttl)
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

// Middleware replays stored responses. scope narrows the key, normally to
// the caller's session, so keys from different riders never collide.
func (i *Idempotency) Middleware(scope func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(Header)
			if key == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			key = scope(r) + ":" + r.Method + ":" + r.URL.Path + ":" + key
			log := observability.LoggerFrom(r.Context(), i.logger)

			stored, err := i.Get(r.Context(), key)
			if err != nil {
				log.WithError(err).Warn("idempotency lookup failed")
			}
			if stored != nil {
				w.Header().Set("Content-Type", stored.ContentType)
				w.Header().Set("Idempotent-Replay", "true")
				w.WriteHeader(stored.Status)
				w.Write(stored.Body)
				return
			}

			claimed, err := i.store.Claim(r.Context(), key, claimTTL)
			if err != nil {
				log.WithError(err).Warn("idempotency claim failed")
			} else if !claimed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(`{"error":"in_progress","message":"This request is already being processed.","action":"none"}`))
				return
			}

			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status == 0 || rec.status >= http.StatusInternalServerError {
				if claimed {
					if err := i.store.Release(context.WithoutCancel(r.Context()), key); err != nil {
						log.WithError(err).Warn("idempotency release failed")
					}
				}
				return
			}
			resp := Response{Status: rec.status, ContentType: rec.Header().Get("Content-Type"), Body: rec.body.Bytes()}
			if err := i.Set(context.WithoutCancel(r.Context()), key, resp); err != nil {
				log.WithError(err).Warn("idempotency store failed")
			}
		})
	}
}
