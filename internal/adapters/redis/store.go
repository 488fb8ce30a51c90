package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/workflow"
)

const expiringHolds = "holds:expiring"

// Store keeps workflow snapshots under wf:state:<session> and indexes HELD
// sessions by hold expiry in a sorted set.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func stateKey(sessionID string) string {
	return "wf:state:" + sessionID
}

func (s *Store) Load(ctx context.Context, sessionID string) (*workflow.State, error) {
	data, err := s.client.Get(ctx, stateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.Wrapf(domain.ErrNotFound, "no booking in progress for session %s", sessionID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load workflow state")
	}
	return workflow.Restore(data)
}

func (s *Store) Save(ctx context.Context, st *workflow.State) error {
	data, err := st.Snapshot()
	if err != nil {
		return errors.Wrap(err, "snapshot workflow state")
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, stateKey(st.SessionID), data, s.ttl)
	if st.Hold == domain.HoldHeld && !st.HoldExpiry.IsZero() {
		pipe.ZAdd(ctx, expiringHolds, redis.Z{Score: float64(st.HoldExpiry.Unix()), Member: st.SessionID})
	} else {
		pipe.ZRem(ctx, expiringHolds, st.SessionID)
	}
	_, err = pipe.Exec(ctx)
	return errors.Wrap(err, "save workflow state")
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, stateKey(sessionID))
	pipe.ZRem(ctx, expiringHolds, sessionID)
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "delete workflow state")
}

func (s *Store) ExpiredHolds(ctx context.Context, before time.Time) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, expiringHolds, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(before.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list expired holds")
	}
	return ids, nil
}
