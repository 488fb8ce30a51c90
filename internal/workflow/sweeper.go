package workflow

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

// SweepExpiredHolds releases every HELD workflow whose hold expired before
// now and sends the rider back to seat selection. Busy sessions are skipped
// and picked up by the next sweep; any other failure is returned after the
// remaining sessions were tried.
func (c *Controller) SweepExpiredHolds(ctx context.Context, now time.Time) (int, error) {
	ids, err := c.store.ExpiredHolds(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "list expired holds")
	}

	swept := 0
	var failed error
	for _, id := range ids {
		ok, err := c.sweepOne(ctx, id, now)
		if err != nil {
			c.logger.WithField("session_id", id).WithError(err).Error("failed to release expired hold")
			failed = errors.CombineErrors(failed, errors.Wrapf(err, "session %s", id))
			continue
		}
		if ok {
			swept++
			observability.HoldsSwept.Inc()
		}
	}
	return swept, failed
}

func (c *Controller) sweepOne(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	unlock, err := c.locker.TryLock(ctx, lockKey(sessionID), c.settings.LockTTL)
	if errors.Is(err, ErrBusy) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "lock session")
	}
	defer unlock()

	st, err := c.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if st.Hold != domain.HoldHeld || st.HoldExpiry.After(now) {
		// Re-save to refresh the expiry index.
		return false, c.store.Save(ctx, st)
	}

	c.releaseHold(ctx, st, "expired")
	c.restart(ctx, "", st, "expired")
	st.UpdatedAt = now.UTC()
	return true, c.store.Save(ctx, st)
}
