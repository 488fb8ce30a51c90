package workflow

import (
	"context"
	"time"

	"github.com/robertarktes/bus-booking-gateway/internal/events"
	"github.com/robertarktes/bus-booking-gateway/internal/session"
)

const teardownTimeout = 5 * time.Second

// SessionEnded is the registry hook that discards a session's workflow and
// cached booking list once the rider logs out or the token expires. A held
// seat is released locally on the way out.
func SessionEnded(c *Controller, b *Bookings) func(*session.Session) {
	return func(s *session.Session) {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()

		log := c.logger.WithField("session_id", s.ID)
		if err := c.Close(ctx, s.ID); err != nil {
			log.WithError(err).Warn("failed to close workflow")
		}
		if b != nil {
			b.Forget(s.ID)
		}
		if s.Expired() {
			e := events.New(events.SessionExpired, s.UserID, 0)
			e.Reason = "token expired"
			_ = c.events.Publish(ctx, e)
			log.Info("session expired")
		}
	}
}
