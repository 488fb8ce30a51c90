package session

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

// Registry owns every live session of the gateway. Ended sessions are removed
// and the OnEnd hooks run so per-session state can be torn down.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	hooks    []func(*Session)
	now      func() time.Time
	logger   observability.Logger
}

type Option func(*Registry)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(logger observability.Logger, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnEnd registers fn to run after a session is logged out or expires.
func (r *Registry) OnEnd(fn func(*Session)) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

func (r *Registry) Open(resp LoginResponse, device string) (*Session, error) {
	s, err := newSession(resp, device, r.now)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	s.arm(r.teardown)
	r.logger.WithField("session_id", s.ID).WithField("user_id", s.UserID).Info("session opened")
	return s, nil
}

func (r *Registry) teardown(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s.ID)
	hooks := append([]func(*Session){}, r.hooks...)
	r.mu.Unlock()

	for _, h := range hooks {
		h(s)
	}
	r.logger.WithField("session_id", s.ID).Info("session ended")
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrap(domain.ErrUnauthorized, "unknown session")
	}
	if !s.Active() {
		s.end(domain.ErrSessionExpired)
		return nil, errors.Wrap(domain.ErrSessionExpired, "session expired")
	}
	return s, nil
}

func (r *Registry) Logout(id string) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.Logout()
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
