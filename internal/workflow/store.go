package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
)

// Store persists workflow state per session. Implementations index HELD
// states by hold expiry so the sweeper can find lapsed holds.
type Store interface {
	Load(ctx context.Context, sessionID string) (*State, error)
	Save(ctx context.Context, s *State) error
	Delete(ctx context.Context, sessionID string) error
	ExpiredHolds(ctx context.Context, before time.Time) ([]string, error)
}

// Locker serializes operations on one session so a double submit cannot
// reach the booking service twice.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// ErrBusy is returned while another operation holds the session lock.
var ErrBusy = errors.Wrap(domain.ErrInvalidTransition, "another operation is in progress")

// waitLock retries TryLock while the session is busy, backing off up to
// 200ms between attempts, until it wins the lock or ctx is done.
func waitLock(ctx context.Context, l Locker, key string, ttl time.Duration) (func(), error) {
	backoff := 10 * time.Millisecond
	for {
		unlock, err := l.TryLock(ctx, key, ttl)
		if !errors.Is(err, ErrBusy) {
			return unlock, err
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "wait for session lock")
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
	expiry map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte), expiry: make(map[string]time.Time)}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*State, error) {
	m.mu.RLock()
	data, ok := m.states[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "no booking in progress for session %s", sessionID)
	}
	return Restore(data)
}

func (m *MemoryStore) Save(_ context.Context, s *State) error {
	data, err := s.Snapshot()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.SessionID] = data
	if s.Hold == domain.HoldHeld && !s.HoldExpiry.IsZero() {
		m.expiry[s.SessionID] = s.HoldExpiry
	} else {
		delete(m.expiry, s.SessionID)
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionID)
	delete(m.expiry, sessionID)
	return nil
}

func (m *MemoryStore) ExpiredHolds(_ context.Context, before time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, exp := range m.expiry {
		if !exp.After(before) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, ErrBusy
	}
	l.held[key] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}
