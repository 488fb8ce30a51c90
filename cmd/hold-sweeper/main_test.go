package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

type stubSweeper struct {
	mu    sync.Mutex
	fails int
	calls int
}

func (s *stubSweeper) SweepExpiredHolds(context.Context, time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fails > 0 {
		s.fails--
		return 0, errors.New("redis unavailable")
	}
	return 2, nil
}

func (s *stubSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestSweepWithRetry(t *testing.T) {
	s := &stubSweeper{fails: 2}
	w := NewSweepWorker(s, observability.NopLogger())
	w.backoff = time.Millisecond

	n, err := w.sweepWithRetry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, s.count())

	s.fails = 5
	_, err = w.sweepWithRetry(context.Background())
	assert.Error(t, err)
}

func TestRunSweepsOnEveryTick(t *testing.T) {
	s := &stubSweeper{}
	w := NewSweepWorker(s, observability.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.count() >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
