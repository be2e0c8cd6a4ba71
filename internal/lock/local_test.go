package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/reputrack/creditledger/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(acquireTimeout time.Duration) lock.Manager {
	return lock.NewLocalManager(lock.Config{
		TTL:            time.Second,
		AcquireTimeout: acquireTimeout,
		RetryInterval:  5 * time.Millisecond,
	})
}

func TestNewManager(t *testing.T) {
	cfg := lock.Config{
		TTL:            time.Second,
		AcquireTimeout: 100 * time.Millisecond,
		RetryInterval:  5 * time.Millisecond,
	}

	t.Run("local mode never dials redis", func(t *testing.T) {
		dialed := false
		m, err := lock.NewManager("local", cfg, func() (*redis.Client, error) {
			dialed = true
			return nil, nil
		})
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.False(t, dialed)

		release, err := m.Acquire(context.Background(), "u1")
		require.NoError(t, err)
		require.NoError(t, release(context.Background()))
	})

	t.Run("redis mode surfaces the dial error", func(t *testing.T) {
		_, err := lock.NewManager("redis", cfg, func() (*redis.Client, error) {
			return nil, errors.New("connection refused")
		})
		require.Error(t, err)
	})
}

func TestLocalManager_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire and release make the section reusable", func(t *testing.T) {
		m := newManager(100 * time.Millisecond)

		release, err := m.Acquire(ctx, "u1")
		require.NoError(t, err)
		require.NoError(t, release(ctx))

		release, err = m.Acquire(ctx, "u1")
		require.NoError(t, err)
		require.NoError(t, release(ctx))
	})

	t.Run("distinct users never contend", func(t *testing.T) {
		m := newManager(50 * time.Millisecond)

		r1, err := m.Acquire(ctx, "u1")
		require.NoError(t, err)
		defer r1(ctx)

		r2, err := m.Acquire(ctx, "u2")
		require.NoError(t, err)
		defer r2(ctx)
	})

	t.Run("second acquire on a held section times out", func(t *testing.T) {
		m := newManager(50 * time.Millisecond)

		release, err := m.Acquire(ctx, "u1")
		require.NoError(t, err)
		defer release(ctx)

		start := time.Now()
		_, err = m.Acquire(ctx, "u1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, lock.ErrAcquireTimeout))
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("canceled context stops the wait early", func(t *testing.T) {
		m := newManager(time.Second)

		release, err := m.Acquire(ctx, "u1")
		require.NoError(t, err)
		defer release(ctx)

		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err = m.Acquire(waitCtx, "u1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("waiter proceeds once the holder releases", func(t *testing.T) {
		m := newManager(time.Second)

		release, err := m.Acquire(ctx, "u1")
		require.NoError(t, err)

		acquired := make(chan struct{})
		go func() {
			r, err := m.Acquire(ctx, "u1")
			if err == nil {
				r(ctx)
			}
			close(acquired)
		}()

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, release(ctx))

		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("waiter never acquired the released section")
		}
	})

	t.Run("contenders serialize instead of overlapping", func(t *testing.T) {
		m := newManager(time.Second)

		var mu sync.Mutex
		inSection := 0
		maxInSection := 0

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				release, err := m.Acquire(ctx, "u1")
				if err != nil {
					return
				}
				defer release(ctx)

				mu.Lock()
				inSection++
				if inSection > maxInSection {
					maxInSection = inSection
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				inSection--
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, maxInSection)
	})
}
