package lock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrAcquireTimeout = errors.New("LOCK_ACQUIRE_TIMEOUT")

type Config struct {
	TTL            time.Duration `mapstructure:"ttl"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
}

// Release frees the held section. Safe to call once per successful Acquire.
type Release func(ctx context.Context) error

// Manager serializes the check-and-debit path per user. Acquire blocks at
// most the configured acquire timeout and then fails with ErrAcquireTimeout;
// callers may also cancel the wait through ctx before the section is held.
type Manager interface {
	Acquire(ctx context.Context, userID string) (Release, error)
}

// NewManager builds the manager for the configured mode. The dial function is
// only invoked in redis mode, so single-node deployments run without a
// reachable redis.
func NewManager(mode string, cfg Config, dial func() (*redis.Client, error)) (Manager, error) {
	if mode == "local" {
		return NewLocalManager(cfg), nil
	}

	client, err := dial()
	if err != nil {
		return nil, err
	}
	return NewRedisManager(client, cfg), nil
}
