package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const keyFormat = "credits:lock:user:%s"

// unlock checks the owner token before deleting so an expired holder cannot
// release a lock someone else has since acquired.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

type redisManager struct {
	client *redis.Client
	cfg    Config
}

func NewRedisManager(client *redis.Client, cfg Config) Manager {
	return &redisManager{client: client, cfg: cfg}
}

func (m *redisManager) Acquire(ctx context.Context, userID string) (Release, error) {
	key := fmt.Sprintf(keyFormat, userID)
	token := uuid.NewString()

	deadline := time.Now().Add(m.cfg.AcquireTimeout)
	for {
		ok, err := m.client.SetNX(ctx, key, token, m.cfg.TTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return m.release(key, token), nil
		}

		if time.Now().After(deadline) {
			return nil, ErrAcquireTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.cfg.RetryInterval):
		}
	}
}

func (m *redisManager) release(key, token string) Release {
	return func(ctx context.Context) error {
		return m.client.Eval(ctx, unlockScript, []string{key}, token).Err()
	}
}
