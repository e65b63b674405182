package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis блокировки между несколькими экземплярами сервиса.
// Ключ живёт не дольше ttl, даже если владелец не вызвал release.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	logger *zap.Logger
}

// NewRedis создаёт локер поверх redis
func NewRedis(client redis.UniversalClient, ttl, wait time.Duration, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client: client,
		prefix: "lock:",
		ttl:    ttl,
		wait:   wait,
		retry:  25 * time.Millisecond,
		logger: logger,
	}
}

func (l *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		select {
		case <-time.After(l.retry):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Отпускаем даже если контекст запроса уже отменён
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			deleted, err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Int64()
			if err != nil {
				l.logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
				return
			}
			if deleted == 0 {
				l.logger.Warn("Lock expired before release",
					zap.String("key", key),
					zap.Duration("ttl", l.ttl))
			}
		})
	}, nil
}
