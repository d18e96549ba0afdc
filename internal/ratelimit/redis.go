package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	redisPrefix  = "kpr:ratelimit:"
	redisTimeout = 250 * time.Millisecond
)

// allowScript refuses without counting once the window is full, so denied
// attempts never extend the budget.
var allowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return 0
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// RedisLimiter shares counters between instances. Redis failures fail open.
type RedisLimiter struct {
	client *redis.Client
	log    *logrus.Logger
	prefix string
}

func NewRedisLimiter(addr, password string, db int, log *logrus.Logger) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisLimiter{client: client, log: log, prefix: redisPrefix}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	if limit <= 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	allowed, err := allowScript.Run(ctx, l.client, []string{l.prefix + key}, limit, window.Milliseconds()).Int()
	if err != nil {
		l.logError("allow", key, err)
		return true
	}
	return allowed == 1
}

func (l *RedisLimiter) AllowPair(ctx context.Context, actorId, targetId string, cooldown time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	key := pairKey(actorId, targetId)
	ok, err := l.client.SetNX(ctx, l.prefix+key, 1, cooldown).Result()
	if err != nil {
		l.logError("allow pair", key, err)
		return true
	}
	return ok
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

func (l *RedisLimiter) logError(op, key string, err error) {
	l.log.WithFields(logrus.Fields{"op": op, "key": key}).WithError(err).Error("redis rate limiter error")
}
