// Package lock provides a Redis-backed mutual exclusion for scheduler ticks
// across processes.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultKey is the Redis key used when none is configured.
const DefaultKey = "heatos:crm-sync:lock"

// unlockScript deletes the key only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// Config configures the Redis connection and lock key.
type Config struct {
	Addr        string `yaml:"addr" mapstructure:"addr"`
	Password    string `yaml:"password" mapstructure:"password"`
	DB          int    `yaml:"db" mapstructure:"db"`
	LockKey     string `yaml:"lock_key" mapstructure:"lock_key"`
	LockTTLSecs int    `yaml:"lock_ttl_secs" mapstructure:"lock_ttl_secs"`
}

// Enabled reports whether a Redis address is configured.
func (c Config) Enabled() bool { return c.Addr != "" }

// RedisLocker holds at most one lease on a single key. The lease expires after
// ttl so a crashed holder cannot block other processes forever.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLocker creates a RedisLocker. An empty key uses DefaultKey and a
// non-positive ttl defaults to two minutes.
func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

// Open connects to Redis per cfg and verifies the connection.
func Open(ctx context.Context, cfg Config) (*RedisLocker, func() error, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, eris.Wrapf(err, "lock: ping redis %s", cfg.Addr)
	}
	return NewRedisLocker(client, cfg.LockKey, time.Duration(cfg.LockTTLSecs)*time.Second), client.Close, nil
}

// TryLock attempts to take the lease without blocking. When acquired is true
// the caller must call release once done.
func (l *RedisLocker) TryLock(ctx context.Context) (release func(), acquired bool, err error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, eris.Wrap(err, "lock: setnx")
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		// ctx may already be cancelled here.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlockScript.Run(rctx, l.client, []string{l.key}, token).Err(); err != nil {
			zap.L().Warn("lock: release failed", zap.String("key", l.key), zap.Error(err))
		}
	}
	return release, true, nil
}
