package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/internal/config"
	"github.com/fastygo/banking/internal/metrics"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goRedis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a lease-based mutual exclusion over Redis keys. A holder that dies keeps
// the key until the TTL expires.
type Locker struct {
	client  goRedis.Cmdable
	prefix  string
	ttl     time.Duration
	wait    time.Duration
	retry   time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewLocker(client goRedis.Cmdable, cfg config.LockConfig, m *metrics.Metrics, logger *zap.Logger) *Locker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 50 * time.Millisecond
	}
	return &Locker{
		client:  client,
		prefix:  cfg.Prefix,
		ttl:     cfg.TTL,
		wait:    cfg.WaitTimeout,
		retry:   cfg.RetryInterval,
		metrics: m,
		logger:  logger,
	}
}

// WithLock runs fn while holding key. It fails with a LOCK_TIMEOUT domain error when the
// key stays taken for longer than the wait timeout. The lock is released on every exit
// path of fn, panics included.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	fullKey := l.prefix + key
	token := uuid.NewString()

	if err := l.acquire(ctx, fullKey, token); err != nil {
		return err
	}
	defer l.release(fullKey, token)

	return fn(ctx)
}

func (l *Locker) acquire(ctx context.Context, key, token string) error {
	started := time.Now()
	deadline := started.Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			l.metrics.LockWait(time.Since(started), false)
			return domain.WrapError(domain.ErrCodeInternal, "acquire lock", err)
		}
		if ok {
			l.metrics.LockWait(time.Since(started), true)
			return nil
		}
		if !time.Now().Add(l.retry).Before(deadline) {
			l.metrics.LockWait(time.Since(started), false)
			l.logger.Warn("lock wait timed out", zap.String("key", key), zap.Duration("wait", l.wait))
			return fmt.Errorf("lock %s: %w", key, domain.ErrLockTimeout)
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.metrics.LockWait(time.Since(started), false)
			return fmt.Errorf("lock %s: %w", key, domain.WrapError(domain.ErrCodeLockTimeout, domain.ErrLockTimeout.Message, ctx.Err()))
		case <-timer.C:
		}
	}
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		l.logger.Warn("lock release failed", zap.String("key", key), zap.Error(err))
	}
}
