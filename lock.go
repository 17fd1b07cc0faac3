package yolo

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Distributed Lock Implementation Strategy:
// - Lock Acquisition: Use Redis SET NX for optimal performance (single network call)
// - Lock Release: Use Lua script for safety (ensures only lock owner can release)
// The keeper uses these locks to serialize draw sweeps per round, so
// several keeper replicas can run against the same dealer.

const (
	// releaseLockScript ensures only the lock owner can release the lock
	// This prevents the dangerous scenario where:
	// 1. Keeper A's lock expires
	// 2. Keeper B acquires the lock
	// 3. Keeper A tries to release lock and accidentally deletes Keeper B's lock
	releaseLockScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
)

// DistributedLockManager manages Redis distributed locks
type DistributedLockManager struct {
	redisClient   *redis.Client
	lockTimeout   time.Duration
	retryAttempts int
	retryInterval time.Duration
}

// NewLockManager creates a new distributed lock manager
func NewLockManager(redisClient *redis.Client, lockTimeout time.Duration) *DistributedLockManager {
	return &DistributedLockManager{
		redisClient:   redisClient,
		lockTimeout:   lockTimeout,
		retryAttempts: DefaultRetryAttempts,
		retryInterval: DefaultRetryInterval,
	}
}

// NewLockManagerWithRetry creates a new distributed lock manager with custom retry settings
func NewLockManagerWithRetry(
	redisClient *redis.Client,
	lockTimeout time.Duration, retryAttempts int, retryInterval time.Duration,
) *DistributedLockManager {
	return &DistributedLockManager{
		redisClient:   redisClient,
		lockTimeout:   lockTimeout,
		retryAttempts: retryAttempts,
		retryInterval: retryInterval,
	}
}

// AcquireLock attempts to acquire a distributed lock using SET NX for optimal performance
func (m *DistributedLockManager) AcquireLock(ctx context.Context, lockKey, lockValue string, expireTime time.Duration) (bool, error) {
	if lockKey == "" {
		return false, ErrInvalidParameters
	}
	if lockValue == "" {
		return false, ErrInvalidParameters
	}
	if expireTime <= 0 {
		expireTime = DefaultLockExpiration
	}

	fullLockKey := LockKeyPrefix + lockKey

	for attempt := 0; attempt <= m.retryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		acquired, err := m.redisClient.SetNX(ctx, fullLockKey, lockValue, expireTime).Result()
		if err != nil {
			if attempt == m.retryAttempts {
				return false, ErrRedisConnectionFailed
			}
			time.Sleep(m.retryInterval)
			continue
		}

		if acquired {
			return true, nil
		}

		if attempt < m.retryAttempts {
			time.Sleep(m.retryInterval)
		}
	}

	return false, ErrLockAcquisitionFailed
}

// ReleaseLock releases a lock via the Lua script; only the owner's
// value releases it
func (m *DistributedLockManager) ReleaseLock(ctx context.Context, lockKey, lockValue string) (bool, error) {
	if lockKey == "" {
		return false, ErrInvalidParameters
	}
	if lockValue == "" {
		return false, ErrInvalidParameters
	}

	fullLockKey := LockKeyPrefix + lockKey

	for attempt := 0; attempt <= m.retryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		result, err := m.redisClient.Eval(ctx, releaseLockScript, []string{fullLockKey}, lockValue).Result()
		if err != nil {
			if attempt == m.retryAttempts {
				return false, ErrRedisConnectionFailed
			}
			time.Sleep(m.retryInterval)
			continue
		}

		if result.(int64) == 1 {
			return true, nil
		}

		// Lock was not found or value didn't match - no need to retry
		return false, nil
	}

	return false, ErrRedisConnectionFailed
}

// AcquireLockWithTimeout attempts to acquire a lock, retrying until the timeout elapses
func (m *DistributedLockManager) AcquireLockWithTimeout(ctx context.Context, lockKey, lockValue string, expireTime, timeout time.Duration) (bool, error) {
	if lockKey == "" {
		return false, ErrInvalidParameters
	}
	if lockValue == "" {
		return false, ErrInvalidParameters
	}
	if expireTime <= 0 {
		expireTime = DefaultLockExpiration
	}
	if timeout <= 0 {
		timeout = m.lockTimeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fullLockKey := LockKeyPrefix + lockKey

	for {
		select {
		case <-timeoutCtx.Done():
			return false, ErrLockTimeout
		default:
		}

		acquired, err := m.redisClient.SetNX(timeoutCtx, fullLockKey, lockValue, expireTime).Result()
		if err != nil {
			if timeoutCtx.Err() != nil {
				return false, ErrLockTimeout
			}
			time.Sleep(m.retryInterval)
			continue
		}

		if acquired {
			return true, nil
		}

		// Lock is held by someone else, wait and retry
		time.Sleep(m.retryInterval)
	}
}

// TryAcquireLock attempts to acquire a lock without retries (single attempt)
func (m *DistributedLockManager) TryAcquireLock(ctx context.Context, lockKey, lockValue string, expireTime time.Duration) (bool, error) {
	if lockKey == "" {
		return false, ErrInvalidParameters
	}
	if lockValue == "" {
		return false, ErrInvalidParameters
	}
	if expireTime <= 0 {
		expireTime = DefaultLockExpiration
	}

	fullLockKey := LockKeyPrefix + lockKey

	acquired, err := m.redisClient.SetNX(ctx, fullLockKey, lockValue, expireTime).Result()
	if err != nil {
		return false, ErrRedisConnectionFailed
	}

	return acquired, nil
}
