package yolo

import "time"

const (
	// DefaultRoundDuration is the default deposit window for a lottery round
	DefaultRoundDuration = 7 * 24 * time.Hour

	// DefaultWinners is the default number of winner slots per round
	DefaultWinners = 1

	// DefaultRNGCapacity is the default number of concurrently
	// outstanding randomness requests a provider will serve
	DefaultRNGCapacity = 2

	// DefaultKeeperInterval is the default period between keeper sweeps
	DefaultKeeperInterval = 30 * time.Second

	// DefaultStallWarning is how long a round may sit in Rolled before
	// the keeper reports it as stalled
	DefaultStallWarning = 10 * time.Minute

	// MaxWinners is the maximum number of winner slots allowed per round
	MaxWinners = 100

	// LockKeyPrefix is the prefix for Redis lock keys
	LockKeyPrefix = "yolo:lock:"

	// RoundKeyPrefix is the prefix for archived round snapshot keys
	RoundKeyPrefix = "yolo:round:"

	// DefaultLockExpiration is the default expiration time for locks
	DefaultLockExpiration = 30 * time.Second

	// DefaultLockTimeout is the default timeout for acquiring distributed locks
	DefaultLockTimeout = 30 * time.Second

	// DefaultRetryAttempts is the default number of retry attempts
	DefaultRetryAttempts = 3

	// DefaultRetryInterval is the default interval between retry attempts
	DefaultRetryInterval = 100 * time.Millisecond

	// MaxRetryAttempts is the maximum number of retry attempts allowed
	MaxRetryAttempts = 10

	// DefaultCoinDecimals is the number of decimals YoloCoin reports
	DefaultCoinDecimals = 9

	// DefaultBankPrice is the default number of token units minted per native unit
	DefaultBankPrice = 1000
)

const (
	// DefaultCircuitBreakerName is the default name for the oracle circuit breaker
	DefaultCircuitBreakerName = "yolo-oracle"

	// DefaultCircuitBreakerMaxRequests is the default max requests in half-open state
	DefaultCircuitBreakerMaxRequests = 3

	// DefaultCircuitBreakerInterval is the default counting interval
	DefaultCircuitBreakerInterval = 60 * time.Second

	// DefaultCircuitBreakerTimeout is the default open-state timeout
	DefaultCircuitBreakerTimeout = 30 * time.Second

	// DefaultCircuitBreakerFailureRatio is the default failure ratio
	DefaultCircuitBreakerFailureRatio = 0.6

	// DefaultCircuitBreakerMinRequests is the default min requests before tripping
	DefaultCircuitBreakerMinRequests = 3

	// DefaultCircuitBreakerOnStateChange is the default on state change
	DefaultCircuitBreakerOnStateChange = true
)

const (
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisPassword     = ""
	DefaultRedisDB           = 0
	DefaultRedisPoolSize     = 50
	DefaultRedisMinIdleConns = 10
	DefaultRedisMaxRetries   = 3
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second
	DefaultRedisPoolTimeout  = 4 * time.Second
	DefaultRedisClusterMode  = false
	DefaultRedisTLSEnabled   = false
)
