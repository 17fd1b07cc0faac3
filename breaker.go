package yolo

import (
	"github.com/sony/gobreaker"
)

// BreakerProvider wraps a RandomProvider with a circuit breaker so a
// misbehaving oracle cannot stall every round behind it. Consumer
// calls go through the breaker; operator administration passes
// through untouched.
type BreakerProvider struct {
	provider RandomProvider

	breaker *gobreaker.CircuitBreaker
	logger  Logger
	config  *CircuitBreakerConfig
}

// NewBreakerProvider wraps provider with the configured breaker. A
// disabled config returns a passthrough wrapper.
func NewBreakerProvider(provider RandomProvider, config *CircuitBreakerConfig, logger Logger) *BreakerProvider {
	if logger == nil {
		logger = &DefaultLogger{}
	}
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}

	if !config.Enabled {
		return &BreakerProvider{
			provider: provider,
			logger:   logger,
			config:   config,
		}
	}

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= config.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if config.OnStateChange && logger != nil {
				logger.Info("Circuit breaker '%s' state changed from %s to %s", name, from, to)
			}
		},
	}

	return &BreakerProvider{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		logger:   logger,
		config:   config,
	}
}

// executeWithBreaker runs operation through the breaker when enabled
func (b *BreakerProvider) executeWithBreaker(operation func() (any, error)) (any, error) {
	if b.breaker == nil {
		return operation()
	}

	result, err := b.breaker.Execute(operation)
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, ErrCircuitBreakerOpen.WithDetails("circuit breaker is open, requests are being rejected")
		}
		if err == gobreaker.ErrTooManyRequests {
			return nil, ErrCircuitBreakerOpen.WithDetails("too many requests, circuit breaker is half-open")
		}
	}

	return result, err
}

// SetConsumer passes through to the wrapped provider
func (b *BreakerProvider) SetConsumer(caller, consumer string) error {
	return b.provider.SetConsumer(caller, consumer)
}

// SetCapacity passes through to the wrapped provider
func (b *BreakerProvider) SetCapacity(caller string, limit int) error {
	return b.provider.SetCapacity(caller, limit)
}

// RequestRandomNumber requests values through the breaker
func (b *BreakerProvider) RequestRandomNumber(consumer string, count int) (uint64, error) {
	result, err := b.executeWithBreaker(func() (any, error) {
		return b.provider.RequestRandomNumber(consumer, count)
	})
	if err != nil {
		return 0, err
	}

	return result.(uint64), nil
}

// GetRandomNumber polls through the breaker. A still-pending request
// is not a failure and does not move the breaker toward tripping.
func (b *BreakerProvider) GetRandomNumber(consumer string, requestID uint64) (RequestStatus, []uint64, error) {
	type pollResult struct {
		status RequestStatus
		values []uint64
	}

	result, err := b.executeWithBreaker(func() (any, error) {
		status, values, err := b.provider.GetRandomNumber(consumer, requestID)
		if err != nil {
			return nil, err
		}
		return pollResult{status: status, values: values}, nil
	})
	if err != nil {
		return RequestPending, nil, err
	}

	poll := result.(pollResult)
	return poll.status, poll.values, nil
}

// PendingRequests passes through to the wrapped provider
func (b *BreakerProvider) PendingRequests() int {
	return b.provider.PendingRequests()
}

// Events passes through to the wrapped provider
func (b *BreakerProvider) Events() []RequestEvent {
	return b.provider.Events()
}

// State returns the breaker state as a string
func (b *BreakerProvider) State() string {
	if b.breaker == nil {
		return "disabled"
	}

	switch b.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Counts returns the breaker's request statistics
func (b *BreakerProvider) Counts() gobreaker.Counts {
	if b.breaker == nil {
		return gobreaker.Counts{}
	}

	return b.breaker.Counts()
}
