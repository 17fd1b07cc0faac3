package yolo

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies a failure class across the game suite
type ErrorCode string

// Error code constants, grouped in numbered bands
const (
	// System errors (1000-1999)
	ErrCodeSystem          ErrorCode = "YOLO_1000"
	ErrCodeRedisConnection ErrorCode = "YOLO_1001"
	ErrCodeConfigInvalid   ErrorCode = "YOLO_1002"

	// Round state errors (2000-2999)
	ErrCodeInvalidAmount      ErrorCode = "YOLO_2000"
	ErrCodeInvalidParameters  ErrorCode = "YOLO_2001"
	ErrCodeNotOpen            ErrorCode = "YOLO_2002"
	ErrCodeRoundStillOpen     ErrorCode = "YOLO_2003"
	ErrCodeAlreadyRolled      ErrorCode = "YOLO_2004"
	ErrCodeNotRolled          ErrorCode = "YOLO_2005"
	ErrCodeAlreadyDrawn       ErrorCode = "YOLO_2006"
	ErrCodeNotDrawn           ErrorCode = "YOLO_2007"
	ErrCodeNothingToWithdraw  ErrorCode = "YOLO_2008"
	ErrCodeEmptyPool          ErrorCode = "YOLO_2009"
	ErrCodeInvalidWinners     ErrorCode = "YOLO_2010"
	ErrCodeSaleClosed         ErrorCode = "YOLO_2011"
	ErrCodePartialSettlement  ErrorCode = "YOLO_2012"
	ErrCodeSnapshotCorrupted  ErrorCode = "YOLO_2013"
	ErrCodeInvalidRoundConfig ErrorCode = "YOLO_2014"

	// Lock errors (3000-3999)
	ErrCodeLockAcquisitionFailed ErrorCode = "YOLO_3000"
	ErrCodeLockTimeout           ErrorCode = "YOLO_3001"

	// Authorization errors (4000-4999)
	ErrCodeUnauthorizedAdmin    ErrorCode = "YOLO_4000"
	ErrCodeUnauthorizedConsumer ErrorCode = "YOLO_4001"
	ErrCodeUnauthorizedMinter   ErrorCode = "YOLO_4002"
	ErrCodeUnauthorizedOperator ErrorCode = "YOLO_4003"
	ErrCodeUnauthorizedOwner    ErrorCode = "YOLO_4004"

	// Resource errors (5000-5999)
	ErrCodeTokenTransferFailed   ErrorCode = "YOLO_5000"
	ErrCodeInsufficientBalance   ErrorCode = "YOLO_5001"
	ErrCodeInsufficientAllowance ErrorCode = "YOLO_5002"
	ErrCodeInsufficientReserve   ErrorCode = "YOLO_5003"
	ErrCodeProviderAtCapacity    ErrorCode = "YOLO_5004"
	ErrCodeCircuitBreakerOpen    ErrorCode = "YOLO_5005"
	ErrCodeNotConfigured         ErrorCode = "YOLO_5006"

	// Oracle errors (6000-6999)
	ErrCodeRandomnessNotReady ErrorCode = "YOLO_6000"
	ErrCodeInvalidRequest     ErrorCode = "YOLO_6001"
)

// ErrorSeverity classifies how serious a failure is
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "critical"
	SeverityHigh     ErrorSeverity = "high"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityLow      ErrorSeverity = "low"
)

// YoloError is the error type used across the game suite
type YoloError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Details    string         `json:"details,omitempty"`
	Severity   ErrorSeverity  `json:"severity"`
	Timestamp  time.Time      `json:"timestamp"`
	Operation  string         `json:"operation,omitempty"`
	StackTrace string         `json:"stack_trace,omitempty"`
	Cause      error          `json:"-"`
	Retryable  bool           `json:"retryable"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Error implements the error interface
func (e *YoloError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *YoloError) Unwrap() error { return e.Cause }

// Is implements the errors.Is interface; two YoloErrors match on code
func (e *YoloError) Is(target error) bool {
	if t, ok := target.(*YoloError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithCause returns a copy carrying the underlying cause
func (e *YoloError) WithCause(cause error) *YoloError {
	clone := *e
	clone.Cause = cause
	return &clone
}

// WithDetails returns a copy carrying extra detail text
func (e *YoloError) WithDetails(format string, args ...any) *YoloError {
	clone := *e
	clone.Details = fmt.Sprintf(format, args...)
	return &clone
}

// WithOperation returns a copy tagged with the failing operation
func (e *YoloError) WithOperation(operation string) *YoloError {
	clone := *e
	clone.Operation = operation
	return &clone
}

// WithMetadata returns a copy carrying an extra metadata entry
func (e *YoloError) WithMetadata(key string, value any) *YoloError {
	clone := *e
	clone.Metadata = make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		clone.Metadata[k] = v
	}
	clone.Metadata[key] = value
	return &clone
}

// WithStackTrace returns a copy carrying the current stack
func (e *YoloError) WithStackTrace() *YoloError {
	clone := *e
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	clone.StackTrace = string(buf[:n])
	return &clone
}

// NewError creates a new error
func NewError(code ErrorCode, message string) *YoloError {
	return &YoloError{
		Code:      code,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
		Retryable: false,
	}
}

// NewRetryableError creates an error the caller is expected to retry
func NewRetryableError(code ErrorCode, message string) *YoloError {
	return &YoloError{
		Code:      code,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
		Retryable: true,
	}
}

// NewCriticalError creates a critical error with a stack trace attached
func NewCriticalError(code ErrorCode, message string) *YoloError {
	err := &YoloError{
		Code:      code,
		Message:   message,
		Severity:  SeverityCritical,
		Timestamp: time.Now(),
		Retryable: false,
	}
	return err.WithStackTrace()
}

// Predefined error instances
var (
	// System errors
	ErrSystemError           = NewCriticalError(ErrCodeSystem, "system error occurred")
	ErrRedisConnectionFailed = NewRetryableError(ErrCodeRedisConnection, "Redis connection failed")
	ErrConfigInvalid         = NewCriticalError(ErrCodeConfigInvalid, "configuration is invalid")

	// Round state errors
	ErrInvalidAmount      = NewError(ErrCodeInvalidAmount, "invalid amount: must be greater than 0")
	ErrInvalidParameters  = NewError(ErrCodeInvalidParameters, "invalid parameters provided")
	ErrNotOpen            = NewError(ErrCodeNotOpen, "round is not open for deposits")
	ErrRoundStillOpen     = NewError(ErrCodeRoundStillOpen, "deposit window has not elapsed yet")
	ErrAlreadyRolled      = NewError(ErrCodeAlreadyRolled, "round has already been rolled")
	ErrNotRolled          = NewError(ErrCodeNotRolled, "round has not been rolled yet")
	ErrAlreadyDrawn       = NewError(ErrCodeAlreadyDrawn, "round has already been drawn")
	ErrNotDrawn           = NewError(ErrCodeNotDrawn, "round has not been drawn yet")
	ErrNothingToWithdraw  = NewError(ErrCodeNothingToWithdraw, "nothing to withdraw")
	ErrEmptyPool          = NewError(ErrCodeEmptyPool, "cannot roll a round with no deposits")
	ErrInvalidWinners     = NewError(ErrCodeInvalidWinners, "invalid winner count: must be between 1 and 100")
	ErrSaleClosed         = NewError(ErrCodeSaleClosed, "token sale is closed")
	ErrPartialSettlement  = NewError(ErrCodePartialSettlement, "partial settlement: some withdrawals completed, some failed")
	ErrSnapshotCorrupted  = NewError(ErrCodeSnapshotCorrupted, "round snapshot is corrupted")
	ErrInvalidRoundConfig = NewError(ErrCodeInvalidRoundConfig, "invalid round configuration")

	// Lock errors
	ErrLockAcquisitionFailed = NewRetryableError(ErrCodeLockAcquisitionFailed, "failed to acquire distributed lock")
	ErrLockTimeout           = NewRetryableError(ErrCodeLockTimeout, "lock acquisition timeout")

	// Authorization errors
	ErrUnauthorizedAdmin    = NewError(ErrCodeUnauthorizedAdmin, "caller is not the administrator")
	ErrUnauthorizedConsumer = NewError(ErrCodeUnauthorizedConsumer, "caller is not a registered consumer")
	ErrUnauthorizedMinter   = NewError(ErrCodeUnauthorizedMinter, "caller is not the token minter")
	ErrUnauthorizedOperator = NewError(ErrCodeUnauthorizedOperator, "caller is not the provider operator")
	ErrUnauthorizedOwner    = NewError(ErrCodeUnauthorizedOwner, "caller is not the owner")

	// Resource errors
	ErrTokenTransferFailed   = NewError(ErrCodeTokenTransferFailed, "token transfer failed")
	ErrInsufficientBalance   = NewError(ErrCodeInsufficientBalance, "insufficient token balance")
	ErrInsufficientAllowance = NewError(ErrCodeInsufficientAllowance, "insufficient token allowance")
	ErrInsufficientReserve   = NewError(ErrCodeInsufficientReserve, "insufficient bank reserve")
	ErrProviderAtCapacity    = NewRetryableError(ErrCodeProviderAtCapacity, "randomness provider is at capacity")
	ErrCircuitBreakerOpen    = NewRetryableError(ErrCodeCircuitBreakerOpen, "circuit breaker is open")
	ErrNotConfigured         = NewError(ErrCodeNotConfigured, "dealer is not fully configured")

	// Oracle errors
	ErrRandomnessNotReady = NewRetryableError(ErrCodeRandomnessNotReady, "randomness request is still pending")
	ErrInvalidRequest     = NewError(ErrCodeInvalidRequest, "unknown or already fulfilled randomness request")
)

// codeBand extracts the thousands band of a YoloError code, or 0
func codeBand(err error) int {
	ye, ok := err.(*YoloError)
	if !ok {
		return 0
	}
	s := string(ye.Code)
	idx := strings.LastIndex(s, "_")
	if idx < 0 || idx+2 > len(s) {
		return 0
	}
	switch s[idx+1] {
	case '1':
		return 1000
	case '2':
		return 2000
	case '3':
		return 3000
	case '4':
		return 4000
	case '5':
		return 5000
	case '6':
		return 6000
	}
	return 0
}

// IsStateError reports whether err is a round/state-machine violation
func IsStateError(err error) bool { return codeBand(err) == 2000 }

// IsAuthError reports whether err is an authorization failure
func IsAuthError(err error) bool { return codeBand(err) == 4000 }

// IsResourceError reports whether err is a resource failure
// (token transfer, capacity, reserve)
func IsResourceError(err error) bool { return codeBand(err) == 5000 }

// IsNotReady reports whether err means a pending oracle fulfillment;
// the caller should retry later
func IsNotReady(err error) bool {
	ye, ok := err.(*YoloError)
	return ok && ye.Code == ErrCodeRandomnessNotReady
}

// IsInvalidRequest reports whether err is an invalid randomness request
func IsInvalidRequest(err error) bool {
	ye, ok := err.(*YoloError)
	return ok && ye.Code == ErrCodeInvalidRequest
}

// IsRetryableError checks whether an arbitrary error looks transient
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if ye, ok := err.(*YoloError); ok {
		return ye.Retryable
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"network is unreachable",
		"temporary failure",
		"server closed",
		"broken pipe",
		"i/o timeout",
		"dial tcp",
		"read tcp",
		"write tcp",
		"connection timed out",
		"no route to host",
		"host is down",
		"connection aborted",
		"socket is not connected",
		"operation timed out",
		"redis: connection pool timeout",
		"redis: client is closed",
		"context deadline exceeded",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
