package yolo

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// validateAmount checks that a token amount is positive
func validateAmount(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	return nil
}

// validateAccount checks that an account identity is non-empty
func validateAccount(account string) error {
	if account == "" {
		return ErrInvalidParameters.WithDetails("account must not be empty")
	}
	return nil
}

// generateLockValue generates a unique value for lock ownership
func generateLockValue() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp if crypto/rand fails
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// generateOperationID generates a unique identifier for tracing an operation
func generateOperationID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("op_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("op_%d_%s", time.Now().UnixNano(), hex.EncodeToString(b))
}
