package yolo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// MaxSnapshotSize is the maximum allowed size for a serialized round snapshot (10MB)
const MaxSnapshotSize = 10 * 1024 * 1024

// RoundSnapshot is the archivable state of a round. Archived rounds
// carry no TTL: a settled round stays queryable for audit forever.
type RoundSnapshot struct {
	ID         string            `json:"id"`
	State      string            `json:"state"`
	Pool       map[string]uint64 `json:"pool"`
	Order      []string          `json:"order"`
	Total      uint64            `json:"total"`
	RequestID  uint64            `json:"request_id"`
	Winners    []Winner          `json:"winners,omitempty"`
	Claimable  map[string]uint64 `json:"claimable,omitempty"`
	Unclaimed  uint64            `json:"unclaimed"`
	OpenedAt   time.Time         `json:"opened_at"`
	RolledAt   time.Time         `json:"rolled_at,omitempty"`
	DrawnAt    time.Time         `json:"drawn_at,omitempty"`
	ArchivedAt time.Time         `json:"archived_at"`
}

// Validate checks the snapshot for internal consistency
func (s *RoundSnapshot) Validate() error {
	if s.ID == "" {
		return ErrSnapshotCorrupted.WithDetails("empty round id")
	}
	if len(s.Pool) != len(s.Order) {
		return ErrSnapshotCorrupted.WithDetails("pool has %d entries but order has %d",
			len(s.Pool), len(s.Order))
	}

	var sum uint64
	for _, participant := range s.Order {
		amount, ok := s.Pool[participant]
		if !ok {
			return ErrSnapshotCorrupted.WithDetails("ordered participant %s missing from pool", participant)
		}
		sum += amount
	}
	if sum != s.Total {
		return ErrSnapshotCorrupted.WithDetails("pool sums to %d but total is %d", sum, s.Total)
	}

	var claimable uint64
	for _, amount := range s.Claimable {
		claimable += amount
	}
	if claimable != s.Unclaimed {
		return ErrSnapshotCorrupted.WithDetails("claimable sums to %d but unclaimed is %d",
			claimable, s.Unclaimed)
	}

	return nil
}

// RoundArchiver persists round snapshots to Redis for audit
type RoundArchiver struct {
	redisClient    *redis.Client
	logger         Logger
	retryAttempts  int
	retryBaseDelay time.Duration
}

// NewRoundArchiver creates a new round archiver
func NewRoundArchiver(redisClient *redis.Client, logger Logger) *RoundArchiver {
	return NewRoundArchiverWithRetry(redisClient, logger, DefaultRetryAttempts, DefaultRetryInterval)
}

// NewRoundArchiverWithRetry creates a new round archiver with custom retry settings
func NewRoundArchiverWithRetry(redisClient *redis.Client, logger Logger, retryAttempts int, retryDelay time.Duration) *RoundArchiver {
	if logger == nil {
		logger = &DefaultLogger{}
	}
	return &RoundArchiver{
		redisClient:    redisClient,
		logger:         logger,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryDelay,
	}
}

// serializeSnapshot serializes a snapshot to JSON bytes
func serializeSnapshot(snap *RoundSnapshot) ([]byte, error) {
	if snap == nil {
		return nil, ErrInvalidParameters
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize round snapshot: %w", err)
	}
	if len(data) > MaxSnapshotSize {
		return nil, fmt.Errorf("serialized snapshot size (%d bytes) exceeds maximum allowed size (%d bytes): round=%s, participants=%d",
			len(data), MaxSnapshotSize, snap.ID, len(snap.Pool))
	}

	return data, nil
}

// deserializeSnapshot deserializes JSON bytes back to a snapshot
func deserializeSnapshot(data []byte) (*RoundSnapshot, error) {
	if len(data) == 0 {
		return nil, ErrInvalidParameters
	}

	var snap RoundSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to deserialize round snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, ErrSnapshotCorrupted.WithCause(err)
	}

	return &snap, nil
}

// executeWithRetry executes a Redis operation with exponential backoff
func (a *RoundArchiver) executeWithRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	startTime := time.Now()

	for attempt := 0; attempt <= a.retryAttempts; attempt++ {
		if attempt > 0 {
			backoffMultiplier := 1 << (attempt - 1) // 2^(attempt-1)
			delay := time.Duration(backoffMultiplier) * a.retryBaseDelay

			maxDelay := 5 * time.Second
			if delay > maxDelay {
				delay = maxDelay
			}

			a.logger.Debug("Retrying %s operation (attempt %d/%d) after %v backoff, total elapsed: %v",
				operation, attempt, a.retryAttempts, delay, time.Since(startTime))

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry for %s operation after %v: %w",
					operation, time.Since(startTime), ctx.Err())
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				a.logger.Info("Completed %s operation after %d retries in %v",
					operation, attempt, time.Since(startTime))
			}
			return nil
		}

		lastErr = err

		if !IsRetryableError(err) {
			a.logger.Debug("Non-retriable error for %s operation (attempt %d): %v",
				operation, attempt+1, err)
			break
		}

		if attempt == a.retryAttempts {
			a.logger.Error("Final retry attempt failed for %s operation: %v", operation, err)
		}
	}

	return fmt.Errorf("%s operation failed after %d attempts in %v: %w",
		operation, a.retryAttempts+1, time.Since(startTime), lastErr)
}

// ArchiveRound stores the round snapshot under its round key. The key
// carries no expiration.
func (a *RoundArchiver) ArchiveRound(ctx context.Context, snap *RoundSnapshot) error {
	if snap == nil {
		return ErrInvalidParameters
	}

	snap.ArchivedAt = time.Now()
	key := RoundKeyPrefix + snap.ID

	a.logger.Debug("Archiving round: key=%s state=%s pool=%d", key, snap.State, snap.Total)

	data, err := serializeSnapshot(snap)
	if err != nil {
		a.logger.Error("Failed to serialize round %s: %v", snap.ID, err)
		return err
	}

	err = a.executeWithRetry(ctx, fmt.Sprintf("archive[%s]", snap.ID), func() error {
		return a.redisClient.Set(ctx, key, data, 0).Err()
	})
	if err != nil {
		a.logger.Error("Failed to archive round %s after retries: %v", snap.ID, err)
		return err
	}

	a.logger.Info("Archived round %s: state=%s size=%d bytes", snap.ID, snap.State, len(data))
	return nil
}

// LoadRound retrieves an archived snapshot; a missing round yields
// (nil, nil)
func (a *RoundArchiver) LoadRound(ctx context.Context, roundID string) (*RoundSnapshot, error) {
	if roundID == "" {
		return nil, ErrInvalidParameters
	}

	key := RoundKeyPrefix + roundID
	a.logger.Debug("Loading archived round: key=%s", key)

	var data []byte
	err := a.executeWithRetry(ctx, fmt.Sprintf("load[%s]", roundID), func() error {
		var err error
		data, err = a.redisClient.Get(ctx, key).Bytes()
		if err == redis.Nil {
			// Key doesn't exist - this is not an error condition, don't retry
			return nil
		}
		return err
	})
	if err != nil {
		a.logger.Error("Failed to load round %s after retries: %v", roundID, err)
		return nil, err
	}

	if len(data) == 0 {
		a.logger.Debug("No archived round found: key=%s", key)
		return nil, nil
	}

	snap, err := deserializeSnapshot(data)
	if err != nil {
		a.logger.Error("Failed to deserialize round %s: %v", roundID, err)
		return nil, err
	}

	return snap, nil
}

// DeleteRound removes an archived snapshot, for operator cleanup
func (a *RoundArchiver) DeleteRound(ctx context.Context, roundID string) error {
	if roundID == "" {
		return ErrInvalidParameters
	}

	key := RoundKeyPrefix + roundID

	var deleted int64
	err := a.executeWithRetry(ctx, fmt.Sprintf("delete[%s]", roundID), func() error {
		var err error
		deleted, err = a.redisClient.Del(ctx, key).Result()
		return err
	})
	if err != nil {
		a.logger.Error("Failed to delete round %s after retries: %v", roundID, err)
		return err
	}

	if deleted == 0 {
		a.logger.Debug("Archived round did not exist: key=%s", key)
	} else {
		a.logger.Info("Deleted archived round %s", roundID)
	}
	return nil
}

// ListRounds returns the ids of every archived round
func (a *RoundArchiver) ListRounds(ctx context.Context) ([]string, error) {
	pattern := RoundKeyPrefix + "*"

	var keys []string
	err := a.executeWithRetry(ctx, "list", func() error {
		var err error
		keys, err = a.redisClient.Keys(ctx, pattern).Result()
		return err
	})
	if err != nil {
		a.logger.Error("Failed to list archived rounds: %v", err)
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, key[len(RoundKeyPrefix):])
	}
	return ids, nil
}
