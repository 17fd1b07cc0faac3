package yolo

import (
	"context"
	"time"
)

// DrawKeeper re-invokes stalled rounds. A rolled round only advances
// when something calls Draw again, so the keeper sweeps the dealer's
// registry on an interval, draws every round whose randomness has
// arrived, archives the result, and reports rounds that have waited
// past the stall threshold.
//
// With a lock manager wired in, each round's draw is serialized
// through a distributed lock so concurrent keeper replicas do not
// race each other.
type DrawKeeper struct {
	dealer   *YoloDealer
	locks    *DistributedLockManager
	archiver *RoundArchiver
	logger   Logger

	interval     time.Duration
	stallWarning time.Duration
}

// NewDrawKeeper creates a keeper over the dealer's registry. The lock
// manager and archiver are optional; without them sweeps run unlocked
// and unarchived.
func NewDrawKeeper(dealer *YoloDealer, locks *DistributedLockManager, archiver *RoundArchiver, logger Logger) *DrawKeeper {
	if logger == nil {
		logger = &DefaultLogger{}
	}
	return &DrawKeeper{
		dealer:       dealer,
		locks:        locks,
		archiver:     archiver,
		logger:       logger,
		interval:     DefaultKeeperInterval,
		stallWarning: DefaultStallWarning,
	}
}

// NewDrawKeeperWithConfig creates a keeper with explicit sweep settings
func NewDrawKeeperWithConfig(dealer *YoloDealer, locks *DistributedLockManager, archiver *RoundArchiver, logger Logger, interval, stallWarning time.Duration) *DrawKeeper {
	k := NewDrawKeeper(dealer, locks, archiver, logger)
	if interval > 0 {
		k.interval = interval
	}
	if stallWarning > 0 {
		k.stallWarning = stallWarning
	}
	return k
}

// Run sweeps the registry on the configured interval until the
// context is cancelled
func (k *DrawKeeper) Run(ctx context.Context) error {
	k.logger.Info("Keeper started: interval=%v stall_warning=%v", k.interval, k.stallWarning)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			k.logger.Info("Keeper stopped: %v", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			drawn, stalled := k.Sweep(ctx)
			if drawn > 0 || stalled > 0 {
				k.logger.Info("Sweep complete: drawn=%d stalled=%d", drawn, stalled)
			}
		}
	}
}

// Sweep makes one pass over the registry. It returns how many rounds
// it drew and how many are stalled waiting on randomness.
func (k *DrawKeeper) Sweep(ctx context.Context) (drawn, stalled int) {
	for _, lot := range k.dealer.Lotteries() {
		status := lot.Status()
		if status.State != StateRolled {
			continue
		}

		if status.TimeSinceRoll >= k.stallWarning {
			stalled++
			k.logger.Error("Round %s stalled: request %d unfulfilled for %v",
				status.ID, status.RequestID, status.TimeSinceRoll)
		}

		if k.drawOne(ctx, lot) {
			drawn++
		}
	}
	return drawn, stalled
}

// drawOne attempts a single round's draw, holding its lock when a
// lock manager is configured
func (k *DrawKeeper) drawOne(ctx context.Context, lot *YoloLot) bool {
	if k.locks != nil {
		lockValue := generateLockValue()
		acquired, err := k.locks.TryAcquireLock(ctx, lot.ID(), lockValue, DefaultLockExpiration)
		if err != nil || !acquired {
			k.logger.Debug("Skipping round %s: lock not acquired (%v)", lot.ID(), err)
			return false
		}
		defer func() {
			if _, err := k.locks.ReleaseLock(ctx, lot.ID(), lockValue); err != nil {
				k.logger.Error("Failed to release lock for round %s: %v", lot.ID(), err)
			}
		}()
	}

	if err := lot.Draw(); err != nil {
		if IsNotReady(err) {
			k.logger.Debug("Round %s still waiting on randomness", lot.ID())
		} else {
			k.logger.Error("Draw failed for round %s: %v", lot.ID(), err)
		}
		return false
	}

	k.logger.Info("Round %s drawn by keeper", lot.ID())

	if k.archiver != nil {
		if err := k.archiver.ArchiveRound(ctx, lot.Snapshot()); err != nil {
			k.logger.Error("Failed to archive round %s: %v", lot.ID(), err)
		}
	}
	return true
}
