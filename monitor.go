package yolo

import (
	"sync"
	"sync/atomic"
	"time"
)

// GameMetrics aggregates counters for the whole game suite
type GameMetrics struct {
	// Deposit statistics
	Deposits      int64 `json:"deposits"`       // Number of accepted deposits
	DepositVolume int64 `json:"deposit_volume"` // Total deposited token amount

	// Round lifecycle statistics
	Rolls       int64 `json:"rolls"`        // Number of rolled rounds
	Draws       int64 `json:"draws"`        // Number of successful draws
	FailedDraws int64 `json:"failed_draws"` // Number of failed draw attempts

	// Settlement statistics
	Withdrawals    int64 `json:"withdrawals"`     // Number of paid withdrawals
	WithdrawVolume int64 `json:"withdraw_volume"` // Total withdrawn token amount

	// Oracle statistics
	OracleRequests     int64 `json:"oracle_requests"`     // Randomness requests issued
	OracleFulfillments int64 `json:"oracle_fulfillments"` // Randomness requests fulfilled

	// Archive statistics
	ArchivedRounds int64 `json:"archived_rounds"` // Round snapshots archived

	// Timestamps
	StartTime      int64 `json:"start_time"`       // Collection start time (ns)
	LastUpdateTime int64 `json:"last_update_time"` // Last update time (ns)
}

// GetDrawSuccessRate returns the percentage of draw attempts that succeeded
func (gm *GameMetrics) GetDrawSuccessRate() float64 {
	draws := atomic.LoadInt64(&gm.Draws)
	failed := atomic.LoadInt64(&gm.FailedDraws)
	total := draws + failed
	if total == 0 {
		return 0.0
	}
	return float64(draws) / float64(total) * 100.0
}

// GetAverageDeposit returns the mean deposit amount
func (gm *GameMetrics) GetAverageDeposit() float64 {
	deposits := atomic.LoadInt64(&gm.Deposits)
	if deposits == 0 {
		return 0.0
	}
	volume := atomic.LoadInt64(&gm.DepositVolume)
	return float64(volume) / float64(deposits)
}

// Reset clears all counters and restarts the collection window
func (gm *GameMetrics) Reset() {
	atomic.StoreInt64(&gm.Deposits, 0)
	atomic.StoreInt64(&gm.DepositVolume, 0)
	atomic.StoreInt64(&gm.Rolls, 0)
	atomic.StoreInt64(&gm.Draws, 0)
	atomic.StoreInt64(&gm.FailedDraws, 0)
	atomic.StoreInt64(&gm.Withdrawals, 0)
	atomic.StoreInt64(&gm.WithdrawVolume, 0)
	atomic.StoreInt64(&gm.OracleRequests, 0)
	atomic.StoreInt64(&gm.OracleFulfillments, 0)
	atomic.StoreInt64(&gm.ArchivedRounds, 0)
	atomic.StoreInt64(&gm.StartTime, time.Now().UnixNano())
	atomic.StoreInt64(&gm.LastUpdateTime, time.Now().UnixNano())
}

// ================================================================================

// GameMonitor collects game metrics with negligible overhead
type GameMonitor struct {
	metrics *GameMetrics
	mu      sync.RWMutex
	enabled bool
}

// NewGameMonitor creates a new game monitor with collection enabled
func NewGameMonitor() *GameMonitor {
	gm := &GameMonitor{
		metrics: &GameMetrics{},
		enabled: true,
	}
	gm.metrics.Reset()
	return gm
}

// Enable turns metric collection on
func (gm *GameMonitor) Enable() {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	gm.enabled = true
}

// Disable turns metric collection off
func (gm *GameMonitor) Disable() {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	gm.enabled = false
}

// IsEnabled reports whether metric collection is on
func (gm *GameMonitor) IsEnabled() bool {
	gm.mu.RLock()
	defer gm.mu.RUnlock()

	return gm.enabled
}

// RecordDeposit records an accepted deposit
func (gm *GameMonitor) RecordDeposit(amount uint64) {
	if !gm.IsEnabled() {
		return
	}

	atomic.AddInt64(&gm.metrics.Deposits, 1)
	atomic.AddInt64(&gm.metrics.DepositVolume, int64(amount))
	atomic.StoreInt64(&gm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// RecordRoll records a rolled round together with its oracle request
func (gm *GameMonitor) RecordRoll() {
	if !gm.IsEnabled() {
		return
	}

	atomic.AddInt64(&gm.metrics.Rolls, 1)
	atomic.AddInt64(&gm.metrics.OracleRequests, 1)
	atomic.StoreInt64(&gm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// RecordDraw records a draw attempt
func (gm *GameMonitor) RecordDraw(success bool) {
	if !gm.IsEnabled() {
		return
	}

	if success {
		atomic.AddInt64(&gm.metrics.Draws, 1)
		atomic.AddInt64(&gm.metrics.OracleFulfillments, 1)
	} else {
		atomic.AddInt64(&gm.metrics.FailedDraws, 1)
	}

	atomic.StoreInt64(&gm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// RecordWithdrawal records a paid withdrawal
func (gm *GameMonitor) RecordWithdrawal(amount uint64) {
	if !gm.IsEnabled() {
		return
	}

	atomic.AddInt64(&gm.metrics.Withdrawals, 1)
	atomic.AddInt64(&gm.metrics.WithdrawVolume, int64(amount))
	atomic.StoreInt64(&gm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// RecordArchive records an archived round snapshot
func (gm *GameMonitor) RecordArchive() {
	if !gm.IsEnabled() {
		return
	}

	atomic.AddInt64(&gm.metrics.ArchivedRounds, 1)
	atomic.StoreInt64(&gm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// GetMetrics returns a consistent copy of the current metrics
func (gm *GameMonitor) GetMetrics() GameMetrics {
	return GameMetrics{
		Deposits:           atomic.LoadInt64(&gm.metrics.Deposits),
		DepositVolume:      atomic.LoadInt64(&gm.metrics.DepositVolume),
		Rolls:              atomic.LoadInt64(&gm.metrics.Rolls),
		Draws:              atomic.LoadInt64(&gm.metrics.Draws),
		FailedDraws:        atomic.LoadInt64(&gm.metrics.FailedDraws),
		Withdrawals:        atomic.LoadInt64(&gm.metrics.Withdrawals),
		WithdrawVolume:     atomic.LoadInt64(&gm.metrics.WithdrawVolume),
		OracleRequests:     atomic.LoadInt64(&gm.metrics.OracleRequests),
		OracleFulfillments: atomic.LoadInt64(&gm.metrics.OracleFulfillments),
		ArchivedRounds:     atomic.LoadInt64(&gm.metrics.ArchivedRounds),
		StartTime:          atomic.LoadInt64(&gm.metrics.StartTime),
		LastUpdateTime:     atomic.LoadInt64(&gm.metrics.LastUpdateTime),
	}
}

// ResetMetrics resets all counters
func (gm *GameMonitor) ResetMetrics() { gm.metrics.Reset() }
