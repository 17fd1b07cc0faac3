package yolo

import (
	"crypto/sha256"
	"encoding/binary"
	"math/bits"
	"sync"
	"time"
)

// RoundState is the lifecycle state of a lottery round
type RoundState int

const (
	// StateOpen accepts deposits
	StateOpen RoundState = iota

	// StateRolled has a randomness request outstanding
	StateRolled

	// StateDrawn has winners selected and prizes claimable
	StateDrawn

	// StateSettled has every prize paid out
	StateSettled
)

// String returns a human-readable round state
func (s RoundState) String() string {
	switch s {
	case StateOpen:
		return "Open"
	case StateRolled:
		return "Rolled"
	case StateDrawn:
		return "Drawn"
	case StateSettled:
		return "Settled"
	default:
		return "Unknown"
	}
}

// LotConfig holds the per-round parameters of a lottery instance
type LotConfig struct {
	// Winners is the number of winner slots drawn per round
	Winners int `mapstructure:"winners" json:"winners"`

	// RoundDuration is how long the deposit window stays open before
	// the round may be rolled
	RoundDuration time.Duration `mapstructure:"round_duration" json:"round_duration"`
}

// DefaultLotConfig returns the default round parameters
func DefaultLotConfig() *LotConfig {
	return &LotConfig{
		Winners:       DefaultWinners,
		RoundDuration: DefaultRoundDuration,
	}
}

// Validate checks the configuration for consistency
func (c *LotConfig) Validate() error {
	if c.Winners < 1 || c.Winners > MaxWinners {
		return ErrInvalidWinners.WithDetails("got %d", c.Winners)
	}
	if c.RoundDuration <= 0 {
		return ErrInvalidRoundConfig.WithDetails("round duration must be positive, got %v", c.RoundDuration)
	}
	return nil
}

// Winner is one drawn winner and the prize apportioned to it
type Winner struct {
	Participant string `json:"participant"`
	Amount      uint64 `json:"amount"`
}

// RoundStatus is a read-only view of a round, including how long a
// rolled round has been waiting on randomness
type RoundStatus struct {
	ID            string        `json:"id"`
	State         RoundState    `json:"state"`
	Participants  int           `json:"participants"`
	TotalPool     uint64        `json:"total_pool"`
	Unclaimed     uint64        `json:"unclaimed"`
	RequestID     uint64        `json:"request_id,omitempty"`
	OpenedAt      time.Time     `json:"opened_at"`
	RolledAt      time.Time     `json:"rolled_at,omitempty"`
	DrawnAt       time.Time     `json:"drawn_at,omitempty"`
	TimeSinceRoll time.Duration `json:"time_since_roll,omitempty"`
}

// YoloLot is one pooled lottery round. Participants deposit tokens
// while the round is Open; after the deposit window elapses the round
// is rolled (one randomness request), drawn once the provider
// fulfills, and settled once every prize is withdrawn.
//
// The instance custodies deposits under its own account identity, so
// conservation is checkable against the token ledger at any point.
type YoloLot struct {
	id       string
	coin     Token
	provider RandomProvider
	cfg      *LotConfig
	logger   Logger
	monitor  *GameMonitor

	mu       sync.Mutex
	state    RoundState
	openedAt time.Time
	rolledAt time.Time
	drawnAt  time.Time

	pool  map[string]uint64
	order []string
	total uint64

	requestID uint64
	winners   []Winner
	claimable map[string]uint64
	unclaimed uint64

	now func() time.Time
}

// NewYoloLot creates a round bound to the given token and provider.
// A nil config uses the defaults.
func NewYoloLot(id string, coin Token, provider RandomProvider, cfg *LotConfig) (*YoloLot, error) {
	return NewYoloLotWithLogger(id, coin, provider, cfg, &DefaultLogger{})
}

// NewYoloLotWithLogger creates a round with a custom logger
func NewYoloLotWithLogger(id string, coin Token, provider RandomProvider, cfg *LotConfig, logger Logger) (*YoloLot, error) {
	if err := validateAccount(id); err != nil {
		return nil, err
	}
	if coin == nil || provider == nil {
		return nil, ErrInvalidParameters.WithDetails("token and provider are required")
	}
	if cfg == nil {
		cfg = DefaultLotConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = &DefaultLogger{}
	}

	return &YoloLot{
		id:        id,
		coin:      coin,
		provider:  provider,
		cfg:       cfg,
		logger:    logger,
		monitor:   NewGameMonitor(),
		state:     StateOpen,
		openedAt:  time.Now(),
		pool:      make(map[string]uint64),
		claimable: make(map[string]uint64),
		now:       time.Now,
	}, nil
}

// ID returns the round identifier, which is also the account the
// round custodies deposits under
func (l *YoloLot) ID() string { return l.id }

// Monitor returns the round's metrics collector
func (l *YoloLot) Monitor() *GameMonitor { return l.monitor }

// Enter deposits amount into the pool on behalf of participant. The
// participant must have granted the round an allowance beforehand;
// the deposit is pulled, not pushed. Rejected transfers leave the
// round untouched.
func (l *YoloLot) Enter(participant string, amount uint64) error {
	if err := validateAccount(participant); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Debug("Enter: round=%s participant=%s amount=%d", l.id, participant, amount)

	if l.state != StateOpen {
		l.logger.Error("Enter rejected: round %s is %s", l.id, l.state)
		return ErrNotOpen.WithDetails("round %s is %s", l.id, l.state)
	}

	if err := l.coin.TransferFrom(l.id, participant, l.id, amount); err != nil {
		l.logger.Error("Enter failed: token transfer rejected for %s: %v", participant, err)
		return ErrTokenTransferFailed.WithCause(err)
	}

	if _, ok := l.pool[participant]; !ok {
		l.order = append(l.order, participant)
	}
	l.pool[participant] += amount
	l.total += amount
	l.monitor.RecordDeposit(amount)

	l.logger.Info("Enter: round=%s participant=%s deposited=%d pool=%d",
		l.id, participant, l.pool[participant], l.total)
	return nil
}

// ViewPool returns the participant's current deposit
func (l *YoloLot) ViewPool(participant string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.pool[participant]
}

// TotalPool returns the sum of all deposits
func (l *YoloLot) TotalPool() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.total
}

// Claimable returns the prize still owed to the participant
func (l *YoloLot) Claimable(participant string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.claimable[participant]
}

// Participants returns the depositors in deposit order
func (l *YoloLot) Participants() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// State returns the current round state
func (l *YoloLot) State() RoundState {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// Roll closes the deposit window and issues the round's single
// randomness request. It only succeeds after the configured round
// duration has elapsed and with at least one deposit in the pool.
func (l *YoloLot) Roll() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Debug("Roll: round=%s state=%s pool=%d", l.id, l.state, l.total)

	switch l.state {
	case StateOpen:
		// proceed
	case StateRolled:
		return ErrAlreadyRolled
	default:
		return ErrAlreadyRolled.WithDetails("round %s is %s", l.id, l.state)
	}

	now := l.now()
	if elapsed := now.Sub(l.openedAt); elapsed < l.cfg.RoundDuration {
		l.logger.Error("Roll rejected: round %s open for %v of %v", l.id, elapsed, l.cfg.RoundDuration)
		return ErrRoundStillOpen.WithDetails("%v remaining", l.cfg.RoundDuration-elapsed)
	}
	if l.total == 0 {
		l.logger.Error("Roll rejected: round %s has no deposits", l.id)
		return ErrEmptyPool
	}

	requestID, err := l.provider.RequestRandomNumber(l.id, 1)
	if err != nil {
		l.logger.Error("Roll failed: randomness request rejected: %v", err)
		return err
	}

	l.requestID = requestID
	l.state = StateRolled
	l.rolledAt = now
	l.monitor.RecordRoll()

	l.logger.Info("Roll: round=%s rolled with request=%d pool=%d", l.id, requestID, l.total)
	return nil
}

// Draw polls the provider and, once the randomness is delivered,
// selects winners and apportions the pool. While the request is still
// pending the round stays Rolled and the caller retries later.
func (l *YoloLot) Draw() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Debug("Draw: round=%s state=%s request=%d", l.id, l.state, l.requestID)

	switch l.state {
	case StateRolled:
		// proceed
	case StateOpen:
		return ErrNotRolled
	default:
		return ErrAlreadyDrawn.WithDetails("round %s is %s", l.id, l.state)
	}

	status, values, err := l.provider.GetRandomNumber(l.id, l.requestID)
	if err != nil {
		l.monitor.RecordDraw(false)
		l.logger.Error("Draw failed: provider rejected poll for request %d: %v", l.requestID, err)
		return err
	}
	if status != RequestFulfilled {
		l.monitor.RecordDraw(false)
		l.logger.Debug("Draw deferred: request %d still pending after %v",
			l.requestID, l.now().Sub(l.rolledAt))
		return ErrRandomnessNotReady.WithDetails("request %d pending", l.requestID)
	}

	l.winners = l.selectWinners(values[0])
	l.apportion()
	l.state = StateDrawn
	l.drawnAt = l.now()
	l.monitor.RecordDraw(true)

	l.logger.Info("Draw: round=%s drawn, %d winners, pool=%d", l.id, len(l.winners), l.total)
	return nil
}

// GetWinners returns the drawn winners in selection order
func (l *YoloLot) GetWinners() ([]Winner, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateDrawn && l.state != StateSettled {
		return nil, ErrNotDrawn
	}

	winners := make([]Winner, len(l.winners))
	copy(winners, l.winners)
	return winners, nil
}

// Withdraw pays out the participant's prize and zeroes the claimable
// balance. A second call, or a call by a non-winner, reports
// ErrNothingToWithdraw without touching any state. Once the last
// prize is paid the round becomes Settled.
func (l *YoloLot) Withdraw(participant string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.withdrawLocked(participant)
}

func (l *YoloLot) withdrawLocked(participant string) (uint64, error) {
	l.logger.Debug("Withdraw: round=%s participant=%s state=%s", l.id, participant, l.state)

	if l.state != StateDrawn && l.state != StateSettled {
		return 0, ErrNothingToWithdraw.WithDetails("round %s is %s", l.id, l.state)
	}

	amount := l.claimable[participant]
	if amount == 0 {
		return 0, ErrNothingToWithdraw.WithDetails("no claimable balance for %s", participant)
	}

	if err := l.coin.Transfer(l.id, participant, amount); err != nil {
		l.logger.Error("Withdraw failed: payout transfer rejected for %s: %v", participant, err)
		return 0, ErrTokenTransferFailed.WithCause(err)
	}

	l.claimable[participant] = 0
	l.unclaimed -= amount
	l.monitor.RecordWithdrawal(amount)

	if l.unclaimed == 0 {
		l.state = StateSettled
		l.logger.Info("Withdraw: round=%s settled", l.id)
	}

	l.logger.Info("Withdraw: round=%s participant=%s paid=%d unclaimed=%d",
		l.id, participant, amount, l.unclaimed)
	return amount, nil
}

// SettleResult reports the outcome of a WithdrawAll sweep
type SettleResult struct {
	RoundID        string           `json:"round_id"`
	TotalWinners   int              `json:"total_winners"`
	Settled        int              `json:"settled"`
	Failed         int              `json:"failed"`
	PaidAmount     uint64           `json:"paid_amount"`
	Errors         map[string]error `json:"-"`
	PartialSuccess bool             `json:"partial_success"`
	Duration       time.Duration    `json:"duration"`
}

// WithdrawAll pays every outstanding prize in one sweep. Failures are
// isolated per participant: one rejected payout does not stop the
// rest, and the failed balance stays claimable for a later retry.
func (l *YoloLot) WithdrawAll() (*SettleResult, error) {
	start := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateDrawn && l.state != StateSettled {
		return nil, ErrNotDrawn
	}

	result := &SettleResult{
		RoundID: l.id,
		Errors:  make(map[string]error),
	}

	for _, w := range l.winners {
		if l.claimable[w.Participant] == 0 {
			continue
		}
		result.TotalWinners++

		paid, err := l.withdrawLocked(w.Participant)
		if err != nil {
			result.Failed++
			result.Errors[w.Participant] = err
			continue
		}
		result.Settled++
		result.PaidAmount += paid
	}

	result.PartialSuccess = result.Failed > 0 && result.Settled > 0
	result.Duration = time.Since(start)

	if result.Failed > 0 {
		l.logger.Error("WithdrawAll: round=%s settled=%d failed=%d", l.id, result.Settled, result.Failed)
		return result, ErrPartialSettlement.WithDetails("%d of %d payouts failed",
			result.Failed, result.TotalWinners)
	}

	l.logger.Info("WithdrawAll: round=%s settled=%d paid=%d", l.id, result.Settled, result.PaidAmount)
	return result, nil
}

// Status returns a read-only view of the round. For a rolled round it
// includes the time spent waiting on randomness, so a keeper can spot
// requests that were never fulfilled.
func (l *YoloLot) Status() RoundStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	status := RoundStatus{
		ID:           l.id,
		State:        l.state,
		Participants: len(l.order),
		TotalPool:    l.total,
		Unclaimed:    l.unclaimed,
		RequestID:    l.requestID,
		OpenedAt:     l.openedAt,
		RolledAt:     l.rolledAt,
		DrawnAt:      l.drawnAt,
	}
	if l.state == StateRolled {
		status.TimeSinceRoll = l.now().Sub(l.rolledAt)
	}
	return status
}

// Snapshot returns an archivable copy of the full round state
func (l *YoloLot) Snapshot() *RoundSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := &RoundSnapshot{
		ID:        l.id,
		State:     l.state.String(),
		Pool:      make(map[string]uint64, len(l.pool)),
		Order:     make([]string, len(l.order)),
		Total:     l.total,
		RequestID: l.requestID,
		Winners:   make([]Winner, len(l.winners)),
		Claimable: make(map[string]uint64, len(l.claimable)),
		Unclaimed: l.unclaimed,
		OpenedAt:  l.openedAt,
		RolledAt:  l.rolledAt,
		DrawnAt:   l.drawnAt,
	}
	for k, v := range l.pool {
		snap.Pool[k] = v
	}
	copy(snap.Order, l.order)
	copy(snap.Winners, l.winners)
	for k, v := range l.claimable {
		snap.Claimable[k] = v
	}
	return snap
}

// selectWinners runs weighted selection without replacement over the
// deposit pool. The delivered value seeds slot 0 directly; every
// later slot derives its sub-seed by hashing the value with the slot
// index, so the whole mapping replays from the one delivered value.
func (l *YoloLot) selectWinners(value uint64) []Winner {
	count := l.cfg.Winners
	if count > len(l.order) {
		count = len(l.order)
	}

	weights := make(map[string]uint64, len(l.pool))
	for k, v := range l.pool {
		weights[k] = v
	}
	order := make([]string, len(l.order))
	copy(order, l.order)
	remaining := l.total

	winners := make([]Winner, 0, count)
	for slot := 0; slot < count; slot++ {
		target := seedForSlot(value, slot) % remaining

		var cum uint64
		for i, participant := range order {
			cum += weights[participant]
			if target < cum {
				winners = append(winners, Winner{Participant: participant})
				remaining -= weights[participant]
				order = append(order[:i], order[i+1:]...)
				delete(weights, participant)
				break
			}
		}
	}
	return winners
}

// apportion splits the entire pool across the drawn winners in
// proportion to their own stakes. Integer division truncates, so the
// leftover goes to the first-drawn winner and the totals stay exact.
func (l *YoloLot) apportion() {
	var winnersStake uint64
	for _, w := range l.winners {
		winnersStake += l.pool[w.Participant]
	}

	var distributed uint64
	for i := range l.winners {
		stake := l.pool[l.winners[i].Participant]
		l.winners[i].Amount = mulDiv(l.total, stake, winnersStake)
		distributed += l.winners[i].Amount
	}
	if remainder := l.total - distributed; remainder > 0 {
		l.winners[0].Amount += remainder
	}

	for _, w := range l.winners {
		l.claimable[w.Participant] = w.Amount
	}
	l.unclaimed = l.total
}

// mulDiv computes a*b/c with a 128-bit intermediate. b never exceeds
// c here (a stake against the winners' combined stake), so the
// quotient always fits.
func mulDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi == 0 {
		return lo / c
	}
	q, _ := bits.Div64(hi, lo, c)
	return q
}

// seedForSlot expands the delivered oracle value into per-slot
// sub-seeds. Slot 0 consumes the value as delivered.
func seedForSlot(value uint64, slot int) uint64 {
	if slot == 0 {
		return value
	}

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], value)
	binary.BigEndian.PutUint64(buf[8:], uint64(slot))
	sum := sha256.Sum256(buf[:])
	return binary.BigEndian.Uint64(sum[:8])
}
