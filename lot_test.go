package yolo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLot wires a round with a silent manual provider so every
// fulfillment is under test control
func newTestLot(t *testing.T, winners int) (*YoloCoin, *MockRandomProvider, *YoloLot) {
	t.Helper()

	coin := NewYoloCoinWithLogger("minter", NewSilentLogger())
	provider := NewManualRandomProvider("op")
	provider.SetLogger(NewSilentLogger())

	lot, err := NewYoloLotWithLogger("round-1", coin, provider,
		&LotConfig{Winners: winners, RoundDuration: time.Hour}, NewSilentLogger())
	require.NoError(t, err)
	require.NoError(t, provider.SetConsumer("op", lot.ID()))

	return coin, provider, lot
}

// fund mints tokens to an account and pre-authorizes the round
func fund(t *testing.T, coin *YoloCoin, lot *YoloLot, account string, amount uint64) {
	t.Helper()
	require.NoError(t, coin.Mint("minter", account, amount))
	require.NoError(t, coin.IncreaseAllowance(account, lot.ID(), amount))
}

// advance freezes the round's clock at the given offset from opening
func advance(l *YoloLot, d time.Duration) {
	opened := l.openedAt
	l.now = func() time.Time { return opened.Add(d) }
}

func TestYoloLot_FullRound(t *testing.T) {
	coin, provider, lot := newTestLot(t, 1)

	fund(t, coin, lot, "alice", 100)
	fund(t, coin, lot, "bob", 200)

	require.NoError(t, lot.Enter("alice", 100))
	require.NoError(t, lot.Enter("bob", 200))

	assert.Equal(t, uint64(100), lot.ViewPool("alice"))
	assert.Equal(t, uint64(200), lot.ViewPool("bob"))
	assert.Equal(t, uint64(300), lot.TotalPool())
	assert.Equal(t, uint64(300), coin.BalanceOf(lot.ID()), "deposits are custodied by the round")

	advance(lot, 2*time.Hour)
	require.NoError(t, lot.Roll())
	assert.Equal(t, StateRolled, lot.State())

	// Randomness not delivered yet
	err := lot.Draw()
	require.Error(t, err)
	assert.True(t, IsNotReady(err))
	assert.Equal(t, StateRolled, lot.State(), "failed draw must not advance the round")

	// The delivered value lands in bob's [100, 300) interval
	status := lot.Status()
	require.NoError(t, provider.Fulfill(status.RequestID, []uint64{150}))
	require.NoError(t, lot.Draw())
	assert.Equal(t, StateDrawn, lot.State())

	winners, err := lot.GetWinners()
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, "bob", winners[0].Participant)
	assert.Equal(t, uint64(300), winners[0].Amount, "single winner takes the whole pool")

	// Non-winner has nothing to withdraw
	_, err = lot.Withdraw("alice")
	assert.ErrorIs(t, err, ErrNothingToWithdraw)

	paid, err := lot.Withdraw("bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), paid)
	assert.Equal(t, uint64(300), coin.BalanceOf("bob"))
	assert.Equal(t, uint64(0), coin.BalanceOf(lot.ID()))
	assert.Equal(t, StateSettled, lot.State())

	// Repeat withdrawal is a no-op failure
	_, err = lot.Withdraw("bob")
	assert.ErrorIs(t, err, ErrNothingToWithdraw)
	assert.Equal(t, uint64(300), coin.BalanceOf("bob"), "repeat withdrawal must not pay again")
}

func TestYoloLot_EnterValidation(t *testing.T) {
	t.Run("zero amount rejected", func(t *testing.T) {
		_, _, lot := newTestLot(t, 1)
		err := lot.Enter("alice", 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("missing allowance leaves round untouched", func(t *testing.T) {
		coin, _, lot := newTestLot(t, 1)
		require.NoError(t, coin.Mint("minter", "alice", 100))

		err := lot.Enter("alice", 100)
		assert.ErrorIs(t, err, ErrTokenTransferFailed)
		assert.Equal(t, uint64(0), lot.TotalPool())
		assert.Equal(t, uint64(100), coin.BalanceOf("alice"))
	})

	t.Run("deposits stay open until the roll happens", func(t *testing.T) {
		coin, _, lot := newTestLot(t, 1)
		fund(t, coin, lot, "alice", 100)

		// Window elapsed but nobody rolled yet
		advance(lot, 2*time.Hour)
		assert.NoError(t, lot.Enter("alice", 100))

		require.NoError(t, lot.Roll())
		fund(t, coin, lot, "bob", 50)
		err := lot.Enter("bob", 50)
		assert.ErrorIs(t, err, ErrNotOpen)
	})
}

func TestYoloLot_RollGates(t *testing.T) {
	t.Run("before window elapses", func(t *testing.T) {
		coin, _, lot := newTestLot(t, 1)
		fund(t, coin, lot, "alice", 100)
		require.NoError(t, lot.Enter("alice", 100))

		advance(lot, 30*time.Minute)
		err := lot.Roll()
		assert.ErrorIs(t, err, ErrRoundStillOpen)
		assert.Equal(t, StateOpen, lot.State())
	})

	t.Run("empty pool", func(t *testing.T) {
		_, _, lot := newTestLot(t, 1)
		advance(lot, 2*time.Hour)
		err := lot.Roll()
		assert.ErrorIs(t, err, ErrEmptyPool)
	})

	t.Run("double roll", func(t *testing.T) {
		coin, _, lot := newTestLot(t, 1)
		fund(t, coin, lot, "alice", 100)
		require.NoError(t, lot.Enter("alice", 100))

		advance(lot, 2*time.Hour)
		require.NoError(t, lot.Roll())
		err := lot.Roll()
		assert.ErrorIs(t, err, ErrAlreadyRolled)
	})

	t.Run("exactly one randomness request", func(t *testing.T) {
		coin, provider, lot := newTestLot(t, 3)
		fund(t, coin, lot, "alice", 100)
		require.NoError(t, lot.Enter("alice", 100))

		advance(lot, 2*time.Hour)
		require.NoError(t, lot.Roll())
		assert.Len(t, provider.Events(), 1, "a roll issues a single request regardless of winner count")

		req, ok := provider.Request(lot.Status().RequestID)
		require.True(t, ok)
		assert.Equal(t, 1, req.Count)
	})
}

func TestYoloLot_DrawGates(t *testing.T) {
	coin, provider, lot := newTestLot(t, 1)
	fund(t, coin, lot, "alice", 100)
	require.NoError(t, lot.Enter("alice", 100))

	err := lot.Draw()
	assert.ErrorIs(t, err, ErrNotRolled)

	_, err = lot.GetWinners()
	assert.ErrorIs(t, err, ErrNotDrawn)

	advance(lot, 2*time.Hour)
	require.NoError(t, lot.Roll())
	require.NoError(t, provider.Fulfill(lot.Status().RequestID, []uint64{7}))
	require.NoError(t, lot.Draw())

	err = lot.Draw()
	assert.ErrorIs(t, err, ErrAlreadyDrawn)
}

func TestYoloLot_StateMonotonic(t *testing.T) {
	coin, provider, lot := newTestLot(t, 1)
	fund(t, coin, lot, "alice", 100)

	assert.Equal(t, StateOpen, lot.State())
	require.NoError(t, lot.Enter("alice", 100))

	advance(lot, 2*time.Hour)
	require.NoError(t, lot.Roll())
	assert.Equal(t, StateRolled, lot.State())

	require.NoError(t, provider.Fulfill(lot.Status().RequestID, []uint64{0}))
	require.NoError(t, lot.Draw())
	assert.Equal(t, StateDrawn, lot.State())

	_, err := lot.Withdraw("alice")
	require.NoError(t, err)
	assert.Equal(t, StateSettled, lot.State())

	// No operation moves a settled round backwards
	assert.ErrorIs(t, lot.Roll(), ErrAlreadyRolled)
	assert.ErrorIs(t, lot.Draw(), ErrAlreadyDrawn)
	assert.Equal(t, StateSettled, lot.State())
}

func TestYoloLot_Conservation(t *testing.T) {
	coin, provider, lot := newTestLot(t, 2)

	stakes := map[string]uint64{"alice": 100, "bob": 200, "carol": 300}
	for account, stake := range stakes {
		fund(t, coin, lot, account, stake)
	}
	require.NoError(t, lot.Enter("alice", 100))
	require.NoError(t, lot.Enter("bob", 200))
	require.NoError(t, lot.Enter("carol", 300))

	advance(lot, 2*time.Hour)
	require.NoError(t, lot.Roll())
	require.NoError(t, provider.Fulfill(lot.Status().RequestID, []uint64{123456789}))
	require.NoError(t, lot.Draw())

	winners, err := lot.GetWinners()
	require.NoError(t, err)
	require.Len(t, winners, 2)
	assert.NotEqual(t, winners[0].Participant, winners[1].Participant,
		"selection is without replacement")

	var prizes uint64
	for _, w := range winners {
		prizes += w.Amount
		assert.Equal(t, w.Amount, lot.Claimable(w.Participant))
	}
	assert.Equal(t, uint64(600), prizes, "prizes must apportion the whole pool")
	assert.Equal(t, lot.Status().Unclaimed, prizes)
	assert.Equal(t, uint64(600), coin.BalanceOf(lot.ID()))

	result, err := lot.WithdrawAll()
	require.NoError(t, err)
	assert.Equal(t, 2, result.Settled)
	assert.Equal(t, prizes, result.PaidAmount)
	assert.Equal(t, uint64(0), coin.BalanceOf(lot.ID()))
	assert.Equal(t, StateSettled, lot.State())
}

func TestYoloLot_ProportionalApportionment(t *testing.T) {
	t.Run("everyone wins their own stake share", func(t *testing.T) {
		coin, provider, lot := newTestLot(t, 3)
		stakes := map[string]uint64{"alice": 100, "bob": 200, "carol": 300}
		for account, stake := range stakes {
			fund(t, coin, lot, account, stake)
			require.NoError(t, lot.Enter(account, stake))
		}

		advance(lot, 2*time.Hour)
		require.NoError(t, lot.Roll())
		require.NoError(t, provider.Fulfill(lot.Status().RequestID, []uint64{42}))
		require.NoError(t, lot.Draw())

		winners, err := lot.GetWinners()
		require.NoError(t, err)
		require.Len(t, winners, 3)
		for _, w := range winners {
			assert.Equal(t, stakes[w.Participant], w.Amount,
				"with every participant winning, prizes equal stakes")
		}
	})

	t.Run("truncation remainder goes to the first winner", func(t *testing.T) {
		coin, provider, lot := newTestLot(t, 2)
		for _, account := range []string{"a", "b", "c"} {
			fund(t, coin, lot, account, 1)
			require.NoError(t, lot.Enter(account, 1))
		}

		advance(lot, 2*time.Hour)
		require.NoError(t, lot.Roll())
		require.NoError(t, provider.Fulfill(lot.Status().RequestID, []uint64{99}))
		require.NoError(t, lot.Draw())

		winners, err := lot.GetWinners()
		require.NoError(t, err)
		require.Len(t, winners, 2)
		assert.Equal(t, uint64(2), winners[0].Amount)
		assert.Equal(t, uint64(1), winners[1].Amount)
	})

	t.Run("winner slots cap at the participant count", func(t *testing.T) {
		coin, provider, lot := newTestLot(t, 5)
		fund(t, coin, lot, "alice", 10)
		require.NoError(t, lot.Enter("alice", 10))

		advance(lot, 2*time.Hour)
		require.NoError(t, lot.Roll())
		require.NoError(t, provider.Fulfill(lot.Status().RequestID, []uint64{7}))
		require.NoError(t, lot.Draw())

		winners, err := lot.GetWinners()
		require.NoError(t, err)
		require.Len(t, winners, 1)
		assert.Equal(t, uint64(10), winners[0].Amount)
	})
}

// The weighted mapping is deterministic: a delivered value selects the
// participant whose cumulative interval contains value mod pool. With
// stakes 100/200 every residue class is enumerable, so fairness is
// checked exactly rather than statistically.
func TestYoloLot_ExhaustiveFairness(t *testing.T) {
	wins := map[string]int{}

	for v := uint64(0); v < 300; v++ {
		coin, provider, lot := newTestLot(t, 1)
		fund(t, coin, lot, "alice", 100)
		fund(t, coin, lot, "bob", 200)
		require.NoError(t, lot.Enter("alice", 100))
		require.NoError(t, lot.Enter("bob", 200))

		advance(lot, 2*time.Hour)
		require.NoError(t, lot.Roll())
		require.NoError(t, provider.Fulfill(lot.Status().RequestID, []uint64{v}))
		require.NoError(t, lot.Draw())

		winners, err := lot.GetWinners()
		require.NoError(t, err)
		wins[winners[0].Participant]++
	}

	assert.Equal(t, 100, wins["alice"])
	assert.Equal(t, 200, wins["bob"])
}

func TestYoloLot_ReplayDeterminism(t *testing.T) {
	draw := func() []Winner {
		coin, provider, lot := newTestLot(t, 2)
		for _, account := range []string{"alice", "bob", "carol"} {
			fund(t, coin, lot, account, 500)
			require.NoError(t, lot.Enter(account, 500))
		}
		advance(lot, 2*time.Hour)
		require.NoError(t, lot.Roll())
		require.NoError(t, provider.Fulfill(lot.Status().RequestID, []uint64{987654321}))
		require.NoError(t, lot.Draw())

		winners, err := lot.GetWinners()
		require.NoError(t, err)
		return winners
	}

	assert.Equal(t, draw(), draw(), "same seed and same pool must reproduce the same winners")
}

// faultyToken rejects payouts to the configured accounts
type faultyToken struct {
	*YoloCoin
	failTo map[string]bool
}

func (f *faultyToken) Transfer(from, to string, amount uint64) error {
	if f.failTo[to] {
		return ErrSystemError.WithDetails("simulated transfer failure for %s", to)
	}
	return f.YoloCoin.Transfer(from, to, amount)
}

func TestYoloLot_WithdrawAllIsolation(t *testing.T) {
	coin := NewYoloCoinWithLogger("minter", NewSilentLogger())
	token := &faultyToken{YoloCoin: coin, failTo: map[string]bool{}}
	provider := NewManualRandomProvider("op")
	provider.SetLogger(NewSilentLogger())

	lot, err := NewYoloLotWithLogger("round-1", token, provider,
		&LotConfig{Winners: 2, RoundDuration: time.Hour}, NewSilentLogger())
	require.NoError(t, err)
	require.NoError(t, provider.SetConsumer("op", lot.ID()))

	for _, account := range []string{"alice", "bob", "carol"} {
		fund(t, coin, lot, account, 200)
		require.NoError(t, lot.Enter(account, 200))
	}

	advance(lot, 2*time.Hour)
	require.NoError(t, lot.Roll())
	require.NoError(t, provider.Fulfill(lot.Status().RequestID, []uint64{31337}))
	require.NoError(t, lot.Draw())

	winners, err := lot.GetWinners()
	require.NoError(t, err)
	require.Len(t, winners, 2)

	// First winner's payout fails; the second must still settle
	token.failTo[winners[0].Participant] = true

	result, err := lot.WithdrawAll()
	assert.ErrorIs(t, err, ErrPartialSettlement)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Settled)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.PartialSuccess)
	assert.Contains(t, result.Errors, winners[0].Participant)

	assert.Equal(t, winners[0].Amount, lot.Claimable(winners[0].Participant),
		"failed payout stays claimable")
	assert.Equal(t, uint64(0), lot.Claimable(winners[1].Participant))
	assert.Equal(t, StateDrawn, lot.State(), "round cannot settle with prizes outstanding")

	// Retry succeeds once the transfer failure clears
	token.failTo[winners[0].Participant] = false
	result, err = lot.WithdrawAll()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Settled)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, StateSettled, lot.State())
}

func TestYoloLot_StallObservability(t *testing.T) {
	coin, _, lot := newTestLot(t, 1)
	fund(t, coin, lot, "alice", 100)
	require.NoError(t, lot.Enter("alice", 100))

	advance(lot, time.Hour)
	require.NoError(t, lot.Roll())

	advance(lot, 3*time.Hour)
	status := lot.Status()
	assert.Equal(t, StateRolled, status.State)
	assert.Equal(t, 2*time.Hour, status.TimeSinceRoll)
}

func TestYoloLot_Snapshot(t *testing.T) {
	coin, provider, lot := newTestLot(t, 1)
	fund(t, coin, lot, "alice", 100)
	fund(t, coin, lot, "bob", 200)
	require.NoError(t, lot.Enter("alice", 100))
	require.NoError(t, lot.Enter("bob", 200))

	advance(lot, 2*time.Hour)
	require.NoError(t, lot.Roll())
	require.NoError(t, provider.Fulfill(lot.Status().RequestID, []uint64{150}))
	require.NoError(t, lot.Draw())

	snap := lot.Snapshot()
	require.NoError(t, snap.Validate())
	assert.Equal(t, "round-1", snap.ID)
	assert.Equal(t, "Drawn", snap.State)
	assert.Equal(t, uint64(300), snap.Total)
	assert.Equal(t, []string{"alice", "bob"}, snap.Order)
	assert.Equal(t, uint64(300), snap.Unclaimed)
	require.Len(t, snap.Winners, 1)
	assert.Equal(t, "bob", snap.Winners[0].Participant)
}
