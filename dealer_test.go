package yolo

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDealer(t *testing.T) (*YoloDealer, *YoloCoin, *MockRandomProvider) {
	t.Helper()

	dealer := NewYoloDealerWithLogger("admin", NewSilentLogger())
	coin := NewYoloCoinWithLogger("minter", NewSilentLogger())
	provider := newSilentManualProvider(dealer.Address())

	require.NoError(t, dealer.SetRandomProvider("admin", 0, provider))
	require.NoError(t, dealer.SetYoloCoin("admin", coin))
	require.NoError(t, dealer.SetYoloLot("admin", &LotConfig{Winners: 1, RoundDuration: time.Hour}))

	return dealer, coin, provider
}

func TestYoloDealer_AdminGating(t *testing.T) {
	dealer := NewYoloDealerWithLogger("admin", NewSilentLogger())
	provider := newSilentManualProvider(dealer.Address())
	coin := NewYoloCoinWithLogger("minter", NewSilentLogger())

	assert.ErrorIs(t, dealer.SetRandomProvider("mallory", 0, provider), ErrUnauthorizedAdmin)
	assert.ErrorIs(t, dealer.SetYoloCoin("mallory", coin), ErrUnauthorizedAdmin)
	assert.ErrorIs(t, dealer.SetYoloLot("mallory", DefaultLotConfig()), ErrUnauthorizedAdmin)
	assert.ErrorIs(t, dealer.UseProvider("mallory", 0), ErrUnauthorizedAdmin)
	assert.ErrorIs(t, dealer.SetRNGCapacity("mallory", 0, 2), ErrUnauthorizedAdmin)
}

func TestYoloDealer_RequiresConfiguration(t *testing.T) {
	t.Run("no token and no provider", func(t *testing.T) {
		dealer := NewYoloDealerWithLogger("admin", NewSilentLogger())
		_, err := dealer.GetYoloLottery("alice")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("token without provider", func(t *testing.T) {
		dealer := NewYoloDealerWithLogger("admin", NewSilentLogger())
		coin := NewYoloCoinWithLogger("minter", NewSilentLogger())
		require.NoError(t, dealer.SetYoloCoin("admin", coin))

		_, err := dealer.GetYoloLottery("alice")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestYoloDealer_Provisioning(t *testing.T) {
	dealer, _, provider := newTestDealer(t)

	lot1, err := dealer.GetYoloLottery("alice")
	require.NoError(t, err)
	lot2, err := dealer.GetYoloLottery("bob")
	require.NoError(t, err)

	assert.Equal(t, "yolo-lot-1", lot1.ID())
	assert.Equal(t, "yolo-lot-2", lot2.ID())

	t.Run("registry is append-only and discoverable", func(t *testing.T) {
		lots := dealer.Lotteries()
		require.Len(t, lots, 2)
		assert.Same(t, lot1, lots[0])
		assert.Same(t, lot2, lots[1])
		assert.Same(t, lot1, dealer.Lottery("yolo-lot-1"))
		assert.Nil(t, dealer.Lottery("yolo-lot-99"))
	})

	t.Run("instances are registered as consumers", func(t *testing.T) {
		// A registered instance can request randomness right away
		_, err := provider.RequestRandomNumber(lot1.ID(), 1)
		assert.NoError(t, err)
	})
}

func TestYoloDealer_CapacityAcrossInstances(t *testing.T) {
	dealer, coin, provider := newTestDealer(t)
	require.NoError(t, dealer.SetRNGCapacity("admin", 0, 2))

	var lots []*YoloLot
	for i := 0; i < 3; i++ {
		lot, err := dealer.GetYoloLottery("alice")
		require.NoError(t, err)
		lots = append(lots, lot)

		account := fmt.Sprintf("player-%d", i)
		fund(t, coin, lot, account, 100)
		require.NoError(t, lot.Enter(account, 100))
		advance(lot, 2*time.Hour)
	}

	require.NoError(t, lots[0].Roll())
	require.NoError(t, lots[1].Roll())

	// Two requests outstanding exhaust the capacity for every instance
	err := lots[2].Roll()
	assert.ErrorIs(t, err, ErrProviderAtCapacity)
	assert.Equal(t, StateOpen, lots[2].State(), "rejected roll leaves the round open")

	// A fulfillment frees a slot and the retry goes through
	require.NoError(t, provider.Fulfill(lots[0].Status().RequestID, []uint64{1}))
	assert.NoError(t, lots[2].Roll())
}

func TestYoloDealer_ProviderSwitch(t *testing.T) {
	dealer, _, provider0 := newTestDealer(t)

	provider1 := newSilentManualProvider(dealer.Address())
	require.NoError(t, dealer.SetRandomProvider("admin", 1, provider1))

	t.Run("unknown slot rejected", func(t *testing.T) {
		assert.ErrorIs(t, dealer.UseProvider("admin", 7), ErrInvalidParameters)
	})

	require.NoError(t, dealer.UseProvider("admin", 1))

	lot, err := dealer.GetYoloLottery("alice")
	require.NoError(t, err)

	// The new instance is bound to the freshly activated provider
	_, err = provider1.RequestRandomNumber(lot.ID(), 1)
	assert.NoError(t, err)
	_, err = provider0.RequestRandomNumber(lot.ID(), 1)
	assert.ErrorIs(t, err, ErrUnauthorizedConsumer)
}

func TestYoloDealer_HoldsNoRoundState(t *testing.T) {
	dealer, coin, provider := newTestDealer(t)

	lot, err := dealer.GetYoloLottery("alice")
	require.NoError(t, err)

	fund(t, coin, lot, "alice", 100)
	require.NoError(t, lot.Enter("alice", 100))
	advance(lot, 2*time.Hour)
	require.NoError(t, lot.Roll())
	require.NoError(t, provider.Fulfill(lot.Status().RequestID, []uint64{3}))
	require.NoError(t, lot.Draw())

	// A fresh instance starts clean regardless of earlier rounds
	fresh, err := dealer.GetYoloLottery("alice")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, fresh.State())
	assert.Equal(t, uint64(0), fresh.TotalPool())
}
