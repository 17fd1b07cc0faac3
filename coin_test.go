package yolo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYoloCoin_MintBurn(t *testing.T) {
	coin := NewYoloCoinWithLogger("minter", NewSilentLogger())

	t.Run("only minter changes supply", func(t *testing.T) {
		assert.ErrorIs(t, coin.Mint("mallory", "alice", 100), ErrUnauthorizedMinter)
		assert.ErrorIs(t, coin.Burn("mallory", "alice", 100), ErrUnauthorizedMinter)

		require.NoError(t, coin.Mint("minter", "alice", 100))
		assert.Equal(t, uint64(100), coin.BalanceOf("alice"))
		assert.Equal(t, uint64(100), coin.TotalSupply())
	})

	t.Run("burn requires balance", func(t *testing.T) {
		assert.ErrorIs(t, coin.Burn("minter", "alice", 500), ErrInsufficientBalance)

		require.NoError(t, coin.Burn("minter", "alice", 40))
		assert.Equal(t, uint64(60), coin.BalanceOf("alice"))
		assert.Equal(t, uint64(60), coin.TotalSupply())
	})

	t.Run("zero amounts rejected", func(t *testing.T) {
		assert.ErrorIs(t, coin.Mint("minter", "alice", 0), ErrInvalidAmount)
		assert.ErrorIs(t, coin.Burn("minter", "alice", 0), ErrInvalidAmount)
	})
}

func TestYoloCoin_Transfer(t *testing.T) {
	coin := NewYoloCoinWithLogger("minter", NewSilentLogger())
	require.NoError(t, coin.Mint("minter", "alice", 100))

	t.Run("moves balance", func(t *testing.T) {
		require.NoError(t, coin.Transfer("alice", "bob", 30))
		assert.Equal(t, uint64(70), coin.BalanceOf("alice"))
		assert.Equal(t, uint64(30), coin.BalanceOf("bob"))
	})

	t.Run("insufficient balance rejected without mutation", func(t *testing.T) {
		err := coin.Transfer("alice", "bob", 1000)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.Equal(t, uint64(70), coin.BalanceOf("alice"))
		assert.Equal(t, uint64(30), coin.BalanceOf("bob"))
	})
}

func TestYoloCoin_Allowances(t *testing.T) {
	coin := NewYoloCoinWithLogger("minter", NewSilentLogger())
	require.NoError(t, coin.Mint("minter", "alice", 100))

	t.Run("transferFrom needs an allowance", func(t *testing.T) {
		err := coin.TransferFrom("spender", "alice", "pool", 50)
		assert.ErrorIs(t, err, ErrInsufficientAllowance)
	})

	t.Run("allowances accumulate and are consumed", func(t *testing.T) {
		require.NoError(t, coin.IncreaseAllowance("alice", "spender", 30))
		require.NoError(t, coin.IncreaseAllowance("alice", "spender", 30))
		assert.Equal(t, uint64(60), coin.Allowance("alice", "spender"))

		require.NoError(t, coin.TransferFrom("spender", "alice", "pool", 50))
		assert.Equal(t, uint64(10), coin.Allowance("alice", "spender"))
		assert.Equal(t, uint64(50), coin.BalanceOf("pool"))
		assert.Equal(t, uint64(50), coin.BalanceOf("alice"))
	})

	t.Run("allowance does not cover missing balance", func(t *testing.T) {
		require.NoError(t, coin.IncreaseAllowance("alice", "spender", 500))
		err := coin.TransferFrom("spender", "alice", "pool", 200)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		// Allowance must survive a failed transfer
		assert.Equal(t, uint64(510), coin.Allowance("alice", "spender"))
	})
}
