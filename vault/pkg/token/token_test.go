package token

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/feevault/vault/pkg/vaulterr"
)

func TestFeeVault_Token_Ledger(t *testing.T) {
	t.Parallel()

	t.Run("transfer moves balance", func(t *testing.T) {
		t.Parallel()
		l := NewLedger()
		l.Mint("usdc", "alice", sdkmath.NewInt(100))

		require.NoError(t, l.Transfer(context.Background(), "usdc", "alice", "bob", sdkmath.NewInt(40)))
		require.Equal(t, int64(60), l.Balance("usdc", "alice").Int64())
		require.Equal(t, int64(40), l.Balance("usdc", "bob").Int64())
		require.True(t, l.Balance("blnd", "alice").IsZero())
	})

	t.Run("insufficient balance", func(t *testing.T) {
		t.Parallel()
		l := NewLedger()
		l.Mint("usdc", "alice", sdkmath.NewInt(10))

		err := l.Transfer(context.Background(), "usdc", "alice", "bob", sdkmath.NewInt(11))
		require.ErrorIs(t, err, vaulterr.ErrBalance)
		require.Equal(t, int64(10), l.Balance("usdc", "alice").Int64())
		require.True(t, l.Balance("usdc", "bob").IsZero())
	})

	t.Run("negative amount", func(t *testing.T) {
		t.Parallel()
		l := NewLedger()
		err := l.Transfer(context.Background(), "usdc", "alice", "bob", sdkmath.NewInt(-1))
		require.ErrorIs(t, err, vaulterr.ErrInvalidAmount)
	})
}
