package admin_test

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/feevault/admin/internal/admin"
	"github.com/malbeclabs/feevault/api/config"
	vaulttesting "github.com/malbeclabs/feevault/utils/pkg/testing"
	"github.com/malbeclabs/feevault/vault/pkg/ledger"
	"github.com/malbeclabs/feevault/vault/pkg/pool"
	"github.com/malbeclabs/feevault/vault/pkg/store"
	"github.com/malbeclabs/feevault/vault/pkg/token"
	"github.com/malbeclabs/feevault/vault/pkg/vault"
)

func TestFeeVault_Admin_InitVaults(t *testing.T) {
	t.Parallel()

	log := vaulttesting.NewLogger()
	tokens := token.NewLedger()
	p := pool.NewMock(tokens, "blnd")
	p.SetBRate("pool", "usdc", sdkmath.NewInt(1_100_000_000_000))
	svc, err := vault.New(vault.Config{
		Logger: log,
		Clock:  clockwork.NewFakeClock(),
		Store:  store.NewMemory(),
		Pool:   p,
		Tokens: tokens,
	})
	require.NoError(t, err)

	specs := []config.VaultSpec{
		{ID: "usdc-take", VaultConfig: store.VaultConfig{Admin: "admin", Pool: "pool", Asset: "usdc", Fee: ledger.Fee{RateType: ledger.TakeRate, Rate: 1_000_000}}},
		{ID: "usdc-fixed", VaultConfig: store.VaultConfig{Admin: "admin", Pool: "pool", Asset: "usdc", Signer: "signer", Fee: ledger.Fee{RateType: ledger.FixedRate, Rate: 500_000}}},
	}

	res, err := admin.InitVaults(context.Background(), log, svc, specs)
	require.NoError(t, err)
	assert.Equal(t, []string{"usdc-take", "usdc-fixed"}, res.Created)
	assert.Empty(t, res.Skipped)

	st, err := svc.State(context.Background(), "usdc-fixed")
	require.NoError(t, err)
	assert.True(t, st.BRate.Equal(sdkmath.NewInt(1_100_000_000_000)))
	signer, ok, err := svc.Signer(context.Background(), "usdc-fixed")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "signer", signer)

	// Applying the same file again is a no-op.
	res, err = admin.InitVaults(context.Background(), log, svc, specs)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Equal(t, []string{"usdc-take", "usdc-fixed"}, res.Skipped)

	_, err = admin.InitVaults(context.Background(), log, svc, []config.VaultSpec{
		{ID: "bad-fee", VaultConfig: store.VaultConfig{Admin: "admin", Pool: "pool", Asset: "usdc", Fee: ledger.Fee{RateType: 7}}},
	})
	require.ErrorContains(t, err, "failed to initialize vault bad-fee")
}
