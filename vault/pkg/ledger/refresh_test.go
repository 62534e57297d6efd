package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/feevault/vault/pkg/fixedpoint"
	"github.com/malbeclabs/feevault/vault/pkg/vaulterr"
)

func TestFeeVault_Ledger_Fee_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Fee{TakeRate, 0}.Validate())
	require.NoError(t, Fee{FixedRate, MaxFeeRate}.Validate())
	require.ErrorIs(t, Fee{TakeRate, MaxFeeRate + 1}.Validate(), vaulterr.ErrInvalidFeeRate)
	require.ErrorIs(t, Fee{RateType(3), 0}.Validate(), vaulterr.ErrInvalidFeeRateType)
	// Rate is checked before the rate type.
	require.ErrorIs(t, Fee{RateType(3), MaxFeeRate + 1}.Validate(), vaulterr.ErrInvalidFeeRate)
}

func TestFeeVault_Ledger_Refresh(t *testing.T) {
	t.Parallel()

	base := func(bRate int64) State {
		return State{
			BRate:               n(bRate),
			LastUpdateTimestamp: 1000,
			TotalShares:         n(1200_0000000),
			TotalBTokens:        n(1000_0000000),
			AdminBalance:        n(0),
		}
	}

	t.Run("falling rate updates rate without fees", func(t *testing.T) {
		t.Parallel()
		st := base(1_100_000_000_000)
		accrued, err := st.Refresh(Fee{FixedRate, 5000000}, n(1_050_000_000_000), 2000)
		require.NoError(t, err)
		require.True(t, accrued.IsZero())
		require.Equal(t, int64(1_050_000_000_000), st.BRate.Int64())
		require.Equal(t, uint64(2000), st.LastUpdateTimestamp)
		require.Equal(t, int64(1000_0000000), st.TotalBTokens.Int64())
		require.True(t, st.AdminBalance.IsZero())
	})

	t.Run("take rate", func(t *testing.T) {
		t.Parallel()
		st := base(1_000_000_000_000)
		accrued, err := st.Refresh(Fee{TakeRate, 1000000}, n(1_050_000_000_000), 1005)
		require.NoError(t, err)
		require.Equal(t, int64(4_7619047), accrued.Int64())
		require.Equal(t, int64(4_7619047), st.AdminBalance.Int64())
		require.Equal(t, int64(1000_0000000-4_7619047), st.TotalBTokens.Int64())
		require.Equal(t, int64(1200_0000000), st.TotalShares.Int64())
		require.Equal(t, uint64(1005), st.LastUpdateTimestamp)
	})

	t.Run("take rate accrues across refreshes", func(t *testing.T) {
		t.Parallel()
		st := base(1_100_000_000_000)
		fee := Fee{TakeRate, 2000000}

		_, err := st.Refresh(fee, n(1_200_000_000_000), 1100)
		require.NoError(t, err)
		require.Equal(t, int64(16_6666666), st.AdminBalance.Int64())
		require.Equal(t, int64(1000_0000000-16_6666666), st.TotalBTokens.Int64())

		_, err = st.Refresh(fee, n(1_500_000_000_000), 1200)
		require.NoError(t, err)
		require.Equal(t, int64(16_6666666+39_3333333), st.AdminBalance.Int64())
	})

	t.Run("take rate rounds down to zero on tiny growth", func(t *testing.T) {
		t.Parallel()
		st := base(1_000_000_000_000)
		st.TotalBTokens = n(100_0000000)
		accrued, err := st.Refresh(Fee{TakeRate, 1000000}, n(1_000_000_003_171), 1001)
		require.NoError(t, err)
		require.True(t, accrued.IsZero())
		require.Equal(t, int64(1_000_000_003_171), st.BRate.Int64())
		require.Equal(t, uint64(1001), st.LastUpdateTimestamp)

		st = base(1_000_000_000_000)
		accrued, err = st.Refresh(Fee{TakeRate, 1000000}, n(1_000_000_003_171), 1001)
		require.NoError(t, err)
		require.Equal(t, int64(2), accrued.Int64())
	})

	t.Run("capped rate above cap", func(t *testing.T) {
		t.Parallel()
		st := base(1_000_000_000_000)
		st.LastUpdateTimestamp = 0
		now := uint64(fixedpoint.SecondsPerYear / 4)
		// 5% growth over a quarter year against a 5% APR cap.
		accrued, err := st.Refresh(Fee{CappedRate, 500000}, n(1_050_000_000_000), now)
		require.NoError(t, err)
		require.Equal(t, int64(35_7142857), accrued.Int64())
		require.Equal(t, int64(35_7142857), st.AdminBalance.Int64())
		require.Equal(t, int64(1000_0000000-35_7142857), st.TotalBTokens.Int64())
	})

	t.Run("capped rate below cap", func(t *testing.T) {
		t.Parallel()
		st := base(1_000_000_000_000)
		st.LastUpdateTimestamp = 0
		// 3.65% APR over one day against a 5% APR cap.
		accrued, err := st.Refresh(Fee{CappedRate, 500000}, n(1_000_100_000_000), 86400)
		require.NoError(t, err)
		require.True(t, accrued.IsZero())
		require.True(t, st.AdminBalance.IsZero())
		require.Equal(t, int64(1000_0000000), st.TotalBTokens.Int64())
		require.Equal(t, int64(1_000_100_000_000), st.BRate.Int64())
	})

	t.Run("fixed rate supplements a shortfall", func(t *testing.T) {
		t.Parallel()
		st := base(1_000_000_000_000)
		st.LastUpdateTimestamp = 0
		accrued, err := st.Refresh(Fee{FixedRate, 500000}, n(1_000_100_000_000), 86400)
		require.NoError(t, err)
		require.Equal(t, int64(-369828), accrued.Int64())
		require.Equal(t, int64(-369828), st.AdminBalance.Int64())
		require.Equal(t, int64(1000_0000000+369828), st.TotalBTokens.Int64())
	})

	t.Run("fixed rate above target behaves like capped", func(t *testing.T) {
		t.Parallel()
		st := base(1_000_000_000_000)
		st.LastUpdateTimestamp = 0
		now := uint64(fixedpoint.SecondsPerYear / 4)
		accrued, err := st.Refresh(Fee{FixedRate, 500000}, n(1_050_000_000_000), now)
		require.NoError(t, err)
		require.Equal(t, int64(35_7142857), accrued.Int64())
	})

	t.Run("unknown rate type accrues nothing", func(t *testing.T) {
		t.Parallel()
		st := base(1_000_000_000_000)
		accrued, err := st.Refresh(Fee{RateType(7), 5000000}, n(2_000_000_000_000), 2000)
		require.NoError(t, err)
		require.True(t, accrued.IsZero())
		require.Equal(t, int64(2_000_000_000_000), st.BRate.Int64())
		require.Equal(t, int64(1000_0000000), st.TotalBTokens.Int64())
	})
}

func TestFeeVault_Ledger_Conversions(t *testing.T) {
	t.Parallel()

	st := State{
		BRate:        n(1_000_000_000_000),
		TotalShares:  n(200_0000001),
		TotalBTokens: n(100_0000000),
		AdminBalance: n(0),
	}

	down, err := st.BTokensToSharesDown(n(1_0000000))
	require.NoError(t, err)
	require.Equal(t, int64(2_0000000), down.Int64())

	up, err := st.BTokensToSharesUp(n(1_0000000))
	require.NoError(t, err)
	require.Equal(t, int64(2_0000001), up.Int64())

	b, err := st.SharesToBTokensDown(n(2_0000000))
	require.NoError(t, err)
	require.Equal(t, int64(9999999), b.Int64())

	empty := st
	empty.TotalShares = n(0)
	same, err := empty.BTokensToSharesDown(n(1_0000000))
	require.NoError(t, err)
	require.Equal(t, int64(1_0000000), same.Int64())

	noBTokens := st
	noBTokens.TotalBTokens = n(0)
	zero, err := noBTokens.SharesToBTokensDown(n(2_0000000))
	require.NoError(t, err)
	require.True(t, zero.IsZero())

	st.BRate = n(1_100_000_000_000)
	u, err := st.BTokensToUnderlyingDown(n(1_0000001))
	require.NoError(t, err)
	require.Equal(t, int64(1_1000001), u.Int64())
	bd, err := st.UnderlyingToBTokensDown(n(1_0000000))
	require.NoError(t, err)
	require.Equal(t, int64(9090909), bd.Int64())
	bu, err := st.UnderlyingToBTokensUp(n(1_0000000))
	require.NoError(t, err)
	require.Equal(t, int64(9090910), bu.Int64())
}
