package ledger

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/feevault/vault/pkg/vaulterr"
)

func n(v int64) sdkmath.Int { return sdkmath.NewInt(v) }

type mockAccounts struct {
	shares map[string]sdkmath.Int
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{shares: map[string]sdkmath.Int{}}
}

func (m *mockAccounts) Shares(_ context.Context, user string) (sdkmath.Int, error) {
	if s, ok := m.shares[user]; ok {
		return s, nil
	}
	return sdkmath.ZeroInt(), nil
}

func (m *mockAccounts) PutShares(_ context.Context, user string, shares sdkmath.Int) error {
	m.shares[user] = shares
	return nil
}

type touchCall struct {
	totalShares sdkmath.Int
	user        string
	userShares  sdkmath.Int
}

type mockToucher struct {
	calls []touchCall
}

func (m *mockToucher) Touch(_ context.Context, totalShares sdkmath.Int, user string, userShares sdkmath.Int) error {
	m.calls = append(m.calls, touchCall{totalShares, user, userShares})
	return nil
}

func newLedger(t *testing.T, st *State, fee Fee, poolRate int64, now uint64, accts Accounts, rewards RewardToucher) *Ledger {
	t.Helper()
	l, err := New(Config{
		State:    st,
		Fee:      fee,
		PoolRate: n(poolRate),
		Now:      now,
		Accounts: accts,
		Rewards:  rewards,
	})
	require.NoError(t, err)
	return l
}

func TestFeeVault_Ledger_New(t *testing.T) {
	t.Parallel()

	st := NewState(n(1_000_000_000_000), 0)

	t.Run("missing state", func(t *testing.T) {
		t.Parallel()
		_, err := New(Config{PoolRate: n(1), Accounts: newMockAccounts()})
		require.ErrorContains(t, err, "state is required")
	})

	t.Run("non-positive pool rate", func(t *testing.T) {
		t.Parallel()
		_, err := New(Config{State: &st, PoolRate: n(0), Accounts: newMockAccounts()})
		require.ErrorContains(t, err, "pool rate must be positive")
	})

	t.Run("missing accounts", func(t *testing.T) {
		t.Parallel()
		_, err := New(Config{State: &st, PoolRate: n(1)})
		require.ErrorContains(t, err, "accounts are required")
	})
}

func TestFeeVault_Ledger_Deposit(t *testing.T) {
	t.Parallel()

	t.Run("initial deposit mints shares 1:1 with b-tokens", func(t *testing.T) {
		t.Parallel()
		st := NewState(n(1_000_000_000_000), 1000)
		accts := newMockAccounts()
		toucher := &mockToucher{}
		l := newLedger(t, &st, Fee{TakeRate, 1000000}, 1_100_000_000_000, 1005, accts, toucher)

		res, err := l.Deposit(context.Background(), "alice", n(100_0000000))
		require.NoError(t, err)

		// 100 underlying at 1.1 is 90.9090909 b-tokens; an empty vault mints shares 1:1.
		require.Equal(t, int64(90_9090909), res.BTokens.Int64())
		require.Equal(t, int64(90_9090909), res.Shares.Int64())
		require.Equal(t, int64(90_9090909), st.TotalShares.Int64())
		require.Equal(t, int64(90_9090909), st.TotalBTokens.Int64())
		require.True(t, st.AdminBalance.IsZero())
		require.Equal(t, int64(1_100_000_000_000), st.BRate.Int64())
		require.Equal(t, uint64(1005), st.LastUpdateTimestamp)
		require.Equal(t, int64(90_9090909), accts.shares["alice"].Int64())

		require.Len(t, toucher.calls, 1)
		require.True(t, toucher.calls[0].totalShares.IsZero())
		require.True(t, toucher.calls[0].userShares.IsZero())
	})

	t.Run("accrues fee before minting", func(t *testing.T) {
		t.Parallel()
		st := State{
			BRate:               n(1_100_000_000_000),
			LastUpdateTimestamp: 1000,
			TotalShares:         n(1200_0000000),
			TotalBTokens:        n(1000_0000000),
			AdminBalance:        n(0),
		}
		accts := newMockAccounts()
		accts.shares["alice"] = n(50_0000000)
		toucher := &mockToucher{}
		l := newLedger(t, &st, Fee{TakeRate, 1000000}, 1_110_000_000_000, 1005, accts, toucher)

		// Underlying worth exactly 83.33333 b-tokens at the new rate.
		res, err := l.Deposit(context.Background(), "alice", n(92_4999963))
		require.NoError(t, err)

		require.Equal(t, int64(9009009), st.AdminBalance.Int64())
		require.Equal(t, int64(83_3333300), res.BTokens.Int64())
		require.Equal(t, int64(100_0901673), res.Shares.Int64())
		require.Equal(t, int64(1000_0000000-9009009+83_3333300), st.TotalBTokens.Int64())
		require.Equal(t, int64(1200_0000000+100_0901673), st.TotalShares.Int64())
		require.Equal(t, int64(50_0000000+100_0901673), accts.shares["alice"].Int64())

		// Rewards observe the balances before the deposit.
		require.Len(t, toucher.calls, 1)
		require.Equal(t, int64(1200_0000000), toucher.calls[0].totalShares.Int64())
		require.Equal(t, int64(50_0000000), toucher.calls[0].userShares.Int64())
	})

	t.Run("dust deposit mints no b-tokens", func(t *testing.T) {
		t.Parallel()
		st := NewState(n(1_100_000_000_000), 0)
		l := newLedger(t, &st, Fee{TakeRate, 0}, 1_100_000_000_000, 0, newMockAccounts(), nil)
		_, err := l.Deposit(context.Background(), "alice", n(1))
		require.ErrorIs(t, err, vaulterr.ErrInvalidBTokensMinted)
		require.True(t, st.TotalShares.IsZero())
	})

	t.Run("deposit that mints no shares fails", func(t *testing.T) {
		t.Parallel()
		st := State{
			BRate:        n(1_000_000_000_000),
			TotalShares:  n(1),
			TotalBTokens: n(10),
			AdminBalance: n(0),
		}
		l := newLedger(t, &st, Fee{TakeRate, 0}, 1_000_000_000_000, 0, newMockAccounts(), nil)
		_, err := l.Deposit(context.Background(), "alice", n(5))
		require.ErrorIs(t, err, vaulterr.ErrInvalidSharesMinted)
	})
}

func TestFeeVault_Ledger_Withdraw(t *testing.T) {
	t.Parallel()

	newState := func() State {
		return State{
			BRate:               n(1_000_000_000_000),
			LastUpdateTimestamp: 0,
			TotalShares:         n(200_0000001),
			TotalBTokens:        n(100_0000000),
			AdminBalance:        n(0),
		}
	}

	t.Run("burns rounded up shares", func(t *testing.T) {
		t.Parallel()
		st := newState()
		accts := newMockAccounts()
		accts.shares["bob"] = n(10_0000000)
		toucher := &mockToucher{}
		l := newLedger(t, &st, Fee{TakeRate, 0}, 1_000_000_000_000, 10, accts, toucher)

		res, err := l.Withdraw(context.Background(), "bob", n(1_0000000))
		require.NoError(t, err)
		require.Equal(t, int64(1_0000000), res.BTokens.Int64())
		require.Equal(t, int64(2_0000001), res.Shares.Int64())
		require.Equal(t, int64(198_0000000), st.TotalShares.Int64())
		require.Equal(t, int64(99_0000000), st.TotalBTokens.Int64())
		require.Equal(t, int64(7_9999999), accts.shares["bob"].Int64())
		require.Len(t, toucher.calls, 1)
		require.Equal(t, int64(10_0000000), toucher.calls[0].userShares.Int64())
	})

	t.Run("user without enough shares", func(t *testing.T) {
		t.Parallel()
		st := newState()
		accts := newMockAccounts()
		accts.shares["bob"] = n(2_0000000)
		l := newLedger(t, &st, Fee{TakeRate, 0}, 1_000_000_000_000, 10, accts, nil)

		_, err := l.Withdraw(context.Background(), "bob", n(1_0000000))
		require.ErrorIs(t, err, vaulterr.ErrBalance)
		require.Equal(t, int64(200_0000001), st.TotalShares.Int64())
	})

	t.Run("vault without enough reserves", func(t *testing.T) {
		t.Parallel()
		st := newState()
		accts := newMockAccounts()
		accts.shares["bob"] = n(1000_0000000)
		l := newLedger(t, &st, Fee{TakeRate, 0}, 1_000_000_000_000, 10, accts, nil)

		_, err := l.Withdraw(context.Background(), "bob", n(101_0000000))
		require.ErrorIs(t, err, vaulterr.ErrInsufficientReserves)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		t.Parallel()
		st := newState()
		l := newLedger(t, &st, Fee{TakeRate, 0}, 1_000_000_000_000, 10, newMockAccounts(), nil)
		_, err := l.Withdraw(context.Background(), "bob", n(0))
		require.ErrorIs(t, err, vaulterr.ErrInvalidBTokensBurnt)
	})
}

func TestFeeVault_Ledger_AdminBalance(t *testing.T) {
	t.Parallel()

	t.Run("admin deposit only touches the admin balance", func(t *testing.T) {
		t.Parallel()
		st := State{
			BRate:        n(1_100_000_000_000),
			TotalShares:  n(1200_0000000),
			TotalBTokens: n(1000_0000000),
			AdminBalance: n(-5_0000000),
		}
		l := newLedger(t, &st, Fee{FixedRate, 500000}, 1_100_000_000_000, 0, newMockAccounts(), nil)

		bTokens, err := l.AdminDeposit(n(11_0000000))
		require.NoError(t, err)
		require.Equal(t, int64(10_0000000), bTokens.Int64())
		require.Equal(t, int64(5_0000000), st.AdminBalance.Int64())
		require.Equal(t, int64(1200_0000000), st.TotalShares.Int64())
		require.Equal(t, int64(1000_0000000), st.TotalBTokens.Int64())
	})

	t.Run("admin withdraw rounds up and cannot overdraw", func(t *testing.T) {
		t.Parallel()
		st := State{
			BRate:        n(1_100_000_000_000),
			TotalShares:  n(0),
			TotalBTokens: n(0),
			AdminBalance: n(10_0000000),
		}
		l := newLedger(t, &st, Fee{TakeRate, 0}, 1_100_000_000_000, 0, newMockAccounts(), nil)

		bTokens, err := l.AdminWithdraw(n(1))
		require.NoError(t, err)
		require.Equal(t, int64(1), bTokens.Int64())
		require.Equal(t, int64(9_9999999), st.AdminBalance.Int64())

		_, err = l.AdminWithdraw(n(11_0000000))
		require.ErrorIs(t, err, vaulterr.ErrBalance)
		require.Equal(t, int64(9_9999999), st.AdminBalance.Int64())
	})

	t.Run("admin dust deposit fails", func(t *testing.T) {
		t.Parallel()
		st := NewState(n(1_100_000_000_000), 0)
		l := newLedger(t, &st, Fee{TakeRate, 0}, 1_100_000_000_000, 0, newMockAccounts(), nil)
		_, err := l.AdminDeposit(n(1))
		require.ErrorIs(t, err, vaulterr.ErrInvalidBTokensMinted)
	})
}

func TestFeeVault_Ledger_Conservation(t *testing.T) {
	t.Parallel()

	st := NewState(n(1_234_567_890_123), 0)
	accts := newMockAccounts()
	users := []string{"a", "b", "c"}
	amounts := []int64{100_0000000, 3_3333333, 77_7777777, 1_0000001, 45_4545454}

	for i, amt := range amounts {
		l := newLedger(t, &st, Fee{TakeRate, 2000000}, 1_234_567_890_123, uint64(i), accts, nil)
		_, err := l.Deposit(context.Background(), users[i%len(users)], n(amt))
		require.NoError(t, err)
	}
	for i, amt := range []int64{10_0000000, 1_0000000, 5_0000000} {
		l := newLedger(t, &st, Fee{TakeRate, 2000000}, 1_234_567_890_123, uint64(10+i), accts, nil)
		_, err := l.Withdraw(context.Background(), users[i], n(amt))
		require.NoError(t, err)
	}

	sumShares := sdkmath.ZeroInt()
	sumBTokens := sdkmath.ZeroInt()
	for _, u := range users {
		sumShares = sumShares.Add(accts.shares[u])
		b, err := st.SharesToBTokensDown(accts.shares[u])
		require.NoError(t, err)
		sumBTokens = sumBTokens.Add(b)
	}
	require.True(t, sumShares.Equal(st.TotalShares), "user shares %s != total %s", sumShares, st.TotalShares)
	require.True(t, sumBTokens.LTE(st.TotalBTokens), "user b-tokens %s exceed total %s", sumBTokens, st.TotalBTokens)
	require.True(t, st.AdminBalance.IsZero())
}

func TestFeeVault_Ledger_RoundingBias(t *testing.T) {
	t.Parallel()

	st := State{
		BRate:        n(1_333_333_333_333),
		TotalShares:  n(1234_5678901),
		TotalBTokens: n(987_6543210),
		AdminBalance: n(0),
	}
	scale := sdkmath.NewInt(1_000_000_000_000)

	for _, amt := range []int64{1_0000000, 7, 12_3456789, 999_9999999} {
		a := n(amt)

		depositB, err := st.UnderlyingToBTokensDown(a)
		require.NoError(t, err)
		depositShares, err := st.BTokensToSharesDown(depositB)
		require.NoError(t, err)
		// shares * total_b * b_rate <= a * total_shares * scale
		lhs := depositShares.Mul(st.TotalBTokens).Mul(st.BRate)
		rhs := a.Mul(st.TotalShares).Mul(scale)
		require.True(t, lhs.LTE(rhs), "deposit of %d minted more than the exact ratio", amt)

		withdrawB, err := st.UnderlyingToBTokensUp(a)
		require.NoError(t, err)
		withdrawShares, err := st.BTokensToSharesUp(withdrawB)
		require.NoError(t, err)
		lhs = withdrawShares.Mul(st.TotalBTokens).Mul(st.BRate)
		require.True(t, lhs.GTE(rhs), "withdraw of %d burnt less than the exact ratio", amt)
	}
}
