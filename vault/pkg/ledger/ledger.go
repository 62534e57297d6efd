package ledger

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/malbeclabs/feevault/vault/pkg/fixedpoint"
	"github.com/malbeclabs/feevault/vault/pkg/vaulterr"
)

// Accounts reads and writes per-user share balances.
type Accounts interface {
	Shares(ctx context.Context, user string) (sdkmath.Int, error)
	PutShares(ctx context.Context, user string, shares sdkmath.Int) error
}

// RewardToucher settles a user's reward accrual. It must observe share balances before they change.
type RewardToucher interface {
	Touch(ctx context.Context, totalShares sdkmath.Int, user string, userShares sdkmath.Int) error
}

type Config struct {
	State    *State
	Fee      Fee
	PoolRate sdkmath.Int
	Now      uint64
	Accounts Accounts
	Rewards  RewardToucher // optional
}

func (cfg *Config) Validate() error {
	if cfg.State == nil {
		return errors.New("state is required")
	}
	if cfg.PoolRate.IsNil() || !cfg.PoolRate.IsPositive() {
		return errors.New("pool rate must be positive")
	}
	if cfg.Accounts == nil {
		return errors.New("accounts are required")
	}
	return nil
}

// Ledger applies share ledger mutations for a single unit of work. Every mutation refreshes the
// b-rate first so fee accrual always precedes the change it guards.
type Ledger struct {
	cfg Config
	st  *State
}

// Result reports the b-tokens and shares moved by a user operation.
type Result struct {
	BTokens sdkmath.Int
	Shares  sdkmath.Int
}

func New(cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ledger{cfg: cfg, st: cfg.State}, nil
}

// State returns the state being mutated.
func (l *Ledger) State() *State {
	return l.st
}

// Refresh accrues fees up to the pool rate. It returns the b-tokens moved to the admin balance.
func (l *Ledger) Refresh() (sdkmath.Int, error) {
	return l.st.Refresh(l.cfg.Fee, l.cfg.PoolRate, l.cfg.Now)
}

// Deposit mints shares for amount of underlying supplied by user.
func (l *Ledger) Deposit(ctx context.Context, user string, amount sdkmath.Int) (Result, error) {
	if _, err := l.Refresh(); err != nil {
		return Result{}, err
	}
	userShares, err := l.touch(ctx, user)
	if err != nil {
		return Result{}, err
	}

	bTokens, err := l.st.UnderlyingToBTokensDown(amount)
	if err != nil {
		return Result{}, err
	}
	if !bTokens.IsPositive() {
		return Result{}, fmt.Errorf("%w: %s underlying converts to %s b-tokens", vaulterr.ErrInvalidBTokensMinted, amount, bTokens)
	}
	shares, err := l.st.BTokensToSharesDown(bTokens)
	if err != nil {
		return Result{}, err
	}
	if !shares.IsPositive() {
		return Result{}, fmt.Errorf("%w: %s b-tokens convert to %s shares", vaulterr.ErrInvalidSharesMinted, bTokens, shares)
	}

	totalShares, err := fixedpoint.Add(l.st.TotalShares, shares)
	if err != nil {
		return Result{}, err
	}
	totalBTokens, err := fixedpoint.Add(l.st.TotalBTokens, bTokens)
	if err != nil {
		return Result{}, err
	}
	userShares, err = fixedpoint.Add(userShares, shares)
	if err != nil {
		return Result{}, err
	}

	l.st.TotalShares = totalShares
	l.st.TotalBTokens = totalBTokens
	if err := l.cfg.Accounts.PutShares(ctx, user, userShares); err != nil {
		return Result{}, fmt.Errorf("failed to store shares: %w", err)
	}
	return Result{BTokens: bTokens, Shares: shares}, nil
}

// Withdraw burns the shares backing amount of underlying owed to user. The caller clamps amount to
// the user's balance; the ledger does not.
func (l *Ledger) Withdraw(ctx context.Context, user string, amount sdkmath.Int) (Result, error) {
	if _, err := l.Refresh(); err != nil {
		return Result{}, err
	}
	userShares, err := l.touch(ctx, user)
	if err != nil {
		return Result{}, err
	}

	bTokens, err := l.st.UnderlyingToBTokensUp(amount)
	if err != nil {
		return Result{}, err
	}
	if !bTokens.IsPositive() {
		return Result{}, fmt.Errorf("%w: %s underlying converts to %s b-tokens", vaulterr.ErrInvalidBTokensBurnt, amount, bTokens)
	}
	shares, err := l.st.BTokensToSharesUp(bTokens)
	if err != nil {
		return Result{}, err
	}
	if !shares.IsPositive() {
		return Result{}, fmt.Errorf("%w: %s b-tokens convert to %s shares", vaulterr.ErrInvalidSharesBurnt, bTokens, shares)
	}

	if l.st.TotalShares.LT(shares) || l.st.TotalBTokens.LT(bTokens) {
		return Result{}, fmt.Errorf("%w: need %s shares and %s b-tokens, vault holds %s and %s",
			vaulterr.ErrInsufficientReserves, shares, bTokens, l.st.TotalShares, l.st.TotalBTokens)
	}
	if shares.GT(userShares) {
		return Result{}, fmt.Errorf("%w: need %s shares, user holds %s", vaulterr.ErrBalance, shares, userShares)
	}

	l.st.TotalShares = l.st.TotalShares.Sub(shares)
	l.st.TotalBTokens = l.st.TotalBTokens.Sub(bTokens)
	if err := l.cfg.Accounts.PutShares(ctx, user, userShares.Sub(shares)); err != nil {
		return Result{}, fmt.Errorf("failed to store shares: %w", err)
	}
	return Result{BTokens: bTokens, Shares: shares}, nil
}

// AdminDeposit credits the admin balance with the b-tokens minted for amount of underlying.
func (l *Ledger) AdminDeposit(amount sdkmath.Int) (sdkmath.Int, error) {
	if _, err := l.Refresh(); err != nil {
		return sdkmath.Int{}, err
	}
	bTokens, err := l.st.UnderlyingToBTokensDown(amount)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if !bTokens.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("%w: %s underlying converts to %s b-tokens", vaulterr.ErrInvalidBTokensMinted, amount, bTokens)
	}
	adminBalance, err := fixedpoint.Add(l.st.AdminBalance, bTokens)
	if err != nil {
		return sdkmath.Int{}, err
	}
	l.st.AdminBalance = adminBalance
	return bTokens, nil
}

// AdminWithdraw debits the admin balance by the b-tokens backing amount of underlying. An explicit
// withdrawal never drives the balance negative.
func (l *Ledger) AdminWithdraw(amount sdkmath.Int) (sdkmath.Int, error) {
	if _, err := l.Refresh(); err != nil {
		return sdkmath.Int{}, err
	}
	bTokens, err := l.st.UnderlyingToBTokensUp(amount)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if !bTokens.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("%w: %s underlying converts to %s b-tokens", vaulterr.ErrInvalidBTokensBurnt, amount, bTokens)
	}
	if bTokens.GT(l.st.AdminBalance) {
		return sdkmath.Int{}, fmt.Errorf("%w: need %s b-tokens, admin holds %s", vaulterr.ErrBalance, bTokens, l.st.AdminBalance)
	}
	l.st.AdminBalance = l.st.AdminBalance.Sub(bTokens)
	return bTokens, nil
}

// touch settles rewards for user against the pre-mutation balances and returns the user's shares.
func (l *Ledger) touch(ctx context.Context, user string) (sdkmath.Int, error) {
	userShares, err := l.cfg.Accounts.Shares(ctx, user)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("failed to load shares: %w", err)
	}
	if l.cfg.Rewards != nil {
		if err := l.cfg.Rewards.Touch(ctx, l.st.TotalShares, user, userShares); err != nil {
			return sdkmath.Int{}, fmt.Errorf("failed to update rewards: %w", err)
		}
	}
	return userShares, nil
}
