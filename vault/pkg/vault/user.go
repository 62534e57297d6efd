package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/malbeclabs/feevault/vault/pkg/events"
	"github.com/malbeclabs/feevault/vault/pkg/fixedpoint"
	"github.com/malbeclabs/feevault/vault/pkg/vaulterr"
)

func requirePositive(amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() || !fixedpoint.InRange(amount) {
		return vaulterr.ErrInvalidAmount
	}
	return nil
}

// Deposit supplies amount of the vault's asset from user to the lending pool and mints shares for
// it. It returns the shares minted.
func (s *Service) Deposit(ctx context.Context, vaultID, user string, amount sdkmath.Int) (sdkmath.Int, error) {
	var shares sdkmath.Int
	err := s.update(ctx, vaultID, "deposit", func(t *txn) error {
		if err := t.requireUser(user); err != nil {
			return err
		}
		if err := requirePositive(amount); err != nil {
			return err
		}
		l, err := t.ledger()
		if err != nil {
			return err
		}
		res, err := l.Deposit(t.ctx, user, amount)
		if err != nil {
			return err
		}
		if err := s.cfg.Pool.Supply(t.ctx, t.cfg.Pool, t.cfg.Asset, user, amount); err != nil {
			return fmt.Errorf("failed to supply to pool: %w", err)
		}

		ev := t.event(events.KindDeposit)
		ev.Actor = user
		ev.Amount = amount
		ev.Shares = res.Shares
		ev.BTokens = res.BTokens
		t.emit(ev)
		shares = res.Shares
		return nil
	})
	return shares, err
}

// Withdraw burns user's shares for amount of the underlying asset and has the lending pool send it
// to user. Requests above the user's balance withdraw the full balance. It returns the shares burnt.
func (s *Service) Withdraw(ctx context.Context, vaultID, user string, amount sdkmath.Int) (sdkmath.Int, error) {
	var burnt sdkmath.Int
	err := s.update(ctx, vaultID, "withdraw", func(t *txn) error {
		if err := t.requireUser(user); err != nil {
			return err
		}
		if err := requirePositive(amount); err != nil {
			return err
		}
		l, err := t.ledger()
		if err != nil {
			return err
		}

		userShares, err := t.tx.Shares(t.ctx, user)
		if err != nil {
			return fmt.Errorf("failed to load shares: %w", err)
		}
		balance, err := t.state.SharesToUnderlyingDown(userShares)
		if err != nil {
			return err
		}
		if amount.GT(balance) {
			amount = balance
		}

		res, err := l.Withdraw(t.ctx, user, amount)
		if err != nil {
			return err
		}
		if err := s.cfg.Pool.Withdraw(t.ctx, t.cfg.Pool, t.cfg.Asset, user, amount); err != nil {
			return fmt.Errorf("failed to withdraw from pool: %w", err)
		}

		ev := t.event(events.KindWithdraw)
		ev.Actor = user
		ev.Amount = amount
		ev.Shares = res.Shares
		ev.BTokens = res.BTokens
		t.emit(ev)
		burnt = res.Shares
		return nil
	})
	return burnt, err
}

// ClaimRewards pays user's accrued rewards of the active reward token to to and returns the amount
// paid, which may be zero.
func (s *Service) ClaimRewards(ctx context.Context, vaultID, user, to string) (sdkmath.Int, error) {
	var claimed sdkmath.Int
	err := s.update(ctx, vaultID, "claim_rewards", func(t *txn) error {
		if err := t.require(user); err != nil {
			return err
		}
		userShares, err := t.tx.Shares(t.ctx, user)
		if err != nil {
			return fmt.Errorf("failed to load shares: %w", err)
		}
		dist, err := t.distributor()
		if err != nil {
			return err
		}
		amount, err := dist.Claim(t.ctx, t.state.TotalShares, user, userShares, to)
		if err != nil {
			return err
		}
		rewardToken, _, err := t.tx.RewardToken(t.ctx)
		if err != nil {
			return err
		}

		ev := t.event(events.KindRewardsClaim)
		ev.Actor = user
		ev.To = to
		ev.Token = rewardToken
		ev.Amount = amount
		t.emit(ev)
		claimed = amount
		return nil
	})
	return claimed, err
}
