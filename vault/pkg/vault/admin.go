package vault

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/malbeclabs/feevault/vault/pkg/events"
	"github.com/malbeclabs/feevault/vault/pkg/ledger"
	"github.com/malbeclabs/feevault/vault/pkg/store"
	"github.com/malbeclabs/feevault/vault/pkg/vaulterr"
)

// Initialize creates vault vaultID over cfg.Pool's cfg.Asset reserve. The vault starts at the
// pool's current b-rate with no shares.
func (s *Service) Initialize(ctx context.Context, vaultID string, cfg store.VaultConfig) (ledger.State, error) {
	start := s.cfg.Clock.Now()
	st, err := s.initialize(ctx, vaultID, cfg)
	s.observe(vaultID, "initialize", start, err)
	return st, err
}

func (s *Service) initialize(ctx context.Context, vaultID string, cfg store.VaultConfig) (ledger.State, error) {
	switch {
	case vaultID == "":
		return ledger.State{}, errors.New("vault id is required")
	case cfg.Admin == "":
		return ledger.State{}, errors.New("admin is required")
	case cfg.Pool == "":
		return ledger.State{}, errors.New("pool is required")
	case cfg.Asset == "":
		return ledger.State{}, errors.New("asset is required")
	}
	if err := s.cfg.Authorizer.Require(ctx, cfg.Admin); err != nil {
		return ledger.State{}, err
	}
	if err := cfg.Fee.Validate(); err != nil {
		return ledger.State{}, err
	}

	rate, err := s.cfg.Pool.ExchangeRate(ctx, cfg.Pool, cfg.Asset)
	if err != nil {
		return ledger.State{}, fmt.Errorf("failed to get exchange rate: %w", err)
	}
	now := s.now()
	st := ledger.NewState(rate, now)

	ev := events.New(vaultID, events.KindInitialize, now)
	ev.Pool = cfg.Pool
	ev.Asset = cfg.Asset
	ev.Actor = cfg.Admin
	ev.To = cfg.Signer
	ev.RateType = uint32(cfg.Fee.RateType)
	ev.Rate = cfg.Fee.Rate
	err = s.cfg.Store.Create(ctx, vaultID, cfg, st, func(tx store.Tx) error {
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return ledger.State{}, err
	}
	s.commit(ctx, &txn{vaultID: vaultID, state: st, dirty: true, events: []events.Event{ev}})
	return st, nil
}

// AdminDeposit supplies amount from the admin to the pool and credits the admin balance. It
// returns the b-tokens credited.
func (s *Service) AdminDeposit(ctx context.Context, vaultID string, amount sdkmath.Int) (sdkmath.Int, error) {
	var minted sdkmath.Int
	err := s.update(ctx, vaultID, "admin_deposit", func(t *txn) error {
		if err := t.require(t.cfg.Admin); err != nil {
			return err
		}
		if err := requirePositive(amount); err != nil {
			return err
		}
		l, err := t.ledger()
		if err != nil {
			return err
		}
		bTokens, err := l.AdminDeposit(amount)
		if err != nil {
			return err
		}
		if err := s.cfg.Pool.Supply(t.ctx, t.cfg.Pool, t.cfg.Asset, t.cfg.Admin, amount); err != nil {
			return fmt.Errorf("failed to supply to pool: %w", err)
		}

		ev := t.event(events.KindAdminDeposit)
		ev.Actor = t.cfg.Admin
		ev.Amount = amount
		ev.BTokens = bTokens
		t.emit(ev)
		minted = bTokens
		return nil
	})
	return minted, err
}

// AdminWithdraw debits the admin balance and has the pool send amount to the admin. It returns
// the b-tokens debited.
func (s *Service) AdminWithdraw(ctx context.Context, vaultID string, amount sdkmath.Int) (sdkmath.Int, error) {
	var burnt sdkmath.Int
	err := s.update(ctx, vaultID, "admin_withdraw", func(t *txn) error {
		if err := t.require(t.cfg.Admin); err != nil {
			return err
		}
		if err := requirePositive(amount); err != nil {
			return err
		}
		l, err := t.ledger()
		if err != nil {
			return err
		}
		bTokens, err := l.AdminWithdraw(amount)
		if err != nil {
			return err
		}
		if err := s.cfg.Pool.Withdraw(t.ctx, t.cfg.Pool, t.cfg.Asset, t.cfg.Admin, amount); err != nil {
			return fmt.Errorf("failed to withdraw from pool: %w", err)
		}

		ev := t.event(events.KindAdminWithdraw)
		ev.Actor = t.cfg.Admin
		ev.Amount = amount
		ev.BTokens = bTokens
		t.emit(ev)
		burnt = bTokens
		return nil
	})
	return burnt, err
}

// SetFee accrues fees under the current policy and then switches to fee.
func (s *Service) SetFee(ctx context.Context, vaultID string, fee ledger.Fee) error {
	return s.update(ctx, vaultID, "set_fee", func(t *txn) error {
		if err := t.require(t.cfg.Admin); err != nil {
			return err
		}
		if err := fee.Validate(); err != nil {
			return err
		}
		if _, err := t.ledger(); err != nil {
			return err
		}
		t.cfg.Fee = fee
		if err := t.tx.PutConfig(t.ctx, t.cfg); err != nil {
			return err
		}

		ev := t.event(events.KindFeeUpdate)
		ev.Actor = t.cfg.Admin
		ev.RateType = uint32(fee.RateType)
		ev.Rate = fee.Rate
		t.emit(ev)
		return nil
	})
}

// SetAdmin hands the vault to admin. Both the current and the new admin must approve.
func (s *Service) SetAdmin(ctx context.Context, vaultID, admin string) error {
	return s.update(ctx, vaultID, "set_admin", func(t *txn) error {
		if admin == "" {
			return errors.New("admin is required")
		}
		if err := t.require(t.cfg.Admin, admin); err != nil {
			return err
		}
		prev := t.cfg.Admin
		t.cfg.Admin = admin
		if err := t.tx.PutConfig(t.ctx, t.cfg); err != nil {
			return err
		}

		ev := t.event(events.KindAdminUpdate)
		ev.Actor = prev
		ev.To = admin
		t.emit(ev)
		return nil
	})
}

// SetSigner requires signer to co-sign deposits and withdrawals. The new signer must approve. An
// empty signer makes the vault permissionless.
func (s *Service) SetSigner(ctx context.Context, vaultID, signer string) error {
	return s.update(ctx, vaultID, "set_signer", func(t *txn) error {
		required := []string{t.cfg.Admin}
		if signer != "" {
			required = append(required, signer)
		}
		if err := t.require(required...); err != nil {
			return err
		}
		t.cfg.Signer = signer
		if err := t.tx.PutConfig(t.ctx, t.cfg); err != nil {
			return err
		}

		ev := t.event(events.KindSignerUpdate)
		ev.Actor = t.cfg.Admin
		ev.To = signer
		t.emit(ev)
		return nil
	})
}

// SetRewards funds amount of rewardToken from the admin, streamed to share holders until
// expiration.
func (s *Service) SetRewards(ctx context.Context, vaultID, rewardToken string, amount sdkmath.Int, expiration uint64) error {
	return s.update(ctx, vaultID, "set_rewards", func(t *txn) error {
		if err := t.require(t.cfg.Admin); err != nil {
			return err
		}
		if rewardToken == "" {
			return fmt.Errorf("%w: reward token is required", vaulterr.ErrInvalidRewardConfig)
		}
		dist, err := t.distributor()
		if err != nil {
			return err
		}
		if err := dist.SetRewards(t.ctx, t.cfg.Admin, t.state.TotalShares, rewardToken, amount, expiration); err != nil {
			return err
		}

		ev := t.event(events.KindRewardsSet)
		ev.Actor = t.cfg.Admin
		ev.Token = rewardToken
		ev.Amount = amount
		ev.Expiration = expiration
		t.emit(ev)
		return nil
	})
}

// ClaimEmissions claims the pool's emissions accrued by the vault for reserveTokenIDs and sends
// them to to. It returns the amount claimed.
func (s *Service) ClaimEmissions(ctx context.Context, vaultID string, reserveTokenIDs []uint32, to string) (sdkmath.Int, error) {
	var claimed sdkmath.Int
	err := s.update(ctx, vaultID, "claim_emissions", func(t *txn) error {
		if err := t.require(t.cfg.Admin); err != nil {
			return err
		}
		amount, err := s.cfg.Pool.Claim(t.ctx, t.cfg.Pool, reserveTokenIDs, to)
		if err != nil {
			return fmt.Errorf("failed to claim emissions: %w", err)
		}

		ev := t.event(events.KindEmissionsClaim)
		ev.Actor = t.cfg.Admin
		ev.To = to
		ev.Amount = amount
		ev.ReserveTokenIDs = reserveTokenIDs
		t.emit(ev)
		claimed = amount
		return nil
	})
	return claimed, err
}
