package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/malbeclabs/feevault/vault/pkg/events"
	"github.com/malbeclabs/feevault/vault/pkg/ledger"
	"github.com/malbeclabs/feevault/vault/pkg/rewards"
	"github.com/malbeclabs/feevault/vault/pkg/store"
)

// Shares returns user's vault shares.
func (s *Service) Shares(ctx context.Context, vaultID, user string) (sdkmath.Int, error) {
	var shares sdkmath.Int
	err := s.view(ctx, vaultID, func(t *txn) error {
		var err error
		shares, err = t.tx.Shares(t.ctx, user)
		return err
	})
	return shares, err
}

// BTokens returns the b-tokens backing user's shares at the current pool rate.
func (s *Service) BTokens(ctx context.Context, vaultID, user string) (sdkmath.Int, error) {
	var out sdkmath.Int
	err := s.view(ctx, vaultID, func(t *txn) error {
		shares, err := t.refreshedShares(user)
		if err != nil || shares.IsZero() {
			out = sdkmath.ZeroInt()
			return err
		}
		out, err = t.state.SharesToBTokensDown(shares)
		return err
	})
	return out, err
}

// Underlying returns the amount of the underlying asset user could withdraw now.
func (s *Service) Underlying(ctx context.Context, vaultID, user string) (sdkmath.Int, error) {
	var out sdkmath.Int
	err := s.view(ctx, vaultID, func(t *txn) error {
		shares, err := t.refreshedShares(user)
		if err != nil || shares.IsZero() {
			out = sdkmath.ZeroInt()
			return err
		}
		out, err = t.state.SharesToUnderlyingDown(shares)
		return err
	})
	return out, err
}

// refreshedShares refreshes the vault in memory when user holds shares.
func (t *txn) refreshedShares(user string) (sdkmath.Int, error) {
	shares, err := t.tx.Shares(t.ctx, user)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("failed to load shares: %w", err)
	}
	if !shares.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	if _, err := t.ledger(); err != nil {
		return sdkmath.Int{}, err
	}
	return shares, nil
}

// UserRewards returns user's stored position in rewardToken's stream, as of their last touch.
func (s *Service) UserRewards(ctx context.Context, vaultID, user, rewardToken string) (rewards.UserState, bool, error) {
	var (
		out rewards.UserState
		ok  bool
	)
	err := s.view(ctx, vaultID, func(t *txn) error {
		var err error
		out, ok, err = t.tx.UserRewards(t.ctx, rewardToken, user)
		return err
	})
	return out, ok, err
}

// UnderlyingAdminBalance returns the admin balance in the underlying asset at the current pool rate.
// It is negative while a fixed rate vault owes depositors.
func (s *Service) UnderlyingAdminBalance(ctx context.Context, vaultID string) (sdkmath.Int, error) {
	var out sdkmath.Int
	err := s.view(ctx, vaultID, func(t *txn) error {
		if _, err := t.ledger(); err != nil {
			return err
		}
		var err error
		out, err = t.state.BTokensToUnderlyingDown(t.state.AdminBalance)
		return err
	})
	return out, err
}

func (s *Service) Config(ctx context.Context, vaultID string) (store.VaultConfig, error) {
	var cfg store.VaultConfig
	err := s.view(ctx, vaultID, func(t *txn) error {
		cfg = t.cfg
		return nil
	})
	return cfg, err
}

// State returns the vault ledger refreshed to now. Nothing is persisted.
func (s *Service) State(ctx context.Context, vaultID string) (ledger.State, error) {
	var st ledger.State
	err := s.view(ctx, vaultID, func(t *txn) error {
		if _, err := t.ledger(); err != nil {
			return err
		}
		st = t.state
		return nil
	})
	return st, err
}

func (s *Service) Fee(ctx context.Context, vaultID string) (ledger.Fee, error) {
	cfg, err := s.Config(ctx, vaultID)
	return cfg.Fee, err
}

func (s *Service) Admin(ctx context.Context, vaultID string) (string, error) {
	cfg, err := s.Config(ctx, vaultID)
	return cfg.Admin, err
}

// Signer returns the vault's co-signer, if one is set.
func (s *Service) Signer(ctx context.Context, vaultID string) (string, bool, error) {
	cfg, err := s.Config(ctx, vaultID)
	return cfg.Signer, cfg.Signer != "", err
}

// RewardToken returns the vault's active reward token, if any.
func (s *Service) RewardToken(ctx context.Context, vaultID string) (string, bool, error) {
	var (
		tok string
		ok  bool
	)
	err := s.view(ctx, vaultID, func(t *txn) error {
		var err error
		tok, ok, err = t.tx.RewardToken(t.ctx)
		return err
	})
	return tok, ok, err
}

// RewardData returns rewardToken's stream advanced to now.
func (s *Service) RewardData(ctx context.Context, vaultID, rewardToken string) (rewards.State, bool, error) {
	var (
		st rewards.State
		ok bool
	)
	err := s.view(ctx, vaultID, func(t *txn) error {
		dist, err := t.distributor()
		if err != nil {
			return err
		}
		st, ok, err = dist.Updated(t.ctx, rewardToken, t.state.TotalShares)
		return err
	})
	return st, ok, err
}

// Events returns vaultID's journal, newest first. A limit of 0 returns every entry.
func (s *Service) Events(ctx context.Context, vaultID string, limit int) ([]events.Event, error) {
	return s.cfg.Store.Events(ctx, vaultID, limit)
}

func (s *Service) Vaults(ctx context.Context) ([]string, error) {
	return s.cfg.Store.Vaults(ctx)
}
