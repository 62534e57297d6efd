package rewards

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/malbeclabs/feevault/vault/pkg/fixedpoint"
	"github.com/malbeclabs/feevault/vault/pkg/token"
	"github.com/malbeclabs/feevault/vault/pkg/vaulterr"
)

// State is the emission stream of one reward token.
type State struct {
	Eps        uint64      `json:"eps"`
	Expiration uint64      `json:"expiration"`
	LastTime   uint64      `json:"last_time"`
	Index      sdkmath.Int `json:"index"`
}

// UserState is a user's position in one reward token's stream.
type UserState struct {
	Index   sdkmath.Int `json:"index"`
	Accrued sdkmath.Int `json:"accrued"`
}

// LoadUpdated returns the stream advanced to now for totalShares. The receiver is not modified.
func (s State) LoadUpdated(totalShares sdkmath.Int, now uint64) (State, error) {
	if s.LastTime >= s.Expiration || now == s.LastTime || s.Eps == 0 || totalShares.IsZero() {
		return s, nil
	}
	if now < s.LastTime {
		return State{}, fmt.Errorf("reward clock moved backwards: last update %d, now %d", s.LastTime, now)
	}
	until := min(now, s.Expiration)
	emitted := sdkmath.NewIntFromUint64(until - s.LastTime).Mul(sdkmath.NewIntFromUint64(s.Eps))
	delta, err := fixedpoint.DivFloor(emitted, totalShares, fixedpoint.Scalar7)
	if err != nil {
		return State{}, err
	}
	index, err := fixedpoint.Add(s.Index, delta)
	if err != nil {
		return State{}, err
	}
	return State{Eps: s.Eps, Expiration: s.Expiration, LastTime: now, Index: index}, nil
}

// Store persists reward records.
type Store interface {
	RewardToken(ctx context.Context) (string, bool, error)
	PutRewardToken(ctx context.Context, token string) error
	RewardState(ctx context.Context, token string) (State, bool, error)
	PutRewardState(ctx context.Context, token string, st State) error
	UserRewards(ctx context.Context, token, user string) (UserState, bool, error)
	PutUserRewards(ctx context.Context, token, user string, st UserState) error
}

type Config struct {
	Store   Store
	Tokens  token.Transferer
	Custody string // address holding reward tokens between funding and claim
	Now     uint64
}

func (cfg *Config) Validate() error {
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Tokens == nil {
		return errors.New("tokens are required")
	}
	if cfg.Custody == "" {
		return errors.New("custody address is required")
	}
	return nil
}

// Distributor streams the active reward token to share holders pro rata. Accrual is lazy: indices
// only advance when a user touches the vault, claims, or the stream is reconfigured.
type Distributor struct {
	cfg Config
}

func New(cfg Config) (*Distributor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Distributor{cfg: cfg}, nil
}

// Touch settles user's accrual against userShares, the balance held before the change being applied.
func (d *Distributor) Touch(ctx context.Context, totalShares sdkmath.Int, user string, userShares sdkmath.Int) error {
	tok, ok, err := d.cfg.Store.RewardToken(ctx)
	if err != nil || !ok {
		return err
	}
	st, ok, err := d.update(ctx, tok, totalShares)
	if err != nil || !ok {
		return err
	}
	_, err = d.updateUser(ctx, tok, st, user, userShares, false)
	return err
}

// Claim settles user's accrual and pays it out to to. It returns the amount paid.
func (d *Distributor) Claim(ctx context.Context, totalShares sdkmath.Int, user string, userShares sdkmath.Int, to string) (sdkmath.Int, error) {
	tok, ok, err := d.cfg.Store.RewardToken(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if !ok {
		return sdkmath.Int{}, vaulterr.ErrNoRewardsConfigured
	}
	st, ok, err := d.update(ctx, tok, totalShares)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if !ok {
		return sdkmath.Int{}, vaulterr.ErrNoRewardsConfigured
	}
	amount, err := d.updateUser(ctx, tok, st, user, userShares, true)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if amount.IsPositive() {
		if err := d.cfg.Tokens.Transfer(ctx, tok, d.cfg.Custody, to, amount); err != nil {
			return sdkmath.Int{}, fmt.Errorf("failed to transfer rewards: %w", err)
		}
	}
	return amount, nil
}

// SetRewards funds a stream of amount tokens emitted until expiration. An active stream of the same
// token is boosted in place; otherwise a new stream starts, carrying any index the token kept from a
// previous period.
func (d *Distributor) SetRewards(ctx context.Context, from string, totalShares sdkmath.Int, rewardToken string, amount sdkmath.Int, expiration uint64) error {
	now := d.cfg.Now
	if expiration <= now || amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: amount %s expiring at %d", vaulterr.ErrInvalidRewardConfig, amount, expiration)
	}
	period := expiration - now

	if err := d.cfg.Tokens.Transfer(ctx, rewardToken, from, d.cfg.Custody, amount); err != nil {
		return fmt.Errorf("failed to transfer rewards in: %w", err)
	}

	cur, hasCur, err := d.cfg.Store.RewardToken(ctx)
	if err != nil {
		return err
	}
	if hasCur {
		curState, ok, err := d.update(ctx, cur, totalShares)
		if err != nil {
			return err
		}
		if ok && curState.Expiration > now {
			if cur != rewardToken {
				return fmt.Errorf("%w: %s rewards are active until %d", vaulterr.ErrInvalidRewardConfig, cur, curState.Expiration)
			}
			if expiration < curState.Expiration {
				return fmt.Errorf("%w: expiration %d shortens active period ending %d", vaulterr.ErrInvalidRewardConfig, expiration, curState.Expiration)
			}
			remaining := sdkmath.NewIntFromUint64(curState.Expiration - now).Mul(sdkmath.NewIntFromUint64(curState.Eps))
			total, err := fixedpoint.Add(amount, remaining)
			if err != nil {
				return err
			}
			eps, err := calculateEps(total, period)
			if err != nil {
				return err
			}
			return d.cfg.Store.PutRewardState(ctx, rewardToken, State{
				Eps:        eps,
				Expiration: expiration,
				LastTime:   now,
				Index:      curState.Index,
			})
		}
	}

	index := sdkmath.ZeroInt()
	prev, ok, err := d.update(ctx, rewardToken, totalShares)
	if err != nil {
		return err
	}
	if ok {
		index = prev.Index
	}
	eps, err := calculateEps(amount, period)
	if err != nil {
		return err
	}
	if err := d.cfg.Store.PutRewardState(ctx, rewardToken, State{
		Eps:        eps,
		Expiration: expiration,
		LastTime:   now,
		Index:      index,
	}); err != nil {
		return err
	}
	return d.cfg.Store.PutRewardToken(ctx, rewardToken)
}

// Updated returns token's stream advanced to now without persisting it.
func (d *Distributor) Updated(ctx context.Context, rewardToken string, totalShares sdkmath.Int) (State, bool, error) {
	st, ok, err := d.cfg.Store.RewardState(ctx, rewardToken)
	if err != nil || !ok {
		return State{}, ok, err
	}
	updated, err := st.LoadUpdated(totalShares, d.cfg.Now)
	if err != nil {
		return State{}, false, err
	}
	return updated, true, nil
}

func (d *Distributor) update(ctx context.Context, rewardToken string, totalShares sdkmath.Int) (State, bool, error) {
	st, ok, err := d.Updated(ctx, rewardToken, totalShares)
	if err != nil || !ok {
		return State{}, ok, err
	}
	if err := d.cfg.Store.PutRewardState(ctx, rewardToken, st); err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

func (d *Distributor) updateUser(ctx context.Context, rewardToken string, st State, user string, userShares sdkmath.Int, claim bool) (sdkmath.Int, error) {
	us, ok, err := d.cfg.Store.UserRewards(ctx, rewardToken, user)
	if err != nil {
		return sdkmath.Int{}, err
	}

	var accrued sdkmath.Int
	switch {
	case ok:
		if us.Index.Equal(st.Index) && !claim {
			return sdkmath.ZeroInt(), nil
		}
		accrued = us.Accrued
		// A user index ahead of the stream accrues nothing and is pulled back to it.
		if !userShares.IsZero() && st.Index.GT(us.Index) {
			add, err := fixedpoint.MulFloor(userShares, st.Index.Sub(us.Index), fixedpoint.Scalar7)
			if err != nil {
				return sdkmath.Int{}, err
			}
			if accrued, err = fixedpoint.Add(accrued, add); err != nil {
				return sdkmath.Int{}, err
			}
		}
	case userShares.IsZero():
		accrued = sdkmath.ZeroInt()
	default:
		// Shares held since before the stream's first touch are owed the full index.
		accrued, err = fixedpoint.MulFloor(userShares, st.Index, fixedpoint.Scalar7)
		if err != nil {
			return sdkmath.Int{}, err
		}
	}

	if claim {
		if err := d.cfg.Store.PutUserRewards(ctx, rewardToken, user, UserState{Index: st.Index, Accrued: sdkmath.ZeroInt()}); err != nil {
			return sdkmath.Int{}, err
		}
		return accrued, nil
	}
	if err := d.cfg.Store.PutUserRewards(ctx, rewardToken, user, UserState{Index: st.Index, Accrued: accrued}); err != nil {
		return sdkmath.Int{}, err
	}
	return sdkmath.ZeroInt(), nil
}

func calculateEps(amount sdkmath.Int, period uint64) (uint64, error) {
	eps := amount.Quo(sdkmath.NewIntFromUint64(period))
	if !eps.IsPositive() || eps.GT(fixedpoint.MaxU64) {
		return 0, fmt.Errorf("%w: emission rate %s per second", vaulterr.ErrInvalidRewardConfig, eps)
	}
	return eps.Uint64(), nil
}
