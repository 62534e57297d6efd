package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/malbeclabs/feevault/vault/pkg/fixedpoint"
	"github.com/malbeclabs/feevault/vault/pkg/ledger"
	"github.com/malbeclabs/feevault/vault/pkg/pool"
	"github.com/malbeclabs/feevault/vault/pkg/rewards"
)

// Summary is a point in time report of one vault.
type Summary struct {
	VaultID string     `json:"vault_id"`
	Pool    string     `json:"pool"`
	Asset   string     `json:"asset"`
	Admin   string     `json:"admin"`
	Signer  string     `json:"signer,omitempty"`
	Fee     ledger.Fee `json:"fee"`
	// Vault is refreshed to the pool's current rate.
	Vault ledger.State `json:"vault"`
	// EstAPR is the depositor supply APR after fees, 7 decimals.
	EstAPR      sdkmath.Int   `json:"est_apr"`
	RewardToken string        `json:"reward_token,omitempty"`
	RewardData  rewards.State `json:"reward_data"`
}

// Summary reports vaultID's configuration, refreshed ledger and estimated depositor APR. Nothing is
// persisted.
func (s *Service) Summary(ctx context.Context, vaultID string) (Summary, error) {
	var out Summary
	err := s.view(ctx, vaultID, func(t *txn) error {
		if _, err := t.ledger(); err != nil {
			return err
		}
		reserve, err := s.cfg.Pool.Reserve(t.ctx, t.cfg.Pool, t.cfg.Asset)
		if err != nil {
			return fmt.Errorf("failed to get reserve: %w", err)
		}
		poolCfg, err := s.cfg.Pool.Config(t.ctx, t.cfg.Pool)
		if err != nil {
			return fmt.Errorf("failed to get pool config: %w", err)
		}
		apr, err := EstimateAPR(reserve, poolCfg.BStopRate, t.cfg.Fee, t.state.AdminBalance)
		if err != nil {
			return fmt.Errorf("failed to estimate apr: %w", err)
		}

		out = Summary{
			VaultID:    vaultID,
			Pool:       t.cfg.Pool,
			Asset:      t.cfg.Asset,
			Admin:      t.cfg.Admin,
			Signer:     t.cfg.Signer,
			Fee:        t.cfg.Fee,
			Vault:      t.state,
			EstAPR:     apr,
			RewardData: rewards.State{Index: sdkmath.ZeroInt()},
		}

		rewardToken, ok, err := t.tx.RewardToken(t.ctx)
		if err != nil || !ok {
			return err
		}
		dist, err := t.distributor()
		if err != nil {
			return err
		}
		data, ok, err := dist.Updated(t.ctx, rewardToken, t.state.TotalShares)
		if err != nil {
			return err
		}
		out.RewardToken = rewardToken
		if ok {
			out.RewardData = data
		}
		return nil
	})
	return out, err
}

// Utilization kinks of the reserve interest rate curve, 7 decimals.
var (
	maxTargetUtil = sdkmath.NewInt(9_500_000)
	fullUtilSpan  = sdkmath.NewInt(500_000)
)

// EstimateAPR projects the APR a depositor earns from reserve after the backstop's cut and the
// vault fee. All rates have 7 decimals.
func EstimateAPR(reserve pool.Reserve, bstopRate uint32, fee ledger.Fee, adminBalance sdkmath.Int) (sdkmath.Int, error) {
	apr, err := supplyAPR(reserve, bstopRate)
	if err != nil {
		return sdkmath.Int{}, err
	}
	rate := sdkmath.NewIntFromUint64(uint64(fee.Rate))
	switch fee.RateType {
	case ledger.TakeRate:
		return fixedpoint.MulFloor(apr, fixedpoint.Scalar7.Sub(rate), fixedpoint.Scalar7)
	case ledger.CappedRate:
		return sdkmath.MinInt(apr, rate), nil
	case ledger.FixedRate:
		// A funded admin balance tops depositors up to the fixed rate.
		if adminBalance.IsPositive() || rate.LT(apr) {
			return rate, nil
		}
		return apr, nil
	default:
		return sdkmath.ZeroInt(), nil
	}
}

func supplyAPR(r pool.Reserve, bstopRate uint32) (sdkmath.Int, error) {
	util, err := utilization(r)
	if err != nil {
		return sdkmath.Int{}, err
	}
	ir, err := interestRate(r, util)
	if err != nil {
		return sdkmath.Int{}, err
	}
	gross, err := fixedpoint.MulFloor(ir, util, fixedpoint.Scalar7)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return fixedpoint.MulFloor(gross, fixedpoint.Scalar7.Sub(sdkmath.NewIntFromUint64(uint64(bstopRate))), fixedpoint.Scalar7)
}

func utilization(r pool.Reserve) (sdkmath.Int, error) {
	liabilities, err := fixedpoint.MulCeil(r.DSupply, r.DRate, fixedpoint.Scalar12)
	if err != nil {
		return sdkmath.Int{}, err
	}
	supply, err := fixedpoint.MulFloor(r.BSupply, r.BRate, fixedpoint.Scalar12)
	if err != nil {
		return sdkmath.Int{}, err
	}
	switch {
	case liabilities.IsZero():
		return sdkmath.ZeroInt(), nil
	case liabilities.GTE(supply):
		return fixedpoint.Scalar7, nil
	default:
		return fixedpoint.DivCeil(liabilities, supply, fixedpoint.Scalar7)
	}
}

// interestRate evaluates the reserve's three segment rate curve at util.
func interestRate(r pool.Reserve, util sdkmath.Int) (sdkmath.Int, error) {
	var (
		target = sdkmath.NewIntFromUint64(uint64(r.Config.Util))
		rBase  = sdkmath.NewIntFromUint64(uint64(r.Config.RBase))
		rOne   = sdkmath.NewIntFromUint64(uint64(r.Config.ROne))
		rTwo   = sdkmath.NewIntFromUint64(uint64(r.Config.RTwo))
		rThree = sdkmath.NewIntFromUint64(uint64(r.Config.RThree))
	)

	switch {
	case util.LTE(target):
		scaled, err := fixedpoint.DivCeil(util, target, fixedpoint.Scalar7)
		if err != nil {
			return sdkmath.Int{}, err
		}
		base, err := fixedpoint.MulCeil(scaled, rOne, fixedpoint.Scalar7)
		if err != nil {
			return sdkmath.Int{}, err
		}
		return fixedpoint.MulCeil(base.Add(rBase), r.IRMod, fixedpoint.Scalar7)
	case util.LTE(maxTargetUtil):
		scaled, err := fixedpoint.DivCeil(util.Sub(target), maxTargetUtil.Sub(target), fixedpoint.Scalar7)
		if err != nil {
			return sdkmath.Int{}, err
		}
		base, err := fixedpoint.MulCeil(scaled, rTwo, fixedpoint.Scalar7)
		if err != nil {
			return sdkmath.Int{}, err
		}
		return fixedpoint.MulCeil(base.Add(rOne).Add(rBase), r.IRMod, fixedpoint.Scalar7)
	default:
		scaled, err := fixedpoint.DivCeil(util.Sub(maxTargetUtil), fullUtilSpan, fixedpoint.Scalar7)
		if err != nil {
			return sdkmath.Int{}, err
		}
		extra, err := fixedpoint.MulCeil(scaled, rThree, fixedpoint.Scalar7)
		if err != nil {
			return sdkmath.Int{}, err
		}
		base, err := fixedpoint.MulCeil(r.IRMod, rTwo.Add(rOne).Add(rBase), fixedpoint.Scalar7)
		if err != nil {
			return sdkmath.Int{}, err
		}
		return extra.Add(base), nil
	}
}
