package ledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/malbeclabs/feevault/vault/pkg/fixedpoint"
)

// rateGrowthScale lifts a 7 decimal APR to the 12 decimal b-rate scale.
const rateGrowthScale = 100_000

// Refresh moves the vault to the pool's current b-rate and accrues the admin fee owed for the
// growth since the last refresh. It returns the b-tokens moved to the admin balance, which is
// negative when a fixed rate vault is supplemented by the admin.
//
// A flat or falling b-rate never produces a fee. On error the state is left untouched.
func (s *State) Refresh(fee Fee, poolRate sdkmath.Int, now uint64) (sdkmath.Int, error) {
	if poolRate.LTE(s.BRate) {
		s.BRate = poolRate
		s.LastUpdateTimestamp = now
		return sdkmath.ZeroInt(), nil
	}

	var (
		adminBTokens sdkmath.Int
		err          error
	)
	switch fee.RateType {
	case TakeRate:
		adminBTokens, err = takeRateFee(*s, fee.Rate, poolRate)
	case CappedRate:
		adminBTokens, err = cappedRateFee(*s, fee.Rate, poolRate, now)
	case FixedRate:
		adminBTokens, err = fixedRateFee(*s, fee.Rate, poolRate, now)
	default:
		// Malformed policies accrue nothing so funds are never locked.
		adminBTokens = sdkmath.ZeroInt()
	}
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("failed to compute %s fee: %w", fee.RateType, err)
	}

	totalBTokens, adminBalance := s.TotalBTokens, s.AdminBalance
	if !adminBTokens.IsZero() {
		if totalBTokens, err = fixedpoint.Sub(totalBTokens, adminBTokens); err != nil {
			return sdkmath.Int{}, err
		}
		if adminBalance, err = fixedpoint.Add(adminBalance, adminBTokens); err != nil {
			return sdkmath.Int{}, err
		}
	}

	s.BRate = poolRate
	s.LastUpdateTimestamp = now
	s.TotalBTokens = totalBTokens
	s.AdminBalance = adminBalance
	return adminBTokens, nil
}

// takeRateFee gives the admin rate/10^7 of the period's yield, flooring at every step.
func takeRateFee(s State, rate uint32, poolRate sdkmath.Int) (sdkmath.Int, error) {
	accrued, err := fixedpoint.MulFloor(s.TotalBTokens, poolRate.Sub(s.BRate), fixedpoint.Scalar12)
	if err != nil {
		return sdkmath.Int{}, err
	}
	adminUnderlying, err := fixedpoint.MulFloor(accrued, sdkmath.NewIntFromUint64(uint64(rate)), fixedpoint.Scalar7)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return fixedpoint.DivFloor(adminUnderlying, poolRate, fixedpoint.Scalar12)
}

// cappedRateFee gives the admin the b-tokens earned above the target APR, and nothing below it.
func cappedRateFee(s State, rate uint32, poolRate sdkmath.Int, now uint64) (sdkmath.Int, error) {
	diff, err := targetRateDiff(s, rate, poolRate, now)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if !diff.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	return diff, nil
}

// fixedRateFee is the capped rate difference applied in both directions.
func fixedRateFee(s State, rate uint32, poolRate sdkmath.Int, now uint64) (sdkmath.Int, error) {
	return targetRateDiff(s, rate, poolRate, now)
}

// targetRateDiff returns the b-tokens separating the vault's actual growth from growth at the
// target APR over the elapsed period. Negative means the vault under-earned.
func targetRateDiff(s State, rate uint32, poolRate sdkmath.Int, now uint64) (sdkmath.Int, error) {
	targetBRate, err := TargetBRate(s.BRate, rate, elapsed(s.LastUpdateTimestamp, now))
	if err != nil {
		return sdkmath.Int{}, err
	}
	excess, err := fixedpoint.MulFloor(s.TotalBTokens, poolRate.Sub(targetBRate), fixedpoint.Scalar12)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return fixedpoint.DivFloor(excess, poolRate, fixedpoint.Scalar12)
}

// TargetBRate is the b-rate the vault would reach growing at rate (7 decimals, annualized) for
// elapsedSeconds, rounded up.
func TargetBRate(bRate sdkmath.Int, rate uint32, elapsedSeconds uint64) (sdkmath.Int, error) {
	growth := sdkmath.NewIntFromUint64(elapsedSeconds).
		Mul(sdkmath.NewIntFromUint64(uint64(rate) * rateGrowthScale)).
		QuoRaw(fixedpoint.SecondsPerYear).
		Add(fixedpoint.Scalar12)
	return fixedpoint.MulCeil(bRate, growth, fixedpoint.Scalar12)
}

func elapsed(from, to uint64) uint64 {
	if to <= from {
		return 0
	}
	return to - from
}
