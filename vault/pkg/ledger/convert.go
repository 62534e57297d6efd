package ledger

import (
	sdkmath "cosmossdk.io/math"

	"github.com/malbeclabs/feevault/vault/pkg/fixedpoint"
)

// Conversions follow one rounding rule: anything computed for a depositor rounds down, anything
// computed for a withdrawer rounds up, and read-only views round down.

// BTokensToSharesDown converts b-tokens to shares, rounding down. An empty vault converts 1:1.
func (s State) BTokensToSharesDown(amount sdkmath.Int) (sdkmath.Int, error) {
	if s.TotalShares.IsZero() || s.TotalBTokens.IsZero() {
		return amount, nil
	}
	return fixedpoint.MulFloor(amount, s.TotalShares, s.TotalBTokens)
}

// BTokensToSharesUp converts b-tokens to shares, rounding up. An empty vault converts 1:1.
func (s State) BTokensToSharesUp(amount sdkmath.Int) (sdkmath.Int, error) {
	if s.TotalShares.IsZero() || s.TotalBTokens.IsZero() {
		return amount, nil
	}
	return fixedpoint.MulCeil(amount, s.TotalShares, s.TotalBTokens)
}

// SharesToBTokensDown converts shares to b-tokens, rounding down.
func (s State) SharesToBTokensDown(amount sdkmath.Int) (sdkmath.Int, error) {
	if s.TotalShares.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return fixedpoint.DivFloor(amount, s.TotalShares, s.TotalBTokens)
}

// BTokensToUnderlyingDown converts b-tokens to underlying at the current b-rate, rounding down.
func (s State) BTokensToUnderlyingDown(amount sdkmath.Int) (sdkmath.Int, error) {
	return fixedpoint.MulFloor(amount, s.BRate, fixedpoint.Scalar12)
}

// UnderlyingToBTokensDown converts underlying to b-tokens at the current b-rate, rounding down.
func (s State) UnderlyingToBTokensDown(amount sdkmath.Int) (sdkmath.Int, error) {
	return fixedpoint.DivFloor(amount, s.BRate, fixedpoint.Scalar12)
}

// UnderlyingToBTokensUp converts underlying to b-tokens at the current b-rate, rounding up.
func (s State) UnderlyingToBTokensUp(amount sdkmath.Int) (sdkmath.Int, error) {
	return fixedpoint.DivCeil(amount, s.BRate, fixedpoint.Scalar12)
}

// SharesToUnderlyingDown values shares in underlying, rounding down at both steps.
func (s State) SharesToUnderlyingDown(shares sdkmath.Int) (sdkmath.Int, error) {
	bTokens, err := s.SharesToBTokensDown(shares)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return s.BTokensToUnderlyingDown(bTokens)
}
