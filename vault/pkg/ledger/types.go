package ledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/malbeclabs/feevault/vault/pkg/vaulterr"
)

// RateType selects how the admin fee is taken from vault yield.
type RateType uint32

const (
	// TakeRate gives the admin a fraction of all yield.
	TakeRate RateType = 0
	// CappedRate lets depositors earn up to an APR, with the excess going to the admin.
	CappedRate RateType = 1
	// FixedRate pins depositors to an APR, with the admin earning the excess or paying the shortfall.
	FixedRate RateType = 2
)

func (t RateType) String() string {
	switch t {
	case TakeRate:
		return "take_rate"
	case CappedRate:
		return "capped_rate"
	case FixedRate:
		return "fixed_rate"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// MaxFeeRate is 100% at 7 decimals.
const MaxFeeRate = 10_000_000

// Fee is the vault's fee policy. Rate has 7 decimals.
type Fee struct {
	RateType RateType `json:"rate_type" yaml:"rate_type"`
	Rate     uint32   `json:"rate" yaml:"rate"`
}

func (f Fee) Validate() error {
	if f.Rate > MaxFeeRate {
		return fmt.Errorf("%w: %d exceeds %d", vaulterr.ErrInvalidFeeRate, f.Rate, MaxFeeRate)
	}
	if f.RateType > FixedRate {
		return fmt.Errorf("%w: %d", vaulterr.ErrInvalidFeeRateType, uint32(f.RateType))
	}
	return nil
}

// State is the vault's share ledger.
//
// BRate has 12 decimals; every other amount has 7. AdminBalance is the only field that may go
// negative, which happens when a fixed rate vault under-earns its target.
type State struct {
	BRate               sdkmath.Int `json:"b_rate"`
	LastUpdateTimestamp uint64      `json:"last_update_timestamp"`
	TotalShares         sdkmath.Int `json:"total_shares"`
	TotalBTokens        sdkmath.Int `json:"total_b_tokens"`
	AdminBalance        sdkmath.Int `json:"admin_balance"`
}

// NewState returns the genesis state of a vault.
func NewState(bRate sdkmath.Int, now uint64) State {
	return State{
		BRate:               bRate,
		LastUpdateTimestamp: now,
		TotalShares:         sdkmath.ZeroInt(),
		TotalBTokens:        sdkmath.ZeroInt(),
		AdminBalance:        sdkmath.ZeroInt(),
	}
}
