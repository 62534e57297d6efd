package pool

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// ReserveConfig is a reserve's interest rate curve. Rates and utilization use 7 decimals.
type ReserveConfig struct {
	Util   uint32 `json:"util"`
	RBase  uint32 `json:"r_base"`
	ROne   uint32 `json:"r_one"`
	RTwo   uint32 `json:"r_two"`
	RThree uint32 `json:"r_three"`
}

// Reserve is the lending pool's view of one asset. BRate and DRate use 12 decimals, IRMod 7.
type Reserve struct {
	Asset   string        `json:"asset"`
	BRate   sdkmath.Int   `json:"b_rate"`
	DRate   sdkmath.Int   `json:"d_rate"`
	BSupply sdkmath.Int   `json:"b_supply"`
	DSupply sdkmath.Int   `json:"d_supply"`
	IRMod   sdkmath.Int   `json:"ir_mod"`
	Config  ReserveConfig `json:"config"`
}

// Config is the pool wide configuration. BStopRate is the share of interest paid to the backstop,
// 7 decimals.
type Config struct {
	BStopRate uint32 `json:"bstop_rate"`
}

// Client talks to the external lending pool. Every mutation moves real funds, so failures abort
// the vault operation that issued them.
type Client interface {
	// ExchangeRate returns the pool's current b-rate for asset.
	ExchangeRate(ctx context.Context, pool, asset string) (sdkmath.Int, error)
	Reserve(ctx context.Context, pool, asset string) (Reserve, error)
	Config(ctx context.Context, pool string) (Config, error)
	// Supply moves amount of asset from from into the pool on the vault's behalf.
	Supply(ctx context.Context, pool, asset, from string, amount sdkmath.Int) error
	// Withdraw moves amount of asset out of the vault's pool position to to.
	Withdraw(ctx context.Context, pool, asset, to string, amount sdkmath.Int) error
	// Claim sends the vault's accrued emissions for reserveTokenIDs to to and returns the amount.
	Claim(ctx context.Context, pool string, reserveTokenIDs []uint32, to string) (sdkmath.Int, error)
}
