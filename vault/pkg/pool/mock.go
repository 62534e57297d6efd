package pool

import (
	"context"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/malbeclabs/feevault/vault/pkg/token"
)

// Mock is an in-memory lending pool backed by a token ledger. Supplied funds are held at the pool's
// address; b-rates only move when the test sets them.
type Mock struct {
	mu            sync.Mutex
	tokens        *token.Ledger
	reserves      map[string]Reserve // keyed by pool/asset
	configs       map[string]Config
	emissions     map[string]sdkmath.Int // pending emissions per pool
	emissionToken string
}

func NewMock(tokens *token.Ledger, emissionToken string) *Mock {
	return &Mock{
		tokens:        tokens,
		reserves:      make(map[string]Reserve),
		configs:       make(map[string]Config),
		emissions:     make(map[string]sdkmath.Int),
		emissionToken: emissionToken,
	}
}

func reserveKey(pool, asset string) string { return pool + "/" + asset }

// SetReserve installs or replaces a reserve.
func (m *Mock) SetReserve(pool string, r Reserve) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserves[reserveKey(pool, r.Asset)] = r
}

// SetBRate moves a reserve's b-rate, creating the reserve if needed.
func (m *Mock) SetBRate(pool, asset string, bRate sdkmath.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reserves[reserveKey(pool, asset)]
	if !ok {
		r = Reserve{
			Asset:   asset,
			DRate:   sdkmath.NewInt(1_000_000_000_000),
			BSupply: sdkmath.ZeroInt(),
			DSupply: sdkmath.ZeroInt(),
			IRMod:   sdkmath.NewInt(1_0000000),
		}
	}
	r.BRate = bRate
	m.reserves[reserveKey(pool, asset)] = r
}

func (m *Mock) SetConfig(pool string, cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[pool] = cfg
}

// AddEmissions makes amount claimable by the next Claim against pool.
func (m *Mock) AddEmissions(pool string, amount sdkmath.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.emissions[pool]
	if !ok {
		cur = sdkmath.ZeroInt()
	}
	m.emissions[pool] = cur.Add(amount)
	m.tokens.Mint(m.emissionToken, pool, amount)
}

func (m *Mock) ExchangeRate(ctx context.Context, pool, asset string) (sdkmath.Int, error) {
	r, err := m.Reserve(ctx, pool, asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return r.BRate, nil
}

func (m *Mock) Reserve(_ context.Context, pool, asset string) (Reserve, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reserves[reserveKey(pool, asset)]
	if !ok {
		return Reserve{}, fmt.Errorf("pool %s has no reserve for %s", pool, asset)
	}
	return r, nil
}

func (m *Mock) Config(_ context.Context, pool string) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configs[pool], nil
}

func (m *Mock) Supply(ctx context.Context, pool, asset, from string, amount sdkmath.Int) error {
	if _, err := m.Reserve(ctx, pool, asset); err != nil {
		return err
	}
	return m.tokens.Transfer(ctx, asset, from, pool, amount)
}

func (m *Mock) Withdraw(ctx context.Context, pool, asset, to string, amount sdkmath.Int) error {
	if _, err := m.Reserve(ctx, pool, asset); err != nil {
		return err
	}
	return m.tokens.Transfer(ctx, asset, pool, to, amount)
}

func (m *Mock) Claim(ctx context.Context, pool string, _ []uint32, to string) (sdkmath.Int, error) {
	m.mu.Lock()
	amount, ok := m.emissions[pool]
	delete(m.emissions, pool)
	m.mu.Unlock()
	if !ok || amount.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	if err := m.tokens.Transfer(ctx, m.emissionToken, pool, to, amount); err != nil {
		return sdkmath.Int{}, err
	}
	return amount, nil
}
