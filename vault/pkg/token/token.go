package token

import (
	"context"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/malbeclabs/feevault/vault/pkg/vaulterr"
)

// Transferer moves token balances between addresses.
type Transferer interface {
	Transfer(ctx context.Context, token, from, to string, amount sdkmath.Int) error
}

// Ledger is an in-memory token balance book keyed by (token, address). It backs local development
// and tests.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]map[string]sdkmath.Int
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]map[string]sdkmath.Int)}
}

// Mint credits amount of token to addr.
func (l *Ledger) Mint(token, addr string, amount sdkmath.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(token, addr, amount)
}

// Balance returns addr's balance of token, zero if it never held any.
func (l *Ledger) Balance(token, addr string) sdkmath.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[token][addr]; ok {
		return b
	}
	return sdkmath.ZeroInt()
}

func (l *Ledger) Transfer(ctx context.Context, token, from, to string, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: transfer amount %s", vaulterr.ErrInvalidAmount, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	have := sdkmath.ZeroInt()
	if b, ok := l.balances[token][from]; ok {
		have = b
	}
	if have.LT(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", vaulterr.ErrBalance, from, have, token, amount)
	}
	l.balances[token][from] = have.Sub(amount)
	l.credit(token, to, amount)
	return nil
}

func (l *Ledger) credit(token, addr string, amount sdkmath.Int) {
	byAddr, ok := l.balances[token]
	if !ok {
		byAddr = make(map[string]sdkmath.Int)
		l.balances[token] = byAddr
	}
	if b, ok := byAddr[addr]; ok {
		byAddr[addr] = b.Add(amount)
		return
	}
	byAddr[addr] = amount
}
