// Package store persists vault records. Every Update runs as one all-or-nothing unit: either every
// write made through the Tx lands or none does.
package store

import (
	"context"
	"errors"

	"github.com/malbeclabs/feevault/vault/pkg/events"
	"github.com/malbeclabs/feevault/vault/pkg/ledger"
	"github.com/malbeclabs/feevault/vault/pkg/rewards"
)

// ErrReadOnly is returned by writes attempted inside View.
var ErrReadOnly = errors.New("store: write in read-only transaction")

// VaultConfig is the static configuration of one vault.
type VaultConfig struct {
	Admin string `json:"admin" yaml:"admin"`
	Pool  string `json:"pool" yaml:"pool"`
	Asset string `json:"asset" yaml:"asset"`
	// Signer co-signs deposits and withdrawals when set.
	Signer string     `json:"signer,omitempty" yaml:"signer,omitempty"`
	Fee    ledger.Fee `json:"fee" yaml:"fee"`
}

// Tx reads and writes the records of a single vault.
type Tx interface {
	ledger.Accounts
	rewards.Store

	Config(ctx context.Context) (VaultConfig, error)
	PutConfig(ctx context.Context, cfg VaultConfig) error
	State(ctx context.Context) (ledger.State, error)
	PutState(ctx context.Context, st ledger.State) error
	AppendEvent(ctx context.Context, ev events.Event) error
}

type Store interface {
	// Create registers a new vault and runs fn, if set, in the same transaction. It fails with
	// vaulterr.ErrReserveAlreadyExists if vaultID is taken.
	Create(ctx context.Context, vaultID string, cfg VaultConfig, st ledger.State, fn func(tx Tx) error) error
	// Update runs fn in a serialized read-write transaction. A non-nil error from fn discards every
	// write. Unknown vaults fail with vaulterr.ErrReserveNotFound.
	Update(ctx context.Context, vaultID string, fn func(tx Tx) error) error
	// View runs fn against a consistent snapshot. Writes fail with ErrReadOnly.
	View(ctx context.Context, vaultID string, fn func(tx Tx) error) error
	Vaults(ctx context.Context) ([]string, error)
	// Events returns up to limit journal entries for vaultID, newest first. A limit of 0 returns all.
	Events(ctx context.Context, vaultID string, limit int) ([]events.Event, error)
}
