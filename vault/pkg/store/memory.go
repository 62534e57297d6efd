package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/malbeclabs/feevault/vault/pkg/events"
	"github.com/malbeclabs/feevault/vault/pkg/ledger"
	"github.com/malbeclabs/feevault/vault/pkg/rewards"
	"github.com/malbeclabs/feevault/vault/pkg/vaulterr"
)

type memVault struct {
	cfg          VaultConfig
	state        ledger.State
	shares       map[string]sdkmath.Int
	rewardToken  string
	rewardStates map[string]rewards.State
	userRewards  map[userRewardKey]rewards.UserState
	events       []events.Event
}

type userRewardKey struct {
	token, user string
}

// clone copies the vault's maps. Values are immutable so a shallow copy is enough. The event
// journal is append-only and is not copied; transactions stage new events and commit appends them.
func (v *memVault) clone() *memVault {
	return &memVault{
		cfg:          v.cfg,
		state:        v.state,
		shares:       maps.Clone(v.shares),
		rewardToken:  v.rewardToken,
		rewardStates: maps.Clone(v.rewardStates),
		userRewards:  maps.Clone(v.userRewards),
	}
}

// Memory is an in-process Store. Updates work on a copy that replaces the vault on success.
type Memory struct {
	mu     sync.RWMutex
	vaults map[string]*memVault
}

func NewMemory() *Memory {
	return &Memory{vaults: make(map[string]*memVault)}
}

func (m *Memory) Create(_ context.Context, vaultID string, cfg VaultConfig, st ledger.State, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vaults[vaultID]; ok {
		return fmt.Errorf("%w: vault %s", vaulterr.ErrReserveAlreadyExists, vaultID)
	}
	v := &memVault{
		cfg:          cfg,
		state:        st,
		shares:       make(map[string]sdkmath.Int),
		rewardStates: make(map[string]rewards.State),
		userRewards:  make(map[userRewardKey]rewards.UserState),
	}
	if fn != nil {
		tx := &memTx{v: v}
		if err := fn(tx); err != nil {
			return err
		}
		v.events = tx.pending
	}
	m.vaults[vaultID] = v
	return nil
}

func (m *Memory) Update(_ context.Context, vaultID string, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vaults[vaultID]
	if !ok {
		return fmt.Errorf("%w: vault %s", vaulterr.ErrReserveNotFound, vaultID)
	}
	work := v.clone()
	tx := &memTx{v: work}
	if err := fn(tx); err != nil {
		return err
	}
	work.events = append(v.events, tx.pending...)
	m.vaults[vaultID] = work
	return nil
}

func (m *Memory) View(_ context.Context, vaultID string, fn func(tx Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vaults[vaultID]
	if !ok {
		return fmt.Errorf("%w: vault %s", vaulterr.ErrReserveNotFound, vaultID)
	}
	return fn(&memTx{v: v, readOnly: true})
}

func (m *Memory) Vaults(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.vaults)), nil
}

func (m *Memory) Events(_ context.Context, vaultID string, limit int) ([]events.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vaults[vaultID]
	if !ok {
		return nil, fmt.Errorf("%w: vault %s", vaulterr.ErrReserveNotFound, vaultID)
	}
	if limit <= 0 || limit > len(v.events) {
		limit = len(v.events)
	}
	out := make([]events.Event, 0, limit)
	for i := len(v.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, v.events[i])
	}
	return out, nil
}

type memTx struct {
	v        *memVault
	readOnly bool
	pending  []events.Event
}

func (tx *memTx) write() error {
	if tx.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (tx *memTx) Config(context.Context) (VaultConfig, error) { return tx.v.cfg, nil }

func (tx *memTx) PutConfig(_ context.Context, cfg VaultConfig) error {
	if err := tx.write(); err != nil {
		return err
	}
	tx.v.cfg = cfg
	return nil
}

func (tx *memTx) State(context.Context) (ledger.State, error) { return tx.v.state, nil }

func (tx *memTx) PutState(_ context.Context, st ledger.State) error {
	if err := tx.write(); err != nil {
		return err
	}
	tx.v.state = st
	return nil
}

func (tx *memTx) Shares(_ context.Context, user string) (sdkmath.Int, error) {
	if s, ok := tx.v.shares[user]; ok {
		return s, nil
	}
	return sdkmath.ZeroInt(), nil
}

func (tx *memTx) PutShares(_ context.Context, user string, shares sdkmath.Int) error {
	if err := tx.write(); err != nil {
		return err
	}
	tx.v.shares[user] = shares
	return nil
}

func (tx *memTx) RewardToken(context.Context) (string, bool, error) {
	return tx.v.rewardToken, tx.v.rewardToken != "", nil
}

func (tx *memTx) PutRewardToken(_ context.Context, token string) error {
	if err := tx.write(); err != nil {
		return err
	}
	tx.v.rewardToken = token
	return nil
}

func (tx *memTx) RewardState(_ context.Context, token string) (rewards.State, bool, error) {
	st, ok := tx.v.rewardStates[token]
	return st, ok, nil
}

func (tx *memTx) PutRewardState(_ context.Context, token string, st rewards.State) error {
	if err := tx.write(); err != nil {
		return err
	}
	tx.v.rewardStates[token] = st
	return nil
}

func (tx *memTx) UserRewards(_ context.Context, token, user string) (rewards.UserState, bool, error) {
	st, ok := tx.v.userRewards[userRewardKey{token, user}]
	return st, ok, nil
}

func (tx *memTx) PutUserRewards(_ context.Context, token, user string, st rewards.UserState) error {
	if err := tx.write(); err != nil {
		return err
	}
	tx.v.userRewards[userRewardKey{token, user}] = st
	return nil
}

func (tx *memTx) AppendEvent(_ context.Context, ev events.Event) error {
	if err := tx.write(); err != nil {
		return err
	}
	tx.pending = append(tx.pending, ev)
	return nil
}
