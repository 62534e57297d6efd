// Package vault runs fee vault operations. Each entry point is one store transaction: the vault is
// refreshed against the lending pool, the ledger and reward distributor are applied, lending pool
// calls are issued last, and the resulting events are published once the transaction commits.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/feevault/vault/pkg/events"
	"github.com/malbeclabs/feevault/vault/pkg/fixedpoint"
	"github.com/malbeclabs/feevault/vault/pkg/ledger"
	"github.com/malbeclabs/feevault/vault/pkg/metrics"
	"github.com/malbeclabs/feevault/vault/pkg/pool"
	"github.com/malbeclabs/feevault/vault/pkg/rewards"
	"github.com/malbeclabs/feevault/vault/pkg/store"
	"github.com/malbeclabs/feevault/vault/pkg/token"
	"github.com/malbeclabs/feevault/vault/pkg/vaulterr"
)

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Store  store.Store
	Pool   pool.Client
	Tokens token.Transferer
	// Publisher receives committed events. Optional.
	Publisher *events.Publisher
	// Authorizer defaults to SignerAuthorizer.
	Authorizer Authorizer
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Pool == nil {
		return errors.New("pool client is required")
	}
	if cfg.Tokens == nil {
		return errors.New("token transferer is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = SignerAuthorizer{}
	}
	return nil
}

// Service hosts any number of vaults, each addressed by its ID. Reward tokens of a vault are held
// at the address equal to its ID.
type Service struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{log: cfg.Logger, cfg: cfg}, nil
}

func (s *Service) now() uint64 {
	return uint64(s.cfg.Clock.Now().Unix())
}

// txn is one vault's records within a single store transaction.
type txn struct {
	s        *Service
	ctx      context.Context
	tx       store.Tx
	vaultID  string
	now      uint64
	readOnly bool // views discard their refreshes

	cfg    store.VaultConfig
	state  ledger.State
	dirty  bool
	events []events.Event
}

func (s *Service) newTxn(ctx context.Context, vaultID string, tx store.Tx) (*txn, error) {
	cfg, err := tx.Config(ctx)
	if err != nil {
		return nil, err
	}
	st, err := tx.State(ctx)
	if err != nil {
		return nil, err
	}
	return &txn{s: s, ctx: ctx, tx: tx, vaultID: vaultID, now: s.now(), cfg: cfg, state: st}, nil
}

func (t *txn) require(addrs ...string) error {
	return t.s.cfg.Authorizer.Require(t.ctx, addrs...)
}

// requireUser approves a user operation: the user always, plus the signer on permissioned vaults.
func (t *txn) requireUser(user string) error {
	if t.cfg.Signer != "" {
		return t.require(user, t.cfg.Signer)
	}
	return t.require(user)
}

func (t *txn) distributor() (*rewards.Distributor, error) {
	return rewards.New(rewards.Config{
		Store:   t.tx,
		Tokens:  t.s.cfg.Tokens,
		Custody: t.vaultID,
		Now:     t.now,
	})
}

// ledger refreshes the vault against the pool's current rate and returns a ledger over it.
func (t *txn) ledger() (*ledger.Ledger, error) {
	rate, err := t.s.cfg.Pool.ExchangeRate(t.ctx, t.cfg.Pool, t.cfg.Asset)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange rate: %w", err)
	}
	dist, err := t.distributor()
	if err != nil {
		return nil, err
	}
	l, err := ledger.New(ledger.Config{
		State:    &t.state,
		Fee:      t.cfg.Fee,
		PoolRate: rate,
		Now:      t.now,
		Accounts: t.tx,
		Rewards:  dist,
	})
	if err != nil {
		return nil, err
	}
	accrued, err := l.Refresh()
	if err != nil {
		return nil, err
	}
	t.dirty = true
	if !t.readOnly {
		metrics.FeesAccruedTotal.WithLabelValues(t.vaultID, feeOutcome(accrued)).Inc()
	}
	return l, nil
}

func feeOutcome(accrued sdkmath.Int) string {
	switch accrued.Sign() {
	case 1:
		return "accrued"
	case -1:
		return "supplemented"
	default:
		return "none"
	}
}

func (t *txn) event(kind events.Kind) events.Event {
	ev := events.New(t.vaultID, kind, t.now)
	ev.Pool = t.cfg.Pool
	ev.Asset = t.cfg.Asset
	return ev
}

func (t *txn) emit(ev events.Event) {
	t.events = append(t.events, ev)
}

// flush writes the refreshed state and the pending events.
func (t *txn) flush() error {
	if t.dirty {
		if err := t.tx.PutState(t.ctx, t.state); err != nil {
			return err
		}
	}
	for _, ev := range t.events {
		if err := t.tx.AppendEvent(t.ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// update runs fn in a read-write transaction and publishes its events after commit.
func (s *Service) update(ctx context.Context, vaultID, op string, fn func(t *txn) error) error {
	start := s.cfg.Clock.Now()
	var committed *txn
	err := s.cfg.Store.Update(ctx, vaultID, func(tx store.Tx) error {
		t, err := s.newTxn(ctx, vaultID, tx)
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
		if err := t.flush(); err != nil {
			return err
		}
		committed = t
		return nil
	})
	s.observe(vaultID, op, start, err)
	if err != nil {
		return err
	}
	s.commit(ctx, committed)
	return nil
}

// view runs fn against a snapshot. Refreshes made by fn are never persisted.
func (s *Service) view(ctx context.Context, vaultID string, fn func(t *txn) error) error {
	return s.cfg.Store.View(ctx, vaultID, func(tx store.Tx) error {
		t, err := s.newTxn(ctx, vaultID, tx)
		if err != nil {
			return err
		}
		t.readOnly = true
		return fn(t)
	})
}

func (s *Service) observe(vaultID, op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		if code, ok := vaulterr.CodeOf(err); ok {
			status = "rejected"
			s.log.Debug("vault: operation rejected", "vault", vaultID, "operation", op, "code", code, "error", err)
		} else if errors.Is(err, ErrUnauthorized) {
			status = "unauthorized"
			s.log.Debug("vault: operation unauthorized", "vault", vaultID, "operation", op, "error", err)
		} else {
			s.log.Error("vault: operation failed", "vault", vaultID, "operation", op, "error", err)
		}
	}
	metrics.OperationsTotal.WithLabelValues(vaultID, op, status).Inc()
	metrics.OperationDuration.WithLabelValues(vaultID, op).Observe(s.cfg.Clock.Since(start).Seconds())
}

func (s *Service) commit(ctx context.Context, t *txn) {
	if t.dirty {
		metrics.BRate.WithLabelValues(t.vaultID).Set(fixedpoint.ToDecimal(t.state.BRate, fixedpoint.Decimals12).InexactFloat64())
		metrics.TotalShares.WithLabelValues(t.vaultID).Set(fixedpoint.ToDecimal(t.state.TotalShares, fixedpoint.Decimals7).InexactFloat64())
		metrics.TotalBTokens.WithLabelValues(t.vaultID).Set(fixedpoint.ToDecimal(t.state.TotalBTokens, fixedpoint.Decimals7).InexactFloat64())
		metrics.AdminBalance.WithLabelValues(t.vaultID).Set(fixedpoint.ToDecimal(t.state.AdminBalance, fixedpoint.Decimals7).InexactFloat64())
	}
	for _, ev := range t.events {
		s.log.Info("vault: operation committed", "vault", t.vaultID, "kind", string(ev.Kind), "actor", ev.Actor)
	}
	s.cfg.Publisher.Publish(ctx, t.events...)
}
