package events

import (
	"context"
	"errors"
	"log/slog"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/malbeclabs/feevault/vault/pkg/metrics"
)

type Kind string

const (
	KindDeposit        Kind = "vault_deposit"
	KindWithdraw       Kind = "vault_withdraw"
	KindAdminDeposit   Kind = "vault_admin_deposit"
	KindAdminWithdraw  Kind = "vault_admin_withdraw"
	KindEmissionsClaim Kind = "vault_emissions_claim"
	KindRewardsSet     Kind = "vault_rewards_set"
	KindRewardsClaim   Kind = "vault_rewards_claim"
	KindFeeUpdate      Kind = "fee_update"
	KindAdminUpdate    Kind = "admin_update"
	KindSignerUpdate   Kind = "signer_update"
	KindInitialize     Kind = "vault_initialize"
)

// Event records one successful vault operation. Fields that do not apply to a kind are left zero.
type Event struct {
	ID         uuid.UUID `json:"id"`
	VaultID    string    `json:"vault_id"`
	Kind       Kind      `json:"kind"`
	LedgerTime uint64    `json:"ledger_time"`
	Pool       string    `json:"pool,omitempty"`
	Asset      string    `json:"asset,omitempty"`
	// Actor is the user for user operations and the admin for admin operations.
	Actor           string      `json:"actor,omitempty"`
	To              string      `json:"to,omitempty"`
	Token           string      `json:"token,omitempty"`
	Amount          sdkmath.Int `json:"amount"`
	Shares          sdkmath.Int `json:"shares"`
	BTokens         sdkmath.Int `json:"b_tokens"`
	RateType        uint32      `json:"rate_type,omitempty"`
	Rate            uint32      `json:"rate,omitempty"`
	Expiration      uint64      `json:"expiration,omitempty"`
	ReserveTokenIDs []uint32    `json:"reserve_token_ids,omitempty"`
}

// New returns an event of kind with a fresh ID and zeroed amounts.
func New(vaultID string, kind Kind, ledgerTime uint64) Event {
	return Event{
		ID:         uuid.New(),
		VaultID:    vaultID,
		Kind:       kind,
		LedgerTime: ledgerTime,
		Amount:     sdkmath.ZeroInt(),
		Shares:     sdkmath.ZeroInt(),
		BTokens:    sdkmath.ZeroInt(),
	}
}

// Sink receives committed events.
type Sink interface {
	Name() string
	Publish(ctx context.Context, evs []Event) error
	Close() error
}

// Publisher fans committed events out to sinks. Delivery is best effort: a failing sink is logged
// and counted, never reported to the caller.
type Publisher struct {
	log   *slog.Logger
	sinks []Sink
}

func NewPublisher(log *slog.Logger, sinks ...Sink) *Publisher {
	return &Publisher{log: log, sinks: sinks}
}

func (p *Publisher) Publish(ctx context.Context, evs ...Event) {
	if p == nil || len(evs) == 0 {
		return
	}
	for _, s := range p.sinks {
		if err := s.Publish(ctx, evs); err != nil {
			p.log.Warn("events: sink publish failed", "sink", s.Name(), "count", len(evs), "error", err)
			metrics.EventsPublishedTotal.WithLabelValues(s.Name(), "error").Add(float64(len(evs)))
			continue
		}
		metrics.EventsPublishedTotal.WithLabelValues(s.Name(), "success").Add(float64(len(evs)))
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes events to a structured logger.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(_ context.Context, evs []Event) error {
	for _, ev := range evs {
		s.log.Info("vault event",
			"id", ev.ID.String(),
			"vault", ev.VaultID,
			"kind", string(ev.Kind),
			"ledger_time", ev.LedgerTime,
			"actor", ev.Actor,
			"to", ev.To,
			"token", ev.Token,
			"amount", ev.Amount.String(),
			"shares", ev.Shares.String(),
			"b_tokens", ev.BTokens.String(),
		)
	}
	return nil
}

func (s *LogSink) Close() error { return nil }
