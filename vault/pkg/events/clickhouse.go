package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/malbeclabs/feevault/vault/pkg/clickhouse"
)

const insertEventsQuery = `INSERT INTO vault_events (id, vault_id, kind, ledger_time, actor, to_address, token, amount, shares, b_tokens, payload)`

// ClickHouseSink appends events to the vault_events analytics table, one batch per publish.
type ClickHouseSink struct {
	client clickhouse.Client
}

func NewClickHouseSink(client clickhouse.Client) (*ClickHouseSink, error) {
	if client == nil {
		return nil, errors.New("clickhouse client is required")
	}
	return &ClickHouseSink{client: client}, nil
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) Publish(ctx context.Context, evs []Event) error {
	conn, err := s.client.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get clickhouse connection: %w", err)
	}
	defer conn.Close()

	batch, err := conn.PrepareBatch(ctx, insertEventsQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, ev := range evs {
		payload, err := json.Marshal(ev)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to marshal event %s: %w", ev.ID, err)
		}
		if err := batch.Append(
			ev.ID,
			ev.VaultID,
			string(ev.Kind),
			ev.LedgerTime,
			ev.Actor,
			ev.To,
			ev.Token,
			ev.Amount.BigInt(),
			ev.Shares.BigInt(),
			ev.BTokens.BigInt(),
			string(payload),
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append event %s: %w", ev.ID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) Close() error {
	return s.client.Close()
}
