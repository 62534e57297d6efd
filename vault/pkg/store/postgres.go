package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/malbeclabs/feevault/vault/pkg/events"
	"github.com/malbeclabs/feevault/vault/pkg/ledger"
	"github.com/malbeclabs/feevault/vault/pkg/rewards"
	"github.com/malbeclabs/feevault/vault/pkg/vaulterr"
)

// NewPgPool opens a connection pool and verifies it with a ping.
func NewPgPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

type PostgresConfig struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
}

func (cfg *PostgresConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Pool == nil {
		return errors.New("pool is required")
	}
	return nil
}

// Postgres is a Store backed by PostgreSQL. Update takes a row lock on the vault so writers to the
// same vault serialize while different vaults proceed in parallel.
type Postgres struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewPostgres(cfg PostgresConfig) (*Postgres, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Postgres{log: cfg.Logger, pool: cfg.Pool}, nil
}

const uniqueViolation = "23505"

func (p *Postgres) Create(ctx context.Context, vaultID string, cfg VaultConfig, st ledger.State, fn func(tx Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO vaults (id, admin, pool, asset, signer, fee_rate_type, fee_rate,
			b_rate, last_update_timestamp, total_shares, total_b_tokens, admin_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
			$8::text::numeric, $9, $10::text::numeric, $11::text::numeric, $12::text::numeric)`,
		vaultID, cfg.Admin, cfg.Pool, cfg.Asset, cfg.Signer, int64(cfg.Fee.RateType), int64(cfg.Fee.Rate),
		st.BRate.String(), int64(st.LastUpdateTimestamp), st.TotalShares.String(), st.TotalBTokens.String(), st.AdminBalance.String(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: vault %s", vaulterr.ErrReserveAlreadyExists, vaultID)
		}
		return fmt.Errorf("failed to insert vault: %w", err)
	}
	if fn != nil {
		if err := fn(&pgTx{tx: tx, vaultID: vaultID}); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	p.log.Debug("store/postgres: vault created", "vault", vaultID)
	return nil
}

func (p *Postgres) Update(ctx context.Context, vaultID string, fn func(tx Tx) error) error {
	return p.run(ctx, vaultID, pgx.TxOptions{}, true, fn)
}

func (p *Postgres) View(ctx context.Context, vaultID string, fn func(tx Tx) error) error {
	return p.run(ctx, vaultID, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead}, false, fn)
}

func (p *Postgres) run(ctx context.Context, vaultID string, opts pgx.TxOptions, write bool, fn func(tx Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// No-op once committed.
		_ = tx.Rollback(ctx)
	}()

	lock := `SELECT 1 FROM vaults WHERE id = $1`
	if write {
		lock += ` FOR UPDATE`
	}
	var one int
	if err := tx.QueryRow(ctx, lock, vaultID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: vault %s", vaulterr.ErrReserveNotFound, vaultID)
		}
		return fmt.Errorf("failed to lock vault: %w", err)
	}

	if err := fn(&pgTx{tx: tx, vaultID: vaultID, readOnly: !write}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (p *Postgres) Vaults(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM vaults ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vaults: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan vaults: %w", err)
	}
	return ids, nil
}

func (p *Postgres) Events(ctx context.Context, vaultID string, limit int) ([]events.Event, error) {
	query := `SELECT payload FROM vault_events WHERE vault_id = $1 ORDER BY seq DESC`
	args := []any{vaultID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	payloads, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("failed to scan events: %w", err)
	}
	out := make([]events.Event, 0, len(payloads))
	for _, payload := range payloads {
		var ev events.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

type pgTx struct {
	tx       pgx.Tx
	vaultID  string
	readOnly bool
}

func (t *pgTx) write() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *pgTx) Config(ctx context.Context) (VaultConfig, error) {
	var (
		cfg            VaultConfig
		rateType, rate int64
	)
	err := t.tx.QueryRow(ctx, `
		SELECT admin, pool, asset, signer, fee_rate_type, fee_rate FROM vaults WHERE id = $1`, t.vaultID,
	).Scan(&cfg.Admin, &cfg.Pool, &cfg.Asset, &cfg.Signer, &rateType, &rate)
	if err != nil {
		return VaultConfig{}, fmt.Errorf("failed to load vault config: %w", err)
	}
	cfg.Fee = ledger.Fee{RateType: ledger.RateType(rateType), Rate: uint32(rate)}
	return cfg, nil
}

func (t *pgTx) PutConfig(ctx context.Context, cfg VaultConfig) error {
	if err := t.write(); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `
		UPDATE vaults SET admin = $2, pool = $3, asset = $4, signer = $5, fee_rate_type = $6, fee_rate = $7,
			updated_at = now()
		WHERE id = $1`,
		t.vaultID, cfg.Admin, cfg.Pool, cfg.Asset, cfg.Signer, int64(cfg.Fee.RateType), int64(cfg.Fee.Rate))
	if err != nil {
		return fmt.Errorf("failed to store vault config: %w", err)
	}
	return nil
}

func (t *pgTx) State(ctx context.Context) (ledger.State, error) {
	var (
		bRate, totalShares, totalBTokens, adminBalance string
		lastUpdate                                     int64
	)
	err := t.tx.QueryRow(ctx, `
		SELECT b_rate::text, last_update_timestamp, total_shares::text, total_b_tokens::text, admin_balance::text
		FROM vaults WHERE id = $1`, t.vaultID,
	).Scan(&bRate, &lastUpdate, &totalShares, &totalBTokens, &adminBalance)
	if err != nil {
		return ledger.State{}, fmt.Errorf("failed to load vault state: %w", err)
	}
	st := ledger.State{LastUpdateTimestamp: uint64(lastUpdate)}
	if st.BRate, err = parseInt(bRate); err != nil {
		return ledger.State{}, err
	}
	if st.TotalShares, err = parseInt(totalShares); err != nil {
		return ledger.State{}, err
	}
	if st.TotalBTokens, err = parseInt(totalBTokens); err != nil {
		return ledger.State{}, err
	}
	if st.AdminBalance, err = parseInt(adminBalance); err != nil {
		return ledger.State{}, err
	}
	return st, nil
}

func (t *pgTx) PutState(ctx context.Context, st ledger.State) error {
	if err := t.write(); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `
		UPDATE vaults SET b_rate = $2::text::numeric, last_update_timestamp = $3,
			total_shares = $4::text::numeric, total_b_tokens = $5::text::numeric,
			admin_balance = $6::text::numeric, updated_at = now()
		WHERE id = $1`,
		t.vaultID, st.BRate.String(), int64(st.LastUpdateTimestamp),
		st.TotalShares.String(), st.TotalBTokens.String(), st.AdminBalance.String())
	if err != nil {
		return fmt.Errorf("failed to store vault state: %w", err)
	}
	return nil
}

func (t *pgTx) Shares(ctx context.Context, user string) (sdkmath.Int, error) {
	var shares string
	err := t.tx.QueryRow(ctx, `
		SELECT shares::text FROM vault_shares WHERE vault_id = $1 AND user_address = $2`, t.vaultID, user,
	).Scan(&shares)
	if errors.Is(err, pgx.ErrNoRows) {
		return sdkmath.ZeroInt(), nil
	}
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("failed to load shares: %w", err)
	}
	return parseInt(shares)
}

func (t *pgTx) PutShares(ctx context.Context, user string, shares sdkmath.Int) error {
	if err := t.write(); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO vault_shares (vault_id, user_address, shares) VALUES ($1, $2, $3::text::numeric)
		ON CONFLICT (vault_id, user_address) DO UPDATE SET shares = EXCLUDED.shares`,
		t.vaultID, user, shares.String())
	if err != nil {
		return fmt.Errorf("failed to store shares: %w", err)
	}
	return nil
}

func (t *pgTx) RewardToken(ctx context.Context) (string, bool, error) {
	var token string
	if err := t.tx.QueryRow(ctx, `SELECT reward_token FROM vaults WHERE id = $1`, t.vaultID).Scan(&token); err != nil {
		return "", false, fmt.Errorf("failed to load reward token: %w", err)
	}
	return token, token != "", nil
}

func (t *pgTx) PutRewardToken(ctx context.Context, token string) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `UPDATE vaults SET reward_token = $2, updated_at = now() WHERE id = $1`, t.vaultID, token); err != nil {
		return fmt.Errorf("failed to store reward token: %w", err)
	}
	return nil
}

func (t *pgTx) RewardState(ctx context.Context, token string) (rewards.State, bool, error) {
	var (
		eps, index           string
		expiration, lastTime int64
	)
	err := t.tx.QueryRow(ctx, `
		SELECT eps::text, expiration, last_time, reward_index::text
		FROM vault_reward_states WHERE vault_id = $1 AND token = $2`, t.vaultID, token,
	).Scan(&eps, &expiration, &lastTime, &index)
	if errors.Is(err, pgx.ErrNoRows) {
		return rewards.State{}, false, nil
	}
	if err != nil {
		return rewards.State{}, false, fmt.Errorf("failed to load reward state: %w", err)
	}
	st := rewards.State{Expiration: uint64(expiration), LastTime: uint64(lastTime)}
	if st.Eps, err = strconv.ParseUint(eps, 10, 64); err != nil {
		return rewards.State{}, false, fmt.Errorf("failed to parse eps %q: %w", eps, err)
	}
	if st.Index, err = parseInt(index); err != nil {
		return rewards.State{}, false, err
	}
	return st, true, nil
}

func (t *pgTx) PutRewardState(ctx context.Context, token string, st rewards.State) error {
	if err := t.write(); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO vault_reward_states (vault_id, token, eps, expiration, last_time, reward_index)
		VALUES ($1, $2, $3::text::numeric, $4, $5, $6::text::numeric)
		ON CONFLICT (vault_id, token) DO UPDATE SET
			eps = EXCLUDED.eps, expiration = EXCLUDED.expiration,
			last_time = EXCLUDED.last_time, reward_index = EXCLUDED.reward_index`,
		t.vaultID, token, strconv.FormatUint(st.Eps, 10), int64(st.Expiration), int64(st.LastTime), st.Index.String())
	if err != nil {
		return fmt.Errorf("failed to store reward state: %w", err)
	}
	return nil
}

func (t *pgTx) UserRewards(ctx context.Context, token, user string) (rewards.UserState, bool, error) {
	var index, accrued string
	err := t.tx.QueryRow(ctx, `
		SELECT reward_index::text, accrued::text FROM vault_user_rewards
		WHERE vault_id = $1 AND token = $2 AND user_address = $3`, t.vaultID, token, user,
	).Scan(&index, &accrued)
	if errors.Is(err, pgx.ErrNoRows) {
		return rewards.UserState{}, false, nil
	}
	if err != nil {
		return rewards.UserState{}, false, fmt.Errorf("failed to load user rewards: %w", err)
	}
	var st rewards.UserState
	if st.Index, err = parseInt(index); err != nil {
		return rewards.UserState{}, false, err
	}
	if st.Accrued, err = parseInt(accrued); err != nil {
		return rewards.UserState{}, false, err
	}
	return st, true, nil
}

func (t *pgTx) PutUserRewards(ctx context.Context, token, user string, st rewards.UserState) error {
	if err := t.write(); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO vault_user_rewards (vault_id, token, user_address, reward_index, accrued)
		VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric)
		ON CONFLICT (vault_id, token, user_address) DO UPDATE SET
			reward_index = EXCLUDED.reward_index, accrued = EXCLUDED.accrued`,
		t.vaultID, token, user, st.Index.String(), st.Accrued.String())
	if err != nil {
		return fmt.Errorf("failed to store user rewards: %w", err)
	}
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, ev events.Event) error {
	if err := t.write(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO vault_events (id, vault_id, kind, ledger_time, payload) VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, t.vaultID, string(ev.Kind), int64(ev.LedgerTime), payload)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func parseInt(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("failed to parse integer %q", s)
	}
	return v, nil
}
