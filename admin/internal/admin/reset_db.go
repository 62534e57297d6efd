package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/malbeclabs/feevault/vault/pkg/clickhouse"
)

// gooseVersionTable is dropped with the analytics tables so the next --clickhouse-migrate starts
// from scratch.
const gooseVersionTable = "goose_db_version"

type ResetOptions struct {
	DryRun      bool
	SkipConfirm bool
	// In supplies the confirmation answer; Out receives the report.
	In  io.Reader
	Out io.Writer
}

// ResetAnalytics drops the vault analytics tables (vault_*) and the migration version table from
// the client's current ClickHouse database. The vault ledger in Postgres is never touched.
func ResetAnalytics(ctx context.Context, log *slog.Logger, client clickhouse.Client, opts ResetOptions) error {
	conn, err := client.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	tableQuery := `
		SELECT name
		FROM system.tables
		WHERE database = currentDatabase()
		  AND (startsWith(name, 'vault_') OR name = ?)
		ORDER BY name
	`
	rows, err := conn.Query(ctx, tableQuery, gooseVersionTable)
	if err != nil {
		return fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read tables: %w", err)
	}

	out := opts.Out
	if len(tables) == 0 {
		fmt.Fprintln(out, "No analytics tables found")
		return nil
	}

	fmt.Fprintf(out, "WARNING: This will DROP %d table(s):\n\n", len(tables))
	for _, table := range tables {
		fmt.Fprintf(out, "  - %s\n", table)
	}

	if opts.DryRun {
		fmt.Fprintln(out, "\n[DRY RUN] Would drop the above tables")
		return nil
	}

	if !opts.SkipConfirm {
		fmt.Fprintf(out, "\nThis is a DESTRUCTIVE operation that cannot be undone!\n")
		fmt.Fprintf(out, "Type 'yes' to confirm: ")

		response, err := bufio.NewReader(opts.In).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			fmt.Fprintf(out, "\nConfirmation failed. Operation cancelled.\n")
			return nil
		}
		fmt.Fprintln(out)
	}

	for _, table := range tables {
		if err := conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
		log.Debug("admin: dropped table", "table", table)
		fmt.Fprintf(out, "  Dropped %s\n", table)
	}

	fmt.Fprintf(out, "\nSuccessfully dropped %d table(s)\n", len(tables))
	return nil
}
