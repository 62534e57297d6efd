package admin_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/feevault/admin/internal/admin"
	vaulttesting "github.com/malbeclabs/feevault/utils/pkg/testing"
	"github.com/malbeclabs/feevault/vault/pkg/clickhouse"
	clickhousetesting "github.com/malbeclabs/feevault/vault/pkg/clickhouse/testing"
)

func tableNames(t *testing.T, client clickhouse.Client) []string {
	t.Helper()
	conn, err := client.Conn(t.Context())
	require.NoError(t, err)
	rows, err := conn.Query(t.Context(), `SELECT name FROM system.tables WHERE database = currentDatabase() ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestFeeVault_Admin_ResetAnalytics(t *testing.T) {
	t.Parallel()
	if testDB == nil {
		t.Skip("clickhouse container unavailable")
	}
	log := vaulttesting.NewLogger()

	t.Run("dry run keeps tables", func(t *testing.T) {
		t.Parallel()
		client := clickhousetesting.NewTestClient(t, testDB)

		var out bytes.Buffer
		require.NoError(t, admin.ResetAnalytics(t.Context(), log, client, admin.ResetOptions{DryRun: true, Out: &out}))
		assert.Contains(t, out.String(), "vault_events")
		assert.Contains(t, out.String(), "[DRY RUN]")
		assert.Contains(t, tableNames(t, client), "vault_events")
	})

	t.Run("declined confirmation keeps tables", func(t *testing.T) {
		t.Parallel()
		client := clickhousetesting.NewTestClient(t, testDB)

		var out bytes.Buffer
		require.NoError(t, admin.ResetAnalytics(t.Context(), log, client, admin.ResetOptions{In: strings.NewReader("no\n"), Out: &out}))
		assert.Contains(t, out.String(), "Operation cancelled")
		assert.Contains(t, tableNames(t, client), "vault_events")
	})

	t.Run("confirmed drop", func(t *testing.T) {
		t.Parallel()
		client := clickhousetesting.NewTestClient(t, testDB)

		var out bytes.Buffer
		require.NoError(t, admin.ResetAnalytics(t.Context(), log, client, admin.ResetOptions{In: strings.NewReader("yes\n"), Out: &out}))
		assert.Contains(t, out.String(), "Successfully dropped 2 table(s)")
		assert.Empty(t, tableNames(t, client))

		out.Reset()
		require.NoError(t, admin.ResetAnalytics(t.Context(), log, client, admin.ResetOptions{SkipConfirm: true, Out: &out}))
		assert.Contains(t, out.String(), "No analytics tables found")
	})
}
