package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeVault_Logger_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Options{Format: FormatJSON, Writer: &buf})
	log.Info("vault: deposit applied", "vault", "usdc", "signer", "")
	log.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "vault: deposit applied", rec["msg"])
	assert.Equal(t, "usdc", rec["vault"])
	assert.NotContains(t, rec, "signer")
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, rec["time"])
}

func TestFeeVault_Logger_Verbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Options{Verbose: true, Writer: &buf})
	log.Debug("store: tx committed")
	assert.Contains(t, buf.String(), "store: tx committed")
}

func TestFeeVault_Logger_FormatRFC3339Millis(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 4, 15, 2, 3, 4, 56_789_000, loc)
	assert.Equal(t, "2024-04-15T00:03:04.056Z", formatRFC3339Millis(ts))
}
