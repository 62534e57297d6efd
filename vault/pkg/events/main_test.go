package events_test

import (
	"context"
	"os"
	"testing"

	vaulttesting "github.com/malbeclabs/feevault/utils/pkg/testing"
	clickhousetesting "github.com/malbeclabs/feevault/vault/pkg/clickhouse/testing"
)

// testDB is nil when Docker is unavailable; integration tests skip in that case.
var testDB *clickhousetesting.DB

func TestMain(m *testing.M) {
	log := vaulttesting.NewLogger()

	db, err := clickhousetesting.NewDB(context.Background(), log, nil)
	if err != nil {
		log.Warn("clickhouse container unavailable, skipping integration tests", "error", err)
	} else {
		testDB = db
	}

	code := m.Run()

	if testDB != nil {
		testDB.Close()
	}
	os.Exit(code)
}
