package store_test

import (
	"context"
	"os"
	"testing"

	vaulttesting "github.com/malbeclabs/feevault/utils/pkg/testing"
	storetesting "github.com/malbeclabs/feevault/vault/pkg/store/testing"
)

// testDB is nil when Docker is unavailable; Postgres tests skip in that case.
var testDB *storetesting.DB

func TestMain(m *testing.M) {
	log := vaulttesting.NewLogger()

	db, err := storetesting.NewDB(context.Background(), log, nil)
	if err != nil {
		log.Warn("postgres container unavailable, skipping postgres tests", "error", err)
	} else {
		testDB = db
	}

	code := m.Run()

	if testDB != nil {
		testDB.Close()
	}
	os.Exit(code)
}
