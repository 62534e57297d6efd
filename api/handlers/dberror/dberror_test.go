package dberror_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/malbeclabs/feevault/api/handlers/dberror"
)

func TestFeeVault_API_DBError_Classify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		want      dberror.ErrorType
		transient bool
	}{
		{"nil", nil, dberror.ErrorTypeUnknown, false},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), dberror.ErrorTypeConnectivity, true},
		{"wrapped timeout", fmt.Errorf("failed to query: %w", errors.New("i/o timeout")), dberror.ErrorTypeTimeout, true},
		{"pg admin shutdown", &pgconn.PgError{Code: "57P01"}, dberror.ErrorTypeConnectivity, true},
		{"pg canceled", &pgconn.PgError{Code: "57014"}, dberror.ErrorTypeTimeout, true},
		{"pg auth", &pgconn.PgError{Code: "28P01"}, dberror.ErrorTypeAuth, false},
		{"pg undefined table", &pgconn.PgError{Code: "42P01"}, dberror.ErrorTypeQuery, false},
		{"context canceled", context.Canceled, dberror.ErrorTypeUnknown, false},
		{"other", errors.New("boom"), dberror.ErrorTypeUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, dberror.Classify(tt.err))
			assert.Equal(t, tt.transient, dberror.IsTransient(tt.err))
		})
	}
}

func TestFeeVault_API_DBError_UserMessage(t *testing.T) {
	t.Parallel()

	assert.Empty(t, dberror.UserMessage(nil))
	assert.Contains(t, dberror.UserMessage(errors.New("connection reset by peer")), "temporarily unavailable")
	assert.Contains(t, dberror.UserMessage(errors.New("boom")), "unexpected error")
}
