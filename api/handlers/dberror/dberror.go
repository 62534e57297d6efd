// Package dberror classifies storage and upstream failures so the API can tell an outage from a bug.
package dberror

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorType classifies database errors for appropriate handling.
type ErrorType int

const (
	// ErrorTypeUnknown is an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeConnectivity indicates the database is unreachable.
	ErrorTypeConnectivity
	// ErrorTypeTimeout indicates the operation timed out.
	ErrorTypeTimeout
	// ErrorTypeAuth indicates authentication/authorization failure.
	ErrorTypeAuth
	// ErrorTypeQuery indicates a query/syntax error.
	ErrorTypeQuery
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConnectivity:
		return "connectivity"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeQuery:
		return "query"
	default:
		return "unknown"
	}
}

// IsTransient returns true if the error is likely transient and worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not transient (user cancelled or deadline exceeded)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	switch Classify(err) {
	case ErrorTypeConnectivity, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

var (
	connectivityPatterns = []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"no such host",
		"dial tcp",
		"dial unix",
		"broken pipe",
		"network is unreachable",
		"no route to host",
		"server shutdown",
		"pool is closed",
		"closed pool",
		"conn closed",
	}
	timeoutPatterns = []string{
		"timeout",
		"deadline exceeded",
		"timed out",
	}
	authPatterns = []string{
		"authentication failed",
		"invalid credentials",
		"permission denied",
	}
	queryPatterns = []string{
		"syntax error",
		"does not exist",
		"unknown column",
		"unknown table",
	}
)

// Classify determines the type of database error.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
			return ErrorTypeConnectivity
		case pgErr.Code == "57014":
			return ErrorTypeTimeout
		case strings.HasPrefix(pgErr.Code, "28"):
			return ErrorTypeAuth
		case strings.HasPrefix(pgErr.Code, "42"):
			return ErrorTypeQuery
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeConnectivity
	}

	errStr := strings.ToLower(err.Error())
	for _, p := range connectivityPatterns {
		if strings.Contains(errStr, p) {
			return ErrorTypeConnectivity
		}
	}
	for _, p := range timeoutPatterns {
		if strings.Contains(errStr, p) {
			return ErrorTypeTimeout
		}
	}
	for _, p := range authPatterns {
		if strings.Contains(errStr, p) {
			return ErrorTypeAuth
		}
	}
	for _, p := range queryPatterns {
		if strings.Contains(errStr, p) {
			return ErrorTypeQuery
		}
	}
	return ErrorTypeUnknown
}

// UserMessage returns a user-friendly error message based on the error type.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch Classify(err) {
	case ErrorTypeConnectivity:
		return "Service temporarily unavailable. Please try again in a moment."
	case ErrorTypeTimeout:
		return "Request timed out. Please try again."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
