package vault

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrUnauthorized is returned when an operation lacks an approval it requires.
var ErrUnauthorized = errors.New("unauthorized")

// Authorizer checks that every address in addrs approved the operation carried by ctx.
type Authorizer interface {
	Require(ctx context.Context, addrs ...string) error
}

type signersKey struct{}

// WithSigners returns a context carrying the addresses that approved the request.
func WithSigners(ctx context.Context, addrs ...string) context.Context {
	existing := Signers(ctx)
	return context.WithValue(ctx, signersKey{}, append(slices.Clone(existing), addrs...))
}

// Signers returns the approving addresses carried by ctx.
func Signers(ctx context.Context) []string {
	addrs, _ := ctx.Value(signersKey{}).([]string)
	return addrs
}

// SignerAuthorizer approves an operation when ctx carries every required address.
type SignerAuthorizer struct{}

func (SignerAuthorizer) Require(ctx context.Context, addrs ...string) error {
	signers := Signers(ctx)
	for _, addr := range addrs {
		if !slices.Contains(signers, addr) {
			return fmt.Errorf("%w: missing approval from %s", ErrUnauthorized, addr)
		}
	}
	return nil
}
