package handlers

import (
	"net/http"

	"github.com/malbeclabs/feevault/vault/pkg/vault"
)

// APIKeyHeader may be repeated to present several approvals, e.g. a user and a vault's signer.
const APIKeyHeader = "X-Api-Key"

// APIKeyAuth attaches the address behind every presented API key to the request as an approving
// signer. Requests without keys pass through and only reach read endpoints successfully.
func APIKeyAuth(keys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Values(APIKeyHeader)
			if len(presented) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			addrs := make([]string, 0, len(presented))
			for _, key := range presented {
				addr, ok := keys[key]
				if !ok {
					writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid api key"})
					return
				}
				addrs = append(addrs, addr)
			}
			next.ServeHTTP(w, r.WithContext(vault.WithSigners(r.Context(), addrs...)))
		})
	}
}
