// Package handlers serves the fee vault over JSON HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	sdkmath "cosmossdk.io/math"
	"github.com/go-chi/chi/v5"

	"github.com/malbeclabs/feevault/vault/pkg/fixedpoint"
	"github.com/malbeclabs/feevault/vault/pkg/vault"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type Config struct {
	Logger *slog.Logger
	Vaults *vault.Service
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Vaults == nil {
		return errors.New("vault service is required")
	}
	return nil
}

type Handler struct {
	log *slog.Logger
	svc *vault.Service
}

func New(cfg Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Handler{log: cfg.Logger, svc: cfg.Vaults}, nil
}

// Register mounts the vault routes under /api/vaults.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/vaults", func(r chi.Router) {
		r.Get("/", h.ListVaults)
		r.Post("/", h.InitializeVault)

		r.Route("/{vault}", func(r chi.Router) {
			r.Get("/", h.GetSummary)
			r.Get("/state", h.GetState)
			r.Get("/config", h.GetConfig)
			r.Get("/fee", h.GetFee)
			r.Get("/admin", h.GetAdmin)
			r.Get("/signer", h.GetSigner)
			r.Get("/reward-token", h.GetRewardToken)
			r.Get("/events", h.ListEvents)
			r.Get("/admin-balance", h.GetAdminBalance)
			r.Get("/rewards/{token}", h.GetRewardData)
			r.Get("/users/{user}", h.GetUser)
			r.Get("/users/{user}/rewards/{token}", h.GetUserRewards)

			r.Post("/deposit", h.Deposit)
			r.Post("/withdraw", h.Withdraw)
			r.Post("/claim-rewards", h.ClaimRewards)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/deposit", h.AdminDeposit)
				r.Post("/withdraw", h.AdminWithdraw)
				r.Post("/rewards", h.SetRewards)
				r.Post("/claim-emissions", h.ClaimEmissions)
				r.Put("/fee", h.SetFee)
				r.Put("/admin", h.SetAdmin)
				r.Put("/signer", h.SetSigner)
			})
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

// AmountRequest carries an amount either as a raw 7-decimal integer or as a human readable
// decimal. Exactly one must be set.
type AmountRequest struct {
	Amount        string `json:"amount,omitempty"`
	AmountDisplay string `json:"amount_display,omitempty"`
}

func (a AmountRequest) parse() (sdkmath.Int, error) {
	switch {
	case a.Amount != "" && a.AmountDisplay != "":
		return sdkmath.Int{}, badRequest("only one of amount and amount_display may be set")
	case a.Amount != "":
		v, err := fixedpoint.Parse(a.Amount)
		if err != nil {
			return sdkmath.Int{}, badRequest("invalid amount: %v", err)
		}
		return v, nil
	case a.AmountDisplay != "":
		v, err := fixedpoint.ParseDecimal(a.AmountDisplay, fixedpoint.Decimals7)
		if err != nil {
			return sdkmath.Int{}, badRequest("invalid amount_display: %v", err)
		}
		return v, nil
	default:
		return sdkmath.Int{}, badRequest("amount is required")
	}
}

// display renders a 7-decimal amount.
func display(v sdkmath.Int) string {
	return fixedpoint.ToDecimal(v, fixedpoint.Decimals7).String()
}
