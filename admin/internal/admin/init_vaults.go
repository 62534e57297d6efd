package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/malbeclabs/feevault/api/config"
	"github.com/malbeclabs/feevault/vault/pkg/vault"
	"github.com/malbeclabs/feevault/vault/pkg/vaulterr"
)

// InitVaultsResult lists what InitVaults did.
type InitVaultsResult struct {
	Created []string
	Skipped []string
}

// InitVaults creates every vault in specs, acting as each vault's admin. Vaults that already exist
// are skipped, so the same file can be applied repeatedly.
func InitVaults(ctx context.Context, log *slog.Logger, svc *vault.Service, specs []config.VaultSpec) (InitVaultsResult, error) {
	var res InitVaultsResult
	for _, spec := range specs {
		if spec.ID == "" {
			return res, errors.New("vault id is required")
		}
		signers := []string{spec.Admin}
		if spec.Signer != "" {
			signers = append(signers, spec.Signer)
		}
		st, err := svc.Initialize(vault.WithSigners(ctx, signers...), spec.ID, spec.VaultConfig)
		if errors.Is(err, vaulterr.ErrReserveAlreadyExists) {
			log.Info("admin: vault already exists", "vault", spec.ID)
			res.Skipped = append(res.Skipped, spec.ID)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("failed to initialize vault %s: %w", spec.ID, err)
		}
		log.Info("admin: vault initialized", "vault", spec.ID, "pool", spec.Pool, "asset", spec.Asset,
			"rate_type", spec.Fee.RateType.String(), "rate", spec.Fee.Rate, "b_rate", st.BRate.String())
		res.Created = append(res.Created, spec.ID)
	}
	return res, nil
}
