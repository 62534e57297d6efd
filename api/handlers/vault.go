package handlers

import (
	"context"
	"net/http"

	sdkmath "cosmossdk.io/math"
	"github.com/go-chi/chi/v5"

	"github.com/malbeclabs/feevault/vault/pkg/events"
	"github.com/malbeclabs/feevault/vault/pkg/fixedpoint"
	"github.com/malbeclabs/feevault/vault/pkg/ledger"
	"github.com/malbeclabs/feevault/vault/pkg/rewards"
	"github.com/malbeclabs/feevault/vault/pkg/store"
	"github.com/malbeclabs/feevault/vault/pkg/vault"
)

type VaultListResponse struct {
	Vaults []string `json:"vaults"`
}

type InitializeRequest struct {
	ID string `json:"id"`
	store.VaultConfig
}

type StateResponse struct {
	ledger.State
	BRateDisplay        string `json:"b_rate_display"`
	TotalSharesDisplay  string `json:"total_shares_display"`
	TotalBTokensDisplay string `json:"total_b_tokens_display"`
	AdminBalanceDisplay string `json:"admin_balance_display"`
}

func newStateResponse(st ledger.State) StateResponse {
	return StateResponse{
		State:               st,
		BRateDisplay:        fixedpoint.ToDecimal(st.BRate, fixedpoint.Decimals12).String(),
		TotalSharesDisplay:  display(st.TotalShares),
		TotalBTokensDisplay: display(st.TotalBTokens),
		AdminBalanceDisplay: display(st.AdminBalance),
	}
}

type SummaryResponse struct {
	vault.Summary
	EstAPRDisplay string `json:"est_apr_display"`
}

type AddressResponse struct {
	Address string `json:"address"`
	Set     bool   `json:"set"`
}

type EventListResponse struct {
	Events []events.Event `json:"events"`
	Limit  int            `json:"limit"`
}

type UserResponse struct {
	User              string      `json:"user"`
	Shares            sdkmath.Int `json:"shares"`
	SharesDisplay     string      `json:"shares_display"`
	BTokens           sdkmath.Int `json:"b_tokens"`
	BTokensDisplay    string      `json:"b_tokens_display"`
	Underlying        sdkmath.Int `json:"underlying"`
	UnderlyingDisplay string      `json:"underlying_display"`
}

type UserRewardsResponse struct {
	rewards.UserState
	AccruedDisplay string `json:"accrued_display"`
}

type AmountResponse struct {
	Amount        sdkmath.Int `json:"amount"`
	AmountDisplay string      `json:"amount_display"`
}

func newAmountResponse(v sdkmath.Int) AmountResponse {
	return AmountResponse{Amount: v, AmountDisplay: display(v)}
}

type UserAmountRequest struct {
	User string `json:"user"`
	AmountRequest
}

type ClaimRewardsRequest struct {
	User string `json:"user"`
	To   string `json:"to"`
}

type SetRewardsRequest struct {
	Token      string `json:"token"`
	Expiration uint64 `json:"expiration"`
	AmountRequest
}

type ClaimEmissionsRequest struct {
	ReserveTokenIDs []uint32 `json:"reserve_token_ids"`
	To              string   `json:"to"`
}

type AddressRequest struct {
	Address string `json:"address"`
}

func (h *Handler) ListVaults(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.Vaults(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, VaultListResponse{Vaults: ids})
}

func (h *Handler) InitializeVault(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ID == "" {
		h.writeError(w, r, badRequest("id is required"))
		return
	}
	st, err := h.svc.Initialize(r.Context(), req.ID, req.VaultConfig)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newStateResponse(st))
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context(), chi.URLParam(r, "vault"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{Summary: sum, EstAPRDisplay: display(sum.EstAPR)})
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.State(r.Context(), chi.URLParam(r, "vault"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(st))
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.Config(r.Context(), chi.URLParam(r, "vault"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) GetFee(w http.ResponseWriter, r *http.Request) {
	fee, err := h.svc.Fee(r.Context(), chi.URLParam(r, "vault"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fee)
}

func (h *Handler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	admin, err := h.svc.Admin(r.Context(), chi.URLParam(r, "vault"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AddressResponse{Address: admin, Set: true})
}

func (h *Handler) GetSigner(w http.ResponseWriter, r *http.Request) {
	signer, ok, err := h.svc.Signer(r.Context(), chi.URLParam(r, "vault"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AddressResponse{Address: signer, Set: ok})
}

func (h *Handler) GetRewardToken(w http.ResponseWriter, r *http.Request) {
	tok, ok, err := h.svc.RewardToken(r.Context(), chi.URLParam(r, "vault"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AddressResponse{Address: tok, Set: ok})
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := ParseLimit(r, DefaultLimit)
	evs, err := h.svc.Events(r.Context(), chi.URLParam(r, "vault"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if evs == nil {
		evs = []events.Event{}
	}
	writeJSON(w, http.StatusOK, EventListResponse{Events: evs, Limit: limit})
}

func (h *Handler) GetAdminBalance(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.UnderlyingAdminBalance(r.Context(), chi.URLParam(r, "vault"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAmountResponse(v))
}

func (h *Handler) GetRewardData(w http.ResponseWriter, r *http.Request) {
	st, ok, err := h.svc.RewardData(r.Context(), chi.URLParam(r, "vault"), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no reward data for token"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vaultID, user := chi.URLParam(r, "vault"), chi.URLParam(r, "user")

	shares, err := h.svc.Shares(ctx, vaultID, user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	bTokens, err := h.svc.BTokens(ctx, vaultID, user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	underlying, err := h.svc.Underlying(ctx, vaultID, user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{
		User:              user,
		Shares:            shares,
		SharesDisplay:     display(shares),
		BTokens:           bTokens,
		BTokensDisplay:    display(bTokens),
		Underlying:        underlying,
		UnderlyingDisplay: display(underlying),
	})
}

func (h *Handler) GetUserRewards(w http.ResponseWriter, r *http.Request) {
	st, ok, err := h.svc.UserRewards(r.Context(), chi.URLParam(r, "vault"), chi.URLParam(r, "user"), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no reward data for user"})
		return
	}
	writeJSON(w, http.StatusOK, UserRewardsResponse{UserState: st, AccruedDisplay: display(st.Accrued)})
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req UserAmountRequest
	amount, err := decodeUserAmount(w, r, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shares, err := h.svc.Deposit(r.Context(), chi.URLParam(r, "vault"), req.User, amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAmountResponse(shares))
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req UserAmountRequest
	amount, err := decodeUserAmount(w, r, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	burnt, err := h.svc.Withdraw(r.Context(), chi.URLParam(r, "vault"), req.User, amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAmountResponse(burnt))
}

func decodeUserAmount(w http.ResponseWriter, r *http.Request, req *UserAmountRequest) (sdkmath.Int, error) {
	if err := decodeJSON(w, r, req); err != nil {
		return sdkmath.Int{}, err
	}
	if req.User == "" {
		return sdkmath.Int{}, badRequest("user is required")
	}
	return req.parse()
}

func (h *Handler) ClaimRewards(w http.ResponseWriter, r *http.Request) {
	var req ClaimRewardsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.User == "" {
		h.writeError(w, r, badRequest("user is required"))
		return
	}
	if req.To == "" {
		req.To = req.User
	}
	claimed, err := h.svc.ClaimRewards(r.Context(), chi.URLParam(r, "vault"), req.User, req.To)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAmountResponse(claimed))
}

func (h *Handler) AdminDeposit(w http.ResponseWriter, r *http.Request) {
	h.adminAmount(w, r, h.svc.AdminDeposit)
}

func (h *Handler) AdminWithdraw(w http.ResponseWriter, r *http.Request) {
	h.adminAmount(w, r, h.svc.AdminWithdraw)
}

func (h *Handler) adminAmount(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, vaultID string, amount sdkmath.Int) (sdkmath.Int, error)) {
	var req AmountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	amount, err := req.parse()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	bTokens, err := op(r.Context(), chi.URLParam(r, "vault"), amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAmountResponse(bTokens))
}

func (h *Handler) SetRewards(w http.ResponseWriter, r *http.Request) {
	var req SetRewardsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	amount, err := req.parse()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.SetRewards(r.Context(), chi.URLParam(r, "vault"), req.Token, amount, req.Expiration); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rewards set"})
}

func (h *Handler) ClaimEmissions(w http.ResponseWriter, r *http.Request) {
	var req ClaimEmissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.To == "" {
		h.writeError(w, r, badRequest("to is required"))
		return
	}
	claimed, err := h.svc.ClaimEmissions(r.Context(), chi.URLParam(r, "vault"), req.ReserveTokenIDs, req.To)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAmountResponse(claimed))
}

func (h *Handler) SetFee(w http.ResponseWriter, r *http.Request) {
	var fee ledger.Fee
	if err := decodeJSON(w, r, &fee); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.SetFee(r.Context(), chi.URLParam(r, "vault"), fee); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fee)
}

func (h *Handler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	var req AddressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.SetAdmin(r.Context(), chi.URLParam(r, "vault"), req.Address); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AddressResponse{Address: req.Address, Set: true})
}

// SetSigner replaces the vault's co-signer. An empty address removes it.
func (h *Handler) SetSigner(w http.ResponseWriter, r *http.Request) {
	var req AddressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.SetSigner(r.Context(), chi.URLParam(r, "vault"), req.Address); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AddressResponse{Address: req.Address, Set: req.Address != ""})
}
