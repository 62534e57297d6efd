package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/malbeclabs/feevault/utils/pkg/retry"
	"github.com/malbeclabs/feevault/vault/pkg/metrics"
)

// HTTPConfig configures a client for a lending pool gateway speaking JSON over HTTP.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	// Retry applies to reads only. Mutations are sent exactly once.
	Retry retry.Config
}

func (cfg *HTTPConfig) Validate() error {
	if cfg.BaseURL == "" {
		return errors.New("pool gateway base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return fmt.Errorf("invalid pool gateway base url: %w", err)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return nil
}

// HTTPClient implements Client and token.Transferer against a pool gateway.
type HTTPClient struct {
	cfg HTTPConfig
}

func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HTTPClient{cfg: cfg}, nil
}

type supplyRequest struct {
	Asset  string      `json:"asset"`
	From   string      `json:"from"`
	Amount sdkmath.Int `json:"amount"`
}

type withdrawRequest struct {
	Asset  string      `json:"asset"`
	To     string      `json:"to"`
	Amount sdkmath.Int `json:"amount"`
}

type claimRequest struct {
	ReserveTokenIDs []uint32 `json:"reserve_token_ids"`
	To              string   `json:"to"`
}

type claimResponse struct {
	Amount sdkmath.Int `json:"amount"`
}

type transferRequest struct {
	From   string      `json:"from"`
	To     string      `json:"to"`
	Amount sdkmath.Int `json:"amount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *HTTPClient) ExchangeRate(ctx context.Context, pool, asset string) (sdkmath.Int, error) {
	r, err := c.Reserve(ctx, pool, asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if r.BRate.IsNil() || !r.BRate.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("pool %s reported non-positive b-rate for %s", pool, asset)
	}
	return r.BRate, nil
}

func (c *HTTPClient) Reserve(ctx context.Context, pool, asset string) (Reserve, error) {
	return retry.DoValue(ctx, c.cfg.Retry, func() (Reserve, error) {
		var r Reserve
		err := c.do(ctx, "reserve", http.MethodGet, fmt.Sprintf("/pools/%s/reserves/%s", url.PathEscape(pool), url.PathEscape(asset)), nil, &r)
		return r, err
	})
}

func (c *HTTPClient) Config(ctx context.Context, pool string) (Config, error) {
	return retry.DoValue(ctx, c.cfg.Retry, func() (Config, error) {
		var cfg Config
		err := c.do(ctx, "config", http.MethodGet, fmt.Sprintf("/pools/%s/config", url.PathEscape(pool)), nil, &cfg)
		return cfg, err
	})
}

func (c *HTTPClient) Supply(ctx context.Context, pool, asset, from string, amount sdkmath.Int) error {
	return c.do(ctx, "supply", http.MethodPost, fmt.Sprintf("/pools/%s/supply", url.PathEscape(pool)),
		supplyRequest{Asset: asset, From: from, Amount: amount}, nil)
}

func (c *HTTPClient) Withdraw(ctx context.Context, pool, asset, to string, amount sdkmath.Int) error {
	return c.do(ctx, "withdraw", http.MethodPost, fmt.Sprintf("/pools/%s/withdraw", url.PathEscape(pool)),
		withdrawRequest{Asset: asset, To: to, Amount: amount}, nil)
}

func (c *HTTPClient) Claim(ctx context.Context, pool string, reserveTokenIDs []uint32, to string) (sdkmath.Int, error) {
	var resp claimResponse
	if err := c.do(ctx, "claim", http.MethodPost, fmt.Sprintf("/pools/%s/claim", url.PathEscape(pool)),
		claimRequest{ReserveTokenIDs: reserveTokenIDs, To: to}, &resp); err != nil {
		return sdkmath.Int{}, err
	}
	if resp.Amount.IsNil() {
		return sdkmath.ZeroInt(), nil
	}
	return resp.Amount, nil
}

func (c *HTTPClient) Transfer(ctx context.Context, token, from, to string, amount sdkmath.Int) error {
	return c.do(ctx, "transfer", http.MethodPost, fmt.Sprintf("/tokens/%s/transfer", url.PathEscape(token)),
		transferRequest{From: from, To: to, Amount: amount}, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, httpMethod, path string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.PoolRequestsTotal.WithLabelValues(method, status).Inc()
		metrics.PoolRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", method, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", c.cfg.APIKey)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := string(raw)
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		return fmt.Errorf("pool gateway %s: %w", method, &retry.StatusError{Code: resp.StatusCode, Body: msg})
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}
