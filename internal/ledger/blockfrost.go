package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Blockfrost network base URLs.
var blockfrostNetworks = map[string]string{
	"mainnet": "https://cardano-mainnet.blockfrost.io/api/v0",
	"preprod": "https://cardano-preprod.blockfrost.io/api/v0",
	"preview": "https://cardano-preview.blockfrost.io/api/v0",
}

// BlockfrostBaseURL returns the API root for a network name.
func BlockfrostBaseURL(network string) (string, error) {
	base, ok := blockfrostNetworks[strings.ToLower(network)]
	if !ok {
		return "", fmt.Errorf("unknown cardano network %q", network)
	}
	return base, nil
}

// Blockfrost is an Oracle and Submitter backed by the Blockfrost REST API.
type Blockfrost struct {
	baseURL   string
	projectID string
	client    *http.Client
	builder   TxBuilder
}

// BlockfrostOption configures a Blockfrost client.
type BlockfrostOption func(*Blockfrost)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) BlockfrostOption {
	return func(b *Blockfrost) {
		b.client = c
	}
}

// WithTxBuilder sets the builder used by Submit.
func WithTxBuilder(tb TxBuilder) BlockfrostOption {
	return func(b *Blockfrost) {
		b.builder = tb
	}
}

// NewBlockfrost creates a client for baseURL authenticated by projectID.
func NewBlockfrost(baseURL, projectID string, opts ...BlockfrostOption) *Blockfrost {
	b := &Blockfrost{
		baseURL:   strings.TrimRight(baseURL, "/"),
		projectID: projectID,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// txContent is the subset of GET /txs/{hash} we read.
type txContent struct {
	Hash          string `json:"hash"`
	Block         string `json:"block"`
	BlockHeight   int64  `json:"block_height"`
	ValidContract bool   `json:"valid_contract"`
}

// CheckStatus implements Oracle.
//
//   - 404: not yet on-chain, pending
//   - 200 with valid_contract=false: included but collateral consumed, failed
//   - 200: confirmed
//
// Any other response is an error; callers treat errors as pending.
func (b *Blockfrost) CheckStatus(ctx context.Context, ref string) (Status, error) {
	if ref == "" {
		return "", fmt.Errorf("check status: empty transaction reference")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/txs/"+ref, nil)
	if err != nil {
		return "", fmt.Errorf("check status: %w", err)
	}
	req.Header.Set("project_id", b.projectID)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("check status: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return StatusPending, nil
	case http.StatusOK:
		var tx txContent
		if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
			return "", fmt.Errorf("check status: decode: %w", err)
		}
		if tx.Block == "" {
			return StatusPending, nil
		}
		if !tx.ValidContract {
			return StatusFailed, nil
		}
		return StatusConfirmed, nil
	default:
		return "", fmt.Errorf("check status: %s", responseError(resp))
	}
}

// Submit implements Submitter by posting the signed transaction to
// /tx/submit. p.SignedTx is used as-is when present; otherwise the
// configured TxBuilder builds it.
func (b *Blockfrost) Submit(ctx context.Context, p Payment) (string, error) {
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	cbor := p.SignedTx
	if len(cbor) == 0 {
		if b.builder == nil {
			return "", fmt.Errorf("submit: no signed transaction and no builder configured")
		}
		var err error
		if cbor, err = b.builder.Build(ctx, p); err != nil {
			return "", fmt.Errorf("submit: build: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/tx/submit", bytes.NewReader(cbor))
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	req.Header.Set("project_id", b.projectID)
	req.Header.Set("Content-Type", "application/cbor")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("submit: %s", responseError(resp))
	}

	var ref string
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return "", fmt.Errorf("submit: decode: %w", err)
	}
	if ref == "" {
		return "", fmt.Errorf("submit: empty transaction hash in response")
	}
	return ref, nil
}

// blockfrostError is the error body Blockfrost returns.
type blockfrostError struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func responseError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var be blockfrostError
	if json.Unmarshal(body, &be) == nil && be.Message != "" {
		return fmt.Sprintf("%s: %s", resp.Status, be.Message)
	}
	return resp.Status
}
