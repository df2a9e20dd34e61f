// Package gateway is the HTTP adapter for the interbank clearing gateway.
// It builds the wire payloads for the five operations (name enquiry, debit
// leg, credit leg, reversal, status query), enforcing the direction rules
// of each leg, and normalizes the gateway's loosely-speced responses.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vireopay/fundflow/log"
)

// maxResponseBytes bounds how much of a gateway reply is read.
const maxResponseBytes = 1 << 20

// Config holds the gateway endpoint layout and the wire constants.
type Config struct {
	// BaseURL is the gateway root; operation paths are appended to it.
	BaseURL string
	// NameEnquiryPath, TransferPath and StatusQueryPath are the operation
	// endpoints. FTD, FTC and Reversal share the transfer endpoint, the
	// function code tells them apart.
	NameEnquiryPath string
	TransferPath    string
	StatusQueryPath string
	// CallbackURL is advertised on outbound requests so the gateway knows
	// where to deliver asynchronous results.
	CallbackURL string
	ChannelCode string
	FunctionNEC string
	FunctionFTD string
	FunctionFTC string
	FunctionTSQ string
	// Timeout bounds every gateway exchange.
	Timeout time.Duration
}

// DefaultConfig returns the conventional endpoint layout and function
// codes, missing only the deployment-specific base and callback URLs.
func DefaultConfig() Config {
	return Config{
		NameEnquiryPath: "/nameenquiry",
		TransferPath:    "/fundtransfer",
		StatusQueryPath: "/tsq",
		ChannelCode:     "1",
		FunctionNEC:     FunctionNEC,
		FunctionFTD:     FunctionFTD,
		FunctionFTC:     FunctionFTC,
		FunctionTSQ:     FunctionTSQDefault,
		Timeout:         30 * time.Second,
	}
}

// Client talks to the gateway. Safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a gateway client. Zero config fields fall back to the
// defaults of DefaultConfig.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.NameEnquiryPath == "" {
		cfg.NameEnquiryPath = def.NameEnquiryPath
	}
	if cfg.TransferPath == "" {
		cfg.TransferPath = def.TransferPath
	}
	if cfg.StatusQueryPath == "" {
		cfg.StatusQueryPath = def.StatusQueryPath
	}
	if cfg.ChannelCode == "" {
		cfg.ChannelCode = def.ChannelCode
	}
	if cfg.FunctionNEC == "" {
		cfg.FunctionNEC = def.FunctionNEC
	}
	if cfg.FunctionFTD == "" {
		cfg.FunctionFTD = def.FunctionFTD
	}
	if cfg.FunctionFTC == "" {
		cfg.FunctionFTC = def.FunctionFTC
	}
	if cfg.FunctionTSQ == "" {
		cfg.FunctionTSQ = def.FunctionTSQ
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Config returns the effective client configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// NameEnquiry sends a name enquiry request.
func (c *Client) NameEnquiry(ctx context.Context, req Request) (*Response, error) {
	return c.post(ctx, c.cfg.NameEnquiryPath, req)
}

// FundTransferDebit sends the debit leg of a transfer.
func (c *Client) FundTransferDebit(ctx context.Context, req Request) (*Response, error) {
	return c.post(ctx, c.cfg.TransferPath, req)
}

// FundTransferCredit sends the credit leg of a transfer.
func (c *Client) FundTransferCredit(ctx context.Context, req Request) (*Response, error) {
	return c.post(ctx, c.cfg.TransferPath, req)
}

// Reversal sends a compensating transfer for a failed credit leg.
func (c *Client) Reversal(ctx context.Context, req Request) (*Response, error) {
	return c.post(ctx, c.cfg.TransferPath, req)
}

// StatusQuery asks the gateway for the outcome of a previously submitted
// leg.
func (c *Client) StatusQuery(ctx context.Context, req Request) (*Response, error) {
	return c.post(ctx, c.cfg.StatusQueryPath, req)
}

// post sends the request and normalizes the reply. A non-2xx status with a
// parseable gateway body is a valid response and is returned as such; only
// transport failures and unparseable bodies are errors.
func (c *Client) post(ctx context.Context, path string, payload Request) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway transport: %w", err)
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			log.Warnw("failed to close gateway response body", "error", err)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	resp, err := ParseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("gateway response status %d unparseable: %w", httpResp.StatusCode, err)
	}
	resp.HTTPStatus = httpResp.StatusCode
	resp.Duration = time.Since(start)

	log.Debugw("gateway exchange",
		"function", payload.FunctionCode,
		"session", payload.SessionID,
		"httpStatus", resp.HTTPStatus,
		"actionCode", resp.ActionCode,
		"took", resp.Duration.String())
	return resp, nil
}
