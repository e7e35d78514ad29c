// Package lcd queries a Cosmos SDK REST (gRPC gateway) endpoint.
package lcd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/args"
	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/httpx"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/retry"
)

type Client struct {
	http    *httpx.Client
	baseURL string
}

func New(httpClient *httpx.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Get issues GET baseURL+path?params and decodes the JSON body into out.
// path segments supplied by callers must already be escaped.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return clierr.Wrap(clierr.CodeConfigInvalid, "build REST request", err)
	}
	_, err = c.http.DoJSON(ctx, req, out)
	return err
}

// GetRaw is Get decoding into a generic JSON value.
func (c *Client) GetRaw(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	var out map[string]any
	if err := c.Get(ctx, path, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PageParams renders a pagination cursor as gRPC gateway query parameters.
func PageParams(p args.Pagination) url.Values {
	v := url.Values{}
	AddPage(v, p)
	return v
}

func AddPage(v url.Values, p args.Pagination) {
	if p.Limit > 0 {
		v.Set("pagination.limit", strconv.FormatUint(p.Limit, 10))
	}
	if p.Offset > 0 {
		v.Set("pagination.offset", strconv.FormatUint(p.Offset, 10))
	}
	if p.Key != "" {
		v.Set("pagination.key", p.Key)
	}
	if p.Reverse {
		v.Set("pagination.reverse", "true")
	}
	if p.CountTotal {
		v.Set("pagination.count_total", "true")
	}
}

// Seg escapes one path segment. Denominations such as factory/x/y and
// ibc/HASH contain slashes that must not split the route.
func Seg(s string) string {
	return url.PathEscape(s)
}

// TxResponse is the subset of cosmos.base.abci.v1beta1.TxResponse surfaced
// to callers.
type TxResponse struct {
	Height    string          `json:"height"`
	TxHash    string          `json:"txhash"`
	Code      uint32          `json:"code"`
	Codespace string          `json:"codespace,omitempty"`
	RawLog    string          `json:"raw_log"`
	GasWanted string          `json:"gas_wanted"`
	GasUsed   string          `json:"gas_used"`
	Timestamp string          `json:"timestamp,omitempty"`
	Events    json.RawMessage `json:"events,omitempty"`
}

type getTxResponse struct {
	TxResponse TxResponse `json:"tx_response"`
}

// GetTx fetches a committed transaction by hash.
func (c *Client) GetTx(ctx context.Context, hash string) (TxResponse, error) {
	var out getTxResponse
	if err := c.Get(ctx, "/cosmos/tx/v1beta1/txs/"+Seg(strings.ToUpper(hash)), nil, &out); err != nil {
		return TxResponse{}, err
	}
	return out.TxResponse, nil
}

// Acquirer gates each poll. *ratelimit.Limiter satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context) error
}

type WaitOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	// Limiter is acquired before every poll when set.
	Limiter Acquirer
}

// WaitForTx polls GetTx until the transaction is indexed or the timeout
// passes. Not-found responses and transient failures keep polling; any
// other failure ends the wait.
func (c *Client) WaitForTx(ctx context.Context, hash string, opts WaitOptions) (TxResponse, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var lastErr error
	for {
		tx, err := c.poll(ctx, hash, opts.Limiter)
		if err == nil {
			return tx, nil
		}
		if ctx.Err() != nil {
			return TxResponse{}, notConfirmed(hash, ctx.Err(), lastErr)
		}
		if !isNotFound(err) && !retry.IsRetryable(err) {
			return TxResponse{}, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return TxResponse{}, notConfirmed(hash, ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}

func (c *Client) poll(ctx context.Context, hash string, limiter Acquirer) (TxResponse, error) {
	if limiter != nil {
		if err := limiter.Acquire(ctx); err != nil {
			return TxResponse{}, err
		}
	}
	return c.GetTx(ctx, hash)
}

func notConfirmed(hash string, cause, last error) error {
	err := clierr.Wrap(clierr.CodeTxFailed, "transaction "+hash+" was not confirmed in time", cause)
	if last != nil && !isNotFound(last) {
		return err.WithDetails(map[string]any{"lastPollError": last.Error()})
	}
	return err
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "status 404") || strings.Contains(msg, "not found")
}
