// Package comet talks to a CometBFT node over its JSON-RPC interface.
package comet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
)

type Client struct {
	mu  sync.Mutex
	rpc *gethrpc.Client
	url string
}

// Dial prepares a client for rpcURL. HTTP endpoints connect lazily, so a
// successful Dial does not prove the node is reachable.
func Dial(ctx context.Context, rpcURL string, timeout time.Duration) (*Client, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	if rpcURL == "" {
		return nil, clierr.New(clierr.CodeConfigInvalid, "rpc url is required")
	}
	rpcClient, err := gethrpc.DialOptions(ctx, rpcURL, gethrpc.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeRPCConnectionFailed, "connect to node "+rpcURL, err)
	}
	return &Client{rpc: rpcClient, url: rpcURL}, nil
}

func (c *Client) URL() string { return c.url }

// Call invokes method with positional params and decodes the result into out.
func (c *Client) Call(ctx context.Context, out any, method string, params ...any) error {
	c.mu.Lock()
	rpcClient := c.rpc
	c.mu.Unlock()
	if rpcClient == nil {
		return clierr.New(clierr.CodeRPCConnectionFailed, "node client is closed")
	}
	if err := rpcClient.CallContext(ctx, out, method, params...); err != nil {
		return mapCallError(method, err)
	}
	return nil
}

// CallRaw is Call decoding into a generic JSON value.
func (c *Client) CallRaw(ctx context.Context, method string, params ...any) (any, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, &raw, method, params...); err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, clierr.Wrap(clierr.CodeQueryFailed, "decode "+method+" result", err)
	}
	return out, nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc != nil {
		c.rpc.Close()
		c.rpc = nil
	}
}

// Height renders an optional block height the way CometBFT expects int64
// parameters: as a decimal string, or null for the latest block.
func Height(h int64) any {
	if h <= 0 {
		return nil
	}
	return strconv.FormatInt(h, 10)
}

type statusResult struct {
	NodeInfo struct {
		Network string `json:"network"`
	} `json:"node_info"`
	SyncInfo struct {
		LatestBlockHeight string `json:"latest_block_height"`
		CatchingUp        bool   `json:"catching_up"`
	} `json:"sync_info"`
}

// ChainID reads the network name from the node status.
func (c *Client) ChainID(ctx context.Context) (string, error) {
	var out statusResult
	if err := c.Call(ctx, &out, "status"); err != nil {
		return "", err
	}
	return out.NodeInfo.Network, nil
}

func mapCallError(method string, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return clierr.Wrap(clierr.CodeRPCConnectionFailed, "node call "+method, err)
	}
	var httpErr gethrpc.HTTPError
	if errors.As(err, &httpErr) {
		return clierr.Wrap(clierr.CodeQueryFailed, "node call "+method+" (status "+strconv.Itoa(httpErr.StatusCode)+")", err)
	}
	return clierr.Wrap(clierr.CodeQueryFailed, "node call "+method, err)
}
