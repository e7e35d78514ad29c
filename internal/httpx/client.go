package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/version"
)

const maxErrorBody = 512

// Client performs single JSON round trips. Retrying is left to the caller so
// that every attempt passes through the rate limiter.
type Client struct {
	httpClient *http.Client
	userAgent  string
	failCode   clierr.Code
}

// New returns a client whose non-2xx responses fail with failCode.
// Transport failures always carry RPC_CONNECTION_FAILED.
func New(timeout time.Duration, failCode clierr.Code) *Client {
	if failCode == "" {
		failCode = clierr.CodeQueryFailed
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  version.CLIName + "/" + version.CLIVersion,
		failCode:   failCode,
	}
}

func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) (http.Header, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, mapNetError(err)
	}
	buf, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp.Header, clierr.Wrap(clierr.CodeRPCConnectionFailed, "read response body", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.Header, c.statusError(resp.StatusCode, buf)
	}

	if out == nil {
		return resp.Header, nil
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return resp.Header, clierr.New(c.failCode, "remote returned empty response")
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return resp.Header, clierr.Wrap(c.failCode, "decode response JSON", err)
	}
	return resp.Header, nil
}

func DoBodyJSON(ctx context.Context, c *Client, method, url string, body []byte, headers map[string]string, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeConfigInvalid, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.DoJSON(ctx, req, out)
}

// statusError keeps the numeric status and its text in the message so
// transient failures such as 503 Service Unavailable stay recognizable.
func (c *Client) statusError(status int, body []byte) error {
	msg := fmt.Sprintf("remote returned status %d (%s)", status, strings.ToLower(http.StatusText(status)))
	if detail := errorDetail(body); detail != "" {
		msg += ": " + detail
	}
	code := c.failCode
	if strings.Contains(strings.ToLower(msg), "insufficient funds") {
		code = clierr.CodeInsufficientFunds
	}
	return clierr.New(code, msg)
}

// errorDetail extracts the message field that gRPC gateways and most JSON
// APIs return, falling back to a truncated raw body.
func errorDetail(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if len(trimmed) > maxErrorBody {
		trimmed = trimmed[:maxErrorBody]
	}
	return string(trimmed)
}

func mapNetError(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return clierr.Wrap(clierr.CodeRPCConnectionFailed, "request timeout", err)
	}
	return clierr.Wrap(clierr.CodeRPCConnectionFailed, "connection failed", err)
}
