// Package signing submits transactions through a signing gateway. The
// gateway encodes, signs and broadcasts; this client only proves which
// account is asking by signing the request body with the wallet key.
package signing

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/args"
	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/httpx"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/wallet"
)

const (
	HeaderSignature = "X-Manifest-Signature"
	HeaderPubKey    = "X-Manifest-Pubkey"

	broadcastPath = "/v1/txs"
)

// Msg is a proto-JSON encoded SDK message; the "@type" key holds its type URL.
type Msg map[string]any

func NewMsg(typeURL string, fields map[string]any) Msg {
	m := Msg{"@type": typeURL}
	for k, v := range fields {
		m[k] = v
	}
	return m
}

func (m Msg) TypeURL() string {
	s, _ := m["@type"].(string)
	return s
}

// Fee selects automatic simulation or a fixed fee amount.
type Fee struct {
	Auto          bool
	Amount        []args.Coin
	GasLimit      uint64
	GasAdjustment float64
	Granter       string
}

func (f Fee) MarshalJSON() ([]byte, error) {
	if f.Auto || len(f.Amount) == 0 {
		return json.Marshal(struct {
			Mode          string  `json:"mode"`
			GasAdjustment float64 `json:"gasAdjustment,omitempty"`
			Granter       string  `json:"granter,omitempty"`
		}{Mode: "auto", GasAdjustment: f.GasAdjustment, Granter: f.Granter})
	}
	gas := ""
	if f.GasLimit > 0 {
		gas = strconv.FormatUint(f.GasLimit, 10)
	}
	return json.Marshal(struct {
		Mode    string      `json:"mode"`
		Amount  []args.Coin `json:"amount"`
		Gas     string      `json:"gas,omitempty"`
		Granter string      `json:"granter,omitempty"`
	}{Mode: "fixed", Amount: f.Amount, Gas: gas, Granter: f.Granter})
}

type broadcastRequest struct {
	ChainID   string `json:"chainId"`
	Signer    string `json:"signer"`
	PubKey    string `json:"pubKey"`
	Messages  []Msg  `json:"messages"`
	Fee       Fee    `json:"fee"`
	Memo      string `json:"memo,omitempty"`
	Mode      string `json:"broadcastMode"`
	Timestamp int64  `json:"timestamp"`
}

// Result is the broadcast outcome reported by the gateway.
type Result struct {
	TxHash    string          `json:"txhash"`
	Code      uint32          `json:"code"`
	Codespace string          `json:"codespace,omitempty"`
	Height    string          `json:"height"`
	RawLog    string          `json:"raw_log,omitempty"`
	GasUsed   string          `json:"gas_used,omitempty"`
	GasWanted string          `json:"gas_wanted,omitempty"`
	Events    json.RawMessage `json:"events,omitempty"`
}

type broadcastResponse struct {
	TxResponse Result `json:"tx_response"`
}

type Client struct {
	http    *httpx.Client
	baseURL string
	token   string
	chainID string
	now     func() time.Time
}

func New(httpClient *httpx.Client, baseURL, token, chainID string) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		chainID: chainID,
		now:     time.Now,
	}
}

// SignAndBroadcast sends msgs for signer. A transaction rejected at CheckTx
// fails with TX_FAILED, or INSUFFICIENT_FUNDS when the log says so, and the
// returned error carries the gateway's code and log as details.
func (c *Client) SignAndBroadcast(ctx context.Context, signer wallet.Signer, msgs []Msg, fee Fee, memo string) (Result, error) {
	if c.baseURL == "" {
		return Result{}, clierr.New(clierr.CodeConfigInvalid, "signer url is not configured; set signer.url or MANIFEST_SIGNER_URL")
	}
	if len(msgs) == 0 {
		return Result{}, clierr.New(clierr.CodeTxFailed, "transaction has no messages")
	}
	body, err := json.Marshal(broadcastRequest{
		ChainID:   c.chainID,
		Signer:    signer.Address(),
		PubKey:    base64.StdEncoding.EncodeToString(signer.PubKey()),
		Messages:  msgs,
		Fee:       fee,
		Memo:      memo,
		Mode:      "sync",
		Timestamp: c.now().UTC().Unix(),
	})
	if err != nil {
		return Result{}, clierr.Wrap(clierr.CodeTxFailed, "encode broadcast request", err)
	}
	digest := sha256.Sum256(body)
	sig, err := signer.Sign(digest[:])
	if err != nil {
		return Result{}, err
	}

	headers := map[string]string{
		HeaderSignature: hex.EncodeToString(sig),
		HeaderPubKey:    hex.EncodeToString(signer.PubKey()),
	}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}

	var resp broadcastResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+broadcastPath, body, headers, &resp); err != nil {
		return Result{}, err
	}
	res := resp.TxResponse
	if res.TxHash == "" {
		return Result{}, clierr.New(clierr.CodeTxFailed, "signing gateway returned no transaction hash")
	}
	if res.Code != 0 {
		return res, rejected(res)
	}
	return res, nil
}

func rejected(res Result) error {
	code := clierr.CodeTxFailed
	if strings.Contains(strings.ToLower(res.RawLog), "insufficient funds") {
		code = clierr.CodeInsufficientFunds
	}
	return clierr.WithDetails(code, "transaction rejected: "+res.RawLog, map[string]any{
		"transactionHash": res.TxHash,
		"code":            res.Code,
		"codespace":       res.Codespace,
		"rawLog":          res.RawLog,
	})
}
