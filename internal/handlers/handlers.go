// Package handlers holds the per-module query and transaction handlers and
// the two tables the dispatcher routes through. Handlers only validate and
// shape requests; every remote call happens in the returned closure.
package handlers

import (
	"context"
	"math/big"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/cosmos/cosmos-sdk/types/bech32"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/args"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/clients"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/dispatch"
	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/registry"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/signing"
)

const (
	paramsTTL   = 10 * time.Minute
	metadataTTL = time.Hour
)

var typeURLPattern = regexp.MustCompile(`^/[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)+$`)

// now is replaced in tests that depend on timeouts derived from the clock.
var now = time.Now

// Queries builds the query-side table.
func Queries() *dispatch.QueryTable {
	return registry.MustNew(registry.KindQuery,
		authQueries(),
		bankQueries(),
		stakingQueries(),
		distributionQueries(),
		govQueries(),
		mintQueries(),
		feegrantQueries(),
		authzQueries(),
		groupQueries(),
		tokenfactoryQueries(),
		manifestQueries(),
		poaQueries(),
		ibcTransferQueries(),
		wasmQueries(),
		chainQueries(),
	)
}

// Txs builds the transaction-side table.
func Txs() *dispatch.TxTable {
	return registry.MustNew(registry.KindTx,
		bankTxs(),
		stakingTxs(),
		distributionTxs(),
		govTxs(),
		feegrantTxs(),
		authzTxs(),
		groupTxs(),
		tokenfactoryTxs(),
		manifestTxs(),
		ibcTransferTxs(),
		wasmTxs(),
	)
}

// rest returns a call that GETs path from the REST gateway.
func rest(path string, params url.Values) dispatch.QueryCall {
	return func(ctx context.Context, c *clients.Clients) (any, error) {
		return c.LCD.GetRaw(ctx, path, params)
	}
}

// node returns a call that invokes a CometBFT JSON-RPC method.
func node(method string, params ...any) dispatch.QueryCall {
	return func(ctx context.Context, c *clients.Clients) (any, error) {
		return c.Comet.CallRaw(ctx, method, params...)
	}
}

// paged strips pagination flags and checks the remaining positional count.
func paged(tokens []string, min int, names []string, context string) (args.Pagination, []string, error) {
	page, rest, err := args.Query.ExtractPagination(tokens)
	if err != nil {
		return args.Pagination{}, nil, err
	}
	if err := args.Query.Require(rest, min, names, context); err != nil {
		return args.Pagination{}, nil, err
	}
	return page, rest, nil
}

func plan(msgs ...signing.Msg) dispatch.TxPlan {
	return dispatch.TxPlan{Msgs: msgs}
}

func uintString(n uint64) string {
	return strconv.FormatUint(n, 10)
}

func valoperPrefix(env dispatch.Env) string {
	return env.AddressPrefix + "valoper"
}

// operatorAddress re-encodes an account address with the validator
// operator prefix; both share the same 20-byte payload.
func operatorAddress(env dispatch.Env, account string) (string, error) {
	_, payload, err := bech32.DecodeAndConvert(account)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInvalidAddress, "decode signer address", err)
	}
	out, err := bech32.ConvertAndEncode(valoperPrefix(env), payload)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInvalidAddress, "encode operator address", err)
	}
	return out, nil
}

// unhandled guards the default branch of a handler switch. The dispatcher
// checks support first, so reaching it means a table and its handler
// disagree.
func unhandled(kind registry.Kind, module, sub string) error {
	code := clierr.CodeUnsupportedQuery
	if kind == registry.KindTx {
		code = clierr.CodeUnsupportedTx
	}
	return clierr.Newf(code, "%s module %q has no handler for %q", kind, module, sub)
}

func invalidTypeURL(p args.Parser, raw string) error {
	return clierr.Newf(p.Code, "invalid msg-type-url %q: expected a message type URL like /cosmos.bank.v1beta1.MsgSend", raw)
}

func invalidGroupID(p args.Parser, raw string) error {
	return clierr.Newf(p.Code, "invalid group-id %q: group ids start at 1", raw)
}

// addCoins merges more into total, summing amounts of the same denom and
// keeping first-seen denom order.
func addCoins(total []args.Coin, more []args.Coin) []args.Coin {
	for _, c := range more {
		amount, _ := new(big.Int).SetString(c.Amount, 10)
		merged := false
		for i := range total {
			if total[i].Denom != c.Denom {
				continue
			}
			sum, _ := new(big.Int).SetString(total[i].Amount, 10)
			total[i].Amount = sum.Add(sum, amount).String()
			merged = true
			break
		}
		if !merged {
			total = append(total, c)
		}
	}
	return total
}
