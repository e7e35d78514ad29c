package handlers

import (
	"context"
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/args"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/clients"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/comet"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/dispatch"
	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/lcd"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/registry"
)

var (
	channelPattern = regexp.MustCompile(`^channel-[0-9]+$`)
	portPattern    = regexp.MustCompile(`^[A-Za-z0-9._+\-#\[\]<>]{2,128}$`)
)

func tokenfactoryQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "tokenfactory",
		Description: "Factory denominations created by accounts",
		Subcommands: []registry.Subcommand{
			{Name: "denoms-from-creator", Description: "Denoms created by an address", Usage: "<creator-address>"},
			{Name: "denom-authority-metadata", Description: "Admin of a factory denom", Usage: "<factory/creator/subdenom>"},
			{Name: "params", Description: "Tokenfactory module parameters", CacheTTL: paramsTTL},
		},
		Handler: tokenfactoryQuery,
	}
}

func tokenfactoryQuery(env dispatch.Env, sub string, tokens []string) (dispatch.QueryCall, error) {
	p := args.Query
	switch sub {
	case "denoms-from-creator":
		if err := p.Require(tokens, 1, []string{"creator-address"}, "tokenfactory denoms-from-creator"); err != nil {
			return nil, err
		}
		creator, err := p.Address("creator-address", tokens[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		return rest("/osmosis/tokenfactory/v1beta1/denoms_from_creator/"+lcd.Seg(creator), nil), nil
	case "denom-authority-metadata":
		if err := p.Require(tokens, 1, []string{"denom"}, "tokenfactory denom-authority-metadata"); err != nil {
			return nil, err
		}
		creator, subdenom, err := factoryDenom(p, env, tokens[0])
		if err != nil {
			return nil, err
		}
		return rest("/osmosis/tokenfactory/v1beta1/denoms/factory/"+lcd.Seg(creator)+"/"+lcd.Seg(subdenom)+"/authority_metadata", nil), nil
	case "params":
		return rest("/osmosis/tokenfactory/v1beta1/params", nil), nil
	}
	return nil, unhandled(registry.KindQuery, "tokenfactory", sub)
}

// factoryDenom splits factory/<creator>/<subdenom>.
func factoryDenom(p args.Parser, env dispatch.Env, raw string) (string, string, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), "/", 3)
	if len(parts) != 3 || parts[0] != "factory" || parts[2] == "" {
		return "", "", clierr.Newf(p.Code, "invalid denom %q: expected factory/<creator-address>/<subdenom>", raw)
	}
	creator, err := p.Address("creator-address", parts[1], env.AddressPrefix)
	if err != nil {
		return "", "", err
	}
	return creator, parts[2], nil
}

func manifestQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "manifest",
		Description: "Manifest module parameters",
		Subcommands: []registry.Subcommand{
			{Name: "params", Description: "Manifest module parameters", CacheTTL: paramsTTL},
		},
		Handler: func(_ dispatch.Env, sub string, _ []string) (dispatch.QueryCall, error) {
			if sub == "params" {
				return rest("/liftedinit/manifest/v1/params", nil), nil
			}
			return nil, unhandled(registry.KindQuery, "manifest", sub)
		},
	}
}

func poaQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "poa",
		Description: "Proof-of-authority validator administration",
		Subcommands: []registry.Subcommand{
			{Name: "pending-validators", Description: "Validators awaiting admin approval"},
			{Name: "consensus-power", Description: "Consensus power of a validator", Usage: "<validator-address>"},
			{Name: "params", Description: "PoA module parameters", CacheTTL: paramsTTL},
		},
		Handler: func(env dispatch.Env, sub string, tokens []string) (dispatch.QueryCall, error) {
			p := args.Query
			switch sub {
			case "pending-validators":
				return rest("/poa/v1/pending_validators", nil), nil
			case "consensus-power":
				if err := p.Require(tokens, 1, []string{"validator-address"}, "poa consensus-power"); err != nil {
					return nil, err
				}
				val, err := p.Address("validator-address", tokens[0], valoperPrefix(env))
				if err != nil {
					return nil, err
				}
				return rest("/poa/v1/consensus_power/"+lcd.Seg(val), nil), nil
			case "params":
				return rest("/poa/v1/params", nil), nil
			}
			return nil, unhandled(registry.KindQuery, "poa", sub)
		},
	}
}

func ibcTransferQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "ibc-transfer",
		Description: "ICS-20 token transfer state",
		Subcommands: []registry.Subcommand{
			{Name: "denom-traces", Description: "All IBC denom traces", Usage: "[--limit n] [--page-key k]"},
			{Name: "denom-trace", Description: "Trace of an IBC denom hash", Usage: "<hash|ibc/hash>", CacheTTL: metadataTTL},
			{Name: "denom-hash", Description: "Hash of a denom trace", Usage: "<port/channel/denom>", CacheTTL: metadataTTL},
			{Name: "escrow-address", Description: "Escrow account of a channel", Usage: "<channel-id> [port-id]", CacheTTL: metadataTTL},
			{Name: "total-escrow", Description: "Total amount of a denom in escrow", Usage: "<denom>"},
			{Name: "params", Description: "Transfer module parameters", CacheTTL: paramsTTL},
		},
		Handler: ibcTransferQuery,
	}
}

func ibcTransferQuery(_ dispatch.Env, sub string, tokens []string) (dispatch.QueryCall, error) {
	p := args.Query
	switch sub {
	case "denom-traces":
		page, _, err := paged(tokens, 0, nil, "ibc-transfer denom-traces")
		if err != nil {
			return nil, err
		}
		return rest("/ibc/apps/transfer/v1/denom_traces", lcd.PageParams(page)), nil
	case "denom-trace":
		if err := p.Require(tokens, 1, []string{"hash"}, "ibc-transfer denom-trace"); err != nil {
			return nil, err
		}
		hash := strings.TrimPrefix(strings.TrimSpace(tokens[0]), "ibc/")
		buf, err := p.HexBytes("hash", hash, 32)
		if err != nil {
			return nil, err
		}
		if len(buf) != 32 {
			return nil, clierr.Newf(p.Code, "invalid hash %q: expected 32 bytes of hex", tokens[0])
		}
		return rest("/ibc/apps/transfer/v1/denom_traces/"+strings.ToUpper(args.BytesToHex(buf)), nil), nil
	case "denom-hash":
		if err := p.Require(tokens, 1, []string{"trace"}, "ibc-transfer denom-hash"); err != nil {
			return nil, err
		}
		trace, err := p.NonEmpty("trace", tokens[0])
		if err != nil {
			return nil, err
		}
		return rest("/ibc/apps/transfer/v1/denom_hashes/"+trace, nil), nil
	case "escrow-address":
		if err := p.Require(tokens, 1, []string{"channel-id"}, "ibc-transfer escrow-address"); err != nil {
			return nil, err
		}
		channel, err := channelID(p, tokens[0])
		if err != nil {
			return nil, err
		}
		port := "transfer"
		if len(tokens) > 1 {
			if !portPattern.MatchString(tokens[1]) {
				return nil, clierr.Newf(p.Code, "invalid port-id %q", tokens[1])
			}
			port = tokens[1]
		}
		return rest("/ibc/apps/transfer/v1/channels/"+channel+"/ports/"+lcd.Seg(port)+"/escrow_address", nil), nil
	case "total-escrow":
		if err := p.Require(tokens, 1, []string{"denom"}, "ibc-transfer total-escrow"); err != nil {
			return nil, err
		}
		denom, err := p.NonEmpty("denom", tokens[0])
		if err != nil {
			return nil, err
		}
		return rest("/ibc/apps/transfer/v1/denoms/"+lcd.Seg(denom)+"/total_escrow", nil), nil
	case "params":
		return rest("/ibc/apps/transfer/v1/params", nil), nil
	}
	return nil, unhandled(registry.KindQuery, "ibc-transfer", sub)
}

func channelID(p args.Parser, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if !channelPattern.MatchString(v) {
		return "", clierr.Newf(p.Code, "invalid channel-id %q: expected channel-<n>", raw)
	}
	return v, nil
}

func wasmQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "wasm",
		Description: "CosmWasm contracts and code",
		Subcommands: []registry.Subcommand{
			{Name: "contract-info", Description: "Metadata of a contract", Usage: "<contract-address>"},
			{Name: "contract-history", Description: "Code migrations of a contract", Usage: "<contract-address> [--limit n] [--page-key k]"},
			{Name: "smart", Description: "Smart query against a contract", Usage: "<contract-address> <query-json>"},
			{Name: "raw", Description: "Raw storage read from a contract", Usage: "<contract-address> <hex-key>"},
			{Name: "contracts-by-code", Description: "Contracts instantiated from a code id", Usage: "<code-id> [--limit n] [--page-key k]"},
			{Name: "contracts-by-creator", Description: "Contracts created by an address", Usage: "<creator-address> [--limit n] [--page-key k]"},
			{Name: "codes", Description: "Uploaded code", Usage: "[--limit n] [--page-key k]"},
			{Name: "params", Description: "Wasm module parameters", CacheTTL: paramsTTL},
		},
		Handler: wasmQuery,
	}
}

func wasmQuery(env dispatch.Env, sub string, tokens []string) (dispatch.QueryCall, error) {
	p := args.Query
	switch sub {
	case "contract-info", "contract-history":
		page, pos, err := paged(tokens, 1, []string{"contract-address"}, "wasm "+sub)
		if err != nil {
			return nil, err
		}
		contract, err := p.Address("contract-address", pos[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		if sub == "contract-history" {
			return rest("/cosmwasm/wasm/v1/contract/"+lcd.Seg(contract)+"/history", lcd.PageParams(page)), nil
		}
		return rest("/cosmwasm/wasm/v1/contract/"+lcd.Seg(contract), nil), nil
	case "smart":
		if err := p.Require(tokens, 2, []string{"contract-address", "query-json"}, "wasm smart"); err != nil {
			return nil, err
		}
		contract, err := p.Address("contract-address", tokens[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		query, err := p.JSONObject("query-json", tokens[1])
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(query)
		return rest("/cosmwasm/wasm/v1/contract/"+lcd.Seg(contract)+"/smart/"+lcd.Seg(encoded), nil), nil
	case "raw":
		if err := p.Require(tokens, 2, []string{"contract-address", "hex-key"}, "wasm raw"); err != nil {
			return nil, err
		}
		contract, err := p.Address("contract-address", tokens[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		key, err := p.HexBytes("hex-key", tokens[1], 0)
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(key)
		return rest("/cosmwasm/wasm/v1/contract/"+lcd.Seg(contract)+"/raw/"+lcd.Seg(encoded), nil), nil
	case "contracts-by-code":
		page, pos, err := paged(tokens, 1, []string{"code-id"}, "wasm contracts-by-code")
		if err != nil {
			return nil, err
		}
		codeID, err := p.Uint("code-id", pos[0])
		if err != nil {
			return nil, err
		}
		return rest("/cosmwasm/wasm/v1/code/"+uintString(codeID)+"/contracts", lcd.PageParams(page)), nil
	case "contracts-by-creator":
		page, pos, err := paged(tokens, 1, []string{"creator-address"}, "wasm contracts-by-creator")
		if err != nil {
			return nil, err
		}
		creator, err := p.Address("creator-address", pos[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		return rest("/cosmwasm/wasm/v1/contracts/creator/"+lcd.Seg(creator), lcd.PageParams(page)), nil
	case "codes":
		page, _, err := paged(tokens, 0, nil, "wasm codes")
		if err != nil {
			return nil, err
		}
		return rest("/cosmwasm/wasm/v1/code", lcd.PageParams(page)), nil
	case "params":
		return rest("/cosmwasm/wasm/v1/codes/params", nil), nil
	}
	return nil, unhandled(registry.KindQuery, "wasm", sub)
}

func chainQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "chain",
		Description: "Node status, blocks and transactions",
		Subcommands: []registry.Subcommand{
			{Name: "status", Description: "Node info and latest block"},
			{Name: "chain-id", Description: "Chain id reported by the node, checked against the configured one"},
			{Name: "health", Description: "Node liveness check"},
			{Name: "abci-info", Description: "Application name, version and last block"},
			{Name: "net-info", Description: "Peer connections of the node"},
			{Name: "block", Description: "Block at a height, latest when omitted", Usage: "[height]"},
			{Name: "block-results", Description: "Execution results of a block", Usage: "[height]"},
			{Name: "validators", Description: "Consensus validator set at a height", Usage: "[height]"},
			{Name: "tx", Description: "Committed transaction by hash", Usage: "<tx-hash>"},
		},
		Handler: chainQuery,
	}
}

func chainQuery(_ dispatch.Env, sub string, tokens []string) (dispatch.QueryCall, error) {
	p := args.Query
	switch sub {
	case "status":
		return node("status"), nil
	case "chain-id":
		return func(ctx context.Context, c *clients.Clients) (any, error) {
			reported, err := c.Comet.ChainID(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"chainId":           reported,
				"configuredChainId": c.Identity.ChainID,
				"matches":           reported == c.Identity.ChainID,
			}, nil
		}, nil
	case "health":
		return node("health"), nil
	case "abci-info":
		return node("abci_info"), nil
	case "net-info":
		return node("net_info"), nil
	case "block", "block-results", "validators":
		var height int64
		if len(tokens) > 0 {
			h, err := p.Int("height", tokens[0])
			if err != nil {
				return nil, err
			}
			if h < 1 {
				return nil, clierr.Newf(p.Code, "invalid height %d: heights start at 1", h)
			}
			height = h
		}
		method := strings.ReplaceAll(sub, "-", "_")
		return node(method, comet.Height(height)), nil
	case "tx":
		if err := p.Require(tokens, 1, []string{"tx-hash"}, "chain tx"); err != nil {
			return nil, err
		}
		buf, err := p.HexBytes("tx-hash", tokens[0], 32)
		if err != nil {
			return nil, err
		}
		if len(buf) != 32 {
			return nil, clierr.Newf(p.Code, "invalid tx-hash %q: expected 32 bytes of hex", tokens[0])
		}
		hash := strings.ToUpper(args.BytesToHex(buf))
		return func(ctx context.Context, c *clients.Clients) (any, error) {
			return c.LCD.GetTx(ctx, hash)
		}, nil
	}
	return nil, unhandled(registry.KindQuery, "chain", sub)
}
