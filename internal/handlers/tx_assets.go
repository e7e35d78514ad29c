package handlers

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/args"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/dispatch"
	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/registry"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/signing"
)

const (
	defaultIBCTimeout = 10 * time.Minute
	maxIBCTimeout     = 7 * 24 * time.Hour
	maxWasmLabel      = 128
)

var subdenomPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._-]{0,43}$`)

func tokenfactoryTxs() registry.Module[dispatch.TxHandler] {
	return registry.Module[dispatch.TxHandler]{
		Name:        "tokenfactory",
		Description: "Create and administer factory denominations",
		Subcommands: []registry.Subcommand{
			{Name: "create-denom", Description: "Create factory/<signer>/<subdenom>", Usage: "<subdenom>"},
			{Name: "mint", Description: "Mint a factory denom the signer administers", Usage: "<amount> [recipient-address]"},
			{Name: "burn", Description: "Burn a factory denom the signer administers", Usage: "<amount> [from-address]"},
			{Name: "change-admin", Description: "Hand a factory denom to a new admin", Usage: "<denom> <new-admin-address>"},
		},
		Handler: tokenfactoryTx,
	}
}

func tokenfactoryTx(env dispatch.Env, sub string, tokens []string, sender string) (dispatch.TxPlan, error) {
	p := args.Tx
	switch sub {
	case "create-denom":
		if err := p.Require(tokens, 1, []string{"subdenom"}, "tokenfactory create-denom"); err != nil {
			return dispatch.TxPlan{}, err
		}
		subdenom := strings.TrimSpace(tokens[0])
		if !subdenomPattern.MatchString(subdenom) {
			return dispatch.TxPlan{}, clierr.Newf(p.Code, "invalid subdenom %q: start with a letter, then up to 43 letters, digits, '.', '_' or '-'", tokens[0])
		}
		return plan(signing.NewMsg("/osmosis.tokenfactory.v1beta1.MsgCreateDenom", map[string]any{
			"sender":   sender,
			"subdenom": subdenom,
		})), nil
	case "mint", "burn":
		if err := p.Require(tokens, 1, []string{"amount"}, "tokenfactory "+sub); err != nil {
			return dispatch.TxPlan{}, err
		}
		coin, err := p.Amount("amount", tokens[0])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		target := sender
		if len(tokens) > 1 {
			if target, err = p.Address("target-address", tokens[1], env.AddressPrefix); err != nil {
				return dispatch.TxPlan{}, err
			}
		}
		if sub == "mint" {
			return plan(signing.NewMsg("/osmosis.tokenfactory.v1beta1.MsgMint", map[string]any{
				"sender":          sender,
				"amount":          coin,
				"mint_to_address": target,
			})), nil
		}
		return plan(signing.NewMsg("/osmosis.tokenfactory.v1beta1.MsgBurn", map[string]any{
			"sender":            sender,
			"amount":            coin,
			"burn_from_address": target,
		})), nil
	case "change-admin":
		if err := p.Require(tokens, 2, []string{"denom", "new-admin-address"}, "tokenfactory change-admin"); err != nil {
			return dispatch.TxPlan{}, err
		}
		if _, _, err := factoryDenom(p, env, tokens[0]); err != nil {
			return dispatch.TxPlan{}, err
		}
		admin, err := p.Address("new-admin-address", tokens[1], env.AddressPrefix)
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/osmosis.tokenfactory.v1beta1.MsgChangeAdmin", map[string]any{
			"sender":    sender,
			"denom":     strings.TrimSpace(tokens[0]),
			"new_admin": admin,
		})), nil
	}
	return dispatch.TxPlan{}, unhandled(registry.KindTx, "tokenfactory", sub)
}

func manifestTxs() registry.Module[dispatch.TxHandler] {
	return registry.Module[dispatch.TxHandler]{
		Name:        "manifest",
		Description: "Authority payouts and burns",
		Subcommands: []registry.Subcommand{
			{Name: "payout", Description: "Mint and pay coins to recipients (authority only)", Usage: "<address:amount> [address:amount...]"},
			{Name: "burn-held-balance", Description: "Burn coins held by the authority", Usage: "<amount[,amount...]>"},
		},
		Handler: manifestTx,
	}
}

func manifestTx(env dispatch.Env, sub string, tokens []string, sender string) (dispatch.TxPlan, error) {
	p := args.Tx
	switch sub {
	case "payout":
		if err := p.Require(tokens, 1, []string{"address:amount"}, "manifest payout"); err != nil {
			return dispatch.TxPlan{}, err
		}
		pairs := make([]map[string]any, 0, len(tokens))
		for _, tok := range tokens {
			addrRaw, amountRaw, err := p.ColonPair("address:amount", tok)
			if err != nil {
				return dispatch.TxPlan{}, err
			}
			addr, err := p.Address("address", addrRaw, env.AddressPrefix)
			if err != nil {
				return dispatch.TxPlan{}, err
			}
			coin, err := p.Amount("amount", amountRaw)
			if err != nil {
				return dispatch.TxPlan{}, err
			}
			pairs = append(pairs, map[string]any{"address": addr, "coin": coin})
		}
		return plan(signing.NewMsg("/liftedinit.manifest.v1.MsgPayout", map[string]any{
			"authority":    sender,
			"payout_pairs": pairs,
		})), nil
	case "burn-held-balance":
		if err := p.Require(tokens, 1, []string{"amount"}, "manifest burn-held-balance"); err != nil {
			return dispatch.TxPlan{}, err
		}
		coins, err := p.Amounts("amount", tokens[0])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/liftedinit.manifest.v1.MsgBurnHeldBalance", map[string]any{
			"authority":  sender,
			"burn_coins": coins,
		})), nil
	}
	return dispatch.TxPlan{}, unhandled(registry.KindTx, "manifest", sub)
}

func ibcTransferTxs() registry.Module[dispatch.TxHandler] {
	return registry.Module[dispatch.TxHandler]{
		Name:        "ibc-transfer",
		Description: "ICS-20 cross-chain transfers",
		Subcommands: []registry.Subcommand{
			{Name: "transfer", Description: "Send coins over an IBC channel", Usage: "<channel-id> <receiver> <amount> [--timeout-seconds n] [--packet-memo text]"},
		},
		Handler: ibcTransferTx,
	}
}

func ibcTransferTx(_ dispatch.Env, sub string, tokens []string, sender string) (dispatch.TxPlan, error) {
	if sub != "transfer" {
		return dispatch.TxPlan{}, unhandled(registry.KindTx, "ibc-transfer", sub)
	}
	p := args.Tx
	timeoutFlag, err := p.ExtractFlag(tokens, "timeout-seconds")
	if err != nil {
		return dispatch.TxPlan{}, err
	}
	memoFlag, err := p.ExtractFlag(tokens, "packet-memo")
	if err != nil {
		return dispatch.TxPlan{}, err
	}
	pos := args.FilterConsumed(tokens, timeoutFlag.Consumed, memoFlag.Consumed)
	if err := p.Require(pos, 3, []string{"channel-id", "receiver", "amount"}, "ibc-transfer transfer"); err != nil {
		return dispatch.TxPlan{}, err
	}
	channel, err := channelID(p, pos[0])
	if err != nil {
		return dispatch.TxPlan{}, err
	}
	// The receiver lives on another chain, so only its presence is checked.
	receiver, err := p.NonEmpty("receiver", pos[1])
	if err != nil {
		return dispatch.TxPlan{}, err
	}
	coin, err := p.Amount("amount", pos[2])
	if err != nil {
		return dispatch.TxPlan{}, err
	}
	timeout := defaultIBCTimeout
	if timeoutFlag.Found {
		secs, err := p.Uint("timeout-seconds", timeoutFlag.Value)
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		timeout = time.Duration(secs) * time.Second
		if secs == 0 || timeout > maxIBCTimeout {
			return dispatch.TxPlan{}, clierr.Newf(p.Code, "invalid timeout-seconds %d: must be between 1 and %d", secs, int64(maxIBCTimeout/time.Second))
		}
	}
	fields := map[string]any{
		"source_port":       "transfer",
		"source_channel":    channel,
		"token":             coin,
		"sender":            sender,
		"receiver":          receiver,
		"timeout_height":    map[string]any{"revision_number": "0", "revision_height": "0"},
		"timeout_timestamp": strconv.FormatInt(now().Add(timeout).UnixNano(), 10),
	}
	if memoFlag.Found {
		fields["memo"] = memoFlag.Value
	}
	return plan(signing.NewMsg("/ibc.applications.transfer.v1.MsgTransfer", fields)), nil
}

func wasmTxs() registry.Module[dispatch.TxHandler] {
	return registry.Module[dispatch.TxHandler]{
		Name:        "wasm",
		Description: "CosmWasm contract execution and administration",
		Subcommands: []registry.Subcommand{
			{Name: "execute", Description: "Execute a contract message", Usage: "<contract-address> <msg-json> [--funds amount[,amount...]]"},
			{Name: "instantiate", Description: "Instantiate a contract from a code id", Usage: "<code-id> <label> <msg-json> [--admin address] [--funds amount[,amount...]]"},
			{Name: "migrate", Description: "Migrate a contract to a new code id", Usage: "<contract-address> <code-id> <msg-json>"},
			{Name: "update-admin", Description: "Change a contract admin", Usage: "<contract-address> <new-admin-address>"},
			{Name: "clear-admin", Description: "Remove a contract admin", Usage: "<contract-address>"},
		},
		Handler: wasmTx,
	}
}

func wasmTx(env dispatch.Env, sub string, tokens []string, sender string) (dispatch.TxPlan, error) {
	p := args.Tx
	fundsFlag, err := p.ExtractFlag(tokens, "funds")
	if err != nil {
		return dispatch.TxPlan{}, err
	}
	adminFlag, err := p.ExtractFlag(tokens, "admin")
	if err != nil {
		return dispatch.TxPlan{}, err
	}
	pos := args.FilterConsumed(tokens, fundsFlag.Consumed, adminFlag.Consumed)
	funds := []args.Coin{}
	if fundsFlag.Found {
		if funds, err = p.Amounts("funds", fundsFlag.Value); err != nil {
			return dispatch.TxPlan{}, err
		}
	}

	switch sub {
	case "execute":
		if err := p.Require(pos, 2, []string{"contract-address", "msg-json"}, "wasm execute"); err != nil {
			return dispatch.TxPlan{}, err
		}
		contract, err := p.Address("contract-address", pos[0], env.AddressPrefix)
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		msg, err := p.JSONObject("msg-json", pos[1])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmwasm.wasm.v1.MsgExecuteContract", map[string]any{
			"sender":   sender,
			"contract": contract,
			"msg":      msg,
			"funds":    funds,
		})), nil
	case "instantiate":
		if err := p.Require(pos, 3, []string{"code-id", "label", "msg-json"}, "wasm instantiate"); err != nil {
			return dispatch.TxPlan{}, err
		}
		codeID, err := p.Uint("code-id", pos[0])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		label, err := p.NonEmpty("label", pos[1])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		if len(label) > maxWasmLabel {
			return dispatch.TxPlan{}, clierr.Newf(p.Code, "invalid label: %d characters exceeds the maximum of %d", len(label), maxWasmLabel)
		}
		msg, err := p.JSONObject("msg-json", pos[2])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		fields := map[string]any{
			"sender":  sender,
			"code_id": uintString(codeID),
			"label":   label,
			"msg":     msg,
			"funds":   funds,
		}
		if adminFlag.Found {
			admin, err := p.Address("admin", adminFlag.Value, env.AddressPrefix)
			if err != nil {
				return dispatch.TxPlan{}, err
			}
			fields["admin"] = admin
		}
		return plan(signing.NewMsg("/cosmwasm.wasm.v1.MsgInstantiateContract", fields)), nil
	case "migrate":
		if err := p.Require(pos, 3, []string{"contract-address", "code-id", "msg-json"}, "wasm migrate"); err != nil {
			return dispatch.TxPlan{}, err
		}
		contract, err := p.Address("contract-address", pos[0], env.AddressPrefix)
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		codeID, err := p.Uint("code-id", pos[1])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		msg, err := p.JSONObject("msg-json", pos[2])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmwasm.wasm.v1.MsgMigrateContract", map[string]any{
			"sender":   sender,
			"contract": contract,
			"code_id":  uintString(codeID),
			"msg":      msg,
		})), nil
	case "update-admin":
		if err := p.Require(pos, 2, []string{"contract-address", "new-admin-address"}, "wasm update-admin"); err != nil {
			return dispatch.TxPlan{}, err
		}
		contract, err := p.Address("contract-address", pos[0], env.AddressPrefix)
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		admin, err := p.Address("new-admin-address", pos[1], env.AddressPrefix)
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmwasm.wasm.v1.MsgUpdateAdmin", map[string]any{
			"sender":    sender,
			"new_admin": admin,
			"contract":  contract,
		})), nil
	case "clear-admin":
		if err := p.Require(pos, 1, []string{"contract-address"}, "wasm clear-admin"); err != nil {
			return dispatch.TxPlan{}, err
		}
		contract, err := p.Address("contract-address", pos[0], env.AddressPrefix)
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmwasm.wasm.v1.MsgClearAdmin", map[string]any{
			"sender":   sender,
			"contract": contract,
		})), nil
	}
	return dispatch.TxPlan{}, unhandled(registry.KindTx, "wasm", sub)
}
