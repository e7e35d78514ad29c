package handlers

import (
	"time"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/args"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/dispatch"
	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/registry"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/signing"
)

// expiration reads an optional --expiration RFC 3339 timestamp, which must
// lie in the future.
func expiration(p args.Parser, tokens []string) (string, []int, error) {
	flag, err := p.ExtractFlag(tokens, "expiration")
	if err != nil || !flag.Found {
		return "", nil, err
	}
	t, err := time.Parse(time.RFC3339, flag.Value)
	if err != nil {
		return "", nil, clierr.Newf(p.Code, "invalid expiration %q: expected an RFC 3339 timestamp like 2030-01-02T15:04:05Z", flag.Value)
	}
	if !t.After(now()) {
		return "", nil, clierr.Newf(p.Code, "invalid expiration %q: must be in the future", flag.Value)
	}
	return t.UTC().Format(time.RFC3339), flag.Consumed, nil
}

func feegrantTxs() registry.Module[dispatch.TxHandler] {
	return registry.Module[dispatch.TxHandler]{
		Name:        "feegrant",
		Description: "Fee allowances",
		Subcommands: []registry.Subcommand{
			{Name: "grant", Description: "Let a grantee pay fees from the signer's account", Usage: "<grantee-address> [--spend-limit amount] [--expiration RFC3339]"},
			{Name: "revoke", Description: "Revoke a fee allowance", Usage: "<grantee-address>"},
		},
		Handler: feegrantTx,
	}
}

func feegrantTx(env dispatch.Env, sub string, tokens []string, sender string) (dispatch.TxPlan, error) {
	p := args.Tx
	switch sub {
	case "grant":
		limit, err := p.ExtractFlag(tokens, "spend-limit")
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		expires, expiresIdx, err := expiration(p, tokens)
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		pos := args.FilterConsumed(tokens, limit.Consumed, expiresIdx)
		if err := p.Require(pos, 1, []string{"grantee-address"}, "feegrant grant"); err != nil {
			return dispatch.TxPlan{}, err
		}
		grantee, err := p.Address("grantee-address", pos[0], env.AddressPrefix)
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		allowance := map[string]any{"@type": "/cosmos.feegrant.v1beta1.BasicAllowance"}
		if limit.Found {
			coins, err := p.Amounts("spend-limit", limit.Value)
			if err != nil {
				return dispatch.TxPlan{}, err
			}
			allowance["spend_limit"] = coins
		}
		if expires != "" {
			allowance["expiration"] = expires
		}
		return plan(signing.NewMsg("/cosmos.feegrant.v1beta1.MsgGrantAllowance", map[string]any{
			"granter":   sender,
			"grantee":   grantee,
			"allowance": allowance,
		})), nil
	case "revoke":
		if err := p.Require(tokens, 1, []string{"grantee-address"}, "feegrant revoke"); err != nil {
			return dispatch.TxPlan{}, err
		}
		grantee, err := p.Address("grantee-address", tokens[0], env.AddressPrefix)
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmos.feegrant.v1beta1.MsgRevokeAllowance", map[string]any{
			"granter": sender,
			"grantee": grantee,
		})), nil
	}
	return dispatch.TxPlan{}, unhandled(registry.KindTx, "feegrant", sub)
}

func authzTxs() registry.Module[dispatch.TxHandler] {
	return registry.Module[dispatch.TxHandler]{
		Name:        "authz",
		Description: "Generic message authorizations",
		Subcommands: []registry.Subcommand{
			{Name: "grant", Description: "Authorize a grantee to send one message type for the signer", Usage: "<grantee-address> <msg-type-url> [--expiration RFC3339]"},
			{Name: "revoke", Description: "Revoke an authorization", Usage: "<grantee-address> <msg-type-url>"},
		},
		Handler: authzTx,
	}
}

func authzTx(env dispatch.Env, sub string, tokens []string, sender string) (dispatch.TxPlan, error) {
	p := args.Tx
	expires, expiresIdx := "", []int(nil)
	if sub == "grant" {
		var err error
		if expires, expiresIdx, err = expiration(p, tokens); err != nil {
			return dispatch.TxPlan{}, err
		}
	}
	pos := args.FilterConsumed(tokens, expiresIdx)
	if err := p.Require(pos, 2, []string{"grantee-address", "msg-type-url"}, "authz "+sub); err != nil {
		return dispatch.TxPlan{}, err
	}
	grantee, err := p.Address("grantee-address", pos[0], env.AddressPrefix)
	if err != nil {
		return dispatch.TxPlan{}, err
	}
	typeURL, err := msgTypeURL(p, pos[1])
	if err != nil {
		return dispatch.TxPlan{}, err
	}

	switch sub {
	case "grant":
		grant := map[string]any{
			"authorization": map[string]any{
				"@type": "/cosmos.authz.v1beta1.GenericAuthorization",
				"msg":   typeURL,
			},
		}
		if expires != "" {
			grant["expiration"] = expires
		}
		return plan(signing.NewMsg("/cosmos.authz.v1beta1.MsgGrant", map[string]any{
			"granter": sender,
			"grantee": grantee,
			"grant":   grant,
		})), nil
	case "revoke":
		return plan(signing.NewMsg("/cosmos.authz.v1beta1.MsgRevoke", map[string]any{
			"granter":      sender,
			"grantee":      grantee,
			"msg_type_url": typeURL,
		})), nil
	}
	return dispatch.TxPlan{}, unhandled(registry.KindTx, "authz", sub)
}
