package handlers

import (
	"net/url"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/args"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/dispatch"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/lcd"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/registry"
)

func authQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "auth",
		Description: "Accounts and module accounts",
		Subcommands: []registry.Subcommand{
			{Name: "account", Description: "Account number, sequence and public key of an address", Usage: "<address>"},
			{Name: "accounts", Description: "All accounts on chain", Usage: "[--limit n] [--page-key k]"},
			{Name: "module-accounts", Description: "All module accounts", CacheTTL: metadataTTL},
			{Name: "module-account", Description: "One module account by name", Usage: "<module-name>", CacheTTL: metadataTTL},
			{Name: "bech32-prefix", Description: "Chain bech32 address prefix", CacheTTL: metadataTTL},
			{Name: "params", Description: "Auth module parameters", CacheTTL: paramsTTL},
		},
		Handler: authQuery,
	}
}

func authQuery(env dispatch.Env, sub string, tokens []string) (dispatch.QueryCall, error) {
	p := args.Query
	switch sub {
	case "account":
		if err := p.Require(tokens, 1, []string{"address"}, "auth account"); err != nil {
			return nil, err
		}
		addr, err := p.Address("address", tokens[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/auth/v1beta1/accounts/"+lcd.Seg(addr), nil), nil
	case "accounts":
		page, _, err := paged(tokens, 0, nil, "auth accounts")
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/auth/v1beta1/accounts", lcd.PageParams(page)), nil
	case "module-accounts":
		return rest("/cosmos/auth/v1beta1/module_accounts", nil), nil
	case "module-account":
		if err := p.Require(tokens, 1, []string{"module-name"}, "auth module-account"); err != nil {
			return nil, err
		}
		name, err := p.NonEmpty("module-name", tokens[0])
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/auth/v1beta1/module_accounts/"+lcd.Seg(name), nil), nil
	case "bech32-prefix":
		return rest("/cosmos/auth/v1beta1/bech32", nil), nil
	case "params":
		return rest("/cosmos/auth/v1beta1/params", nil), nil
	}
	return nil, unhandled(registry.KindQuery, "auth", sub)
}

func bankQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "bank",
		Description: "Balances, supply and denomination metadata",
		Subcommands: []registry.Subcommand{
			{Name: "balance", Description: "Balance of one denom for an address", Usage: "<address> <denom>"},
			{Name: "balances", Description: "All balances of an address", Usage: "<address> [--limit n] [--page-key k]"},
			{Name: "spendable-balances", Description: "Spendable balances of an address", Usage: "<address> [--limit n] [--page-key k]"},
			{Name: "total-supply", Description: "Total supply of every denom", Usage: "[--limit n] [--page-key k]"},
			{Name: "total", Description: "Alias of total-supply", Usage: "[--limit n] [--page-key k]"},
			{Name: "supply-of", Description: "Total supply of one denom", Usage: "<denom>"},
			{Name: "denom-metadata", Description: "Metadata of one denom", Usage: "<denom>", CacheTTL: metadataTTL},
			{Name: "denoms-metadata", Description: "Metadata of every registered denom", Usage: "[--limit n] [--page-key k]", CacheTTL: metadataTTL},
			{Name: "denom-owners", Description: "Holders of a denom", Usage: "<denom> [--limit n] [--page-key k]"},
			{Name: "send-enabled", Description: "Send-enabled flags for denoms", Usage: "[denom...]"},
			{Name: "params", Description: "Bank module parameters", CacheTTL: paramsTTL},
		},
		Handler: bankQuery,
	}
}

func bankQuery(env dispatch.Env, sub string, tokens []string) (dispatch.QueryCall, error) {
	p := args.Query
	switch sub {
	case "balance":
		if err := p.Require(tokens, 2, []string{"address", "denom"}, "bank balance"); err != nil {
			return nil, err
		}
		addr, err := p.Address("address", tokens[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		denom, err := p.NonEmpty("denom", tokens[1])
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/bank/v1beta1/balances/"+lcd.Seg(addr)+"/by_denom", url.Values{"denom": {denom}}), nil
	case "balances", "spendable-balances":
		page, pos, err := paged(tokens, 1, []string{"address"}, "bank "+sub)
		if err != nil {
			return nil, err
		}
		addr, err := p.Address("address", pos[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		base := "/cosmos/bank/v1beta1/balances/"
		if sub == "spendable-balances" {
			base = "/cosmos/bank/v1beta1/spendable_balances/"
		}
		return rest(base+lcd.Seg(addr), lcd.PageParams(page)), nil
	case "total-supply", "total":
		page, _, err := paged(tokens, 0, nil, "bank "+sub)
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/bank/v1beta1/supply", lcd.PageParams(page)), nil
	case "supply-of", "denom-metadata":
		if err := p.Require(tokens, 1, []string{"denom"}, "bank "+sub); err != nil {
			return nil, err
		}
		denom, err := p.NonEmpty("denom", tokens[0])
		if err != nil {
			return nil, err
		}
		if sub == "supply-of" {
			return rest("/cosmos/bank/v1beta1/supply/by_denom", url.Values{"denom": {denom}}), nil
		}
		return rest("/cosmos/bank/v1beta1/denoms_metadata_by_query_string", url.Values{"denom": {denom}}), nil
	case "denoms-metadata":
		page, _, err := paged(tokens, 0, nil, "bank denoms-metadata")
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/bank/v1beta1/denoms_metadata", lcd.PageParams(page)), nil
	case "denom-owners":
		page, pos, err := paged(tokens, 1, []string{"denom"}, "bank denom-owners")
		if err != nil {
			return nil, err
		}
		denom, err := p.NonEmpty("denom", pos[0])
		if err != nil {
			return nil, err
		}
		params := lcd.PageParams(page)
		params.Set("denom", denom)
		return rest("/cosmos/bank/v1beta1/denom_owners_by_query", params), nil
	case "send-enabled":
		params := url.Values{}
		for _, tok := range tokens {
			denom, err := p.NonEmpty("denom", tok)
			if err != nil {
				return nil, err
			}
			params.Add("denoms", denom)
		}
		return rest("/cosmos/bank/v1beta1/send_enabled", params), nil
	case "params":
		return rest("/cosmos/bank/v1beta1/params", nil), nil
	}
	return nil, unhandled(registry.KindQuery, "bank", sub)
}

func mintQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "mint",
		Description: "Inflation and provisions",
		Subcommands: []registry.Subcommand{
			{Name: "params", Description: "Mint module parameters", CacheTTL: paramsTTL},
			{Name: "inflation", Description: "Current inflation rate"},
			{Name: "annual-provisions", Description: "Current annual provisions"},
		},
		Handler: func(_ dispatch.Env, sub string, _ []string) (dispatch.QueryCall, error) {
			switch sub {
			case "params":
				return rest("/cosmos/mint/v1beta1/params", nil), nil
			case "inflation":
				return rest("/cosmos/mint/v1beta1/inflation", nil), nil
			case "annual-provisions":
				return rest("/cosmos/mint/v1beta1/annual_provisions", nil), nil
			}
			return nil, unhandled(registry.KindQuery, "mint", sub)
		},
	}
}
