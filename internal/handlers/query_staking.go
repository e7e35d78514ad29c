package handlers

import (
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/args"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/dispatch"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/lcd"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/registry"
)

var bondStatuses = map[string]string{
	"bonded":    "BOND_STATUS_BONDED",
	"unbonded":  "BOND_STATUS_UNBONDED",
	"unbonding": "BOND_STATUS_UNBONDING",
}

func stakingQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "staking",
		Description: "Validators, delegations and the staking pool",
		Subcommands: []registry.Subcommand{
			{Name: "validators", Description: "Validators, optionally filtered by bond status", Usage: "[bonded|unbonded|unbonding] [--limit n] [--page-key k]"},
			{Name: "validator", Description: "One validator", Usage: "<validator-address>"},
			{Name: "delegation", Description: "One delegation", Usage: "<delegator-address> <validator-address>"},
			{Name: "delegations", Description: "Delegations of a delegator", Usage: "<delegator-address> [--limit n] [--page-key k]"},
			{Name: "unbonding-delegations", Description: "Unbonding delegations of a delegator", Usage: "<delegator-address> [--limit n] [--page-key k]"},
			{Name: "redelegations", Description: "Redelegations of a delegator", Usage: "<delegator-address> [--limit n] [--page-key k]"},
			{Name: "validator-delegations", Description: "Delegations to a validator", Usage: "<validator-address> [--limit n] [--page-key k]"},
			{Name: "delegator-validators", Description: "Validators a delegator is bonded to", Usage: "<delegator-address> [--limit n] [--page-key k]"},
			{Name: "historical-info", Description: "Validator set at a height", Usage: "<height>"},
			{Name: "pool", Description: "Bonded and not-bonded token totals"},
			{Name: "params", Description: "Staking module parameters", CacheTTL: paramsTTL},
		},
		Handler: stakingQuery,
	}
}

func stakingQuery(env dispatch.Env, sub string, tokens []string) (dispatch.QueryCall, error) {
	p := args.Query
	switch sub {
	case "validators":
		page, pos, err := paged(tokens, 0, nil, "staking validators")
		if err != nil {
			return nil, err
		}
		params := lcd.PageParams(page)
		if len(pos) > 0 {
			status, err := p.Enum("status", pos[0], []string{"bonded", "unbonded", "unbonding"})
			if err != nil {
				return nil, err
			}
			params.Set("status", bondStatuses[status])
		}
		return rest("/cosmos/staking/v1beta1/validators", params), nil
	case "validator":
		if err := p.Require(tokens, 1, []string{"validator-address"}, "staking validator"); err != nil {
			return nil, err
		}
		val, err := p.Address("validator-address", tokens[0], valoperPrefix(env))
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/staking/v1beta1/validators/"+lcd.Seg(val), nil), nil
	case "delegation":
		if err := p.Require(tokens, 2, []string{"delegator-address", "validator-address"}, "staking delegation"); err != nil {
			return nil, err
		}
		del, err := p.Address("delegator-address", tokens[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		val, err := p.Address("validator-address", tokens[1], valoperPrefix(env))
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/staking/v1beta1/validators/"+lcd.Seg(val)+"/delegations/"+lcd.Seg(del), nil), nil
	case "delegations", "unbonding-delegations", "redelegations", "delegator-validators":
		page, pos, err := paged(tokens, 1, []string{"delegator-address"}, "staking "+sub)
		if err != nil {
			return nil, err
		}
		del, err := p.Address("delegator-address", pos[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		path := map[string]string{
			"delegations":           "/cosmos/staking/v1beta1/delegations/" + lcd.Seg(del),
			"unbonding-delegations": "/cosmos/staking/v1beta1/delegators/" + lcd.Seg(del) + "/unbonding_delegations",
			"redelegations":         "/cosmos/staking/v1beta1/delegators/" + lcd.Seg(del) + "/redelegations",
			"delegator-validators":  "/cosmos/staking/v1beta1/delegators/" + lcd.Seg(del) + "/validators",
		}[sub]
		return rest(path, lcd.PageParams(page)), nil
	case "validator-delegations":
		page, pos, err := paged(tokens, 1, []string{"validator-address"}, "staking validator-delegations")
		if err != nil {
			return nil, err
		}
		val, err := p.Address("validator-address", pos[0], valoperPrefix(env))
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/staking/v1beta1/validators/"+lcd.Seg(val)+"/delegations", lcd.PageParams(page)), nil
	case "historical-info":
		if err := p.Require(tokens, 1, []string{"height"}, "staking historical-info"); err != nil {
			return nil, err
		}
		height, err := p.Uint("height", tokens[0])
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/staking/v1beta1/historical_info/"+uintString(height), nil), nil
	case "pool":
		return rest("/cosmos/staking/v1beta1/pool", nil), nil
	case "params":
		return rest("/cosmos/staking/v1beta1/params", nil), nil
	}
	return nil, unhandled(registry.KindQuery, "staking", sub)
}

func distributionQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "distribution",
		Description: "Staking rewards, commission and the community pool",
		Subcommands: []registry.Subcommand{
			{Name: "rewards", Description: "Pending rewards of a delegator, optionally from one validator", Usage: "<delegator-address> [validator-address]"},
			{Name: "commission", Description: "Accumulated commission of a validator", Usage: "<validator-address>"},
			{Name: "outstanding-rewards", Description: "Outstanding rewards of a validator", Usage: "<validator-address>"},
			{Name: "slashes", Description: "Slash events of a validator", Usage: "<validator-address> [--limit n] [--page-key k]"},
			{Name: "withdraw-address", Description: "Reward withdraw address of a delegator", Usage: "<delegator-address>"},
			{Name: "community-pool", Description: "Community pool balance"},
			{Name: "params", Description: "Distribution module parameters", CacheTTL: paramsTTL},
		},
		Handler: distributionQuery,
	}
}

func distributionQuery(env dispatch.Env, sub string, tokens []string) (dispatch.QueryCall, error) {
	p := args.Query
	switch sub {
	case "rewards":
		if err := p.Require(tokens, 1, []string{"delegator-address"}, "distribution rewards"); err != nil {
			return nil, err
		}
		del, err := p.Address("delegator-address", tokens[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		path := "/cosmos/distribution/v1beta1/delegators/" + lcd.Seg(del) + "/rewards"
		if len(tokens) > 1 {
			val, err := p.Address("validator-address", tokens[1], valoperPrefix(env))
			if err != nil {
				return nil, err
			}
			path += "/" + lcd.Seg(val)
		}
		return rest(path, nil), nil
	case "commission", "outstanding-rewards":
		if err := p.Require(tokens, 1, []string{"validator-address"}, "distribution "+sub); err != nil {
			return nil, err
		}
		val, err := p.Address("validator-address", tokens[0], valoperPrefix(env))
		if err != nil {
			return nil, err
		}
		suffix := "/commission"
		if sub == "outstanding-rewards" {
			suffix = "/outstanding_rewards"
		}
		return rest("/cosmos/distribution/v1beta1/validators/"+lcd.Seg(val)+suffix, nil), nil
	case "slashes":
		page, pos, err := paged(tokens, 1, []string{"validator-address"}, "distribution slashes")
		if err != nil {
			return nil, err
		}
		val, err := p.Address("validator-address", pos[0], valoperPrefix(env))
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/distribution/v1beta1/validators/"+lcd.Seg(val)+"/slashes", lcd.PageParams(page)), nil
	case "withdraw-address":
		if err := p.Require(tokens, 1, []string{"delegator-address"}, "distribution withdraw-address"); err != nil {
			return nil, err
		}
		del, err := p.Address("delegator-address", tokens[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/distribution/v1beta1/delegators/"+lcd.Seg(del)+"/withdraw_address", nil), nil
	case "community-pool":
		return rest("/cosmos/distribution/v1beta1/community_pool", nil), nil
	case "params":
		return rest("/cosmos/distribution/v1beta1/params", nil), nil
	}
	return nil, unhandled(registry.KindQuery, "distribution", sub)
}
