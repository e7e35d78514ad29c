package handlers

import (
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/args"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/dispatch"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/lcd"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/registry"
)

var proposalStatuses = map[string]string{
	"deposit-period": "PROPOSAL_STATUS_DEPOSIT_PERIOD",
	"voting-period":  "PROPOSAL_STATUS_VOTING_PERIOD",
	"passed":         "PROPOSAL_STATUS_PASSED",
	"rejected":       "PROPOSAL_STATUS_REJECTED",
	"failed":         "PROPOSAL_STATUS_FAILED",
}

func govQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "gov",
		Description: "Governance proposals, votes, deposits and tallies",
		Subcommands: []registry.Subcommand{
			{Name: "proposal", Description: "One proposal", Usage: "<proposal-id>"},
			{Name: "proposals", Description: "Proposals, optionally filtered", Usage: "[--status deposit-period|voting-period|passed|rejected|failed] [--voter addr] [--depositor addr] [--limit n] [--page-key k]"},
			{Name: "vote", Description: "Vote of one voter on a proposal", Usage: "<proposal-id> <voter-address>"},
			{Name: "votes", Description: "Votes on a proposal", Usage: "<proposal-id> [--limit n] [--page-key k]"},
			{Name: "deposit", Description: "Deposit of one depositor on a proposal", Usage: "<proposal-id> <depositor-address>"},
			{Name: "deposits", Description: "Deposits on a proposal", Usage: "<proposal-id> [--limit n] [--page-key k]"},
			{Name: "tally", Description: "Current tally of a proposal", Usage: "<proposal-id>"},
			{Name: "params", Description: "Governance parameters", Usage: "[voting|deposit|tallying]", CacheTTL: paramsTTL},
		},
		Handler: govQuery,
	}
}

func govQuery(env dispatch.Env, sub string, tokens []string) (dispatch.QueryCall, error) {
	p := args.Query
	switch sub {
	case "proposal", "tally":
		if err := p.Require(tokens, 1, []string{"proposal-id"}, "gov "+sub); err != nil {
			return nil, err
		}
		id, err := p.ProposalID(tokens[0])
		if err != nil {
			return nil, err
		}
		path := "/cosmos/gov/v1/proposals/" + uintString(id)
		if sub == "tally" {
			path += "/tally"
		}
		return rest(path, nil), nil
	case "proposals":
		page, pos, err := p.ExtractPagination(tokens)
		if err != nil {
			return nil, err
		}
		params := lcd.PageParams(page)
		status, err := p.ExtractFlag(pos, "status")
		if err != nil {
			return nil, err
		}
		if status.Found {
			v, err := p.Enum("status", status.Value, []string{"deposit-period", "voting-period", "passed", "rejected", "failed"})
			if err != nil {
				return nil, err
			}
			params.Set("proposal_status", proposalStatuses[v])
		}
		for _, role := range []string{"voter", "depositor"} {
			flag, err := p.ExtractFlag(pos, role)
			if err != nil {
				return nil, err
			}
			if flag.Found {
				addr, err := p.Address(role, flag.Value, env.AddressPrefix)
				if err != nil {
					return nil, err
				}
				params.Set(role, addr)
			}
		}
		return rest("/cosmos/gov/v1/proposals", params), nil
	case "vote", "deposit":
		role := "voter-address"
		if sub == "deposit" {
			role = "depositor-address"
		}
		if err := p.Require(tokens, 2, []string{"proposal-id", role}, "gov "+sub); err != nil {
			return nil, err
		}
		id, err := p.ProposalID(tokens[0])
		if err != nil {
			return nil, err
		}
		addr, err := p.Address(role, tokens[1], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/gov/v1/proposals/"+uintString(id)+"/"+sub+"s/"+lcd.Seg(addr), nil), nil
	case "votes", "deposits":
		page, pos, err := paged(tokens, 1, []string{"proposal-id"}, "gov "+sub)
		if err != nil {
			return nil, err
		}
		id, err := p.ProposalID(pos[0])
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/gov/v1/proposals/"+uintString(id)+"/"+sub, lcd.PageParams(page)), nil
	case "params":
		kind := "voting"
		if len(tokens) > 0 {
			v, err := p.Enum("params-type", tokens[0], []string{"voting", "deposit", "tallying"})
			if err != nil {
				return nil, err
			}
			kind = v
		}
		return rest("/cosmos/gov/v1/params/"+kind, nil), nil
	}
	return nil, unhandled(registry.KindQuery, "gov", sub)
}

func feegrantQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "feegrant",
		Description: "Fee allowances between accounts",
		Subcommands: []registry.Subcommand{
			{Name: "allowance", Description: "Allowance granted by granter to grantee", Usage: "<granter-address> <grantee-address>"},
			{Name: "allowances", Description: "Allowances received by a grantee", Usage: "<grantee-address> [--limit n] [--page-key k]"},
			{Name: "allowances-by-granter", Description: "Allowances issued by a granter", Usage: "<granter-address> [--limit n] [--page-key k]"},
		},
		Handler: feegrantQuery,
	}
}

func feegrantQuery(env dispatch.Env, sub string, tokens []string) (dispatch.QueryCall, error) {
	p := args.Query
	switch sub {
	case "allowance":
		if err := p.Require(tokens, 2, []string{"granter-address", "grantee-address"}, "feegrant allowance"); err != nil {
			return nil, err
		}
		granter, err := p.Address("granter-address", tokens[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		grantee, err := p.Address("grantee-address", tokens[1], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/feegrant/v1beta1/allowance/"+lcd.Seg(granter)+"/"+lcd.Seg(grantee), nil), nil
	case "allowances", "allowances-by-granter":
		field := "grantee-address"
		base := "/cosmos/feegrant/v1beta1/allowances/"
		if sub == "allowances-by-granter" {
			field = "granter-address"
			base = "/cosmos/feegrant/v1beta1/issued/"
		}
		page, pos, err := paged(tokens, 1, []string{field}, "feegrant "+sub)
		if err != nil {
			return nil, err
		}
		addr, err := p.Address(field, pos[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		return rest(base+lcd.Seg(addr), lcd.PageParams(page)), nil
	}
	return nil, unhandled(registry.KindQuery, "feegrant", sub)
}

func authzQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "authz",
		Description: "Authorization grants",
		Subcommands: []registry.Subcommand{
			{Name: "grants", Description: "Grants from granter to grantee, optionally for one message type", Usage: "<granter-address> <grantee-address> [msg-type-url] [--limit n] [--page-key k]"},
			{Name: "grants-by-granter", Description: "Grants issued by a granter", Usage: "<granter-address> [--limit n] [--page-key k]"},
			{Name: "grants-by-grantee", Description: "Grants received by a grantee", Usage: "<grantee-address> [--limit n] [--page-key k]"},
		},
		Handler: authzQuery,
	}
}

func authzQuery(env dispatch.Env, sub string, tokens []string) (dispatch.QueryCall, error) {
	p := args.Query
	switch sub {
	case "grants":
		page, pos, err := paged(tokens, 2, []string{"granter-address", "grantee-address"}, "authz grants")
		if err != nil {
			return nil, err
		}
		granter, err := p.Address("granter-address", pos[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		grantee, err := p.Address("grantee-address", pos[1], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		params := lcd.PageParams(page)
		params.Set("granter", granter)
		params.Set("grantee", grantee)
		if len(pos) > 2 {
			typeURL, err := msgTypeURL(p, pos[2])
			if err != nil {
				return nil, err
			}
			params.Set("msg_type_url", typeURL)
		}
		return rest("/cosmos/authz/v1beta1/grants", params), nil
	case "grants-by-granter", "grants-by-grantee":
		field, segment := "granter-address", "granter"
		if sub == "grants-by-grantee" {
			field, segment = "grantee-address", "grantee"
		}
		page, pos, err := paged(tokens, 1, []string{field}, "authz "+sub)
		if err != nil {
			return nil, err
		}
		addr, err := p.Address(field, pos[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/authz/v1beta1/grants/"+segment+"/"+lcd.Seg(addr), lcd.PageParams(page)), nil
	}
	return nil, unhandled(registry.KindQuery, "authz", sub)
}

// msgTypeURL accepts a protobuf message type URL such as
// /cosmos.bank.v1beta1.MsgSend.
func msgTypeURL(p args.Parser, raw string) (string, error) {
	v, err := p.NonEmpty("msg-type-url", raw)
	if err != nil {
		return "", err
	}
	if !typeURLPattern.MatchString(v) {
		return "", invalidTypeURL(p, raw)
	}
	return v, nil
}

func groupQueries() registry.Module[dispatch.QueryHandler] {
	return registry.Module[dispatch.QueryHandler]{
		Name:        "group",
		Description: "Groups, group policies and group proposals",
		Subcommands: []registry.Subcommand{
			{Name: "group-info", Description: "One group", Usage: "<group-id>"},
			{Name: "group-members", Description: "Members of a group", Usage: "<group-id> [--limit n] [--page-key k]"},
			{Name: "groups-by-admin", Description: "Groups administered by an address", Usage: "<admin-address> [--limit n] [--page-key k]"},
			{Name: "groups-by-member", Description: "Groups an address belongs to", Usage: "<member-address> [--limit n] [--page-key k]"},
			{Name: "group-policies", Description: "Policies of a group", Usage: "<group-id> [--limit n] [--page-key k]"},
			{Name: "group-policy-info", Description: "One group policy account", Usage: "<policy-address>"},
			{Name: "proposal", Description: "One group proposal", Usage: "<proposal-id>"},
			{Name: "proposals", Description: "Proposals of a group policy", Usage: "<policy-address> [--limit n] [--page-key k]"},
			{Name: "vote", Description: "Vote of one voter on a group proposal", Usage: "<proposal-id> <voter-address>"},
			{Name: "votes", Description: "Votes on a group proposal", Usage: "<proposal-id> [--limit n] [--page-key k]"},
			{Name: "tally", Description: "Current tally of a group proposal", Usage: "<proposal-id>"},
		},
		Handler: groupQuery,
	}
}

func groupQuery(env dispatch.Env, sub string, tokens []string) (dispatch.QueryCall, error) {
	p := args.Query
	switch sub {
	case "group-info", "group-members", "group-policies":
		page, pos, err := paged(tokens, 1, []string{"group-id"}, "group "+sub)
		if err != nil {
			return nil, err
		}
		id, err := groupID(p, pos[0])
		if err != nil {
			return nil, err
		}
		switch sub {
		case "group-info":
			return rest("/cosmos/group/v1/group_info/"+uintString(id), nil), nil
		case "group-members":
			return rest("/cosmos/group/v1/group_members/"+uintString(id), lcd.PageParams(page)), nil
		default:
			return rest("/cosmos/group/v1/group_policies_by_group/"+uintString(id), lcd.PageParams(page)), nil
		}
	case "groups-by-admin", "groups-by-member", "proposals":
		field := map[string]string{
			"groups-by-admin":  "admin-address",
			"groups-by-member": "member-address",
			"proposals":        "policy-address",
		}[sub]
		page, pos, err := paged(tokens, 1, []string{field}, "group "+sub)
		if err != nil {
			return nil, err
		}
		addr, err := p.Address(field, pos[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		path := map[string]string{
			"groups-by-admin":  "/cosmos/group/v1/groups_by_admin/",
			"groups-by-member": "/cosmos/group/v1/groups_by_member/",
			"proposals":        "/cosmos/group/v1/proposals_by_group_policy/",
		}[sub]
		return rest(path+lcd.Seg(addr), lcd.PageParams(page)), nil
	case "group-policy-info":
		if err := p.Require(tokens, 1, []string{"policy-address"}, "group group-policy-info"); err != nil {
			return nil, err
		}
		addr, err := p.Address("policy-address", tokens[0], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/group/v1/group_policy_info/"+lcd.Seg(addr), nil), nil
	case "proposal", "tally":
		if err := p.Require(tokens, 1, []string{"proposal-id"}, "group "+sub); err != nil {
			return nil, err
		}
		id, err := p.ProposalID(tokens[0])
		if err != nil {
			return nil, err
		}
		if sub == "tally" {
			return rest("/cosmos/group/v1/proposals/"+uintString(id)+"/tally", nil), nil
		}
		return rest("/cosmos/group/v1/proposal/"+uintString(id), nil), nil
	case "vote":
		if err := p.Require(tokens, 2, []string{"proposal-id", "voter-address"}, "group vote"); err != nil {
			return nil, err
		}
		id, err := p.ProposalID(tokens[0])
		if err != nil {
			return nil, err
		}
		voter, err := p.Address("voter-address", tokens[1], env.AddressPrefix)
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/group/v1/vote_by_proposal_voter/"+uintString(id)+"/"+lcd.Seg(voter), nil), nil
	case "votes":
		page, pos, err := paged(tokens, 1, []string{"proposal-id"}, "group votes")
		if err != nil {
			return nil, err
		}
		id, err := p.ProposalID(pos[0])
		if err != nil {
			return nil, err
		}
		return rest("/cosmos/group/v1/votes_by_proposal/"+uintString(id), lcd.PageParams(page)), nil
	}
	return nil, unhandled(registry.KindQuery, "group", sub)
}

func groupID(p args.Parser, raw string) (uint64, error) {
	id, err := p.Uint("group-id", raw)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, invalidGroupID(p, raw)
	}
	return id, nil
}
