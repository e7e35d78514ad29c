package handlers

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/args"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/dispatch"
	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/registry"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/signing"
)

var voteOptions = map[string]string{
	"yes":          "VOTE_OPTION_YES",
	"no":           "VOTE_OPTION_NO",
	"abstain":      "VOTE_OPTION_ABSTAIN",
	"no_with_veto": "VOTE_OPTION_NO_WITH_VETO",
}

var voteOptionNames = []string{"yes", "no", "abstain", "no_with_veto"}

func voteOption(p args.Parser, raw string) (string, error) {
	name, err := p.Enum("option", strings.ReplaceAll(raw, "-", "_"), voteOptionNames)
	if err != nil {
		return "", err
	}
	return voteOptions[name], nil
}

func govTxs() registry.Module[dispatch.TxHandler] {
	return registry.Module[dispatch.TxHandler]{
		Name:        "gov",
		Description: "Governance voting, deposits and proposals",
		Subcommands: []registry.Subcommand{
			{Name: "vote", Description: "Vote on a proposal", Usage: "<proposal-id> <yes|no|abstain|no_with_veto> [metadata]"},
			{Name: "weighted-vote", Description: "Split a vote across options", Usage: "<proposal-id> <yes=0.6,no=0.4>"},
			{Name: "deposit", Description: "Deposit on a proposal", Usage: "<proposal-id> <amount[,amount...]>"},
			{Name: "submit-proposal", Description: "Submit a proposal from a JSON document", Usage: `<{"title":..,"summary":..,"messages":[..]}> [initial-deposit]`},
			{Name: "cancel-proposal", Description: "Cancel a proposal the signer submitted", Usage: "<proposal-id>"},
		},
		Handler: govTx,
	}
}

func govTx(_ dispatch.Env, sub string, tokens []string, sender string) (dispatch.TxPlan, error) {
	p := args.Tx
	switch sub {
	case "vote":
		if err := p.Require(tokens, 2, []string{"proposal-id", "option"}, "gov vote"); err != nil {
			return dispatch.TxPlan{}, err
		}
		id, err := p.ProposalID(tokens[0])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		option, err := voteOption(p, tokens[1])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		fields := map[string]any{
			"proposal_id": uintString(id),
			"voter":       sender,
			"option":      option,
		}
		if len(tokens) > 2 {
			fields["metadata"] = tokens[2]
		}
		return plan(signing.NewMsg("/cosmos.gov.v1.MsgVote", fields)), nil
	case "weighted-vote":
		if err := p.Require(tokens, 2, []string{"proposal-id", "weights"}, "gov weighted-vote"); err != nil {
			return dispatch.TxPlan{}, err
		}
		id, err := p.ProposalID(tokens[0])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		options, err := weightedOptions(p, tokens[1])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmos.gov.v1.MsgVoteWeighted", map[string]any{
			"proposal_id": uintString(id),
			"voter":       sender,
			"options":     options,
		})), nil
	case "deposit":
		if err := p.Require(tokens, 2, []string{"proposal-id", "amount"}, "gov deposit"); err != nil {
			return dispatch.TxPlan{}, err
		}
		id, err := p.ProposalID(tokens[0])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		coins, err := p.Amounts("amount", tokens[1])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmos.gov.v1.MsgDeposit", map[string]any{
			"proposal_id": uintString(id),
			"depositor":   sender,
			"amount":      coins,
		})), nil
	case "submit-proposal":
		if err := p.Require(tokens, 1, []string{"proposal-json"}, "gov submit-proposal"); err != nil {
			return dispatch.TxPlan{}, err
		}
		fields, err := proposalFields(p, tokens[0])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		deposit := []args.Coin{}
		if len(tokens) > 1 {
			if deposit, err = p.Amounts("initial-deposit", tokens[1]); err != nil {
				return dispatch.TxPlan{}, err
			}
		}
		fields["initial_deposit"] = deposit
		fields["proposer"] = sender
		return plan(signing.NewMsg("/cosmos.gov.v1.MsgSubmitProposal", fields)), nil
	case "cancel-proposal":
		if err := p.Require(tokens, 1, []string{"proposal-id"}, "gov cancel-proposal"); err != nil {
			return dispatch.TxPlan{}, err
		}
		id, err := p.ProposalID(tokens[0])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmos.gov.v1.MsgCancelProposal", map[string]any{
			"proposal_id": uintString(id),
			"proposer":    sender,
		})), nil
	}
	return dispatch.TxPlan{}, unhandled(registry.KindTx, "gov", sub)
}

// weightedOptions parses "yes=0.6,no=0.4". Weights are positive decimals
// that must sum to exactly 1 with each option used once.
func weightedOptions(p args.Parser, raw string) ([]map[string]any, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	out := make([]map[string]any, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	sum := new(big.Rat)
	for _, part := range parts {
		name, weight, ok := strings.Cut(part, "=")
		if !ok {
			return nil, clierr.Newf(p.Code, "invalid weights %q: expected option=weight pairs like yes=0.6,no=0.4", raw)
		}
		option, err := voteOption(p, strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if seen[option] {
			return nil, clierr.Newf(p.Code, "invalid weights %q: option %s appears twice", raw, strings.TrimSpace(name))
		}
		seen[option] = true
		w, ok := new(big.Rat).SetString(strings.TrimSpace(weight))
		if !ok || w.Sign() <= 0 || strings.ContainsAny(weight, "/eE") {
			return nil, clierr.Newf(p.Code, "invalid weight %q for %s: expected a positive decimal", weight, strings.TrimSpace(name))
		}
		sum.Add(sum, w)
		out = append(out, map[string]any{"option": option, "weight": strings.TrimSpace(weight)})
	}
	if sum.Cmp(big.NewRat(1, 1)) != 0 {
		return nil, clierr.Newf(p.Code, "invalid weights %q: weights must sum to 1, got %s", raw, sum.FloatString(6))
	}
	return out, nil
}

// proposalFields validates a gov v1 proposal document. title and summary
// are required; messages defaults to an empty list (text proposal).
func proposalFields(p args.Parser, raw string) (map[string]any, error) {
	obj, err := p.JSONObject("proposal-json", raw)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Title     string            `json:"title"`
		Summary   string            `json:"summary"`
		Metadata  string            `json:"metadata"`
		Expedited bool              `json:"expedited"`
		Messages  []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(obj, &doc); err != nil {
		return nil, clierr.Newf(p.Code, "invalid proposal-json: %v", err)
	}
	if strings.TrimSpace(doc.Title) == "" || strings.TrimSpace(doc.Summary) == "" {
		return nil, clierr.New(p.Code, "invalid proposal-json: title and summary are required")
	}
	msgs := make([]signing.Msg, 0, len(doc.Messages))
	for i, rawMsg := range doc.Messages {
		var m signing.Msg
		if err := json.Unmarshal(rawMsg, &m); err != nil || m.TypeURL() == "" {
			return nil, clierr.Newf(p.Code, "invalid proposal-json: messages[%d] must be an object with an @type", i)
		}
		msgs = append(msgs, m)
	}
	return map[string]any{
		"title":     doc.Title,
		"summary":   doc.Summary,
		"metadata":  doc.Metadata,
		"expedited": doc.Expedited,
		"messages":  msgs,
	}, nil
}

var groupExecModes = map[string]string{
	"none": "EXEC_UNSPECIFIED",
	"try":  "EXEC_TRY",
}

func groupTxs() registry.Module[dispatch.TxHandler] {
	return registry.Module[dispatch.TxHandler]{
		Name:        "group",
		Description: "Group proposal voting and execution",
		Subcommands: []registry.Subcommand{
			{Name: "vote", Description: "Vote on a group proposal", Usage: "<proposal-id> <yes|no|abstain|no_with_veto> [metadata] [--exec try]"},
			{Name: "exec", Description: "Execute an accepted group proposal", Usage: "<proposal-id>"},
			{Name: "withdraw-proposal", Description: "Withdraw a group proposal", Usage: "<proposal-id>"},
			{Name: "leave-group", Description: "Leave a group", Usage: "<group-id>"},
		},
		Handler: groupTx,
	}
}

func groupTx(_ dispatch.Env, sub string, tokens []string, sender string) (dispatch.TxPlan, error) {
	p := args.Tx
	switch sub {
	case "vote":
		exec, err := p.ExtractFlag(tokens, "exec")
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		pos := args.FilterConsumed(tokens, exec.Consumed)
		if err := p.Require(pos, 2, []string{"proposal-id", "option"}, "group vote"); err != nil {
			return dispatch.TxPlan{}, err
		}
		id, err := p.ProposalID(pos[0])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		option, err := voteOption(p, pos[1])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		mode := groupExecModes["none"]
		if exec.Found {
			name, err := p.Enum("exec", exec.Value, []string{"none", "try"})
			if err != nil {
				return dispatch.TxPlan{}, err
			}
			mode = groupExecModes[name]
		}
		metadata := ""
		if len(pos) > 2 {
			metadata = pos[2]
		}
		return plan(signing.NewMsg("/cosmos.group.v1.MsgVote", map[string]any{
			"proposal_id": uintString(id),
			"voter":       sender,
			"option":      option,
			"metadata":    metadata,
			"exec":        mode,
		})), nil
	case "exec", "withdraw-proposal":
		if err := p.Require(tokens, 1, []string{"proposal-id"}, "group "+sub); err != nil {
			return dispatch.TxPlan{}, err
		}
		id, err := p.ProposalID(tokens[0])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		if sub == "exec" {
			return plan(signing.NewMsg("/cosmos.group.v1.MsgExec", map[string]any{
				"proposal_id": uintString(id),
				"executor":    sender,
			})), nil
		}
		return plan(signing.NewMsg("/cosmos.group.v1.MsgWithdrawProposal", map[string]any{
			"proposal_id": uintString(id),
			"address":     sender,
		})), nil
	case "leave-group":
		if err := p.Require(tokens, 1, []string{"group-id"}, "group leave-group"); err != nil {
			return dispatch.TxPlan{}, err
		}
		id, err := groupID(p, tokens[0])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmos.group.v1.MsgLeaveGroup", map[string]any{
			"address":  sender,
			"group_id": uintString(id),
		})), nil
	}
	return dispatch.TxPlan{}, unhandled(registry.KindTx, "group", sub)
}
