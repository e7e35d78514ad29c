package handlers

import (
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/args"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/dispatch"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/registry"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/signing"
)

func bankTxs() registry.Module[dispatch.TxHandler] {
	return registry.Module[dispatch.TxHandler]{
		Name:        "bank",
		Description: "Token transfers",
		Subcommands: []registry.Subcommand{
			{Name: "send", Description: "Send coins to one recipient", Usage: "<recipient-address> <amount[,amount...]>"},
			{Name: "multi-send", Description: "Send coins to several recipients in one message", Usage: "<recipient-address:amount> [recipient-address:amount...]"},
		},
		Handler: bankTx,
	}
}

func bankTx(env dispatch.Env, sub string, tokens []string, sender string) (dispatch.TxPlan, error) {
	p := args.Tx
	switch sub {
	case "send":
		if err := p.Require(tokens, 2, []string{"recipient-address", "amount"}, "bank send"); err != nil {
			return dispatch.TxPlan{}, err
		}
		to, err := p.Address("recipient-address", tokens[0], env.AddressPrefix)
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		coins, err := p.Amounts("amount", tokens[1])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmos.bank.v1beta1.MsgSend", map[string]any{
			"from_address": sender,
			"to_address":   to,
			"amount":       coins,
		})), nil
	case "multi-send":
		if err := p.Require(tokens, 1, []string{"recipient-address:amount"}, "bank multi-send"); err != nil {
			return dispatch.TxPlan{}, err
		}
		outputs := make([]map[string]any, 0, len(tokens))
		var total []args.Coin
		for _, tok := range tokens {
			addrRaw, amountRaw, err := p.ColonPair("recipient-address:amount", tok)
			if err != nil {
				return dispatch.TxPlan{}, err
			}
			addr, err := p.Address("recipient-address", addrRaw, env.AddressPrefix)
			if err != nil {
				return dispatch.TxPlan{}, err
			}
			coins, err := p.Amounts("amount", amountRaw)
			if err != nil {
				return dispatch.TxPlan{}, err
			}
			outputs = append(outputs, map[string]any{"address": addr, "coins": coins})
			total = addCoins(total, coins)
		}
		return plan(signing.NewMsg("/cosmos.bank.v1beta1.MsgMultiSend", map[string]any{
			"inputs":  []map[string]any{{"address": sender, "coins": total}},
			"outputs": outputs,
		})), nil
	}
	return dispatch.TxPlan{}, unhandled(registry.KindTx, "bank", sub)
}

func stakingTxs() registry.Module[dispatch.TxHandler] {
	return registry.Module[dispatch.TxHandler]{
		Name:        "staking",
		Description: "Delegation management",
		Subcommands: []registry.Subcommand{
			{Name: "delegate", Description: "Delegate tokens to a validator", Usage: "<validator-address> <amount>"},
			{Name: "unbond", Description: "Undelegate tokens from a validator", Usage: "<validator-address> <amount>"},
			{Name: "undelegate", Description: "Alias of unbond", Usage: "<validator-address> <amount>"},
			{Name: "redelegate", Description: "Move a delegation between validators", Usage: "<src-validator-address> <dst-validator-address> <amount>"},
			{Name: "cancel-unbonding", Description: "Cancel an unbonding delegation", Usage: "<validator-address> <amount> <creation-height>"},
		},
		Handler: stakingTx,
	}
}

func stakingTx(env dispatch.Env, sub string, tokens []string, sender string) (dispatch.TxPlan, error) {
	p := args.Tx
	switch sub {
	case "delegate", "unbond", "undelegate":
		if err := p.Require(tokens, 2, []string{"validator-address", "amount"}, "staking "+sub); err != nil {
			return dispatch.TxPlan{}, err
		}
		val, err := p.Address("validator-address", tokens[0], valoperPrefix(env))
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		coin, err := p.Amount("amount", tokens[1])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		typeURL := "/cosmos.staking.v1beta1.MsgDelegate"
		if sub != "delegate" {
			typeURL = "/cosmos.staking.v1beta1.MsgUndelegate"
		}
		return plan(signing.NewMsg(typeURL, map[string]any{
			"delegator_address": sender,
			"validator_address": val,
			"amount":            coin,
		})), nil
	case "redelegate":
		if err := p.Require(tokens, 3, []string{"src-validator-address", "dst-validator-address", "amount"}, "staking redelegate"); err != nil {
			return dispatch.TxPlan{}, err
		}
		src, err := p.Address("src-validator-address", tokens[0], valoperPrefix(env))
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		dst, err := p.Address("dst-validator-address", tokens[1], valoperPrefix(env))
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		coin, err := p.Amount("amount", tokens[2])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmos.staking.v1beta1.MsgBeginRedelegate", map[string]any{
			"delegator_address":     sender,
			"validator_src_address": src,
			"validator_dst_address": dst,
			"amount":                coin,
		})), nil
	case "cancel-unbonding":
		if err := p.Require(tokens, 3, []string{"validator-address", "amount", "creation-height"}, "staking cancel-unbonding"); err != nil {
			return dispatch.TxPlan{}, err
		}
		val, err := p.Address("validator-address", tokens[0], valoperPrefix(env))
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		coin, err := p.Amount("amount", tokens[1])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		height, err := p.Uint("creation-height", tokens[2])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmos.staking.v1beta1.MsgCancelUnbondingDelegation", map[string]any{
			"delegator_address": sender,
			"validator_address": val,
			"amount":            coin,
			"creation_height":   uintString(height),
		})), nil
	}
	return dispatch.TxPlan{}, unhandled(registry.KindTx, "staking", sub)
}

func distributionTxs() registry.Module[dispatch.TxHandler] {
	return registry.Module[dispatch.TxHandler]{
		Name:        "distribution",
		Description: "Reward withdrawal and the community pool",
		Subcommands: []registry.Subcommand{
			{Name: "withdraw-rewards", Description: "Withdraw rewards from one or more validators", Usage: "<validator-address> [validator-address...]"},
			{Name: "withdraw-commission", Description: "Withdraw the signer's validator commission"},
			{Name: "set-withdraw-address", Description: "Change where rewards are paid", Usage: "<withdraw-address>"},
			{Name: "fund-community-pool", Description: "Deposit coins into the community pool", Usage: "<amount[,amount...]>"},
		},
		Handler: distributionTx,
	}
}

func distributionTx(env dispatch.Env, sub string, tokens []string, sender string) (dispatch.TxPlan, error) {
	p := args.Tx
	switch sub {
	case "withdraw-rewards":
		if err := p.Require(tokens, 1, []string{"validator-address"}, "distribution withdraw-rewards"); err != nil {
			return dispatch.TxPlan{}, err
		}
		msgs := make([]signing.Msg, 0, len(tokens))
		for _, tok := range tokens {
			val, err := p.Address("validator-address", tok, valoperPrefix(env))
			if err != nil {
				return dispatch.TxPlan{}, err
			}
			msgs = append(msgs, signing.NewMsg("/cosmos.distribution.v1beta1.MsgWithdrawDelegatorReward", map[string]any{
				"delegator_address": sender,
				"validator_address": val,
			}))
		}
		return plan(msgs...), nil
	case "withdraw-commission":
		val, err := operatorAddress(env, sender)
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmos.distribution.v1beta1.MsgWithdrawValidatorCommission", map[string]any{
			"validator_address": val,
		})), nil
	case "set-withdraw-address":
		if err := p.Require(tokens, 1, []string{"withdraw-address"}, "distribution set-withdraw-address"); err != nil {
			return dispatch.TxPlan{}, err
		}
		addr, err := p.Address("withdraw-address", tokens[0], env.AddressPrefix)
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmos.distribution.v1beta1.MsgSetWithdrawAddress", map[string]any{
			"delegator_address": sender,
			"withdraw_address":  addr,
		})), nil
	case "fund-community-pool":
		if err := p.Require(tokens, 1, []string{"amount"}, "distribution fund-community-pool"); err != nil {
			return dispatch.TxPlan{}, err
		}
		coins, err := p.Amounts("amount", tokens[0])
		if err != nil {
			return dispatch.TxPlan{}, err
		}
		return plan(signing.NewMsg("/cosmos.distribution.v1beta1.MsgFundCommunityPool", map[string]any{
			"amount":    coins,
			"depositor": sender,
		})), nil
	}
	return dispatch.TxPlan{}, unhandled(registry.KindTx, "distribution", sub)
}
