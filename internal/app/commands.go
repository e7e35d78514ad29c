package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/model"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/networks"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/schema"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/version"
)

const passthroughHelp = `Module flags (--limit, --offset, --page-key, --reverse, --count-total, --status,
--memo, --fee, ...) are passed to the module handler. Global flags may appear
anywhere; use "--" to pass a token that collides with a global flag.`

func (s *runtimeState) newQueryCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "query <module> <subcommand> [args...]",
		Short:              "Run a read-only module query",
		Long:               "Run a read-only module query.\n\n" + passthroughHelp,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rest := s.passthrough
			if wantsHelp(rest) {
				return cmd.Help()
			}
			if len(rest) < 2 {
				return s.missingModuleArgs("query", rest)
			}
			ctx, cancel := s.dispatchContext(cmd.Context(), 0)
			defer cancel()
			outcome, err := s.dispatcher.QueryCached(ctx, rest[0], rest[1], rest[2:], true)
			if err != nil {
				s.lastWarnings = outcome.Warnings
				return err
			}
			return s.emitSuccess(s.lastCommand, outcome.Result, outcome.Warnings, outcome.Cache)
		},
	}
}

func (s *runtimeState) newTxCommand() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:                "tx <module> <subcommand> [args...] [--memo text] [--fee auto|amount] [--wait]",
		Short:              "Sign and broadcast a module transaction",
		Long:               "Sign and broadcast a module transaction.\n\n" + passthroughHelp,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rest := s.passthrough
			if wantsHelp(rest) {
				return cmd.Help()
			}
			if len(rest) < 2 {
				return s.missingModuleArgs("tx", rest)
			}
			var extra time.Duration
			if wait {
				extra = s.settings.WaitTimeout
			}
			ctx, cancel := s.dispatchContext(cmd.Context(), extra)
			defer cancel()
			res, err := s.dispatcher.Tx(ctx, rest[0], rest[1], rest[2:], wait)
			if err != nil {
				return err
			}
			var warnings []string
			if res.Pending {
				warnings = append(warnings, "transaction "+res.TransactionHash+" was broadcast but not confirmed; check history show before re-sending")
			}
			return s.emitSuccess(s.lastCommand, res, warnings, cacheMetaBypass())
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the transaction is included in a block")
	return cmd
}

func (s *runtimeState) missingModuleArgs(kind string, rest []string) error {
	listing := s.dispatcher.ListModules()
	modules := listing.QueryModules
	if kind == "tx" {
		modules = listing.TxModules
	}
	names := make([]string, 0, len(modules))
	for _, m := range modules {
		names = append(names, m.Name)
	}
	return clierr.WithDetails(clierr.CodeUsage, fmt.Sprintf("%s requires <module> <subcommand>", kind), map[string]any{
		"expectedArgs":     []string{"module", "subcommand"},
		"receivedArgs":     rest,
		"availableModules": names,
	})
}

func wantsHelp(rest []string) bool {
	if len(rest) == 0 {
		return false
	}
	return rest[0] == "-h" || rest[0] == "--help" || rest[0] == "help"
}

func (s *runtimeState) newModulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List query and transaction modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), s.dispatcher.ListModules(), nil, cacheMetaBypass())
		},
	}
}

func (s *runtimeState) newSubcommandsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "subcommands <query|tx> <module>",
		Short: "List the subcommands of a module",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			listing, err := s.dispatcher.ListSubcommands(strings.ToLower(args[0]), args[1])
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), listing, nil, cacheMetaBypass())
		},
	}
}

func (s *runtimeState) newDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <query|tx> <module> <subcommand>",
		Short: "Describe one subcommand and its arguments",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := s.dispatcher.Describe(strings.ToLower(args[0]), args[1], args[2])
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), desc, nil, cacheMetaBypass())
		},
	}
}

func (s *runtimeState) newNetworksCommand() *cobra.Command {
	root := &cobra.Command{Use: "networks", Short: "Network preset commands"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List built-in network presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), networks.All(), nil, cacheMetaBypass())
		},
	}
	root.AddCommand(list)
	return root
}

func (s *runtimeState) newWalletCommand() *cobra.Command {
	root := &cobra.Command{Use: "wallet", Short: "Signing wallet commands"}
	address := &cobra.Command{
		Use:   "address",
		Short: "Print the account address of the configured signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.dispatchContext(cmd.Context(), 0)
			defer cancel()
			c, err := s.clients.Get(ctx)
			if err != nil {
				return err
			}
			signer, err := c.Signer(ctx)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), map[string]any{
				"address": signer.Address(),
				"chainId": s.settings.ChainID,
			}, nil, cacheMetaBypass())
		},
	}
	root.AddCommand(address)
	return root
}

func (s *runtimeState) newCacheCommand() *cobra.Command {
	root := &cobra.Command{Use: "cache", Short: "Query result cache commands"}
	var all bool
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Drop cached query results for the current chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.cache == nil {
				return clierr.New(clierr.CodeConfigInvalid, "cache is disabled or unavailable")
			}
			chainID := s.settings.ChainID
			if all {
				chainID = ""
			}
			removed, err := s.cache.Purge(chainID)
			if err != nil {
				return clierr.Wrap(clierr.CodeUnknown, "purge cache", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), map[string]any{
				"removed": removed,
				"chainId": chainID,
			}, nil, cacheMetaBypass())
		},
	}
	purge.Flags().BoolVar(&all, "all", false, "Purge entries for every chain")
	root.AddCommand(purge)
	return root
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = strings.Join(args, " ")
			}
			data, err := schema.Build(s.root, path, s.moduleCatalog())
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil, cacheMetaBypass())
		},
	}
}

// moduleCatalog maps the dispatching commands to the modules they accept.
func (s *runtimeState) moduleCatalog() map[string][]schema.ModuleSchema {
	listing := s.dispatcher.ListModules()
	return map[string][]schema.ModuleSchema{
		"query": s.moduleSchemas("query", listing.QueryModules),
		"tx":    s.moduleSchemas("tx", listing.TxModules),
	}
}

func (s *runtimeState) moduleSchemas(kind string, modules []model.ModuleSummary) []schema.ModuleSchema {
	items := make([]schema.ModuleSchema, 0, len(modules))
	for _, m := range modules {
		subs, err := s.dispatcher.ListSubcommands(kind, m.Name)
		if err != nil {
			continue
		}
		item := schema.ModuleSchema{
			Name:        m.Name,
			Description: m.Description,
			Subcommands: make([]schema.SubcommandSchema, 0, len(subs.Subcommands)),
		}
		for _, sub := range subs.Subcommands {
			item.Subcommands = append(item.Subcommands, schema.SubcommandSchema{Name: sub.Name, Description: sub.Description, Usage: sub.Usage})
		}
		items = append(items, item)
	}
	return items
}

func (s *runtimeState) newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.flags.JSON {
				return s.emitSuccess(trimRootPath(cmd.CommandPath()), version.Current(), nil, cacheMetaBypass())
			}
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}
