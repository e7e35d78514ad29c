package app

import (
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/journal"
)

var journalStatuses = []journal.Status{
	journal.StatusBroadcast,
	journal.StatusConfirmed,
	journal.StatusFailed,
	journal.StatusRejected,
}

func (s *runtimeState) newHistoryCommand() *cobra.Command {
	root := &cobra.Command{Use: "history", Short: "Inspect the local transaction journal"}

	var (
		module    string
		status    string
		sender    string
		limit     int
		allChains bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List journaled transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 || limit > 1000 {
				return clierr.Newf(clierr.CodeUsage, "--limit must be between 1 and 1000, got %d", limit)
			}
			filter := journal.Filter{
				Module: strings.TrimSpace(module),
				Sender: strings.TrimSpace(sender),
			}
			if !allChains {
				filter.ChainID = s.settings.ChainID
			}
			if strings.TrimSpace(status) != "" {
				st, err := parseJournalStatus(status)
				if err != nil {
					return err
				}
				filter.Status = st
			}
			entries, err := s.journal.List(filter, limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeUnknown, "list journal", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), entries, nil, cacheMetaBypass())
		},
	}
	list.Flags().StringVar(&module, "module", "", "Filter by module")
	list.Flags().StringVar(&status, "status", "", "Filter by status (broadcast|confirmed|failed|rejected)")
	list.Flags().StringVar(&sender, "sender", "", "Filter by signer address")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum entries to return")
	list.Flags().BoolVar(&allChains, "all-chains", false, "Include entries from every chain id")

	show := &cobra.Command{
		Use:   "show <entry-id|tx-hash>",
		Short: "Show one journaled transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := s.journal.Get(strings.TrimSpace(args[0]))
			if err != nil {
				if _, ok := clierr.As(err); ok {
					return err
				}
				return clierr.Wrap(clierr.CodeUnknown, "read journal", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), entry, nil, cacheMetaBypass())
		},
	}

	root.AddCommand(list)
	root.AddCommand(show)
	return root
}

func parseJournalStatus(raw string) (journal.Status, error) {
	norm := journal.Status(strings.ToLower(strings.TrimSpace(raw)))
	names := make([]string, 0, len(journalStatuses))
	for _, st := range journalStatuses {
		if st == norm {
			return st, nil
		}
		names = append(names, string(st))
	}
	return "", clierr.WithDetails(clierr.CodeUsage, "unsupported --status "+raw, map[string]any{
		"allowedValues": names,
	})
}
