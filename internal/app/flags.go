package app

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
)

// applyInterleavedFlags scans the raw arguments of a command that disables
// cobra flag parsing. Flags the CLI itself defines (the command's own and
// the root's persistent flags) are applied; everything else, including
// module flags such as --limit or --memo, is returned in order for the
// handler. A bare "--" ends flag scanning.
func applyInterleavedFlags(cmd *cobra.Command, raw []string) ([]string, error) {
	rest := make([]string, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		tok := raw[i]
		if tok == "--" {
			rest = append(rest, raw[i+1:]...)
			break
		}
		if !strings.HasPrefix(tok, "--") || len(tok) == 2 {
			rest = append(rest, tok)
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimPrefix(tok, "--"), "=")
		fs, flag := lookupCLIFlag(cmd, name)
		if flag == nil {
			rest = append(rest, tok)
			continue
		}
		if !hasValue {
			if flag.NoOptDefVal != "" {
				value = flag.NoOptDefVal
			} else {
				if i+1 >= len(raw) {
					return nil, clierr.Newf(clierr.CodeUsage, "flag needs an argument: --%s", name)
				}
				i++
				value = raw[i]
			}
		}
		if err := fs.Set(name, value); err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "parse flags", err)
		}
	}
	return rest, nil
}

func lookupCLIFlag(cmd *cobra.Command, name string) (*pflag.FlagSet, *pflag.Flag) {
	if f := cmd.Flags().Lookup(name); f != nil {
		return cmd.Flags(), f
	}
	for c := cmd; c != nil; c = c.Parent() {
		if f := c.PersistentFlags().Lookup(name); f != nil {
			return c.PersistentFlags(), f
		}
	}
	return nil, nil
}

// dispatchInput is the failure envelope's view of a query or tx call.
func dispatchInput(rest []string) map[string]any {
	input := map[string]any{}
	if len(rest) > 0 {
		input["module"] = rest[0]
	}
	if len(rest) > 1 {
		input["subcommand"] = rest[1]
	}
	if len(rest) > 2 {
		input["args"] = append([]string(nil), rest[2:]...)
	}
	return input
}
