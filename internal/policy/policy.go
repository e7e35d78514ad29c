package policy

import (
	"strings"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
)

// CheckCommandAllowed enforces --enable-commands. An entry allows its exact
// path and everything below it, so "query bank" admits "query bank balance".
// An empty allowlist allows everything.
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalize(commandPath)
	for _, allowed := range allowlist {
		prefix := normalize(allowed)
		if prefix == "" {
			continue
		}
		if normPath == prefix || strings.HasPrefix(normPath, prefix+" ") {
			return nil
		}
	}
	return clierr.WithDetails(clierr.CodeBlocked, "command blocked by --enable-commands policy", map[string]any{
		"command":         normPath,
		"enabledCommands": allowlist,
	})
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
