package policy

import (
	"testing"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
)

func TestCheckCommandAllowed(t *testing.T) {
	if err := CheckCommandAllowed(nil, "tx bank send"); err != nil {
		t.Fatalf("unexpected error with empty allowlist: %v", err)
	}
	if err := CheckCommandAllowed([]string{"query bank balance"}, "query  Bank balance"); err != nil {
		t.Fatalf("expected command to be allowed: %v", err)
	}
	if err := CheckCommandAllowed([]string{"query"}, "query staking validators"); err != nil {
		t.Fatalf("expected prefix to allow subcommands: %v", err)
	}
	err := CheckCommandAllowed([]string{"query"}, "tx bank send")
	if clierr.CodeOf(err) != clierr.CodeBlocked {
		t.Fatalf("expected COMMAND_BLOCKED, got %v", err)
	}
	if err := CheckCommandAllowed([]string{"query bank"}, "query banking"); err == nil {
		t.Fatal("prefix must match whole words")
	}
}
