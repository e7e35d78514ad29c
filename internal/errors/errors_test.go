package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapKeepsCauseMessage(t *testing.T) {
	cause := fmt.Errorf("dial tcp 127.0.0.1:1317: connect: connection refused")
	err := Wrap(CodeQueryFailed, "bank balance", cause)
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected cause text in error, got %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable via errors.Is")
	}
}

func TestWithDetailsDoesNotOverwrite(t *testing.T) {
	base := WithDetails(CodeQueryFailed, "boom", map[string]any{"module": "handler-specific"})
	merged := base.WithDetails(map[string]any{"module": "bank", "subcommand": "balance"})
	if merged.Details["module"] != "handler-specific" {
		t.Fatalf("expected existing key to win, got %v", merged.Details["module"])
	}
	if merged.Details["subcommand"] != "balance" {
		t.Fatalf("expected new key to be merged, got %v", merged.Details)
	}
	if _, ok := base.Details["subcommand"]; ok {
		t.Fatal("expected original error to be left untouched")
	}
}

func TestNonRetryableSet(t *testing.T) {
	for _, code := range []Code{CodeConfigInvalid, CodeWalletNotConnected, CodeInvalidMnemonic, CodeInvalidAddress, CodeUnsupportedQuery, CodeUnsupportedTx, CodeUnknownModule, CodeUnknownSubcommand, CodeInsufficientFunds} {
		if !IsNonRetryable(code) {
			t.Fatalf("expected %s to be non-retryable", code)
		}
	}
	for _, code := range []Code{CodeQueryFailed, CodeTxFailed, CodeRPCConnectionFailed} {
		if IsNonRetryable(code) {
			t.Fatalf("expected %s to be retryable by kind", code)
		}
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("expected 0 for nil, got %d", got)
	}
	if got := ExitCode(New(CodeBlocked, "blocked")); got != 16 {
		t.Fatalf("expected 16 for blocked, got %d", got)
	}
	if got := ExitCode(errors.New("plain")); got != 1 {
		t.Fatalf("expected 1 for foreign error, got %d", got)
	}
	if got := CodeOf(fmt.Errorf("wrapped: %w", New(CodeTxFailed, "x"))); got != CodeTxFailed {
		t.Fatalf("expected wrapped code, got %s", got)
	}
}
