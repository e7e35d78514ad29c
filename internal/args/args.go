// Package args validates and parses the raw string tokens an agent passes to
// a module subcommand. Every failure is a *clierr.Error naming the offending
// field and the expected format, raised before any network access.
package args

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
)

// Parser tags validation failures with the error code of the side that is
// parsing (query or transaction).
type Parser struct {
	Code clierr.Code
}

var (
	Query = Parser{Code: clierr.CodeQueryFailed}
	Tx    = Parser{Code: clierr.CodeTxFailed}
)

func (p Parser) fail(format string, a ...any) *clierr.Error {
	return clierr.Newf(p.Code, format, a...)
}

// NonEmpty returns raw trimmed, failing when nothing is left.
func (p Parser) NonEmpty(field, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", p.fail("%s is required: received empty string", field)
	}
	return v, nil
}

// Int parses a signed 64-bit integer. Empty input is an error, never zero.
func (p Parser) Int(field, raw string) (int64, error) {
	v, err := p.NonEmpty(field, raw)
	if err != nil {
		return 0, err
	}
	n, perr := strconv.ParseInt(v, 10, 64)
	if perr != nil {
		return 0, p.fail("invalid %s %q: expected an integer", field, raw)
	}
	return n, nil
}

// Uint parses an unsigned 64-bit integer.
func (p Parser) Uint(field, raw string) (uint64, error) {
	v, err := p.NonEmpty(field, raw)
	if err != nil {
		return 0, err
	}
	n, perr := strconv.ParseUint(v, 10, 64)
	if perr != nil {
		return 0, p.fail("invalid %s %q: expected a non-negative integer", field, raw)
	}
	return n, nil
}

// BigInt parses an arbitrarily large non-negative integer.
func (p Parser) BigInt(field, raw string) (*big.Int, error) {
	v, err := p.NonEmpty(field, raw)
	if err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(v, 10)
	if !ok || n.Sign() < 0 || strings.HasPrefix(v, "+") {
		return nil, p.fail("invalid %s %q: expected a non-negative integer", field, raw)
	}
	return n, nil
}

// ProposalID parses a governance proposal id, which starts at 1.
func (p Parser) ProposalID(raw string) (uint64, error) {
	id, err := p.Uint("proposal-id", raw)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, p.fail("invalid proposal-id %q: proposal ids start at 1", raw)
	}
	return id, nil
}

// Enum matches raw case-insensitively against allowed and returns the
// canonical spelling.
func (p Parser) Enum(field, raw string, allowed []string) (string, error) {
	v, err := p.NonEmpty(field, raw)
	if err != nil {
		return "", err
	}
	for _, candidate := range allowed {
		if strings.EqualFold(candidate, v) {
			return candidate, nil
		}
	}
	return "", p.fail("invalid %s %q: expected one of %s", field, raw, strings.Join(allowed, ", "))
}

// JSONObject checks that raw is a JSON object and returns it compacted.
func (p Parser) JSONObject(field, raw string) (json.RawMessage, error) {
	v, err := p.NonEmpty(field, raw)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(v), &obj); err != nil || obj == nil {
		return nil, p.fail("invalid %s: expected a JSON object like {\"key\":\"value\"}", field)
	}
	buf, _ := json.Marshal(obj)
	return buf, nil
}

// ColonPair splits "left:right" on the first colon only.
func (p Parser) ColonPair(field, raw string) (string, string, error) {
	v := strings.TrimSpace(raw)
	idx := strings.Index(v, ":")
	if idx < 0 {
		return "", "", p.fail("invalid %s %q: missing ':' separator, expected <left>:<right>", field, raw)
	}
	left, right := v[:idx], v[idx+1:]
	if strings.TrimSpace(left) == "" {
		return "", "", p.fail("invalid %s %q: empty value before ':'", field, raw)
	}
	if strings.TrimSpace(right) == "" {
		return "", "", p.fail("invalid %s %q: empty value after ':'", field, raw)
	}
	return left, right, nil
}

// Require checks that at least min positional arguments were received.
func (p Parser) Require(received []string, min int, names []string, context string) error {
	if len(received) >= min {
		return nil
	}
	expected := names
	if len(expected) > min {
		expected = expected[:min]
	}
	got := "none"
	if len(received) > 0 {
		quoted := make([]string, 0, len(received))
		for _, r := range received {
			quoted = append(quoted, strconv.Quote(r))
		}
		got = strings.Join(quoted, ", ")
	}
	return clierr.WithDetails(p.Code,
		fmt.Sprintf("%s requires %d argument(s): %s; received %d: %s", context, min, strings.Join(expected, ", "), len(received), got),
		map[string]any{"expectedArgs": expected, "receivedArgs": received},
	)
}

// FlagValue is the result of scanning a token list for --name.
type FlagValue struct {
	Value    string
	Found    bool
	Consumed []int
}

func flagMarker(name string) string {
	return "--" + strings.TrimLeft(name, "-")
}

func looksLikeFlag(tok string) bool {
	return strings.HasPrefix(tok, "--")
}

// ExtractFlag scans tokens for "--name value" or "--name=value". The
// returned indexes let the caller drop the flag from the positional list.
func (p Parser) ExtractFlag(tokens []string, name string) (FlagValue, error) {
	marker := flagMarker(name)
	for i, tok := range tokens {
		if tok == marker {
			if i+1 >= len(tokens) || looksLikeFlag(tokens[i+1]) {
				return FlagValue{}, p.fail("flag %s requires a value", marker)
			}
			return FlagValue{Value: tokens[i+1], Found: true, Consumed: []int{i, i + 1}}, nil
		}
		if strings.HasPrefix(tok, marker+"=") {
			return FlagValue{Value: strings.TrimPrefix(tok, marker+"="), Found: true, Consumed: []int{i}}, nil
		}
	}
	return FlagValue{}, nil
}

// HasSwitch reports whether a value-less --name switch is present.
func HasSwitch(tokens []string, name string) (bool, []int) {
	marker := flagMarker(name)
	for i, tok := range tokens {
		if tok == marker {
			return true, []int{i}
		}
	}
	return false, nil
}

// FilterConsumed returns tokens without the given indexes.
func FilterConsumed(tokens []string, consumed ...[]int) []string {
	drop := make(map[int]struct{})
	for _, set := range consumed {
		for _, i := range set {
			drop[i] = struct{}{}
		}
	}
	out := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		if _, ok := drop[i]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}
