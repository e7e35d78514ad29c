// Package redact strips secrets from values before they leave the process
// in error envelopes or logs.
package redact

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	Marker          = "[REDACTED]"
	DepthMarker     = "[MAX_DEPTH_EXCEEDED]"
	DefaultMaxDepth = 10
)

var exactKeys = map[string]struct{}{
	"mnemonic":   {},
	"privatekey": {},
	"secret":     {},
	"password":   {},
	"seed":       {},
	"key":        {},
	"token":      {},
	"apikey":     {},
}

var containedKeys = []string{"mnemonic", "privatekey", "secret", "password", "apikey"}

// IsSensitiveKey matches key against the sensitive-name list ignoring case,
// underscores and hyphens.
func IsSensitiveKey(key string) bool {
	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(key))
	if _, ok := exactKeys[norm]; ok {
		return true
	}
	for _, c := range containedKeys {
		if strings.Contains(norm, c) {
			return true
		}
	}
	return false
}

// LooksLikeMnemonic reports whether s splits into exactly 12 or 24 words.
func LooksLikeMnemonic(s string) bool {
	n := len(strings.Fields(s))
	return n == 12 || n == 24
}

// Value returns a redacted copy of v. Typed values such as structs are
// normalized through encoding/json first so their field names can be
// inspected. Nesting beyond DefaultMaxDepth, cycles included, is cut off with
// DepthMarker.
func Value(v any) any {
	return walk(v, 0)
}

// Map is Value for detail maps.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := Value(m).(map[string]any)
	return out
}

// Strings redacts each element of a raw argument list.
func Strings(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	for i, s := range items {
		if LooksLikeMnemonic(s) {
			out[i] = Marker
			continue
		}
		out[i] = s
	}
	return out
}

// wordRun matches a run of short lowercase words, the shape of a BIP-39
// phrase echoed inside free text.
var wordRun = regexp.MustCompile(`\b[a-z]{3,8}(?: [a-z]{3,8})+\b`)

// Message redacts free text such as an error message. Every token that looks
// like a mnemonic is replaced wherever it appears, quoted or not, and any run
// of exactly 12 or 24 short lowercase words is replaced as well.
func Message(msg string, tokens []string) string {
	if msg == "" {
		return msg
	}
	var secrets []string
	for _, tok := range tokens {
		if !LooksLikeMnemonic(tok) {
			continue
		}
		secrets = append(secrets, strconv.Quote(tok), tok)
		if trimmed := strings.TrimSpace(tok); trimmed != tok {
			secrets = append(secrets, strconv.Quote(trimmed), trimmed)
		}
	}
	sort.SliceStable(secrets, func(i, j int) bool { return len(secrets[i]) > len(secrets[j]) })
	for _, secret := range secrets {
		msg = strings.ReplaceAll(msg, secret, Marker)
	}
	return wordRun.ReplaceAllStringFunc(msg, func(run string) string {
		if LooksLikeMnemonic(run) {
			return Marker
		}
		return run
	})
}

func walk(v any, depth int) any {
	if depth > DefaultMaxDepth {
		return DepthMarker
	}
	switch t := v.(type) {
	case nil, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return t
	case string:
		if LooksLikeMnemonic(t) {
			return Marker
		}
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if IsSensitiveKey(k) {
				out[k] = Marker
				continue
			}
			out[k] = walk(val, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = walk(val, depth+1)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = walk(s, depth+1)
		}
		return out
	}
	normalized, ok := normalize(v)
	if !ok {
		return DepthMarker
	}
	return walk(normalized, depth)
}

// normalize round-trips v through JSON. Marshal fails on cyclic values.
func normalize(v any) (any, bool) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, false
	}
	return out, true
}
