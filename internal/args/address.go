package args

import (
	"encoding/hex"
	"strings"

	"github.com/cosmos/cosmos-sdk/types/bech32"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
)

// Address checks that raw decodes as a bech32 address. When expectedPrefix
// is set the human-readable part must match it exactly.
func (p Parser) Address(field, raw, expectedPrefix string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", clierr.Newf(clierr.CodeInvalidAddress, "invalid %s: received empty string; expected a bech32 address", field)
	}
	prefix, payload, err := bech32.DecodeAndConvert(v)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInvalidAddress, "invalid "+field+" \""+v+"\": expected a bech32 address", err)
	}
	if len(payload) == 0 {
		return "", clierr.Newf(clierr.CodeInvalidAddress, "invalid %s %q: empty address payload", field, v)
	}
	if expectedPrefix != "" && prefix != expectedPrefix {
		return "", clierr.WithDetails(clierr.CodeInvalidAddress,
			"invalid "+field+" \""+v+"\": expected prefix \""+expectedPrefix+"\" but got \""+prefix+"\"",
			map[string]any{"expectedPrefix": expectedPrefix, "actualPrefix": prefix},
		)
	}
	return v, nil
}

// HexBytes decodes a case-insensitive hex string, with or without 0x, into
// at most maxLen bytes. maxLen <= 0 disables the length check.
func (p Parser) HexBytes(field, raw string, maxLen int) ([]byte, error) {
	v := strings.TrimSpace(raw)
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		v = v[2:]
	}
	if v == "" {
		return nil, p.fail("invalid %s: received empty string; expected hex bytes", field)
	}
	if len(v)%2 != 0 {
		return nil, p.fail("invalid %s: hex string has odd length %d", field, len(v))
	}
	if maxLen > 0 && len(v)/2 > maxLen {
		return nil, p.fail("invalid %s: %d bytes exceeds the maximum of %d", field, len(v)/2, maxLen)
	}
	buf, err := hex.DecodeString(v)
	if err != nil {
		return nil, p.fail("invalid %s: contains non-hex characters", field)
	}
	return buf, nil
}

// BytesToHex is the inverse of HexBytes: lowercase, no prefix.
func BytesToHex(buf []byte) string {
	return hex.EncodeToString(buf)
}
