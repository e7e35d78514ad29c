// Package networks holds the built-in Manifest network presets. A preset
// only fills settings the user left empty.
package networks

import (
	"sort"
	"strings"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
)

const (
	DefaultAddressPrefix = "manifest"
	DefaultDenom         = "umfx"
)

type Network struct {
	Name          string `json:"name"`
	ChainID       string `json:"chainId"`
	RPCURL        string `json:"rpcUrl"`
	RESTURL       string `json:"restUrl"`
	SignerURL     string `json:"signerUrl,omitempty"`
	AddressPrefix string `json:"addressPrefix"`
	Denom         string `json:"denom"`
}

var presets = map[string]Network{
	"manifest-mainnet": {
		Name:          "manifest-mainnet",
		ChainID:       "manifest-1",
		RPCURL:        "https://nodes.liftedinit.app/manifest/rpc",
		RESTURL:       "https://nodes.liftedinit.app/manifest/api",
		AddressPrefix: DefaultAddressPrefix,
		Denom:         DefaultDenom,
	},
	"manifest-testnet": {
		Name:          "manifest-testnet",
		ChainID:       "manifest-ledger-testnet",
		RPCURL:        "https://nodes.liftedinit.tech/manifest/testnet/rpc",
		RESTURL:       "https://nodes.liftedinit.tech/manifest/testnet/api",
		AddressPrefix: DefaultAddressPrefix,
		Denom:         DefaultDenom,
	},
	"local": {
		Name:          "local",
		ChainID:       "manifest-ledger-beta",
		RPCURL:        "http://127.0.0.1:26657",
		RESTURL:       "http://127.0.0.1:1317",
		SignerURL:     "http://127.0.0.1:8080",
		AddressPrefix: DefaultAddressPrefix,
		Denom:         DefaultDenom,
	},
}

var aliases = map[string]string{
	"mainnet":  "manifest-mainnet",
	"testnet":  "manifest-testnet",
	"localnet": "local",
}

// Lookup resolves a preset by name or alias, case-insensitively.
func Lookup(name string) (Network, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	if n, ok := presets[key]; ok {
		return n, nil
	}
	return Network{}, clierr.WithDetails(clierr.CodeConfigInvalid, "unknown network "+name, map[string]any{
		"availableNetworks": Names(),
	})
}

func Names() []string {
	out := make([]string, 0, len(presets))
	for name := range presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func All() []Network {
	names := Names()
	out := make([]Network, 0, len(names))
	for _, name := range names {
		out = append(out, presets[name])
	}
	return out
}

// Resolve returns override when set, otherwise the preset value.
func Resolve(override, preset string) string {
	if v := strings.TrimSpace(override); v != "" {
		return v
	}
	return preset
}
