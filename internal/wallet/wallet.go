// Package wallet supplies the account that signs transactions.
//
// Go offers no way to guarantee that key material is wiped from memory.
// Disconnect drops every reference the wallet holds and overwrites the
// scalar it owns; copies made by the runtime may survive until collected.
package wallet

import (
	"context"
	"strings"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
)

// Signer signs 32-byte digests on behalf of one account.
type Signer interface {
	Address() string
	// PubKey is the 33-byte compressed secp256k1 public key.
	PubKey() []byte
	// Sign returns a 65-byte [R || S || V] signature over digest.
	Sign(digest []byte) ([]byte, error)
}

// Wallet is the connect / address / signer contract the dispatcher relies on.
type Wallet interface {
	Connect(ctx context.Context) error
	Disconnect()
	Address(ctx context.Context) (string, error)
	Signer(ctx context.Context) (Signer, error)
}

var mnemonicLengths = map[int]struct{}{12: {}, 15: {}, 18: {}, 21: {}, 24: {}}

// ValidateMnemonic checks the word count of a BIP-39 phrase. The phrase is
// never echoed back in the error.
func ValidateMnemonic(phrase string) error {
	words := strings.Fields(phrase)
	if _, ok := mnemonicLengths[len(words)]; !ok {
		return clierr.Newf(clierr.CodeInvalidMnemonic, "mnemonic must have 12, 15, 18, 21 or 24 words, got %d", len(words))
	}
	for _, w := range words {
		if strings.ToLower(w) != w {
			return clierr.New(clierr.CodeInvalidMnemonic, "mnemonic words must be lowercase")
		}
	}
	return nil
}

func notConnected(reason string) error {
	return clierr.New(clierr.CodeWalletNotConnected, "wallet not connected: "+reason)
}
