package wallet

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // cosmos account addresses are defined over ripemd160

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
)

const (
	EnvPrivateKey           = "MANIFEST_PRIVATE_KEY"
	EnvPrivateKeyFile       = "MANIFEST_PRIVATE_KEY_FILE"
	EnvKeystorePath         = "MANIFEST_KEYSTORE_PATH"
	EnvKeystorePassword     = "MANIFEST_KEYSTORE_PASSWORD"
	EnvKeystorePasswordFile = "MANIFEST_KEYSTORE_PASSWORD_FILE"
	EnvMnemonic             = "MANIFEST_MNEMONIC"

	KeySourceAuto     = "auto"
	KeySourceEnv      = "env"
	KeySourceFile     = "file"
	KeySourceKeystore = "keystore"

	defaultPrivateKeyRelativePath = "manifest-mcp/key.hex"
)

// KeyConfig lists the places a secp256k1 key may come from. The first
// non-empty source wins: hex, key file, keystore.
type KeyConfig struct {
	PrivateKeyHex        string
	PrivateKeyFile       string
	KeystorePath         string
	KeystorePassword     string
	KeystorePasswordFile string
	Mnemonic             string
	AddressPrefix        string
}

// KeyConfigFromEnv reads key locations from the environment, restricted to
// source.
func KeyConfigFromEnv(source, prefix string) (KeyConfig, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		source = KeySourceAuto
	}
	cfg := KeyConfig{
		PrivateKeyHex:        strings.TrimSpace(os.Getenv(EnvPrivateKey)),
		PrivateKeyFile:       strings.TrimSpace(os.Getenv(EnvPrivateKeyFile)),
		KeystorePath:         strings.TrimSpace(os.Getenv(EnvKeystorePath)),
		KeystorePassword:     strings.TrimSpace(os.Getenv(EnvKeystorePassword)),
		KeystorePasswordFile: strings.TrimSpace(os.Getenv(EnvKeystorePasswordFile)),
		Mnemonic:             os.Getenv(EnvMnemonic),
		AddressPrefix:        prefix,
	}
	if cfg.PrivateKeyFile == "" {
		cfg.PrivateKeyFile = discoverDefaultPrivateKeyFile()
	}

	switch source {
	case KeySourceAuto:
	case KeySourceEnv:
		cfg.PrivateKeyFile = ""
		cfg.KeystorePath = ""
	case KeySourceFile:
		cfg.PrivateKeyHex = ""
		cfg.KeystorePath = ""
	case KeySourceKeystore:
		cfg.PrivateKeyHex = ""
		cfg.PrivateKeyFile = ""
	default:
		return KeyConfig{}, clierr.Newf(clierr.CodeConfigInvalid, "unsupported key source %q (expected %s|%s|%s|%s)", source, KeySourceAuto, KeySourceEnv, KeySourceFile, KeySourceKeystore)
	}
	return cfg, nil
}

type walletState int

const (
	stateIdle walletState = iota
	stateConnected
	stateClosed
)

// KeyWallet holds a single secp256k1 key. Once disconnected it cannot be
// connected again; build a new wallet instead.
type KeyWallet struct {
	mu     sync.Mutex
	cfg    KeyConfig
	state  walletState
	signer *keySigner
}

func NewKeyWallet(cfg KeyConfig) *KeyWallet {
	return &KeyWallet{cfg: cfg}
}

func (w *KeyWallet) Connect(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case stateConnected:
		return nil
	case stateClosed:
		return notConnected("wallet was disconnected and cannot reconnect")
	}

	if strings.TrimSpace(w.cfg.Mnemonic) != "" {
		if err := ValidateMnemonic(w.cfg.Mnemonic); err != nil {
			return err
		}
		if !w.hasKeySource() {
			return clierr.New(clierr.CodeConfigInvalid, "mnemonic key derivation is not supported; configure a private key, key file or keystore")
		}
	}

	pk, err := loadPrivateKey(w.cfg)
	if err != nil {
		return err
	}
	signer, err := newKeySigner(pk, w.cfg.AddressPrefix)
	if err != nil {
		return err
	}
	w.signer = signer
	w.cfg.PrivateKeyHex = ""
	w.cfg.KeystorePassword = ""
	w.cfg.Mnemonic = ""
	w.state = stateConnected
	return nil
}

// Disconnect drops the key. Later calls fail with WALLET_NOT_CONNECTED.
func (w *KeyWallet) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.signer != nil {
		w.signer.wipe()
		w.signer = nil
	}
	w.cfg = KeyConfig{}
	w.state = stateClosed
}

func (w *KeyWallet) Address(ctx context.Context) (string, error) {
	s, err := w.Signer(ctx)
	if err != nil {
		return "", err
	}
	return s.Address(), nil
}

func (w *KeyWallet) Signer(_ context.Context) (Signer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case stateIdle:
		return nil, notConnected("call Connect first")
	case stateClosed:
		return nil, notConnected("wallet was disconnected")
	}
	return w.signer, nil
}

func (w *KeyWallet) hasKeySource() bool {
	return strings.TrimSpace(w.cfg.PrivateKeyHex) != "" ||
		strings.TrimSpace(w.cfg.PrivateKeyFile) != "" ||
		strings.TrimSpace(w.cfg.KeystorePath) != ""
}

type keySigner struct {
	mu      sync.RWMutex
	key     *ecdsa.PrivateKey
	pubKey  []byte
	address string
}

func newKeySigner(pk *ecdsa.PrivateKey, prefix string) (*keySigner, error) {
	if prefix == "" {
		return nil, clierr.New(clierr.CodeConfigInvalid, "address prefix is required")
	}
	pub := crypto.CompressPubkey(&pk.PublicKey)
	addr, err := AccountAddress(prefix, pub)
	if err != nil {
		return nil, err
	}
	return &keySigner{key: pk, pubKey: pub, address: addr}, nil
}

func (s *keySigner) Address() string { return s.address }

func (s *keySigner) PubKey() []byte {
	out := make([]byte, len(s.pubKey))
	copy(out, s.pubKey)
	return out
}

func (s *keySigner) Sign(digest []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return nil, notConnected("signing key was released")
	}
	if len(digest) != 32 {
		return nil, clierr.Newf(clierr.CodeTxFailed, "signing digest must be 32 bytes, got %d", len(digest))
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeTxFailed, "sign digest", err)
	}
	return sig, nil
}

func (s *keySigner) wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil && s.key.D != nil {
		s.key.D.SetInt64(0)
	}
	s.key = nil
}

// AccountAddress derives the bech32 account address of a compressed
// secp256k1 public key: ripemd160(sha256(pubkey)).
func AccountAddress(prefix string, compressedPubKey []byte) (string, error) {
	if len(compressedPubKey) != 33 {
		return "", clierr.Newf(clierr.CodeInvalidAddress, "compressed public key must be 33 bytes, got %d", len(compressedPubKey))
	}
	sha := sha256.Sum256(compressedPubKey)
	hasher := ripemd160.New()
	_, _ = hasher.Write(sha[:])
	addr, err := bech32.ConvertAndEncode(prefix, hasher.Sum(nil))
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInvalidAddress, "encode account address", err)
	}
	return addr, nil
}

func loadPrivateKey(cfg KeyConfig) (*ecdsa.PrivateKey, error) {
	if strings.TrimSpace(cfg.PrivateKeyHex) != "" {
		return parseHexKey(cfg.PrivateKeyHex)
	}
	if strings.TrimSpace(cfg.PrivateKeyFile) != "" {
		buf, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeWalletNotConnected, "read private key file", err)
		}
		return parseHexKey(string(buf))
	}
	if strings.TrimSpace(cfg.KeystorePath) != "" {
		password := cfg.KeystorePassword
		if strings.TrimSpace(password) == "" && strings.TrimSpace(cfg.KeystorePasswordFile) != "" {
			buf, err := os.ReadFile(cfg.KeystorePasswordFile)
			if err != nil {
				return nil, clierr.Wrap(clierr.CodeWalletNotConnected, "read keystore password file", err)
			}
			password = strings.TrimSpace(string(buf))
		}
		if strings.TrimSpace(password) == "" {
			return nil, clierr.New(clierr.CodeWalletNotConnected, "keystore password is required")
		}
		buf, err := os.ReadFile(cfg.KeystorePath)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeWalletNotConnected, "read keystore file", err)
		}
		key, err := keystore.DecryptKey(buf, password)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeWalletNotConnected, "decrypt keystore", err)
		}
		return key.PrivateKey, nil
	}
	return nil, clierr.New(clierr.CodeWalletNotConnected,
		fmt.Sprintf("missing signing key: set %s or %s or %s", EnvPrivateKey, EnvPrivateKeyFile, EnvKeystorePath))
}

func parseHexKey(raw string) (*ecdsa.PrivateKey, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "0x")
	if clean == "" {
		return nil, clierr.New(clierr.CodeWalletNotConnected, "empty private key")
	}
	pk, err := crypto.HexToECDSA(clean)
	if err != nil {
		// the key text must not reach the message
		return nil, clierr.New(clierr.CodeWalletNotConnected, "parse private key: expected 32 bytes of hex")
	}
	return pk, nil
}

func discoverDefaultPrivateKeyFile() string {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	path := filepath.Join(base, defaultPrivateKeyRelativePath)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}
