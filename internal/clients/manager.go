// Package clients owns the per-chain collaborator bundle: REST and node
// clients, the signing gateway client, the wallet and the rate limiter.
// Bundles are built lazily, once per chain identity, and shared by every
// dispatch until Reset.
package clients

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/comet"
	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/httpx"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/lcd"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/ratelimit"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/signing"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/wallet"
)

// Identity keys the client cache.
type Identity struct {
	ChainID string
	RPCURL  string
}

func (i Identity) String() string {
	return i.ChainID + "@" + i.RPCURL
}

// Config is everything a Factory needs to build a bundle.
type Config struct {
	ChainID           string
	RPCURL            string
	RESTURL           string
	SignerURL         string
	SignerToken       string
	AddressPrefix     string
	Timeout           time.Duration
	RequestsPerSecond int
}

func (c Config) Identity() Identity {
	return Identity{ChainID: c.ChainID, RPCURL: c.RPCURL}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.ChainID) == "" {
		return clierr.New(clierr.CodeConfigInvalid, "chain id is required; set --chain-id, --network or MANIFEST_CHAIN_ID")
	}
	if strings.TrimSpace(c.RPCURL) == "" {
		return clierr.New(clierr.CodeConfigInvalid, "rpc url is required; set --rpc-url, --network or MANIFEST_RPC_URL")
	}
	if strings.TrimSpace(c.RESTURL) == "" {
		return clierr.New(clierr.CodeConfigInvalid, "rest url is required; set --rest-url, --network or MANIFEST_REST_URL")
	}
	if strings.TrimSpace(c.AddressPrefix) == "" {
		return clierr.New(clierr.CodeConfigInvalid, "address prefix is required")
	}
	return nil
}

// Clients is one ready bundle.
type Clients struct {
	Identity      Identity
	AddressPrefix string
	LCD           *lcd.Client
	Comet         *comet.Client
	Signing       *signing.Client
	Limiter       *ratelimit.Limiter
	Wallet        wallet.Wallet
}

// Signer connects the wallet on first use and returns its signer.
func (c *Clients) Signer(ctx context.Context) (wallet.Signer, error) {
	if c.Wallet == nil {
		return nil, clierr.New(clierr.CodeWalletNotConnected, "wallet not connected: no key source configured")
	}
	if err := c.Wallet.Connect(ctx); err != nil {
		return nil, err
	}
	return c.Wallet.Signer(ctx)
}

// Close releases the node connection and drops the wallet key.
func (c *Clients) Close() {
	if c.Comet != nil {
		c.Comet.Close()
	}
	if c.Wallet != nil {
		c.Wallet.Disconnect()
	}
}

// Factory builds a bundle. It must not cache anything itself.
type Factory func(ctx context.Context, cfg Config) (*Clients, error)

// NewFactory returns the production factory. newWallet may be nil, in
// which case transactions fail with WALLET_NOT_CONNECTED.
func NewFactory(newWallet func(prefix string) (wallet.Wallet, error)) Factory {
	return func(ctx context.Context, cfg Config) (*Clients, error) {
		node, err := comet.Dial(ctx, cfg.RPCURL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		bundle := &Clients{
			Identity:      cfg.Identity(),
			AddressPrefix: cfg.AddressPrefix,
			LCD:           lcd.New(httpx.New(cfg.Timeout, clierr.CodeQueryFailed), cfg.RESTURL),
			Comet:         node,
			Signing:       signing.New(httpx.New(cfg.Timeout, clierr.CodeTxFailed), cfg.SignerURL, cfg.SignerToken, cfg.ChainID),
			Limiter:       ratelimit.New(cfg.RequestsPerSecond),
		}
		if newWallet != nil {
			w, err := newWallet(cfg.AddressPrefix)
			if err != nil {
				node.Close()
				return nil, err
			}
			bundle.Wallet = w
		}
		return bundle, nil
	}
}

// Manager caches one bundle per identity. Concurrent first callers share a
// single factory call; a failed build is not remembered, so the next call
// tries again.
type Manager struct {
	cfg     Config
	factory Factory
	log     *zap.Logger

	group singleflight.Group

	mu    sync.Mutex
	ready map[Identity]*Clients
	gen   uint64
}

func NewManager(cfg Config, factory Factory, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg:     cfg,
		factory: factory,
		log:     log.Named("clients"),
		ready:   map[Identity]*Clients{},
	}
}

// Get returns the bundle for the configured identity, building it if needed.
func (m *Manager) Get(ctx context.Context) (*Clients, error) {
	if err := m.cfg.validate(); err != nil {
		return nil, err
	}
	id := m.cfg.Identity()

	m.mu.Lock()
	if c, ok := m.ready[id]; ok {
		m.mu.Unlock()
		return c, nil
	}
	gen := m.gen
	m.mu.Unlock()

	ch := m.group.DoChan(fmt.Sprintf("%d/%s", gen, id), func() (any, error) {
		m.log.Debug("initializing clients", zap.String("chain_id", id.ChainID), zap.String("rpc_url", id.RPCURL))
		// The build outlives any single caller's context.
		c, err := m.factory(context.WithoutCancel(ctx), m.cfg)
		if err != nil {
			m.log.Warn("client initialization failed", zap.String("chain_id", id.ChainID), zap.Error(err))
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.gen != gen {
			c.Close()
			return nil, clierr.New(clierr.CodeRPCConnectionFailed, "client cache was reset during initialization")
		}
		if existing, ok := m.ready[id]; ok {
			c.Close()
			return existing, nil
		}
		m.ready[id] = c
		return c, nil
	})

	select {
	case <-ctx.Done():
		return nil, clierr.Wrap(clierr.CodeRPCConnectionFailed, "client initialization abandoned", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			if _, ok := clierr.As(res.Err); ok {
				return nil, res.Err
			}
			return nil, clierr.Wrap(clierr.CodeRPCConnectionFailed, "initialize clients for "+id.String(), res.Err)
		}
		return res.Val.(*Clients), nil
	}
}

// Reset closes every cached bundle. Builds still in flight are discarded
// when they finish.
func (m *Manager) Reset() {
	m.mu.Lock()
	ready := m.ready
	m.ready = map[Identity]*Clients{}
	m.gen++
	m.mu.Unlock()

	for id, c := range ready {
		m.log.Debug("closing clients", zap.String("identity", id.String()))
		c.Close()
	}
}
