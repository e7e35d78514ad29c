package dispatch

import (
	"context"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/clients"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/registry"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/signing"
)

// Env is the static chain context handlers validate against.
type Env struct {
	AddressPrefix string
	Denom         string
}

// QueryCall performs the remote part of a query. It runs inside the retry
// loop, once per attempt.
type QueryCall func(ctx context.Context, c *clients.Clients) (any, error)

// QueryHandler validates args for sub and returns the call to run. It must
// not perform I/O; its errors are never retried.
type QueryHandler func(env Env, sub string, args []string) (QueryCall, error)

// TxPlan is what a transaction handler wants broadcast.
type TxPlan struct {
	Msgs []signing.Msg
}

// TxHandler validates args for sub and builds the messages sender signs.
// Like QueryHandler it must not perform I/O.
type TxHandler func(env Env, sub string, args []string, sender string) (TxPlan, error)

type (
	QueryTable = registry.Table[QueryHandler]
	TxTable    = registry.Table[TxHandler]
)

// ClientSource hands out the shared client bundle.
type ClientSource interface {
	Get(ctx context.Context) (*clients.Clients, error)
}
