package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/args"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/cache"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/clients"
	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/httpx"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/journal"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/lcd"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/ratelimit"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/registry"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/retry"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/signing"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/wallet"
)

const testSender = "manifest1qyqszqgpqyqszqgpqyqszqgpqyqszqgpn3rfe5"

var fastRetry = retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

type stubSigner struct{}

func (stubSigner) Address() string { return testSender }
func (stubSigner) PubKey() []byte  { return append([]byte{0x02}, make([]byte, 32)...) }
func (stubSigner) Sign([]byte) ([]byte, error) {
	return make([]byte, 65), nil
}

type stubWallet struct{}

func (stubWallet) Connect(context.Context) error { return nil }
func (stubWallet) Disconnect()                   {}
func (stubWallet) Address(context.Context) (string, error) {
	return testSender, nil
}
func (stubWallet) Signer(context.Context) (wallet.Signer, error) { return stubSigner{}, nil }

type staticSource struct {
	clients *clients.Clients
	err     error
	calls   atomic.Int32
}

func (s *staticSource) Get(context.Context) (*clients.Clients, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.clients, nil
}

// gateway fakes the REST endpoint and the signing gateway in one server.
type gateway struct {
	mu         sync.Mutex
	broadcasts int
	lastBody   map[string]any
	txResponse map[string]any
	txStatus   int
	// failBroadcasts answers that many broadcasts with 503 first.
	failBroadcasts int
	// lookupFailures answers that many confirmation polls with 503 first;
	// a negative value fails every poll.
	lookupFailures int
	lookups        int
}

func (g *gateway) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/txs", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.broadcasts++
		if g.broadcasts <= g.failBroadcasts {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode broadcast body: %v", err)
		}
		g.lastBody = body
		status := g.txStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"tx_response": g.txResponse})
	})
	mux.HandleFunc("/cosmos/tx/v1beta1/txs/", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.lookups++
		failing := g.lookupFailures < 0 || g.lookups <= g.lookupFailures
		g.mu.Unlock()
		if failing {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"tx_response": map[string]any{
			"txhash": strings.TrimPrefix(r.URL.Path, "/cosmos/tx/v1beta1/txs/"),
			"height": "42",
			"code":   0,
		}})
	})
	return mux
}

func newBundle(url string, w wallet.Wallet) *clients.Clients {
	return &clients.Clients{
		Identity:      clients.Identity{ChainID: "manifest-ledger-beta", RPCURL: url},
		AddressPrefix: "manifest",
		LCD:           lcd.New(httpx.New(time.Second, clierr.CodeQueryFailed), url),
		Signing:       signing.New(httpx.New(time.Second, clierr.CodeTxFailed), url, "", "manifest-ledger-beta"),
		Limiter:       ratelimit.New(1000),
		Wallet:        w,
	}
}

var testEnv = Env{AddressPrefix: "manifest", Denom: "umfx"}

func queryTable(call QueryCall, ttl time.Duration) *QueryTable {
	return registry.MustNew(registry.KindQuery,
		registry.Module[QueryHandler]{
			Name:        "bank",
			Description: "balances",
			Subcommands: []registry.Subcommand{
				{Name: "balance", Description: "one balance", Usage: "<address> <denom>"},
				{Name: "params", Description: "module params", CacheTTL: ttl},
			},
			Handler: func(env Env, sub string, tokens []string) (QueryCall, error) {
				if sub == "balance" {
					if err := args.Query.Require(tokens, 2, []string{"address", "denom"}, "bank balance"); err != nil {
						return nil, err
					}
					if _, err := args.Query.Address("address", tokens[0], env.AddressPrefix); err != nil {
						return nil, err
					}
				}
				return call, nil
			},
		},
		registry.Module[QueryHandler]{Name: "staking", Description: "validators"},
	)
}

func txTable(seen *[]string) *TxTable {
	return registry.MustNew(registry.KindTx,
		registry.Module[TxHandler]{
			Name:        "bank",
			Description: "token transfers",
			Subcommands: []registry.Subcommand{{Name: "send", Description: "send tokens"}},
			Handler: func(env Env, sub string, tokens []string, sender string) (TxPlan, error) {
				*seen = append([]string(nil), tokens...)
				if err := args.Tx.Require(tokens, 2, []string{"recipient", "amount"}, "bank send"); err != nil {
					return TxPlan{}, err
				}
				coin, err := args.Tx.Amount("amount", tokens[1])
				if err != nil {
					return TxPlan{}, err
				}
				return TxPlan{Msgs: []signing.Msg{signing.NewMsg("/cosmos.bank.v1beta1.MsgSend", map[string]any{
					"from_address": sender,
					"to_address":   tokens[0],
					"amount":       []args.Coin{coin},
				})}}, nil
			},
		},
	)
}

func TestQueryRejectsMalformedNamesBeforeIO(t *testing.T) {
	src := &staticSource{clients: newBundle("http://127.0.0.1:1", nil)}
	d := New(queryTable(nil, 0), txTable(new([]string)), src, Options{Env: testEnv, Retry: fastRetry})

	for _, tc := range []struct{ module, sub string }{
		{"", "balance"},
		{"bank", "-balance"},
		{"bank/../x", "balance"},
		{strings.Repeat("a", 65), "balance"},
	} {
		_, err := d.Query(context.Background(), tc.module, tc.sub, nil)
		if err == nil {
			t.Fatal("expected an error")
		}
		if got := clierr.CodeOf(err); got != clierr.CodeQueryFailed {
			t.Fatalf("%q/%q: got %v, want %v", tc.module, tc.sub, got, clierr.CodeQueryFailed)
		}
	}
	_, err := d.Tx(context.Background(), "bank", "se nd", nil, false)
	if got := clierr.CodeOf(err); got != clierr.CodeTxFailed {
		t.Fatalf("clierr.CodeOf(err) = %v, want %v", got, clierr.CodeTxFailed)
	}
	if src.calls.Load() != 0 {
		t.Fatalf("src.calls.Load() = %v, want 0", src.calls.Load())
	}
}

func TestQueryUnknownModuleAndSubcommand(t *testing.T) {
	d := New(queryTable(nil, 0), txTable(new([]string)), &staticSource{}, Options{Env: testEnv})

	_, err := d.Query(context.Background(), "bnak", "balance", nil)
	cliErr, ok := clierr.As(err)
	if !ok {
		t.Fatalf("expected a structured error, got %v", err)
	}
	if got := cliErr.Code; got != clierr.CodeUnknownModule {
		t.Fatalf("cliErr.Code = %v, want %v", got, clierr.CodeUnknownModule)
	}
	if got, want := cliErr.Details["availableModules"], []string{"bank", "staking"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}

	_, err = d.Query(context.Background(), "bank", "balanse", nil)
	cliErr, ok = clierr.As(err)
	if !ok {
		t.Fatalf("expected a structured error, got %v", err)
	}
	if got := cliErr.Code; got != clierr.CodeUnsupportedQuery {
		t.Fatalf("cliErr.Code = %v, want %v", got, clierr.CodeUnsupportedQuery)
	}
	if got, want := cliErr.Details["availableSubcommands"], []string{"balance", "params"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
	if got, want := cliErr.Details["suggestions"], []string{"balance"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestQueryHandlerErrorsGetContextAndSkipClients(t *testing.T) {
	src := &staticSource{}
	d := New(queryTable(nil, 0), txTable(new([]string)), src, Options{Env: testEnv})

	_, err := d.Query(context.Background(), "bank", "balance", []string{"cosmos1abc", "umfx"})
	cliErr, ok := clierr.As(err)
	if !ok {
		t.Fatalf("expected a structured error, got %v", err)
	}
	if got := cliErr.Code; got != clierr.CodeInvalidAddress {
		t.Fatalf("cliErr.Code = %v, want %v", got, clierr.CodeInvalidAddress)
	}
	if got := cliErr.Details["module"]; got != "bank" {
		t.Fatalf("got %v, want %v", got, "bank")
	}
	if got := cliErr.Details["subcommand"]; got != "balance" {
		t.Fatalf("got %v, want %v", got, "balance")
	}
	if got, want := cliErr.Details["args"], []string{"cosmos1abc", "umfx"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}

	_, err = d.Query(context.Background(), "bank", "balance", []string{testSender})
	cliErr, ok = clierr.As(err)
	if !ok {
		t.Fatalf("expected a structured error, got %v", err)
	}
	if got := cliErr.Code; got != clierr.CodeQueryFailed {
		t.Fatalf("cliErr.Code = %v, want %v", got, clierr.CodeQueryFailed)
	}
	// Details set by the handler win over the generic context.
	if _, ok := cliErr.Details["expectedArgs"]; !ok {
		t.Fatalf("expected expectedArgs in details, got %v", cliErr.Details)
	}
	if src.calls.Load() != 0 {
		t.Fatalf("src.calls.Load() = %v, want 0", src.calls.Load())
	}
}

func TestQueryRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	call := func(ctx context.Context, c *clients.Clients) (any, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("read tcp: connection reset by peer")
		}
		return map[string]any{"balance": map[string]any{"denom": "umfx", "amount": "10"}}, nil
	}
	src := &staticSource{clients: newBundle("http://127.0.0.1:1", nil)}
	d := New(queryTable(call, 0), txTable(new([]string)), src, Options{Env: testEnv, Retry: fastRetry})

	res, err := d.Query(context.Background(), "bank", "balance", []string{testSender, "umfx"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts.Load() = %d, want 3", got)
	}
	if got := res.Module; got != "bank" {
		t.Fatalf("res.Module = %v, want %v", got, "bank")
	}
	if got := res.Subcommand; got != "balance" {
		t.Fatalf("res.Subcommand = %v, want %v", got, "balance")
	}
	if res.Result == nil {
		t.Fatal("expected res.Result to be set")
	}
}

// drained reports whether limiter has no token left right now.
func drained(limiter *ratelimit.Limiter) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	return errors.Is(limiter.Acquire(ctx), context.DeadlineExceeded)
}

func TestQueryAcquiresLimiterPerAttempt(t *testing.T) {
	var attempts atomic.Int32
	call := func(ctx context.Context, c *clients.Clients) (any, error) {
		attempts.Add(1)
		return nil, errors.New("read tcp: connection reset by peer")
	}
	bundle := newBundle("http://127.0.0.1:1", nil)
	bundle.Limiter = ratelimit.NewWithInterval(4, time.Hour)
	d := New(queryTable(call, 0), txTable(new([]string)), &staticSource{clients: bundle}, Options{Env: testEnv, Retry: fastRetry})

	_, err := d.Query(context.Background(), "bank", "params", nil)
	if err == nil {
		t.Fatal("expected the query to fail after retries")
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	// three attempts spent three of four tokens
	if drained(bundle.Limiter) {
		t.Fatal("limiter drained after three attempts, want one token left")
	}
	if !drained(bundle.Limiter) {
		t.Fatal("limiter still has tokens, want three spent by the attempts")
	}
}

func TestQueryPermanentFailureIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	call := func(ctx context.Context, c *clients.Clients) (any, error) {
		attempts.Add(1)
		return nil, errors.New("denom metadata missing")
	}
	src := &staticSource{clients: newBundle("http://127.0.0.1:1", nil)}
	d := New(queryTable(call, 0), txTable(new([]string)), src, Options{Env: testEnv, Retry: fastRetry})

	_, err := d.Query(context.Background(), "bank", "params", nil)
	cliErr, ok := clierr.As(err)
	if !ok {
		t.Fatalf("expected a structured error, got %v", err)
	}
	if got := cliErr.Code; got != clierr.CodeQueryFailed {
		t.Fatalf("cliErr.Code = %v, want %v", got, clierr.CodeQueryFailed)
	}
	if msg := cliErr.Error(); !strings.Contains(msg, "denom metadata missing") {
		t.Fatalf("error %q does not mention %q", msg, "denom metadata missing")
	}
	if got := cliErr.Details["subcommand"]; got != "params" {
		t.Fatalf("got %v, want %v", got, "params")
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("attempts.Load() = %d, want 1", got)
	}
}

func TestQueryConnectionErrorsPassThrough(t *testing.T) {
	src := &staticSource{err: clierr.New(clierr.CodeRPCConnectionFailed, "dial tcp: connection refused")}
	d := New(queryTable(nil, 0), txTable(new([]string)), src, Options{Env: testEnv, Retry: fastRetry})

	_, err := d.Query(context.Background(), "bank", "params", nil)
	if got := clierr.CodeOf(err); got != clierr.CodeRPCConnectionFailed {
		t.Fatalf("clierr.CodeOf(err) = %v, want %v", got, clierr.CodeRPCConnectionFailed)
	}
	if got := src.calls.Load(); got != 3 {
		t.Fatalf("src.calls.Load() = %d, want 3", got)
	}
}

func TestQueryCachedWritesThenHits(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), filepath.Join(t.TempDir(), "cache.lock"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	var attempts atomic.Int32
	call := func(ctx context.Context, c *clients.Clients) (any, error) {
		attempts.Add(1)
		return map[string]any{"params": map[string]any{"default_send_enabled": true}}, nil
	}
	src := &staticSource{clients: newBundle("http://127.0.0.1:1", nil)}
	d := New(queryTable(call, time.Minute), txTable(new([]string)), src, Options{
		Env: testEnv, ChainID: "manifest-ledger-beta", Retry: fastRetry, Cache: store, MaxStale: time.Hour,
	})

	first, err := d.QueryCached(context.Background(), "bank", "params", nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := first.Cache.Status; got != "write" {
		t.Fatalf("first.Cache.Status = %v, want %v", got, "write")
	}

	second, err := d.QueryCached(context.Background(), "bank", "params", nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := second.Cache.Status; got != "hit" {
		t.Fatalf("second.Cache.Status = %v, want %v", got, "hit")
	}
	if second.Cache.Stale {
		t.Fatal("expected second.Cache.Stale to be false")
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("attempts.Load() = %d, want 1", got)
	}

	bypass, err := d.QueryCached(context.Background(), "bank", "params", nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := bypass.Cache.Status; got != "bypass" {
		t.Fatalf("bypass.Cache.Status = %v, want %v", got, "bypass")
	}
	if got := attempts.Load(); got != 2 {
		t.Fatalf("attempts.Load() = %d, want 2", got)
	}
}

func TestQueryCachedServesStaleOnTransientFailure(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), filepath.Join(t.TempDir(), "cache.lock"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	var fail atomic.Bool
	call := func(ctx context.Context, c *clients.Clients) (any, error) {
		if fail.Load() {
			return nil, clierr.New(clierr.CodeRPCConnectionFailed, "connection refused")
		}
		return map[string]any{"supply": "1000"}, nil
	}
	src := &staticSource{clients: newBundle("http://127.0.0.1:1", nil)}
	opts := Options{Env: testEnv, ChainID: "manifest-ledger-beta", Retry: fastRetry, Cache: store, MaxStale: time.Hour}
	d := New(queryTable(call, time.Millisecond), txTable(new([]string)), src, opts)

	_, err = d.QueryCached(context.Background(), "bank", "params", nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Entries are stored with whole-second TTLs.
	time.Sleep(1100 * time.Millisecond)
	fail.Store(true)

	out, err := d.QueryCached(context.Background(), "bank", "params", nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.Cache.Status; got != "hit" {
		t.Fatalf("out.Cache.Status = %v, want %v", got, "hit")
	}
	if !out.Cache.Stale {
		t.Fatal("expected out.Cache.Stale to be true")
	}
	if got := len(out.Warnings); got != 1 {
		t.Fatalf("len(out.Warnings) = %d, want 1", got)
	}
	if got, want := out.Result.Result, map[string]any{"supply": "1000"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("out.Result.Result = %v, want %v", got, want)
	}

	opts.NoStale = true
	strict := New(queryTable(call, time.Millisecond), txTable(new([]string)), src, opts)
	_, err = strict.QueryCached(context.Background(), "bank", "params", nil, true)
	if got := clierr.CodeOf(err); got != clierr.CodeRPCConnectionFailed {
		t.Fatalf("clierr.CodeOf(err) = %v, want %v", got, clierr.CodeRPCConnectionFailed)
	}
}

func TestTxBroadcastsAndWaits(t *testing.T) {
	gw := &gateway{txResponse: map[string]any{"txhash": "ABCDEF", "code": 0, "height": "0", "gas_used": "61000"}}
	srv := httptest.NewServer(gw.handler(t))
	defer srv.Close()

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), filepath.Join(t.TempDir(), "journal.lock"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	var seen []string
	src := &staticSource{clients: newBundle(srv.URL, stubWallet{})}
	d := New(queryTable(nil, 0), txTable(&seen), src, Options{
		Env: testEnv, ChainID: "manifest-ledger-beta", Retry: fastRetry, Journal: j,
		GasAdjustment: 1.5, WaitInterval: 5 * time.Millisecond, WaitTimeout: time.Second,
	})

	res, err := d.Tx(context.Background(), "bank", "send",
		[]string{testSender, "--memo", "rent", "100umfx", "--fee=5000umfx"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := seen, []string{testSender, "100umfx"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("seen = %v, want %v", got, want)
	}
	if got := res.TransactionHash; got != "ABCDEF" {
		t.Fatalf("res.TransactionHash = %v, want %v", got, "ABCDEF")
	}
	if res.Confirmed == nil {
		t.Fatal("expected res.Confirmed to be set")
	}
	if !*res.Confirmed {
		t.Fatal("expected the transaction to be confirmed")
	}
	if got := res.ConfirmationHeight; got != "42" {
		t.Fatalf("res.ConfirmationHeight = %v, want %v", got, "42")
	}

	if got := gw.lastBody["memo"]; got != "rent" {
		t.Fatalf("got %v, want %v", got, "rent")
	}
	fee := gw.lastBody["fee"].(map[string]any)
	if got := fee["mode"]; got != "fixed" {
		t.Fatalf("got %v, want %v", got, "fixed")
	}

	entries, err := j.List(journal.Filter{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(entries); got != 1 {
		t.Fatalf("len(entries) = %d, want 1", got)
	}
	if got, want := entries[0].Status, journal.StatusConfirmed; !reflect.DeepEqual(got, want) {
		t.Fatalf("entries[0].Status = %v, want %v", got, want)
	}
	if got := entries[0].Height; got != "42" {
		t.Fatalf("entries[0].Height = %v, want %v", got, "42")
	}
	if got, want := entries[0].Sender, testSender; !reflect.DeepEqual(got, want) {
		t.Fatalf("entries[0].Sender = %v, want %v", got, want)
	}
}

func TestTxAcquiresLimiterPerAttempt(t *testing.T) {
	gw := &gateway{failBroadcasts: 2, txResponse: map[string]any{"txhash": "B0B0", "code": 0, "height": "0"}}
	srv := httptest.NewServer(gw.handler(t))
	defer srv.Close()

	bundle := newBundle(srv.URL, stubWallet{})
	bundle.Limiter = ratelimit.NewWithInterval(4, time.Hour)
	d := New(queryTable(nil, 0), txTable(new([]string)), &staticSource{clients: bundle}, Options{Env: testEnv, Retry: fastRetry})

	res, err := d.Tx(context.Background(), "bank", "send", []string{testSender, "1umfx"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TransactionHash != "B0B0" {
		t.Fatalf("transactionHash = %q, want B0B0", res.TransactionHash)
	}
	if gw.broadcasts != 3 {
		t.Fatalf("broadcasts = %d, want 3", gw.broadcasts)
	}
	if drained(bundle.Limiter) {
		t.Fatal("limiter drained after three attempts, want one token left")
	}
	if !drained(bundle.Limiter) {
		t.Fatal("limiter still has tokens, want three spent by the attempts")
	}
}

func TestTxWaitPollsThroughTransientFailures(t *testing.T) {
	gw := &gateway{lookupFailures: 2, txResponse: map[string]any{"txhash": "C0DE", "code": 0, "height": "0"}}
	srv := httptest.NewServer(gw.handler(t))
	defer srv.Close()

	d := New(queryTable(nil, 0), txTable(new([]string)), &staticSource{clients: newBundle(srv.URL, stubWallet{})},
		Options{Env: testEnv, Retry: fastRetry, WaitInterval: 5 * time.Millisecond, WaitTimeout: 2 * time.Second})

	res, err := d.Tx(context.Background(), "bank", "send", []string{testSender, "1umfx"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Pending {
		t.Fatalf("expected a confirmed result, got pending: %s", res.WaitError)
	}
	if res.Confirmed == nil || !*res.Confirmed || res.ConfirmationHeight != "42" {
		t.Fatalf("unexpected confirmation %+v", res)
	}
	if gw.lookups != 3 {
		t.Fatalf("lookups = %d, want 3", gw.lookups)
	}
	if gw.broadcasts != 1 {
		t.Fatalf("broadcasts = %d, want 1", gw.broadcasts)
	}
}

func TestTxWaitTimeoutReportsPending(t *testing.T) {
	gw := &gateway{lookupFailures: -1, txResponse: map[string]any{"txhash": "DEAD", "code": 0, "height": "0"}}
	srv := httptest.NewServer(gw.handler(t))
	defer srv.Close()

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), filepath.Join(t.TempDir(), "journal.lock"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	d := New(queryTable(nil, 0), txTable(new([]string)), &staticSource{clients: newBundle(srv.URL, stubWallet{})},
		Options{Env: testEnv, Retry: fastRetry, Journal: j, WaitInterval: 5 * time.Millisecond, WaitTimeout: 50 * time.Millisecond})

	res, err := d.Tx(context.Background(), "bank", "send", []string{testSender, "1umfx"}, true)
	if err != nil {
		t.Fatalf("a broadcast transaction must not be reported as failed: %v", err)
	}
	if !res.Pending || res.TransactionHash != "DEAD" {
		t.Fatalf("expected pending result with hash, got %+v", res)
	}
	if res.Confirmed != nil {
		t.Fatalf("confirmed must stay unset while pending, got %v", *res.Confirmed)
	}
	if !strings.Contains(res.WaitError, "not confirmed in time") {
		t.Fatalf("waitError = %q", res.WaitError)
	}
	if gw.broadcasts != 1 {
		t.Fatalf("broadcasts = %d, want 1", gw.broadcasts)
	}

	entry, err := j.Get("DEAD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Status != journal.StatusBroadcast {
		t.Fatalf("journal status = %s, want broadcast", entry.Status)
	}
}

func TestTxAutoFeeWithoutWait(t *testing.T) {
	gw := &gateway{txResponse: map[string]any{"txhash": "0A0B", "code": 0, "height": "0"}}
	srv := httptest.NewServer(gw.handler(t))
	defer srv.Close()

	var seen []string
	d := New(queryTable(nil, 0), txTable(&seen), &staticSource{clients: newBundle(srv.URL, stubWallet{})},
		Options{Env: testEnv, Retry: fastRetry, GasAdjustment: 1.3})

	res, err := d.Tx(context.Background(), "bank", "send", []string{testSender, "1umfx"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Confirmed != nil {
		t.Fatalf("expected nil, got %v", res.Confirmed)
	}
	if len(res.ConfirmationHeight) != 0 {
		t.Fatalf("expected res.ConfirmationHeight to be empty, got %v", res.ConfirmationHeight)
	}
	fee := gw.lastBody["fee"].(map[string]any)
	if got := fee["mode"]; got != "auto" {
		t.Fatalf("got %v, want %v", got, "auto")
	}
	if adj, _ := fee["gasAdjustment"].(float64); math.Abs(adj-1.3) > 1e-9 {
		t.Fatalf("gasAdjustment = %v, want 1.3", fee["gasAdjustment"])
	}
}

func TestTxRejectedAtCheckTxIsNotRetried(t *testing.T) {
	gw := &gateway{txResponse: map[string]any{
		"txhash": "FEED", "code": 5, "codespace": "sdk", "height": "0",
		"raw_log": "spendable balance 1umfx is smaller than 100umfx: insufficient funds; timeout height",
	}}
	srv := httptest.NewServer(gw.handler(t))
	defer srv.Close()

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), filepath.Join(t.TempDir(), "journal.lock"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	d := New(queryTable(nil, 0), txTable(new([]string)), &staticSource{clients: newBundle(srv.URL, stubWallet{})},
		Options{Env: testEnv, Retry: fastRetry, Journal: j})

	_, err = d.Tx(context.Background(), "bank", "send", []string{testSender, "100umfx"}, false)
	cliErr, ok := clierr.As(err)
	if !ok {
		t.Fatalf("expected a structured error, got %v", err)
	}
	if got := cliErr.Code; got != clierr.CodeInsufficientFunds {
		t.Fatalf("cliErr.Code = %v, want %v", got, clierr.CodeInsufficientFunds)
	}
	if got := cliErr.Details["transactionHash"]; got != "FEED" {
		t.Fatalf("got %v, want %v", got, "FEED")
	}
	if got := gw.broadcasts; got != 1 {
		t.Fatalf("gw.broadcasts = %v, want %v", got, 1)
	}

	entry, err := j.Get("FEED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := entry.Status, journal.StatusRejected; !reflect.DeepEqual(got, want) {
		t.Fatalf("entry.Status = %v, want %v", got, want)
	}
}

func TestTxWithoutWalletFails(t *testing.T) {
	var seen []string
	d := New(queryTable(nil, 0), txTable(&seen), &staticSource{clients: newBundle("http://127.0.0.1:1", nil)},
		Options{Env: testEnv, Retry: fastRetry})

	_, err := d.Tx(context.Background(), "bank", "send", []string{testSender, "1umfx"}, false)
	cliErr, ok := clierr.As(err)
	if !ok {
		t.Fatalf("expected a structured error, got %v", err)
	}
	if got := cliErr.Code; got != clierr.CodeWalletNotConnected {
		t.Fatalf("cliErr.Code = %v, want %v", got, clierr.CodeWalletNotConnected)
	}
	if got := cliErr.Details["subcommand"]; got != "send" {
		t.Fatalf("got %v, want %v", got, "send")
	}
	if seen != nil {
		t.Fatalf("expected nil, got %v", seen)
	}
}

func TestTxBadFeeFlag(t *testing.T) {
	d := New(queryTable(nil, 0), txTable(new([]string)), &staticSource{}, Options{Env: testEnv})

	_, err := d.Tx(context.Background(), "bank", "send", []string{testSender, "1umfx", "--fee", "lots"}, false)
	if got := clierr.CodeOf(err); got != clierr.CodeTxFailed {
		t.Fatalf("clierr.CodeOf(err) = %v, want %v", got, clierr.CodeTxFailed)
	}

	_, err = d.Tx(context.Background(), "bank", "send", []string{testSender, "1umfx", "--memo"}, false)
	if got := clierr.CodeOf(err); got != clierr.CodeTxFailed {
		t.Fatalf("clierr.CodeOf(err) = %v, want %v", got, clierr.CodeTxFailed)
	}
}

func TestListings(t *testing.T) {
	d := New(queryTable(nil, 0), txTable(new([]string)), &staticSource{}, Options{Env: testEnv})

	mods := d.ListModules()
	if got := len(mods.QueryModules); got != 2 {
		t.Fatalf("len(mods.QueryModules) = %d, want 2", got)
	}
	if got := len(mods.TxModules); got != 1 {
		t.Fatalf("len(mods.TxModules) = %d, want 1", got)
	}
	if got := mods.TxModules[0].Name; got != "bank" {
		t.Fatalf("mods.TxModules[0].Name = %v, want %v", got, "bank")
	}

	subs, err := d.ListSubcommands("query", "bank")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := subs.Subcommands[0].Name; got != "balance" {
		t.Fatalf("subs.Subcommands[0].Name = %v, want %v", got, "balance")
	}
	if got := subs.Subcommands[0].Usage; got != "<address> <denom>" {
		t.Fatalf("subs.Subcommands[0].Usage = %v, want %v", got, "<address> <denom>")
	}

	_, err = d.ListSubcommands("mutation", "bank")
	if got := clierr.CodeOf(err); got != clierr.CodeUsage {
		t.Fatalf("clierr.CodeOf(err) = %v, want %v", got, clierr.CodeUsage)
	}

	_, err = d.ListSubcommands("tx", "mint")
	if got := clierr.CodeOf(err); got != clierr.CodeUnknownModule {
		t.Fatalf("clierr.CodeOf(err) = %v, want %v", got, clierr.CodeUnknownModule)
	}

	desc, err := d.Describe("tx", "bank", "send")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := desc.Description; got != "send tokens" {
		t.Fatalf("desc.Description = %v, want %v", got, "send tokens")
	}

	_, err = d.Describe("query", "bank", "nope")
	if got := clierr.CodeOf(err); got != clierr.CodeUnknownSubcommand {
		t.Fatalf("clierr.CodeOf(err) = %v, want %v", got, clierr.CodeUnknownSubcommand)
	}
}
