// Package dispatch routes a (module, subcommand, args) request to its
// handler and runs the remote part under the retry policy and the per-chain
// rate limiter.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/args"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/cache"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/clients"
	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/journal"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/lcd"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/logging"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/model"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/redact"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/registry"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/retry"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/signing"
)

const maxNameLength = 64

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]*$`)

type Options struct {
	Env           Env
	ChainID       string
	Retry         retry.Policy
	Cache         *cache.Store
	MaxStale      time.Duration
	NoStale       bool
	Journal       *journal.Store
	GasAdjustment float64
	WaitTimeout   time.Duration
	WaitInterval  time.Duration
	Logger        *zap.Logger
}

type Dispatcher struct {
	queries *QueryTable
	txs     *TxTable
	clients ClientSource
	opts    Options
	log     *zap.Logger
}

func New(queries *QueryTable, txs *TxTable, source ClientSource, opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 60 * time.Second
	}
	if opts.WaitInterval <= 0 {
		opts.WaitInterval = time.Second
	}
	return &Dispatcher{
		queries: queries,
		txs:     txs,
		clients: source,
		opts:    opts,
		log:     log.Named("dispatch"),
	}
}

// QueryOutcome is a query result plus how the cache was involved.
type QueryOutcome struct {
	Result   model.QueryResult
	Cache    model.CacheStatus
	Warnings []string
}

// Query runs a read-only module query.
func (d *Dispatcher) Query(ctx context.Context, module, sub string, rawArgs []string) (model.QueryResult, error) {
	out, err := d.QueryCached(ctx, module, sub, rawArgs, true)
	return out.Result, err
}

// QueryCached is Query with result caching for subcommands that declare a
// TTL. When the remote call fails with a transient error, a stale entry
// within the max-stale budget is served with a warning.
func (d *Dispatcher) QueryCached(ctx context.Context, module, sub string, rawArgs []string, useCache bool) (QueryOutcome, error) {
	outcome := QueryOutcome{Cache: model.CacheStatus{Status: "bypass"}}
	if err := checkNames(clierr.CodeQueryFailed, module, sub); err != nil {
		return outcome, err
	}
	mod, err := d.queries.Lookup(module)
	if err != nil {
		return outcome, err
	}
	desc, ok := d.queries.Subcommand(module, sub)
	if !ok {
		return outcome, d.queries.Unsupported(module, sub)
	}

	call, err := mod.Handler(d.opts.Env, sub, rawArgs)
	if err != nil {
		return outcome, contextualize(err, registry.KindQuery, module, sub, rawArgs)
	}
	d.log.Debug("query dispatched", zap.String("module", module), zap.String("subcommand", sub), zap.Strings("args", redact.Strings(rawArgs)))

	cacheable := useCache && d.opts.Cache != nil && desc.CacheTTL > 0
	key := cache.Key(d.opts.ChainID, module, sub, rawArgs)
	var stale *cache.Result
	if cacheable {
		outcome.Cache = model.CacheStatus{Status: "miss"}
		if hit, err := d.opts.Cache.Get(key, d.opts.MaxStale); err == nil && hit.Hit {
			var data any
			if err := json.Unmarshal(hit.Value, &data); err == nil {
				status := model.CacheStatus{Status: "hit", AgeMS: hit.Age.Milliseconds(), Stale: hit.Stale}
				if !hit.Stale {
					outcome.Result = model.QueryResult{Module: module, Subcommand: sub, Result: data}
					outcome.Cache = status
					return outcome, nil
				}
				if !hit.TooStale && !d.opts.NoStale {
					stale = &hit
					outcome.Result = model.QueryResult{Module: module, Subcommand: sub, Result: data}
					outcome.Cache = status
				}
			}
		}
	}

	result, err := retry.Do(ctx, d.opts.Retry, func(ctx context.Context) (any, error) {
		c, err := d.clients.Get(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Limiter.Acquire(ctx); err != nil {
			return nil, clierr.Wrap(clierr.CodeQueryFailed, "rate limiter wait", err)
		}
		return call(ctx, c)
	}, retry.WithObserver(d.observer(registry.KindQuery, module, sub, rawArgs)))
	if err != nil {
		if stale != nil && staleFallbackAllowed(err) {
			outcome.Warnings = append(outcome.Warnings, "remote query failed; serving stale cached result within max-stale budget")
			d.log.Warn("serving stale query result", zap.String("module", module), zap.String("subcommand", sub), zap.String("error", redact.Message(err.Error(), rawArgs)))
			return outcome, nil
		}
		return QueryOutcome{Cache: outcome.Cache}, contextualize(err, registry.KindQuery, module, sub, rawArgs)
	}

	outcome.Result = model.QueryResult{Module: module, Subcommand: sub, Result: result}
	outcome.Cache = model.CacheStatus{Status: "bypass"}
	if cacheable {
		outcome.Cache = model.CacheStatus{Status: "miss"}
		if payload, err := json.Marshal(result); err == nil {
			entry := cache.Entry{ChainID: d.opts.ChainID, Module: module, Subcommand: sub}
			if err := d.opts.Cache.Set(key, entry, payload, desc.CacheTTL); err == nil {
				outcome.Cache = model.CacheStatus{Status: "write"}
			} else {
				d.log.Warn("cache write failed", zap.Error(err))
			}
		}
	}
	return outcome, nil
}

// Tx builds, signs and broadcasts a transaction. The generic --memo and
// --fee flags are taken out of rawArgs before the handler sees them. With
// wait set, the call blocks until the transaction is indexed.
func (d *Dispatcher) Tx(ctx context.Context, module, sub string, rawArgs []string, wait bool) (model.TxResult, error) {
	if err := checkNames(clierr.CodeTxFailed, module, sub); err != nil {
		return model.TxResult{}, err
	}
	mod, err := d.txs.Lookup(module)
	if err != nil {
		return model.TxResult{}, err
	}
	if !d.txs.IsSupported(module, sub) {
		return model.TxResult{}, d.txs.Unsupported(module, sub)
	}

	memo, fee, rest, err := d.extractTxFlags(rawArgs)
	if err != nil {
		return model.TxResult{}, contextualize(err, registry.KindTx, module, sub, rawArgs)
	}

	c, err := d.clients.Get(ctx)
	if err != nil {
		return model.TxResult{}, contextualize(err, registry.KindTx, module, sub, rawArgs)
	}
	signer, err := c.Signer(ctx)
	if err != nil {
		return model.TxResult{}, contextualize(err, registry.KindTx, module, sub, rawArgs)
	}

	plan, err := mod.Handler(d.opts.Env, sub, rest, signer.Address())
	if err != nil {
		return model.TxResult{}, contextualize(err, registry.KindTx, module, sub, rawArgs)
	}
	d.log.Debug("tx dispatched", zap.String("module", module), zap.String("subcommand", sub), zap.Int("messages", len(plan.Msgs)))

	// A CheckTx rejection already has a hash; it ends the retry loop.
	var rejection error
	res, err := retry.Do(ctx, d.opts.Retry, func(ctx context.Context) (signing.Result, error) {
		if err := c.Limiter.Acquire(ctx); err != nil {
			return signing.Result{}, clierr.Wrap(clierr.CodeTxFailed, "rate limiter wait", err)
		}
		res, err := c.Signing.SignAndBroadcast(ctx, signer, plan.Msgs, fee, memo)
		if err != nil && res.TxHash != "" {
			rejection = err
			return res, nil
		}
		return res, err
	}, retry.WithObserver(d.observer(registry.KindTx, module, sub, rawArgs)))
	if err == nil && rejection != nil {
		err = rejection
	}

	entry := journal.Entry{
		ChainID:    d.opts.ChainID,
		Module:     module,
		Subcommand: sub,
		Args:       redact.Strings(rawArgs),
		Sender:     signer.Address(),
		TxHash:     res.TxHash,
		Code:       res.Code,
		Height:     res.Height,
		RawLog:     res.RawLog,
		Status:     journal.StatusBroadcast,
	}
	if err != nil {
		entry.Error = redact.Message(err.Error(), rawArgs)
		entry.Status = journal.StatusFailed
		if res.TxHash != "" {
			entry.Status = journal.StatusRejected
		}
		d.record(entry)
		return model.TxResult{}, contextualize(err, registry.KindTx, module, sub, rawArgs)
	}
	entry = d.record(entry)

	out := model.TxResult{
		Module:          module,
		Subcommand:      sub,
		TransactionHash: res.TxHash,
		Code:            res.Code,
		Height:          res.Height,
		RawLog:          res.RawLog,
		GasUsed:         res.GasUsed,
		GasWanted:       res.GasWanted,
	}
	if !wait {
		return out, nil
	}

	waitOpts := lcd.WaitOptions{Interval: d.opts.WaitInterval, Timeout: d.opts.WaitTimeout}
	if c.Limiter != nil {
		waitOpts.Limiter = c.Limiter
	}
	tx, err := c.LCD.WaitForTx(ctx, res.TxHash, waitOpts)
	if err != nil {
		d.log.Warn("transaction broadcast but not confirmed",
			zap.String("tx_hash", res.TxHash),
			zap.String("error", redact.Message(err.Error(), rawArgs)),
		)
		out.Pending = true
		out.WaitError = redact.Message(err.Error(), rawArgs)
		return out, nil
	}
	confirmed := tx.Code == 0
	out.Confirmed = &confirmed
	out.ConfirmationHeight = tx.Height
	out.Code = tx.Code
	if tx.RawLog != "" {
		out.RawLog = tx.RawLog
	}
	if tx.GasUsed != "" {
		out.GasUsed = tx.GasUsed
	}

	entry.Height = tx.Height
	entry.Code = tx.Code
	entry.RawLog = tx.RawLog
	entry.Status = journal.StatusConfirmed
	if !confirmed {
		entry.Status = journal.StatusFailed
	}
	entry.ConfirmedAt = time.Now().UTC().Format(time.RFC3339)
	d.record(entry)
	return out, nil
}

func (d *Dispatcher) extractTxFlags(rawArgs []string) (string, signing.Fee, []string, error) {
	fee := signing.Fee{Auto: true, GasAdjustment: d.opts.GasAdjustment}

	memoFlag, err := args.Tx.ExtractFlag(rawArgs, "memo")
	if err != nil {
		return "", fee, nil, err
	}
	feeFlag, err := args.Tx.ExtractFlag(rawArgs, "fee")
	if err != nil {
		return "", fee, nil, err
	}
	if feeFlag.Found && feeFlag.Value != "auto" {
		coins, err := args.Tx.Amounts("fee", feeFlag.Value)
		if err != nil {
			return "", fee, nil, err
		}
		fee = signing.Fee{Amount: coins}
	}
	rest := args.FilterConsumed(rawArgs, memoFlag.Consumed, feeFlag.Consumed)
	return memoFlag.Value, fee, rest, nil
}

func (d *Dispatcher) record(entry journal.Entry) journal.Entry {
	if d.opts.Journal == nil {
		return entry
	}
	saved, err := d.opts.Journal.Record(entry)
	if err != nil {
		d.log.Warn("journal write failed", zap.String("tx_hash", entry.TxHash), zap.Error(err))
		return entry
	}
	return saved
}

func (d *Dispatcher) observer(kind registry.Kind, module, sub string, rawArgs []string) retry.Observer {
	return func(err error, attempt int, delay time.Duration) {
		fields := []zap.Field{
			zap.String("kind", string(kind)),
			zap.String("module", module),
			zap.String("subcommand", sub),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("error", redact.Message(err.Error(), rawArgs)),
		}
		if cliErr, ok := clierr.As(err); ok && cliErr.HasDetails() {
			fields = append(fields, logging.Details("details", cliErr.Details))
		}
		d.log.Warn("retrying after transient failure", fields...)
	}
}

// ListModules returns both module catalogs in registration order.
func (d *Dispatcher) ListModules() model.ModuleListing {
	return model.ModuleListing{
		QueryModules: summaries(d.queries.Modules()),
		TxModules:    summaries(d.txs.Modules()),
	}
}

// ListSubcommands returns the subcommands of module in the kind namespace.
func (d *Dispatcher) ListSubcommands(kind, module string) (model.SubcommandListing, error) {
	var (
		subs []registry.Subcommand
		err  error
	)
	switch registry.Kind(kind) {
	case registry.KindQuery:
		subs, err = d.queries.Subcommands(module)
	case registry.KindTx:
		subs, err = d.txs.Subcommands(module)
	default:
		return model.SubcommandListing{}, clierr.Newf(clierr.CodeUsage, "type must be query or tx, got %q", kind)
	}
	if err != nil {
		return model.SubcommandListing{}, err
	}
	out := model.SubcommandListing{Type: kind, Module: module, Subcommands: make([]model.SubcommandSummary, 0, len(subs))}
	for _, s := range subs {
		out.Subcommands = append(out.Subcommands, model.SubcommandSummary{Name: s.Name, Description: s.Description, Usage: s.Usage})
	}
	return out, nil
}

// Describe returns one subcommand descriptor.
func (d *Dispatcher) Describe(kind, module, sub string) (model.SubcommandSummary, error) {
	var (
		s   registry.Subcommand
		err error
	)
	switch registry.Kind(kind) {
	case registry.KindQuery:
		s, err = d.queries.Describe(module, sub)
	case registry.KindTx:
		s, err = d.txs.Describe(module, sub)
	default:
		return model.SubcommandSummary{}, clierr.Newf(clierr.CodeUsage, "type must be query or tx, got %q", kind)
	}
	if err != nil {
		return model.SubcommandSummary{}, err
	}
	return model.SubcommandSummary{Name: s.Name, Description: s.Description, Usage: s.Usage}, nil
}

func summaries(in []registry.Summary) []model.ModuleSummary {
	out := make([]model.ModuleSummary, 0, len(in))
	for _, s := range in {
		out = append(out, model.ModuleSummary{Name: s.Name, Description: s.Description})
	}
	return out
}

func checkNames(code clierr.Code, module, sub string) error {
	for _, n := range []struct{ field, value string }{{"module", module}, {"subcommand", sub}} {
		if len(n.value) > maxNameLength || !namePattern.MatchString(n.value) {
			return clierr.Newf(code, "invalid %s name %q: use letters, digits, _ or - (not leading -), at most %d characters", n.field, n.value, maxNameLength)
		}
	}
	return nil
}

// contextualize attaches {module, subcommand, args} to err. Errors that
// already carry details keep them untouched; foreign errors become
// QUERY_FAILED or TX_FAILED with their text preserved.
func contextualize(err error, kind registry.Kind, module, sub string, rawArgs []string) error {
	details := map[string]any{"module": module, "subcommand": sub, "args": rawArgs}
	label := fmt.Sprintf("%s %s %s", kind, module, sub)

	cliErr, ok := clierr.As(err)
	if !ok {
		code := clierr.CodeQueryFailed
		if kind == registry.KindTx {
			code = clierr.CodeTxFailed
		}
		return clierr.Wrap(code, label+" failed", err).WithDetails(details)
	}
	if cliErr.HasDetails() {
		return err
	}
	if error(cliErr) == err {
		return cliErr.WithDetails(details)
	}
	// err wraps a taxonomy error (retry abandoned on cancellation, say);
	// keep the outer text and the inner code.
	return clierr.Wrap(cliErr.Code, label, err).WithDetails(details)
}

func staleFallbackAllowed(err error) bool {
	if clierr.CodeOf(err) == clierr.CodeRPCConnectionFailed {
		return true
	}
	return retry.IsRetryable(err)
}

var _ ClientSource = (*clients.Manager)(nil)
