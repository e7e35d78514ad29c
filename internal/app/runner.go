package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/cache"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/clients"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/config"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/dispatch"
	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/handlers"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/journal"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/logging"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/model"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/out"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/policy"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/redact"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/version"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/wallet"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings
	root     *cobra.Command

	cache      *cache.Store
	journal    *journal.Store
	logger     *zap.Logger
	closeLog   func() error
	clients    *clients.Manager
	dispatcher *dispatch.Dispatcher

	// passthrough holds the module arguments of query and tx once the
	// global flags mixed into them have been applied.
	passthrough []string

	lastCommand  string
	lastTool     string
	lastInput    map[string]any
	lastWarnings []string
}

func (r *Runner) Run(args []string) int {
	return r.RunContext(context.Background(), args)
}

// RunContext executes one CLI invocation and returns its exit code.
func (r *Runner) RunContext(ctx context.Context, args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.ExecuteContext(ctx)
	err = normalizeRunError(err)
	if err != nil {
		state.renderError("", err, state.lastWarnings)
	}
	state.close()
	return clierr.ExitCode(err)
}

func (s *runtimeState) close() {
	if s.clients != nil {
		s.clients.Reset()
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.journal != nil {
		_ = s.journal.Close()
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
	if s.closeLog != nil {
		_ = s.closeLog()
	}
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Agent-first Manifest Network query and transaction CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			if cmd.DisableFlagParsing {
				rest, err := applyInterleavedFlags(cmd, args)
				if err != nil {
					return err
				}
				s.passthrough = rest
				s.lastTool = cmd.Name()
				s.lastInput = dispatchInput(rest)
			}

			settings, err := config.Load(s.flags)
			if err != nil {
				return err
			}
			s.settings = settings

			path := trimRootPath(cmd.CommandPath())
			if cmd.DisableFlagParsing && len(s.passthrough) >= 2 {
				path = path + " " + s.passthrough[0] + " " + s.passthrough[1]
			}
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			logger, closeLog, err := logging.New(logging.Config{
				Level:    settings.LogLevel,
				Encoding: settings.LogEncoding,
				File:     settings.LogFile,
			}, s.runner.stderr)
			if err != nil {
				return err
			}
			s.logger, s.closeLog = logger, closeLog

			if settings.CacheEnabled && shouldOpenCache(path) && s.cache == nil {
				store, err := cache.Open(settings.CachePath, settings.CacheLockPath)
				if err != nil {
					// A broken cache degrades to uncached queries.
					s.logger.Warn("cache unavailable", zap.String("path", settings.CachePath), zap.Error(err))
				} else {
					s.cache = store
				}
			}
			if shouldOpenJournal(path) && s.journal == nil {
				store, err := journal.Open(settings.JournalPath, settings.JournalLockPath)
				if err != nil {
					if isHistoryPath(path) {
						return clierr.Wrap(clierr.CodeConfigInvalid, "open transaction journal", err)
					}
					s.logger.Warn("journal unavailable", zap.String("path", settings.JournalPath), zap.Error(err))
				} else {
					s.journal = store
				}
			}

			s.clients = clients.NewManager(clients.Config{
				ChainID:           settings.ChainID,
				RPCURL:            settings.RPCURL,
				RESTURL:           settings.RESTURL,
				SignerURL:         settings.SignerURL,
				SignerToken:       settings.SignerToken,
				AddressPrefix:     settings.AddressPrefix,
				Timeout:           settings.Timeout,
				RequestsPerSecond: settings.RequestsPerSecond,
			}, clients.NewFactory(s.newWallet), s.logger)
			s.dispatcher = dispatch.New(handlers.Queries(), handlers.Txs(), s.clients, dispatch.Options{
				Env:           dispatch.Env{AddressPrefix: settings.AddressPrefix, Denom: settings.Denom},
				ChainID:       settings.ChainID,
				Retry:         settings.Retry,
				Cache:         s.cache,
				MaxStale:      settings.MaxStale,
				NoStale:       settings.NoStale,
				Journal:       s.journal,
				GasAdjustment: settings.GasAdjustment,
				WaitTimeout:   settings.WaitTimeout,
				WaitInterval:  settings.WaitInterval,
				Logger:        s.logger,
			})
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Deadline for each dispatch")
	cmd.PersistentFlags().StringVar(&s.flags.Network, "network", "", "Network preset (manifest-mainnet|manifest-testnet|local)")
	cmd.PersistentFlags().StringVar(&s.flags.ChainID, "chain-id", "", "Chain id override")
	cmd.PersistentFlags().StringVar(&s.flags.RPCURL, "rpc-url", "", "CometBFT RPC endpoint override")
	cmd.PersistentFlags().StringVar(&s.flags.RESTURL, "rest-url", "", "REST (LCD) endpoint override")
	cmd.PersistentFlags().StringVar(&s.flags.SignerURL, "signer-url", "", "Signing gateway endpoint override")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per remote call")
	cmd.PersistentFlags().IntVar(&s.flags.RateLimit, "rate-limit", 0, "Remote requests per second")
	cmd.PersistentFlags().StringVar(&s.flags.MaxStale, "max-stale", "", "Maximum stale fallback window after TTL expiry")
	cmd.PersistentFlags().BoolVar(&s.flags.NoStale, "no-stale", false, "Reject stale cache entries")
	cmd.PersistentFlags().BoolVar(&s.flags.NoCache, "no-cache", false, "Disable cache reads and writes")
	cmd.PersistentFlags().StringVar(&s.flags.LogLevel, "log-level", "", "Diagnostic log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&s.flags.KeySource, "key-source", "", "Signing key source (auto|env|file|keystore)")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newQueryCommand())
	cmd.AddCommand(s.newTxCommand())
	cmd.AddCommand(s.newModulesCommand())
	cmd.AddCommand(s.newSubcommandsCommand())
	cmd.AddCommand(s.newDescribeCommand())
	cmd.AddCommand(s.newHistoryCommand())
	cmd.AddCommand(s.newNetworksCommand())
	cmd.AddCommand(s.newWalletCommand())
	cmd.AddCommand(s.newCacheCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newVersionCommand())

	return cmd
}

// newWallet builds the signing wallet for one client bundle. Key material
// is read lazily on the first transaction.
func (s *runtimeState) newWallet(prefix string) (wallet.Wallet, error) {
	cfg, err := wallet.KeyConfigFromEnv(s.settings.KeySource, prefix)
	if err != nil {
		return nil, err
	}
	return wallet.NewKeyWallet(cfg), nil
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string, cacheStatus model.CacheStatus) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Network:   s.settings.Network,
			ChainID:   s.settings.ChainID,
			Cache:     cacheStatus,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error, warnings []string) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.CodeUnknown
	message := err.Error()
	var details map[string]any
	if cErr, ok := clierr.As(err); ok {
		code = cErr.Code
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		if len(cErr.Details) > 0 {
			details = redact.Map(cErr.Details)
		}
	}
	message = redact.Message(message, s.passthrough)
	tool := s.lastTool
	if tool == "" {
		tool = commandPath
	}
	var input map[string]any
	if len(s.lastInput) > 0 {
		input = redact.Map(s.lastInput)
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Error: &model.ErrorBody{
			Error:    true,
			Tool:     tool,
			Input:    input,
			Code:     string(code),
			ExitCode: clierr.ExitCode(err),
			Message:  message,
			Details:  details,
		},
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Network:   settings.Network,
			ChainID:   settings.ChainID,
			Cache:     cacheMetaBypass(),
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

// dispatchContext bounds one dispatch by --timeout. Waiting for inclusion
// adds the configured wait budget.
func (s *runtimeState) dispatchContext(parent context.Context, extra time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, s.settings.Timeout+extra)
}

func newRequestID() string {
	return uuid.NewString()
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func cacheMetaBypass() model.CacheStatus {
	return model.CacheStatus{Status: "bypass", AgeMS: 0, Stale: false}
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeUnknown, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func shouldOpenCache(commandPath string) bool {
	path := normalizeCommandPath(commandPath)
	return path == "query" || strings.HasPrefix(path, "query ") || path == "cache purge"
}

func shouldOpenJournal(commandPath string) bool {
	path := normalizeCommandPath(commandPath)
	return path == "tx" || strings.HasPrefix(path, "tx ") || isHistoryPath(path)
}

func isHistoryPath(commandPath string) bool {
	path := normalizeCommandPath(commandPath)
	return path == "history" || strings.HasPrefix(path, "history ")
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ")
}
