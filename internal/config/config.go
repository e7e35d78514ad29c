package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/networks"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/ratelimit"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/retry"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/version"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/wallet"
)

const DefaultNetwork = "manifest-testnet"

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	Network        string
	ChainID        string
	RPCURL         string
	RESTURL        string
	SignerURL      string
	Retries        int
	RateLimit      int
	MaxStale       string
	NoStale        bool
	NoCache        bool
	LogLevel       string
	KeySource      string
}

type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	EnableCommands []string
	Timeout        time.Duration

	Network       string
	ChainID       string
	RPCURL        string
	RESTURL       string
	SignerURL     string
	SignerToken   string
	AddressPrefix string
	Denom         string
	GasAdjustment float64
	WaitTimeout   time.Duration
	WaitInterval  time.Duration

	Retry             retry.Policy
	RequestsPerSecond int

	CacheEnabled    bool
	CachePath       string
	CacheLockPath   string
	MaxStale        time.Duration
	NoStale         bool
	JournalPath     string
	JournalLockPath string

	LogLevel    string
	LogEncoding string
	LogFile     string

	KeySource string
}

type fileConfig struct {
	Output        string `yaml:"output"`
	Timeout       string `yaml:"timeout"`
	Network       string `yaml:"network"`
	ChainID       string `yaml:"chain_id"`
	RPCURL        string `yaml:"rpc_url"`
	RESTURL       string `yaml:"rest_url"`
	AddressPrefix string `yaml:"address_prefix"`
	Denom         string `yaml:"denom"`
	Signer        struct {
		URL      string `yaml:"url"`
		Token    string `yaml:"token"`
		TokenEnv string `yaml:"token_env"`
	} `yaml:"signer"`
	Tx struct {
		GasAdjustment *float64 `yaml:"gas_adjustment"`
		WaitTimeout   string   `yaml:"wait_timeout"`
		WaitInterval  string   `yaml:"wait_interval"`
	} `yaml:"tx"`
	Retry struct {
		MaxRetries *int   `yaml:"max_retries"`
		BaseDelay  string `yaml:"base_delay"`
		MaxDelay   string `yaml:"max_delay"`
	} `yaml:"retry"`
	RateLimit struct {
		RequestsPerSecond *int `yaml:"requests_per_second"`
	} `yaml:"rate_limit"`
	Cache struct {
		Enabled  *bool  `yaml:"enabled"`
		MaxStale string `yaml:"max_stale"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"cache"`
	Journal struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"journal"`
	Log struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
		File     string `yaml:"file"`
	} `yaml:"log"`
	Wallet struct {
		KeySource string `yaml:"key_source"`
	} `yaml:"wallet"`
}

// Load layers defaults, the network preset, the YAML file, MANIFEST_*
// environment variables and flags, in that order. Any invalid value fails
// with INVALID_CONFIG.
func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, invalid("resolve default paths", err)
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, invalid("resolve config path", err)
	}

	var file fileConfig
	if err := readFileConfig(cfgPath, &file); err != nil {
		return Settings{}, err
	}

	// The preset is chosen first so file, env and flag overrides win over it.
	network := firstNonEmpty(flags.Network, os.Getenv("MANIFEST_NETWORK"), file.Network, DefaultNetwork)
	if err := applyNetwork(network, &settings); err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(file, &settings); err != nil {
		return Settings{}, err
	}
	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}
	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}
	if err := validate(settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	cachePath, lockPath, err := defaultCachePaths()
	if err != nil {
		return Settings{}, err
	}
	dataDir := filepath.Dir(cachePath)
	return Settings{
		OutputMode:        "json",
		Timeout:           30 * time.Second,
		GasAdjustment:     1.5,
		WaitTimeout:       60 * time.Second,
		WaitInterval:      time.Second,
		Retry:             retry.DefaultPolicy(),
		RequestsPerSecond: ratelimit.DefaultRequestsPerSecond,
		CacheEnabled:      true,
		CachePath:         cachePath,
		CacheLockPath:     lockPath,
		MaxStale:          5 * time.Minute,
		JournalPath:       filepath.Join(dataDir, "journal.db"),
		JournalLockPath:   filepath.Join(dataDir, "journal.lock"),
		LogLevel:          "warn",
		LogEncoding:       "json",
		KeySource:         wallet.KeySourceAuto,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	if v := os.Getenv("MANIFEST_CONFIG"); v != "" {
		return v, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, version.CLIName, "config.yaml"), nil
}

func defaultCachePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, version.CLIName)
	return filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"), nil
}

func readFileConfig(path string, cfg *fileConfig) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return invalid("read config", err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return invalid("parse config yaml", err)
	}
	return nil
}

func applyNetwork(name string, settings *Settings) error {
	preset, err := networks.Lookup(name)
	if err != nil {
		return err
	}
	settings.Network = preset.Name
	settings.ChainID = preset.ChainID
	settings.RPCURL = preset.RPCURL
	settings.RESTURL = preset.RESTURL
	settings.SignerURL = preset.SignerURL
	settings.AddressPrefix = preset.AddressPrefix
	settings.Denom = preset.Denom
	return nil
}

func applyFileConfig(cfg fileConfig, settings *Settings) error {
	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if err := setDuration(&settings.Timeout, cfg.Timeout, "config timeout"); err != nil {
		return err
	}
	setString(&settings.ChainID, cfg.ChainID)
	setString(&settings.RPCURL, cfg.RPCURL)
	setString(&settings.RESTURL, cfg.RESTURL)
	setString(&settings.AddressPrefix, cfg.AddressPrefix)
	setString(&settings.Denom, cfg.Denom)
	setString(&settings.SignerURL, cfg.Signer.URL)
	setString(&settings.SignerToken, cfg.Signer.Token)
	if cfg.Signer.TokenEnv != "" {
		settings.SignerToken = os.Getenv(cfg.Signer.TokenEnv)
	}

	if cfg.Tx.GasAdjustment != nil {
		settings.GasAdjustment = *cfg.Tx.GasAdjustment
	}
	if err := setDuration(&settings.WaitTimeout, cfg.Tx.WaitTimeout, "config tx.wait_timeout"); err != nil {
		return err
	}
	if err := setDuration(&settings.WaitInterval, cfg.Tx.WaitInterval, "config tx.wait_interval"); err != nil {
		return err
	}

	if cfg.Retry.MaxRetries != nil {
		settings.Retry.MaxRetries = *cfg.Retry.MaxRetries
	}
	if err := setDuration(&settings.Retry.BaseDelay, cfg.Retry.BaseDelay, "config retry.base_delay"); err != nil {
		return err
	}
	if err := setDuration(&settings.Retry.MaxDelay, cfg.Retry.MaxDelay, "config retry.max_delay"); err != nil {
		return err
	}
	if cfg.RateLimit.RequestsPerSecond != nil {
		settings.RequestsPerSecond = *cfg.RateLimit.RequestsPerSecond
	}

	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if err := setDuration(&settings.MaxStale, cfg.Cache.MaxStale, "config cache.max_stale"); err != nil {
		return err
	}
	setString(&settings.CachePath, cfg.Cache.Path)
	setString(&settings.CacheLockPath, cfg.Cache.LockPath)
	setString(&settings.JournalPath, cfg.Journal.Path)
	setString(&settings.JournalLockPath, cfg.Journal.LockPath)

	setString(&settings.LogLevel, strings.ToLower(cfg.Log.Level))
	setString(&settings.LogEncoding, strings.ToLower(cfg.Log.Encoding))
	setString(&settings.LogFile, cfg.Log.File)
	setString(&settings.KeySource, strings.ToLower(cfg.Wallet.KeySource))
	return nil
}

func applyEnv(settings *Settings) error {
	if v := os.Getenv("MANIFEST_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if err := setDuration(&settings.Timeout, os.Getenv("MANIFEST_TIMEOUT"), "MANIFEST_TIMEOUT"); err != nil {
		return err
	}
	setString(&settings.ChainID, os.Getenv("MANIFEST_CHAIN_ID"))
	setString(&settings.RPCURL, os.Getenv("MANIFEST_RPC_URL"))
	setString(&settings.RESTURL, os.Getenv("MANIFEST_REST_URL"))
	setString(&settings.AddressPrefix, os.Getenv("MANIFEST_ADDRESS_PREFIX"))
	setString(&settings.SignerURL, os.Getenv("MANIFEST_SIGNER_URL"))
	setString(&settings.SignerToken, os.Getenv("MANIFEST_SIGNER_TOKEN"))

	if v := os.Getenv("MANIFEST_GAS_ADJUSTMENT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return invalid("parse MANIFEST_GAS_ADJUSTMENT", err)
		}
		settings.GasAdjustment = f
	}
	if v := os.Getenv("MANIFEST_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return invalid("parse MANIFEST_RETRIES", err)
		}
		settings.Retry.MaxRetries = n
	}
	if err := setDuration(&settings.Retry.BaseDelay, os.Getenv("MANIFEST_RETRY_BASE_DELAY"), "MANIFEST_RETRY_BASE_DELAY"); err != nil {
		return err
	}
	if err := setDuration(&settings.Retry.MaxDelay, os.Getenv("MANIFEST_RETRY_MAX_DELAY"), "MANIFEST_RETRY_MAX_DELAY"); err != nil {
		return err
	}
	if v := os.Getenv("MANIFEST_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return invalid("parse MANIFEST_RATE_LIMIT", err)
		}
		settings.RequestsPerSecond = n
	}

	if err := setDuration(&settings.MaxStale, os.Getenv("MANIFEST_MAX_STALE"), "MANIFEST_MAX_STALE"); err != nil {
		return err
	}
	if v := os.Getenv("MANIFEST_NO_STALE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return invalid("parse MANIFEST_NO_STALE", err)
		}
		settings.NoStale = b
	}
	if v := os.Getenv("MANIFEST_NO_CACHE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return invalid("parse MANIFEST_NO_CACHE", err)
		}
		settings.CacheEnabled = !b
	}
	setString(&settings.CachePath, os.Getenv("MANIFEST_CACHE_PATH"))
	setString(&settings.CacheLockPath, os.Getenv("MANIFEST_CACHE_LOCK_PATH"))
	setString(&settings.JournalPath, os.Getenv("MANIFEST_JOURNAL_PATH"))
	setString(&settings.JournalLockPath, os.Getenv("MANIFEST_JOURNAL_LOCK_PATH"))

	setString(&settings.LogLevel, strings.ToLower(os.Getenv("MANIFEST_LOG_LEVEL")))
	setString(&settings.LogEncoding, strings.ToLower(os.Getenv("MANIFEST_LOG_ENCODING")))
	setString(&settings.LogFile, os.Getenv("MANIFEST_LOG_FILE"))
	setString(&settings.KeySource, strings.ToLower(os.Getenv("MANIFEST_KEY_SOURCE")))
	return nil
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return clierr.New(clierr.CodeUsage, "cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if fields := splitCSV(flags.Select); len(fields) > 0 {
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly
	if allowed := splitCSV(flags.EnableCommands); len(allowed) > 0 {
		settings.EnableCommands = allowed
	}

	if err := setDuration(&settings.Timeout, flags.Timeout, "parse --timeout"); err != nil {
		return err
	}
	setString(&settings.ChainID, flags.ChainID)
	setString(&settings.RPCURL, flags.RPCURL)
	setString(&settings.RESTURL, flags.RESTURL)
	setString(&settings.SignerURL, flags.SignerURL)
	if flags.Retries >= 0 {
		settings.Retry.MaxRetries = flags.Retries
	}
	if flags.RateLimit > 0 {
		settings.RequestsPerSecond = flags.RateLimit
	}
	if err := setDuration(&settings.MaxStale, flags.MaxStale, "parse --max-stale"); err != nil {
		return err
	}
	if flags.NoStale {
		settings.NoStale = true
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	setString(&settings.LogLevel, strings.ToLower(flags.LogLevel))
	setString(&settings.KeySource, strings.ToLower(flags.KeySource))
	return nil
}

func validate(settings Settings) error {
	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return clierr.New(clierr.CodeConfigInvalid, "output must be json or plain")
	}
	if settings.Timeout <= 0 {
		return clierr.New(clierr.CodeConfigInvalid, "timeout must be positive")
	}
	if err := settings.Retry.Validate(); err != nil {
		return err
	}
	if settings.RequestsPerSecond <= 0 {
		return clierr.Newf(clierr.CodeConfigInvalid, "requests per second must be positive, got %d", settings.RequestsPerSecond)
	}
	if settings.GasAdjustment < 1 {
		return clierr.Newf(clierr.CodeConfigInvalid, "gas adjustment must be at least 1, got %g", settings.GasAdjustment)
	}
	if settings.WaitTimeout <= 0 || settings.WaitInterval <= 0 {
		return clierr.New(clierr.CodeConfigInvalid, "tx wait timeout and interval must be positive")
	}
	if settings.MaxStale < 0 {
		return clierr.New(clierr.CodeConfigInvalid, "max stale must not be negative")
	}
	if _, err := zapcore.ParseLevel(settings.LogLevel); err != nil {
		return invalid("log level", err)
	}
	if settings.LogEncoding != "json" && settings.LogEncoding != "console" {
		return clierr.New(clierr.CodeConfigInvalid, "log encoding must be json or console")
	}
	switch settings.KeySource {
	case wallet.KeySourceAuto, wallet.KeySourceEnv, wallet.KeySourceFile, wallet.KeySourceKeystore:
	default:
		return clierr.Newf(clierr.CodeConfigInvalid, "unsupported key source %q (expected auto|env|file|keystore)", settings.KeySource)
	}
	if strings.TrimSpace(settings.AddressPrefix) == "" {
		return clierr.New(clierr.CodeConfigInvalid, "address prefix must not be empty")
	}
	return nil
}

func invalid(what string, err error) error {
	return clierr.Wrap(clierr.CodeConfigInvalid, what, err)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, raw, what string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return invalid(what, err)
	}
	*dst = d
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
