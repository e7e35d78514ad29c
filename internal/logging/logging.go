// Package logging builds the diagnostic logger. Logs go to stderr or a
// file, never stdout, which carries the result envelope.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/redact"
)

type Config struct {
	Level    string
	Encoding string
	File     string
}

// New returns a logger and a close func for any file it opened.
func New(cfg Config, stderr io.Writer) (*zap.Logger, func() error, error) {
	level := zap.NewAtomicLevel()
	if cfg.Level == "" {
		cfg.Level = "warn"
	}
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, clierr.Wrap(clierr.CodeConfigInvalid, "parse log level "+cfg.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	sink := zapcore.AddSync(stderr)
	closeFn := func() error { return nil }
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, clierr.Wrap(clierr.CodeConfigInvalid, "create log directory", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, clierr.Wrap(clierr.CodeConfigInvalid, "open log file", err)
		}
		sink = zapcore.AddSync(f)
		closeFn = f.Close
	}

	logger := zap.New(zapcore.NewCore(
		encoder,
		zapcore.Lock(sink),
		level,
	), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, closeFn, nil
}

// Details logs a detail map after redaction.
func Details(key string, details map[string]any) zap.Field {
	return zap.Any(key, redact.Map(details))
}
