// Package retry runs remote calls with exponential backoff and jitter,
// retrying only failures that look transient.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
)

const jitterFraction = 0.25

// Policy bounds how often and how long a call is retried.
type Policy struct {
	MaxRetries int           `json:"maxRetries" yaml:"max_retries"`
	BaseDelay  time.Duration `json:"baseDelay" yaml:"base_delay"`
	MaxDelay   time.Duration `json:"maxDelay" yaml:"max_delay"`
}

func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
}

func (p Policy) Validate() error {
	switch {
	case p.MaxRetries < 0:
		return clierr.Newf(clierr.CodeConfigInvalid, "retry max retries must be >= 0, got %d", p.MaxRetries)
	case p.BaseDelay < 0 || p.MaxDelay < 0:
		return clierr.New(clierr.CodeConfigInvalid, "retry delays must not be negative")
	case p.BaseDelay > p.MaxDelay:
		return clierr.Newf(clierr.CodeConfigInvalid, "retry base delay %s exceeds max delay %s", p.BaseDelay, p.MaxDelay)
	}
	return nil
}

// CappedDelay is min(BaseDelay * 2^attempt, MaxDelay) for a 0-indexed attempt.
func (p Policy) CappedDelay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Delay applies uniform jitter of +/-25% to CappedDelay. r must be in [0, 1).
func (p Policy) Delay(attempt int, r float64) time.Duration {
	capped := float64(p.CappedDelay(attempt))
	d := capped + capped*jitterFraction*(2*r-1)
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// Observer sees each failure that is about to be retried. attempt is the
// 1-based number of the retry that will follow the wait.
type Observer func(err error, attempt int, delay time.Duration)

type options struct {
	observer Observer
	random   func() float64
}

type Option func(*options)

func WithObserver(o Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithRandom replaces the jitter source.
func WithRandom(fn func() float64) Option {
	return func(opts *options) { opts.random = fn }
}

// Do calls fn until it succeeds, fails permanently or exhausts
// policy.MaxRetries. The last error is returned unchanged; when ctx ends
// during a backoff wait the context error is appended to it.
func Do[T any](ctx context.Context, policy Policy, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	o := options{random: rand.Float64}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	for attempt := 0; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if attempt >= policy.MaxRetries || !IsRetryable(err) {
			return zero, err
		}

		delay := policy.Delay(attempt, o.random())
		if o.observer != nil {
			o.observer(err, attempt+1, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%w (retry abandoned: %v)", err, ctx.Err())
		case <-timer.C:
		}
	}
}

// IsRetryable reports whether err may succeed on another attempt. Taxonomy
// errors in the never-retry set are permanent whatever their message says;
// everything else is retried only on a transient signature.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if cliErr, ok := clierr.As(err); ok && clierr.IsNonRetryable(cliErr.Code) {
		return false
	}
	return IsTransient(err.Error())
}

var transientSignatures = []string{
	"econnrefused",
	"connection refused",
	"econnreset",
	"connection reset",
	"etimedout",
	"timeout",
	"timed out",
	"enotfound",
	"no such host",
	"network",
	"socket",
	"connection",
	"internal server error",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"too many requests",
	"rate limit",
}

// Status codes and EOF are matched as whole words so amounts such as
// 1500umfx or words such as proof do not look like a transport failure.
var transientStatus = regexp.MustCompile(`\b(eof|429|500|502|503|504)\b`)

// IsTransient matches msg case-insensitively against known network and
// server-side failure signatures.
func IsTransient(msg string) bool {
	lower := strings.ToLower(msg)
	for _, sig := range transientSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return transientStatus.MatchString(lower)
}
