package retry

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
)

func fastPolicy(maxRetries int) Policy {
	return Policy{MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func TestNonRetryableCodesRunOnce(t *testing.T) {
	for _, code := range clierr.NonRetryableCodes() {
		t.Run(string(code), func(t *testing.T) {
			calls := 0
			_, err := Do(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
				calls++
				// a transient-looking message must not change the outcome
				return 0, clierr.New(code, "connection refused")
			})
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := calls; got != 1 {
				t.Fatalf("calls = %d, want 1", got)
			}
			if got := clierr.CodeOf(err); got != code {
				t.Fatalf("code = %s, want %s", got, code)
			}
		})
	}
}

func TestRetriesUntilSuccess(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		maxRetries int
		wantCalls  int
		wantErr    bool
	}{
		{name: "first try", failures: 0, maxRetries: 3, wantCalls: 1},
		{name: "two failures", failures: 2, maxRetries: 3, wantCalls: 3},
		{name: "exhausted", failures: 10, maxRetries: 3, wantCalls: 4, wantErr: true},
		{name: "no retries", failures: 1, maxRetries: 0, wantCalls: 1, wantErr: true},
		{name: "exactly enough", failures: 3, maxRetries: 3, wantCalls: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := Do(context.Background(), fastPolicy(tt.maxRetries), func(context.Context) (string, error) {
				calls++
				if calls <= tt.failures {
					return "", clierr.New(clierr.CodeQueryFailed, "dial tcp: connection refused")
				}
				return "ok", nil
			})
			if calls != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != "ok" {
				t.Fatalf("got %q, want ok", got)
			}
		})
	}
}

func TestNonTransientMessageIsPermanent(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), func(context.Context) (int, error) {
		calls++
		return 0, clierr.New(clierr.CodeQueryFailed, "account not found")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := calls; got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}

	calls = 0
	_, err = Do(context.Background(), fastPolicy(2), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("read: EOF")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := calls; got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestObserverSeesEachRetry(t *testing.T) {
	var attempts []int
	var delays []time.Duration
	policy := Policy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 100 * time.Millisecond}
	_, err := Do(context.Background(), policy, func(context.Context) (int, error) {
		return 0, errors.New("503 service unavailable")
	}, WithObserver(func(err error, attempt int, delay time.Duration) {
		if err == nil {
			t.Fatal("expected an error")
		}
		attempts = append(attempts, attempt)
		delays = append(delays, delay)
	}), WithRandom(func() float64 { return 0.5 }))
	if err == nil {
		t.Fatal("expected an error")
	}
	if got, want := attempts, []int{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("attempts = %v, want %v", got, want)
	}
	if got, want := delays, []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}; !reflect.DeepEqual(got, want) {
		t.Fatalf("delays = %v, want %v", got, want)
	}
}

func TestDelayBounds(t *testing.T) {
	policy := Policy{MaxRetries: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}
	for attempt := 0; attempt < 8; attempt++ {
		capped := policy.CappedDelay(attempt)
		if capped > policy.MaxDelay {
			t.Fatalf("capped = %v, want <= %v", capped, policy.MaxDelay)
		}
		low := time.Duration(float64(capped) * 0.75)
		high := time.Duration(float64(capped) * 1.25)
		for _, r := range []float64{0, 0.1, 0.5, 0.9, 0.999999} {
			d := policy.Delay(attempt, r)
			if d < low {
				t.Fatalf("attempt %d r %v: d = %v, want >= %v", attempt, r, d, low)
			}
			if d > high {
				t.Fatalf("attempt %d r %v: d = %v, want <= %v", attempt, r, d, high)
			}
		}
	}
	if got := policy.CappedDelay(0); got != 100*time.Millisecond {
		t.Fatalf("CappedDelay(0) = %v, want 100ms", got)
	}
	if got := policy.CappedDelay(3); got != 800*time.Millisecond {
		t.Fatalf("CappedDelay(3) = %v, want 800ms", got)
	}
	if got := policy.CappedDelay(5); got != 2*time.Second {
		t.Fatalf("CappedDelay(5) = %v, want 2s", got)
	}
	if got := policy.CappedDelay(200); got != 2*time.Second {
		t.Fatalf("CappedDelay(200) = %v, want 2s", got)
	}
	if got := (Policy{}).Delay(3, 0); got != 0 {
		t.Fatalf("zero policy delay = %v, want 0", got)
	}
}

func TestCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, policy, func(context.Context) (int, error) {
			calls++
			return 0, clierr.New(clierr.CodeRPCConnectionFailed, "connection reset by peer")
		}, WithObserver(func(error, int, time.Duration) { cancel() }))
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "connection reset") {
			t.Fatalf("expected error containing %q, got %v", "connection reset", err)
		}
		if err == nil || !strings.Contains(err.Error(), context.Canceled.Error()) {
			t.Fatalf("expected error containing %q, got %v", context.Canceled.Error(), err)
		}
		if got := clierr.CodeOf(err); got != clierr.CodeRPCConnectionFailed {
			t.Fatalf("clierr.CodeOf(err) = %v, want %v", got, clierr.CodeRPCConnectionFailed)
		}
		if got := calls; got != 1 {
			t.Fatalf("calls = %d, want 1", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not stop after cancellation")
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Policy{}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if (Policy{MaxRetries: -1}).Validate() == nil {
		t.Fatal("expected an error")
	}
	if (Policy{BaseDelay: 2 * time.Second, MaxDelay: time.Second}).Validate() == nil {
		t.Fatal("expected an error")
	}
	if (Policy{BaseDelay: -time.Second}).Validate() == nil {
		t.Fatal("expected an error")
	}
	if got := clierr.CodeOf(Policy{MaxRetries: -1}.Validate()); got != clierr.CodeConfigInvalid {
		t.Fatalf("got %v, want %v", got, clierr.CodeConfigInvalid)
	}
}

func TestIsTransient(t *testing.T) {
	transient := []string{
		"dial tcp 127.0.0.1:26657: connect: connection refused",
		"ECONNRESET",
		"context deadline exceeded (Client.Timeout exceeded while awaiting headers)",
		"lookup rpc.example: no such host",
		"unexpected EOF",
		"provider unavailable (status 502)",
		"HTTP 429",
		"Too Many Requests",
		"rate limit exceeded",
		"Gateway Timeout",
	}
	for _, msg := range transient {
		if !IsTransient(msg) {
			t.Fatalf("expected %q to be transient", msg)
		}
	}

	permanent := []string{
		"account manifest1abc not found",
		"invalid amount 1500umfx",
		"signature verification failed",
		"invalid merkle proof for key",
		"the account thereof is frozen",
		"",
	}
	for _, msg := range permanent {
		if IsTransient(msg) {
			t.Fatalf("expected %q to be permanent", msg)
		}
	}

	if IsRetryable(nil) {
		t.Fatal("nil error must not be retryable")
	}
	if !IsRetryable(errors.New("socket hang up")) {
		t.Fatal("socket hang up should be retryable")
	}
	if !IsRetryable(errors.New("read tcp 10.0.0.1:443: EOF")) {
		t.Fatal("bare EOF should be retryable")
	}
	if IsRetryable(clierr.New(clierr.CodeInsufficientFunds, "network fee too low")) {
		t.Fatal("insufficient funds must not be retried")
	}
}
