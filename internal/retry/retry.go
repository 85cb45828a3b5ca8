// internal/retry/retry.go
package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/config"
)

// ErrTimeout is returned when a call does not finish before its timeout.
var ErrTimeout = errors.New("operation timed out")

// StatusCoder is implemented by processor errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// Policy describes how a fallible call is repeated.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	// Timeout bounds each attempt. Zero disables the per-attempt timer.
	Timeout   time.Duration
	Retryable func(error) bool
	// OnRetry is called before sleeping between attempts.
	OnRetry func(err error, attempt int, wait time.Duration)
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    30 * time.Second,
		Timeout:     15 * time.Second,
		Retryable:   IsRetryable,
	}
}

// FromConfig overlays the configured values on DefaultPolicy. Zero values
// keep the default.
func FromConfig(cfg config.RetryConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay > 0 {
		p.BaseDelay = cfg.BaseDelay
	}
	if cfg.Multiplier >= 1 {
		p.Multiplier = cfg.Multiplier
	}
	if cfg.MaxDelay > 0 {
		p.MaxDelay = cfg.MaxDelay
	}
	if cfg.Timeout > 0 {
		p.Timeout = cfg.Timeout
	}
	return p
}

// Result is the tagged outcome of a retried call.
type Result[T any] struct {
	Value    T
	Err      error
	Attempts int
}

func (r Result[T]) OK() bool { return r.Err == nil }

// Backoff builds the delay schedule: BaseDelay * Multiplier^n, capped at MaxDelay, no jitter.
func (p Policy) Backoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithMaxRetries(b, uint64(attempts-1))
}

// Do runs op until it succeeds, fails with a non-retryable error, the attempt
// budget is spent or ctx is done.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) Result[T] {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var res Result[T]
	operation := func() error {
		res.Attempts++
		v, err := callWithTimeout(ctx, p.Timeout, op)
		if err == nil {
			res.Value = v
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(err, res.Attempts, wait)
		}
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(p.Backoff(), ctx), notify)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		res.Err = err
	}
	return res
}

func callWithTimeout[T any](ctx context.Context, d time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return op(ctx)
	}
	return WithTimeout(ctx, d, op)
}

// WithTimeout races op against a timer. The op context is cancelled when the
// timer fires so well-behaved calls release their resources.
func WithTimeout[T any](ctx context.Context, d time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := op(opCtx)
		done <- outcome{v, err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case out := <-done:
		return out.v, out.err
	case <-timer.C:
		return zero, apperr.Transient("timeout", ErrTimeout)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// IsRetryable accepts network failures, timeouts, HTTP 5xx and 429.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if apperr.IsValidation(err) || apperr.IsConsistency(err) {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatus()
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return apperr.IsTransient(err)
}
