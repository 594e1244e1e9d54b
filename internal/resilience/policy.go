// Package resilience bounds calls to the embedding and language model services:
// a deadline per attempt, a limited number of retries for timeouts and connection
// failures, and optional client-side rate limiting.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"rag_chatbot/internal/domain"
)

const defaultRetryInterval = 500 * time.Millisecond

// Policy is safe for concurrent use; the zero value makes a single unbounded attempt.
type Policy struct {
	// Timeout bounds each attempt. Zero disables it.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
	// RetryInterval is the first backoff delay. Zero uses 500ms.
	RetryInterval time.Duration
	// Limiter, if set, is waited on before every attempt.
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// NewLimiter returns nil when rps is not positive, which disables limiting.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Do runs op under the policy. Timeouts surface as domain.ErrServiceTimeout and
// connection failures as domain.ErrServiceUnavailable; both are retried. Any other
// error is returned unchanged after the first attempt.
func (p Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attempt := 0
	operation := func() error {
		attempt++
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return backoff.Permanent(fmt.Errorf("%s: rate limiter: %w", name, err))
			}
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err := op(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		classified, retryable := Classify(err)
		if !retryable {
			return backoff.Permanent(classified)
		}
		logger.Warn("Service call failed", "call", name, "attempt", attempt, "error", err)
		return classified
	}

	interval := p.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxElapsedTime = 0

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx))
}

// Classify maps transport-level failures onto the service error taxonomy and reports
// whether the failure is worth retrying.
func Classify(err error) (error, bool) {
	switch {
	case errors.Is(err, domain.ErrServiceUnavailable):
		return err, true
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return fmt.Errorf("%w: %v", domain.ErrServiceTimeout, err), true
	case isConnectionError(err):
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err), true
	}
	return err, false
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
