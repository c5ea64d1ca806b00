package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"syscall"
	"time"
)

var retryablePhrases = []string{
	"rate limit", "rate_limit", "too many requests",
	"quota exceeded", "resource_exhausted", "overloaded",
	"internal server error", "bad gateway", "service unavailable", "gateway timeout",
	"connection reset by peer", "unexpected eof",
}

// retryableStatus matches a 429 or 5xx code only where it is labelled as a status.
var retryableStatus = regexp.MustCompile(`(?:status(?: code)?|http)[\s:=]*(?:429|5\d\d)\b`)

// IsRetryableError reports whether an LLM error is transient: rate limits,
// quota, 5xx responses and dropped connections. Context cancellation is never retried.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if retryableStatus.MatchString(msg) {
		return true
	}
	for _, p := range retryablePhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// RetryPolicy bounds WithRetry.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy retries twice with 1s then 2s waits.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: time.Second, MaxDelay: 8 * time.Second}

// WithRetry calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. Delays double from BaseDelay up to MaxDelay.
func WithRetry[T any](ctx context.Context, p RetryPolicy, name string, fn func(context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay

	var zero T
	var lastErr error
	for i := 1; i <= attempts; i++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if i == attempts || !IsRetryableError(err) {
			break
		}

		slog.Debug("retrying llm call", "op", name, "attempt", i, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return zero, lastErr
}
