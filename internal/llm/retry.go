package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 8 * time.Second
)

// httpStatusError marks a non-2xx response so the retry loop can distinguish
// transient service trouble (rate limits, 5xx) from permanent rejection.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

// transient reports whether err is worth retrying: transport-level failures
// and retryable HTTP statuses. Context cancellation is never transient.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.status == http.StatusRequestTimeout ||
			se.status == http.StatusTooManyRequests ||
			se.status >= 500
	}
	// Anything else (connection refused, reset, client timeout) is transient.
	return true
}

// withRetry runs fn, retrying transient failures with exponential backoff up
// to limit retries. Returns the last error once the budget is exhausted or a
// permanent error is seen.
func withRetry(ctx context.Context, limit int, logger *zap.Logger, op string, fn func() error) error {
	backoff := backoffBase
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= limit || !transient(err) {
			return err
		}
		if logger != nil {
			logger.Warn("retrying after transient failure",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffCap {
			backoff = backoffCap
		}
	}
}
