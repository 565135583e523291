package provider

import (
	"context"
	"errors"
	"time"
)

// Retry runs fn up to attempts times, doubling delay between tries. Only
// transient failures are retried: FetchError with a 5xx status, or transport
// errors. Client errors (4xx) and typed auth/schema failures return
// immediately, as does context cancellation.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return err
}

func retryable(err error) bool {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Transient()
	}

	var authErr *AuthError
	var scrapeErr *ScrapeError
	var schemaErr *SchemaError
	if errors.As(err, &authErr) || errors.As(err, &scrapeErr) || errors.As(err, &schemaErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Anything else is a transport-level failure.
	return true
}
