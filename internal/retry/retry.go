// Package retry wraps fallible operations with bounded linear backoff.
package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

type permanent struct{ err error }

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying: Do stops immediately and
// returns the wrapped error. Call sites use this for hard 4xx failures
// where blind retries cannot help.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// Do runs fn up to maxRetries times, sleeping baseDelay*attempt between
// failures. On exhaustion the last error surfaces, wrapped with the
// operation name and attempt count but still reachable via errors.Cause.
func Do(ctx context.Context, name string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var last error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var p *permanent
		if errors.As(err, &p) {
			return errors.Wrapf(p.err, "%s: permanent failure on attempt %d", name, attempt)
		}
		last = err
		if attempt == maxRetries {
			break
		}
		delay := baseDelay * time.Duration(attempt)
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return errors.Wrapf(ctx.Err(), "%s: canceled during retry backoff", name)
		}
		t.Stop()
	}
	return errors.Wrapf(last, "%s: exhausted %d attempts", name, maxRetries)
}
