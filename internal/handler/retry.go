package handler

import (
	"context"
	"time"
)

// withRetry runs fn up to len(backoff)+1 times, sleeping backoff[i]
// between attempt i and i+1, used for scheduler CLI invocations
// (sacct/qstat) that occasionally fail transiently under cluster load.
func withRetry(ctx context.Context, backoff []time.Duration, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= len(backoff) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff[attempt]):
		}
	}
}
