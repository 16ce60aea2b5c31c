package util

import (
	"context"
	"time"
)

// Retry runs fn up to attempts times, doubling the delay between tries.
// It stops early on success or when ctx is cancelled. The simulation core
// never retries; this is for exchange fetches and order placement only.
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
