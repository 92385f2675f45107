package store

import (
	"context"
	"fmt"
	"log"
	"time"
)

// withRetry runs fn with bounded exponential backoff. Only reads go through
// here; writes are never auto-retried so the insert policies keep their exact
// duplicate semantics.
func (s *gormStore) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	delay := s.retryBase
	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == s.retryAttempts {
			break
		}
		log.Printf("%s failed (attempt %d/%d), retrying in %v: %v", op, attempt, s.retryAttempts, delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, s.retryAttempts, err)
}
