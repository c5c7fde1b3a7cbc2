package util

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"
)

// RetryConfig is an exponential backoff policy
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration // doubled after every failed attempt
	MaxWait     time.Duration
}

// DefaultRetryConfig retries three times starting at 100ms
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     5 * time.Second,
	}
}

// FileRetryConfig is used for the database file itself: backup copies,
// sibling swaps and removal. A checkpointing WAL reader can hold the file
// briefly, so waits are short and attempts a little higher.
func FileRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 4,
		InitialWait: 50 * time.Millisecond,
		MaxWait:     2 * time.Second,
	}
}

// wait returns the pause after the given failed attempt (1-based)
func (c *RetryConfig) wait(attempt int) time.Duration {
	d := c.InitialWait << (attempt - 1)
	if d <= 0 || d > c.MaxWait {
		return c.MaxWait
	}
	return d
}

// transientErrnos are local filesystem conditions that clear on their own
var transientErrnos = map[syscall.Errno]bool{
	syscall.EAGAIN:    true,
	syscall.EBUSY:     true,
	syscall.EINTR:     true,
	syscall.EIO:       true,
	syscall.ETIMEDOUT: true,
	syscall.EMFILE:    true,
}

// busyMarkers are substrings of SQLite lock contention errors
var busyMarkers = []string{
	"database is locked",
	"database table is locked",
	"sqlite_busy",
	"resource temporarily unavailable",
	"too many open files",
}

// IsRetryableError reports whether err is a transient filesystem error or
// SQLite lock contention
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return transientErrnos[errno]
	}

	msg := strings.ToLower(err.Error())
	for _, m := range busyMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// RetryWithBackoff runs operation until it succeeds, fails with a
// non-retryable error, or cfg.MaxAttempts is reached. A nil cfg uses
// DefaultRetryConfig.
func RetryWithBackoff[T any](cfg *RetryConfig, operation func() (T, error), name string) (T, error) {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err = operation()
		switch {
		case err == nil:
			if attempt > 1 {
				DebugLog("%s succeeded on attempt %d/%d", name, attempt, cfg.MaxAttempts)
			}
			return result, nil
		case !IsRetryableError(err):
			return result, err
		case attempt == cfg.MaxAttempts:
			WarnLog("%s failed after %d attempts: %v", name, attempt, err)
			return result, fmt.Errorf("max retries exceeded (%d attempts): %w", attempt, err)
		}

		pause := cfg.wait(attempt)
		DebugLog("%s failed (attempt %d/%d), retrying in %v: %v", name, attempt, cfg.MaxAttempts, pause, err)
		time.Sleep(pause)
	}
	return result, err
}

// Retry is RetryWithBackoff for operations without a result
func Retry(cfg *RetryConfig, operation func() error, name string) error {
	_, err := RetryWithBackoff(cfg, func() (struct{}, error) {
		return struct{}{}, operation()
	}, name)
	return err
}

// RetryableRemove removes path, retrying transient failures
func RetryableRemove(path string, cfg *RetryConfig) error {
	return Retry(cfg, func() error { return os.Remove(path) }, "remove "+path)
}

// RetryableRename renames oldpath to newpath, retrying transient failures
func RetryableRename(oldpath, newpath string, cfg *RetryConfig) error {
	return Retry(cfg, func() error { return os.Rename(oldpath, newpath) }, fmt.Sprintf("rename %s -> %s", oldpath, newpath))
}
