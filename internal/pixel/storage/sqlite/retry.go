package sqlite

import (
	"fmt"
	"strings"
	"time"
)

const (
	maxBusyRetries   = 5
	initialBusyDelay = 10 * time.Millisecond
)

// isSQLiteBusy reports whether err is a lock contention error worth retrying.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// retryOnBusy runs fn, retrying with exponential backoff while it fails
// with SQLITE_BUSY. Other errors are returned unchanged.
func retryOnBusy(fn func() error) error {
	delay := initialBusyDelay
	var err error
	for attempt := 1; attempt <= maxBusyRetries; attempt++ {
		err = fn()
		if !isSQLiteBusy(err) {
			return err
		}
		if attempt < maxBusyRetries {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("still busy after %d attempts: %w", maxBusyRetries, err)
}
