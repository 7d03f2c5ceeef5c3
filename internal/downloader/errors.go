package downloader

import (
	"fmt"
	"time"
)

// FailureKind classifies a fetch failure for retry policy decisions.
type FailureKind string

// Failure kinds. Transport, rate-limited, and blocked failures are
// retryable; not-found, content-mismatch, and filesystem failures are
// terminal for the attempt.
const (
	KindTransport       FailureKind = "transport"
	KindRateLimited     FailureKind = "rate_limited"
	KindBlocked         FailureKind = "blocked"
	KindNotFound        FailureKind = "not_found"
	KindContentMismatch FailureKind = "content_mismatch"
	KindFilesystem      FailureKind = "filesystem"
)

// FetchError carries the failure classification for one fetch attempt.
type FetchError struct {
	Kind       FailureKind
	StatusCode int
	// RetryAfter holds a server-provided retry hint (Retry-After header),
	// zero when absent.
	RetryAfter time.Duration
	Err        error
	Detail     string
}

func (e *FetchError) Error() string {
	switch {
	case e.Detail != "" && e.StatusCode > 0:
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s (HTTP %d)", e.Kind, e.StatusCode)
	default:
		return string(e.Kind)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure may succeed on a later attempt.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindRateLimited, KindBlocked:
		return true
	default:
		return false
	}
}
