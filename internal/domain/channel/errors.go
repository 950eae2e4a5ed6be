package channel

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error Taxonomy
// ---------------------------------------------------------------------------

// Sentinel errors classify every failure that can cross the adapter boundary.
// Raw transport errors never leak upward; adapters wrap them into one of
// these categories.
var (
	// ErrAuth indicates invalid or expired credentials. Not retryable;
	// surfaced to the tenant for re-authentication.
	ErrAuth = errors.New("channel: authentication failed")
	// ErrTransient indicates a temporary remote failure (5xx, timeout, 429).
	// Retryable with backoff up to a bounded attempt count.
	ErrTransient = errors.New("channel: transient remote failure")
	// ErrValidation indicates a per-item rejection by the remote system.
	// Isolates the item; never aborts the batch.
	ErrValidation = errors.New("channel: item rejected by remote validation")
	// ErrConflict indicates a concurrent local edit newer than the last sync.
	// Resolved by most-recent-write-wins; the losing write is logged.
	ErrConflict = errors.New("channel: conflicting concurrent modification")
	// ErrLockContention indicates the run's advisory lock is already held.
	// The run is skipped, not failed.
	ErrLockContention = errors.New("channel: sync already running for this key")

	// ErrNotConfigured indicates no credentials exist for the tenant+system.
	ErrNotConfigured = errors.New("channel: external system not configured")
	// ErrNotEnabled indicates the integration is configured but disabled.
	ErrNotEnabled = errors.New("channel: external system not enabled")
	// ErrInvalidResponse indicates an unparseable remote payload.
	ErrInvalidResponse = errors.New("channel: invalid remote response")
	// ErrInvalidCursor indicates a pagination cursor the remote rejected.
	ErrInvalidCursor = errors.New("channel: invalid pagination cursor")
	// ErrCapabilityNotSupported indicates the external system has no API for
	// the requested operation (e.g. orders on a supplier feed).
	ErrCapabilityNotSupported = errors.New("channel: capability not supported by external system")
)

// AuthError wraps a credential failure with remote detail.
type AuthError struct {
	System SystemCode
	Detail string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("channel: authentication failed for %s: %s", e.System, e.Detail)
}

// Unwrap makes errors.Is(err, ErrAuth) hold for AuthError values.
func (e *AuthError) Unwrap() error { return ErrAuth }

// TransientError wraps a retryable failure with the HTTP status that caused it.
type TransientError struct {
	System     SystemCode
	StatusCode int
	Detail     string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("channel: transient failure on %s (status %d): %s", e.System, e.StatusCode, e.Detail)
}

func (e *TransientError) Unwrap() error { return ErrTransient }

// ValidationError wraps a per-item remote rejection.
type ValidationError struct {
	System SystemCode
	ItemID string
	Code   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("channel: %s rejected item %s (%s): %s", e.System, e.ItemID, e.Code, e.Detail)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsAuth reports whether err is a credential failure.
func IsAuth(err error) bool { return errors.Is(err, ErrAuth) }

// IsTransient reports whether err is retryable with backoff.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsValidation reports whether err is a per-item rejection.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// ClassifyHTTPStatus maps an HTTP status code to the error taxonomy.
// 5xx and 429 are transient; 401/403 are auth; 422 is validation.
func ClassifyHTTPStatus(system SystemCode, status int, detail string) error {
	switch {
	case status == 401 || status == 403:
		return &AuthError{System: system, Detail: detail}
	case status == 422:
		return &ValidationError{System: system, Code: fmt.Sprintf("HTTP_%d", status), Detail: detail}
	case status == 429 || status >= 500:
		return &TransientError{System: system, StatusCode: status, Detail: detail}
	default:
		return fmt.Errorf("%w: HTTP %d: %s", ErrInvalidResponse, status, detail)
	}
}
