package core

import "errors"

// Error taxonomy shared across the framework. Components wrap these with
// fmt.Errorf("...: %w", Err...) so callers can classify failures with
// errors.Is without parsing message text.
var (
	// ErrNotFound indicates an unknown agent, chain or context entry id.
	// Callers log and continue; it is never fatal.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates a resource that exists but cannot serve right
	// now: a full bus queue, no capable worker, a model backend that is down.
	ErrUnavailable = errors.New("unavailable")

	// ErrTimeout indicates a bounded wait elapsed (response correlation,
	// receive with timeout). Treated the same as ErrUnavailable by callers.
	ErrTimeout = errors.New("timeout")

	// ErrExhausted indicates every option of a fallback chain failed. The
	// wrapping error carries the last underlying cause.
	ErrExhausted = errors.New("exhausted")
)
