package chat

import "errors"

// Error taxonomy for the streaming proxy. All provider and network errors
// are translated to one of these at the proxy boundary; raw provider
// errors are logged server-side and never surfaced to the end user.
var (
	// ErrInvalidRequest marks a malformed transcript. Not retried.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRateLimited marks a rate-limit denial, surfaced distinctly so the
	// UI can show the "slow down" copy. Not retried automatically.
	ErrRateLimited = errors.New("rate limited")
	// ErrProviderUnavailable marks the model-not-found/forbidden class
	// after the fallback chain is exhausted.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProviderFailure marks any other provider error. No retry.
	ErrProviderFailure = errors.New("provider failure")
)
