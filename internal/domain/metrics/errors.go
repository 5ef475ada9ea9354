package metrics

import "errors"

// Error taxonomy for the resolution engine. Tier boundaries dispatch on these
// with errors.Is; wrapped causes travel with %w.
var (
	// ErrUpstreamUnavailable covers network failures, timeouts, and
	// rate-limit responses from an advertising-platform API.
	ErrUpstreamUnavailable = errors.New("upstream platform unavailable")

	// ErrUpstreamAuthInvalid signals an expired or invalid credential.
	ErrUpstreamAuthInvalid = errors.New("upstream credential invalid")

	// ErrStoreUnavailable signals a durable-store read or write failure.
	ErrStoreUnavailable = errors.New("durable store unavailable")

	// ErrNoData marks an exhausted tier chain. It is a terminal empty
	// result, not a fault in itself.
	ErrNoData = errors.New("no data found in any tier")

	// ErrAmbiguousRange signals a date range the classifier cannot map onto
	// supported periods and the caller must split.
	ErrAmbiguousRange = errors.New("date range spans unsupported partial periods")
)
