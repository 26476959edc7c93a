package summary

import "errors"

// Errors returned by the aggregation gate. ErrForbidden (the tenant is not
// on our allow-list) and ErrUpstreamAuthRequired (the remote collection
// itself answered 401) are deliberately distinct: the first is terminal,
// the second tells the caller to run its own direct fetch with the
// visitor's credentials.
var (
	// ErrBadRequest means the caller input is invalid: empty domain, or a
	// base path that does not start with "/".
	ErrBadRequest = errors.New("invalid domain or base path")

	// ErrForbidden means the tenant domain is not on the allow-list.
	ErrForbidden = errors.New("domain not authorized")

	// ErrUpstreamAuthRequired means the remote collection demands visitor
	// credentials the server-side fetch lacks.
	ErrUpstreamAuthRequired = errors.New("upstream requires visitor authentication")

	// ErrAggregation covers the remaining upstream failures (transient
	// exhaustion, fatal responses, the pagination loop cap). Callers fall
	// back to their own direct fetch rather than showing an error.
	ErrAggregation = errors.New("aggregation failed")
)
