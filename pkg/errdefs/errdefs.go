// Package errdefs defines the error taxonomy shared by the HTTP layer,
// the range query adapter and the presence registry.
package errdefs

import "errors"

var (
	// ErrInvalidRange is returned for a time window outside the enumerated set.
	// It is always raised before any store query is built.
	ErrInvalidRange = errors.New("invalid time range")

	// ErrUpstreamQuery is returned when the time-series store is unreachable,
	// rejects the query, or times out.
	ErrUpstreamQuery = errors.New("upstream query failed")

	// ErrValidation is returned when a write is missing required fields.
	ErrValidation = errors.New("validation failed")

	// ErrAuth is returned when an identity token is missing, invalid or expired.
	ErrAuth = errors.New("authentication required")

	// ErrForbidden is returned when a verified identity may not perform the request.
	ErrForbidden = errors.New("forbidden")

	// ErrStorageFull is returned when a write would exceed the disk limit.
	ErrStorageFull = errors.New("storage limit exceeded")
)
