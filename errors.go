package paywatch

import "errors"

var (
	// ErrInvalidURL is returned when an article URL is empty, relative,
	// or not an http(s) URL.
	ErrInvalidURL = errors.New("paywatch: invalid article URL")

	// ErrSessionNotFound is returned when an operation requires a session
	// that does not exist.
	ErrSessionNotFound = errors.New("paywatch: session not found")

	// ErrNoAPIKey indicates that no aggregator API key is configured.
	// Search operations degrade to empty results instead of returning it,
	// but it is exposed for callers that want to check up front.
	ErrNoAPIKey = errors.New("paywatch: no API key configured")
)
