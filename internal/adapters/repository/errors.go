package repository

import "errors"

// Sentinel kinds for store construction errors. Lookup and uniqueness
// failures use the model sentinels so callers need not import this package.
var (
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrMissingDSN    = errors.New("database dsn is required")
	ErrInvalidUser   = errors.New("invalid user")
)
