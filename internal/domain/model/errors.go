package model

import "errors"

// Sentinel kinds shared by the domain and the store implementations.
var (
	ErrUnknownSource   = errors.New("unknown source system")
	ErrDuplicateRecord = errors.New("duplicate raw ingest record")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidRole     = errors.New("invalid role")
)
