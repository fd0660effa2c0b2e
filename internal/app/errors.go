package service

import "errors"

// Sentinel error kinds for the service.
var (
	ErrNotStarted = errors.New("service not started")
	ErrOpenStore  = errors.New("open store failed")
	ErrSeedUsers  = errors.New("seed users failed")
)
