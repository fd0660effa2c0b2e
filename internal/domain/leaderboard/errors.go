package leaderboard

import "errors"

// Sentinel kinds for leaderboard errors.
var (
	ErrUnknownMetric     = errors.New("unknown leaderboard metric")
	ErrUnknownDepartment = errors.New("unknown department")
	ErrRead              = errors.New("leaderboard read failed")
)
