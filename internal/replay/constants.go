package replay

import "time"

// HTTP status code constants.
const (
	StatusOK = 200
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	SessionTTL           = 10 * time.Minute
	PercentageMultiplier = 100
	totalsTolerance      = 1e-6
)
