package replay

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/arena/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging sends log output to both the console and logFile.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "replay_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return file, nil
}

// ShowHelp prints usage information for the webhook replay tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Arena Webhook Replay
====================

Generates CRM webhook batches, delivers each one twice, and checks that the
leaderboard totals moved by exactly one delivery.

Usage:
  go run ./cmd/webhook-replay [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -sources string
        Comma separated source systems (default "elead,fortellis,xtime,dripjobs")
  -secrets string
        Webhook secrets as source=secret pairs, comma separated
  -session-secret string
        HS256 key used to sign the manager session (default $ARENA_JWT_SECRET)
  -dealership string
        Dealership id for every record (default "d-1")
  -org string
        Organization id claimed by the session
  -users string
        Comma separated external user ids (default "rep-1,rep-2,rep-3")
  -batches int
        Number of webhook batches (default 40)
  -records int
        Records per batch (default 5)
  -workers int
        Number of concurrent senders (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for generated payloads (default: replay_batches_TIMESTAMP.json)
  -log string
        Log file for replay output (default: replay_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Replay against a local service
  go run ./cmd/webhook-replay -secrets elead=s1,fortellis=s2,xtime=s3,dripjobs=s4 -session-secret dev

  # Only eLead, larger batches
  go run ./cmd/webhook-replay -sources elead -secrets elead=s1 -records 50 -batches 200
`)
}
