package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/replay"
)

// Default configuration constants.
const (
	defaultBatches       = 40
	defaultRecords       = 5
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultReplayTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL       = flag.String("url", "http://localhost:9080", "Base URL of the service")
		sources       = flag.String("sources", "elead,fortellis,xtime,dripjobs", "Comma separated source systems")
		secrets       = flag.String("secrets", "", "Webhook secrets as source=secret pairs, comma separated")
		sessionSecret = flag.String("session-secret", os.Getenv("ARENA_JWT_SECRET"), "HS256 key used to sign the manager session")
		dealership    = flag.String("dealership", "d-1", "Dealership id for every record")
		org           = flag.String("org", "", "Organization id claimed by the session")
		users         = flag.String("users", "rep-1,rep-2,rep-3", "Comma separated external user ids")
		batches       = flag.Int("batches", defaultBatches, "Number of webhook batches")
		records       = flag.Int("records", defaultRecords, "Records per batch")
		workers       = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent senders")
		timeout       = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile    = flag.String("output", "", "Output file for generated payloads (default: replay_batches_TIMESTAMP.json)")
		logFile       = flag.String("log", "", "Log file for replay output (default: replay_log_TIMESTAMP.log)")
		verbose       = flag.Bool("verbose", false, "Enable verbose logging")
		help          = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		replay.ShowHelp()
		return
	}

	closer, err := replay.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	srcs, err := parseSources(*sources)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	secretMap, err := parseSecrets(*secrets)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	output := *outputFile
	if output == "" {
		output = "replay_batches_" + time.Now().Format("20060102_150405") + ".json"
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultReplayTimeout)
	defer cancel()

	config := &replay.Config{
		BaseURL:         *baseURL,
		Sources:         srcs,
		Secrets:         secretMap,
		SessionSecret:   []byte(*sessionSecret),
		DealershipID:    *dealership,
		OrganizationID:  *org,
		Users:           splitList(*users),
		Batches:         *batches,
		RecordsPerBatch: *records,
		Workers:         *workers,
		Timeout:         *timeout,
		OutputFile:      output,
		Verbose:         *verbose,
	}

	if _, err := replay.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Replay failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called above
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseSources(s string) ([]model.SourceSystem, error) {
	var out []model.SourceSystem
	for _, name := range splitList(s) {
		src, err := model.ParseSourceSystem(name)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// parseSecrets reads "elead=abc,xtime=def".
func parseSecrets(s string) (map[model.SourceSystem]string, error) {
	out := make(map[model.SourceSystem]string)
	for _, pair := range splitList(s) {
		name, secret, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("secret must be source=value, got %q", pair)
		}
		src, err := model.ParseSourceSystem(name)
		if err != nil {
			return nil, err
		}
		out[src] = secret
	}
	return out, nil
}
