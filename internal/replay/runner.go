package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/arena/internal/adapters/http/api"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run generates webhook batches, delivers them, redelivers them, and checks
// that the leaderboard moved by exactly the first delivery.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	if config.Workers < 1 {
		config.Workers = 1
	}

	logger.Get().Info(ctx, "starting webhook replay",
		logger.String("baseURL", config.BaseURL),
		logger.Int("batches", config.Batches),
		logger.Int("recordsPerBatch", config.RecordsPerBatch),
		logger.Int("workers", config.Workers),
		logger.Bool("verbose", config.Verbose))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	token, err := api.SignSession(config.SessionSecret, api.Session{
		UserID:             "replay",
		Role:               model.RoleManager,
		DealershipID:       config.DealershipID,
		OrganizationID:     config.OrganizationID,
		OnboardingComplete: true,
	}, SessionTTL)
	if err != nil {
		return stats, fmt.Errorf("sign session: %w", err)
	}

	before, err := client.GetLeaderboard(ctx, token)
	if err != nil {
		return stats, fmt.Errorf("leaderboard snapshot failed: %w", err)
	}
	stats.LeadsBefore = before.Summary.TotalLeadsCreated
	stats.ServicesBefore = before.Summary.TotalServicesCompleted

	batches, err := generateBatches(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("batch generation failed: %w", err)
	}

	first := submitBatches(ctx, config, client, batches)
	stats.Delivered = int(first.delivered)
	stats.Failed = int(first.failed)
	stats.Processed = int(first.processed)
	stats.Unmatched = int(first.unmatched)
	stats.Duplicates = int(first.duplicates)

	second := submitBatches(ctx, config, client, batches)
	stats.Redelivered = int(second.delivered)
	stats.Failed += int(second.failed)
	stats.RedeliveryDuplicates = int(second.duplicates)

	after, err := client.GetLeaderboard(ctx, token)
	if err != nil {
		return stats, fmt.Errorf("leaderboard snapshot failed: %w", err)
	}
	stats.LeadsAfter = after.Summary.TotalLeadsCreated
	stats.ServicesAfter = after.Summary.TotalServicesCompleted

	if config.OutputFile != "" {
		if err := saveBatchesToFile(ctx, config.OutputFile, batches); err != nil {
			logger.Get().Warn(ctx, "failed to save batches to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	if err := verifyResults(ctx, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}
	logger.Get().Info(ctx, "replay completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	resp, err := client.Get(ctx, "/healthz", "")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// saveBatchesToFile writes the generated batches as a JSON array.
func saveBatchesToFile(ctx context.Context, filename string, batches []Batch) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(batches, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal batches: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "batches saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final replay statistics.
func displayFinalStats(stats *Stats) {
	var duplicateRate float64
	if stats.RecordsGenerated > 0 {
		duplicateRate = float64(stats.RedeliveryDuplicates) / float64(stats.RecordsGenerated) * PercentageMultiplier
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("batchesGenerated", stats.BatchesGenerated),
		logger.Int("recordsGenerated", stats.RecordsGenerated),
		logger.Int("delivered", stats.Delivered),
		logger.Int("redelivered", stats.Redelivered),
		logger.Int("failed", stats.Failed),
		logger.Int("processed", stats.Processed),
		logger.Int("unmatched", stats.Unmatched),
		logger.Int("redeliveryDuplicates", stats.RedeliveryDuplicates),
		logger.Float64("redeliveryDuplicateRate", duplicateRate),
		logger.Float64("leadsDelta", stats.LeadsAfter-stats.LeadsBefore),
		logger.Float64("servicesDelta", stats.ServicesAfter-stats.ServicesBefore),
		logger.String("duration", stats.Duration.String()))
}
