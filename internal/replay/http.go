package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/arena/internal/adapters/http/api"
	"github.com/okian/arena/internal/domain/ingest"
	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Get performs a GET request with optional bearer token.
func (c *HTTPClient) Get(ctx context.Context, path, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.client.Do(req)
}

// PostWebhook delivers one batch and decodes the ingestion summary.
func (c *HTTPClient) PostWebhook(ctx context.Context, b Batch, secret string) (ingest.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/webhooks/"+string(b.Source), bytes.NewReader(b.Payload))
	if err != nil {
		return ingest.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.SecretHeader, secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return ingest.Result{}, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return ingest.Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return ingest.Result{}, fmt.Errorf("webhook %s returned %d: %s", b.Source, resp.StatusCode, bytes.TrimSpace(body))
	}
	var res ingest.Result
	if err := json.Unmarshal(body, &res); err != nil {
		return ingest.Result{}, fmt.Errorf("decode ingestion result: %w", err)
	}
	return res, nil
}

// GetLeaderboard fetches the manager view for all departments.
func (c *HTTPClient) GetLeaderboard(ctx context.Context, token string) (leaderboard.Response, error) {
	resp, err := c.Get(ctx, "/api/leaderboard?department=all", token)
	if err != nil {
		return leaderboard.Response{}, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return leaderboard.Response{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return leaderboard.Response{}, fmt.Errorf("leaderboard returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	var out leaderboard.Response
	if err := json.Unmarshal(body, &out); err != nil {
		return leaderboard.Response{}, fmt.Errorf("decode leaderboard: %w", err)
	}
	return out, nil
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

// deliveryTotals accumulates per-batch results across workers.
type deliveryTotals struct {
	delivered  int64
	failed     int64
	processed  int64
	unmatched  int64
	duplicates int64
}

// submitBatches posts batches concurrently using a worker pool.
func submitBatches(ctx context.Context, config *Config, client *HTTPClient, batches []Batch) *deliveryTotals {
	totals := &deliveryTotals{}
	batchChan := make(chan Batch, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range batchChan {
				res, err := client.PostWebhook(ctx, b, config.Secrets[b.Source])
				if err != nil {
					atomic.AddInt64(&totals.failed, 1)
					logger.Get().Warn(ctx, "delivery failed",
						logger.String("source", string(b.Source)),
						logger.String("eventId", b.EventID),
						logger.Error(err))
					continue
				}
				atomic.AddInt64(&totals.delivered, 1)
				atomic.AddInt64(&totals.processed, int64(res.ProcessedRecords))
				atomic.AddInt64(&totals.unmatched, int64(res.UnmatchedUsers))
				atomic.AddInt64(&totals.duplicates, int64(res.SkippedDuplicates))
				if config.Verbose {
					logger.Get().Debug(ctx, "delivered batch",
						logger.String("source", string(b.Source)),
						logger.String("eventId", b.EventID),
						logger.Int("processed", res.ProcessedRecords),
						logger.Int("duplicates", res.SkippedDuplicates))
				}
			}
		}()
	}

	go func() {
		defer close(batchChan)
		for _, b := range batches {
			select {
			case <-ctx.Done():
				return
			case batchChan <- b:
			}
		}
	}()

	wg.Wait()
	return totals
}
