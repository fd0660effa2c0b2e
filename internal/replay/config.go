package replay

import (
	"encoding/json"
	"time"

	"github.com/okian/arena/internal/domain/model"
)

// Config holds configuration for a replay run.
type Config struct {
	BaseURL         string                        // Base URL of the service
	Sources         []model.SourceSystem          // Sources to generate payloads for
	Secrets         map[model.SourceSystem]string // Webhook secret per source
	SessionSecret   []byte                        // HS256 key for the manager session
	DealershipID    string                        // Dealership every record belongs to
	OrganizationID  string                        // Organization claimed by the session
	Users           []string                      // External user ids to attribute records to
	Batches         int                           // Number of webhook batches
	RecordsPerBatch int                           // Records in each batch
	Workers         int                           // Concurrent senders
	Timeout         time.Duration                 // HTTP request timeout
	OutputFile      string                        // File for the generated payloads
	Verbose         bool                          // Enable verbose logging
}

// Batch is one generated webhook delivery.
type Batch struct {
	Source            model.SourceSystem `json:"source"`
	EventID           string             `json:"eventId"`
	Payload           json.RawMessage    `json:"payload"`
	Records           int                `json:"records"`
	LeadsCreated      float64            `json:"leadsCreated"`
	ServicesCompleted float64            `json:"servicesCompleted"`
}

// Stats holds replay statistics.
type Stats struct {
	BatchesGenerated     int
	RecordsGenerated     int
	LeadsGenerated       float64
	ServicesGenerated    float64
	Delivered            int
	Failed               int
	Processed            int
	Unmatched            int
	Duplicates           int
	Redelivered          int
	RedeliveryDuplicates int
	LeadsBefore          float64
	LeadsAfter           float64
	ServicesBefore       float64
	ServicesAfter        float64
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}
