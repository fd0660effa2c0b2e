package replay

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/arena/pkg/logger"
)

// ErrVerification is returned when the service's totals disagree with what
// was delivered.
var ErrVerification = errors.New("replay verification failed")

// verifyResults checks the idempotency and aggregation invariants.
func verifyResults(ctx context.Context, stats *Stats) error {
	var problems []string

	if stats.Failed > 0 {
		problems = append(problems, fmt.Sprintf("%d deliveries failed", stats.Failed))
	}
	if got := stats.Processed + stats.Unmatched + stats.Duplicates; got != stats.RecordsGenerated {
		problems = append(problems, fmt.Sprintf("first delivery accounted for %d of %d records", got, stats.RecordsGenerated))
	}
	if stats.RedeliveryDuplicates != stats.RecordsGenerated {
		problems = append(problems, fmt.Sprintf("redelivery skipped %d of %d records", stats.RedeliveryDuplicates, stats.RecordsGenerated))
	}

	leads := stats.LeadsAfter - stats.LeadsBefore
	services := stats.ServicesAfter - stats.ServicesBefore
	if stats.Unmatched == 0 {
		if math.Abs(leads-stats.LeadsGenerated) > totalsTolerance {
			problems = append(problems, fmt.Sprintf("leads moved by %v, delivered %v", leads, stats.LeadsGenerated))
		}
		if math.Abs(services-stats.ServicesGenerated) > totalsTolerance {
			problems = append(problems, fmt.Sprintf("services moved by %v, delivered %v", services, stats.ServicesGenerated))
		}
	} else if leads > stats.LeadsGenerated+totalsTolerance || services > stats.ServicesGenerated+totalsTolerance {
		problems = append(problems, "totals moved by more than was delivered")
	}

	if len(problems) > 0 {
		for _, p := range problems {
			logger.Get().Error(ctx, "verification problem", logger.String("problem", p))
		}
		return fmt.Errorf("%w: %s", ErrVerification, problems[0])
	}
	logger.Get().Info(ctx, "verification passed",
		logger.Float64("leadsDelta", leads),
		logger.Float64("servicesDelta", services))
	return nil
}
