package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vibelink-backend/internal/database"
)

// ReportThrottleRepository enforces the duplicate-report window with a
// single SETNX per reporter/reported pair. The window length is a policy
// knob owned by the service; a zero window disables throttling there.
type ReportThrottleRepository struct {
	client *database.RedisClient
}

// NewReportThrottleRepository creates a new ReportThrottleRepository
func NewReportThrottleRepository(client *database.RedisClient) *ReportThrottleRepository {
	return &ReportThrottleRepository{client: client}
}

func throttleKey(reporterID, reportedID uuid.UUID) string {
	return fmt.Sprintf("report:throttle:%s:%s", reporterID, reportedID)
}

// Acquire marks the pair as reported for the window. Returns false when a
// report was already filed inside the window. Fail-open: a Redis error
// allows the report through rather than blocking abuse handling.
func (r *ReportThrottleRepository) Acquire(ctx context.Context, reporterID, reportedID uuid.UUID, window time.Duration) (bool, error) {
	ok, err := r.client.SafeSetNX(ctx, throttleKey(reporterID, reportedID), time.Now().UTC().Unix(), window).Result()
	if err != nil {
		return true, fmt.Errorf("failed to check report throttle: %w", err)
	}
	return ok, nil
}
