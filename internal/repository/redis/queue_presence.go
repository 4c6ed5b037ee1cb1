package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"vibelink-backend/internal/database"
	"vibelink-backend/internal/domain"
)

// QueuePresenceRepository mirrors the waiting pool in Redis sets so queue
// stats reads never touch the transactional store. Best-effort: the
// CockroachDB count is the authoritative fallback when Redis is degraded.
type QueuePresenceRepository struct {
	client *database.RedisClient
}

// NewQueuePresenceRepository creates a new QueuePresenceRepository
func NewQueuePresenceRepository(client *database.RedisClient) *QueuePresenceRepository {
	return &QueuePresenceRepository{client: client}
}

func waitingKey(gender string) string {
	return fmt.Sprintf("queue:waiting:%s", gender)
}

// AddWaiting adds a user to the waiting set for their gender
func (r *QueuePresenceRepository) AddWaiting(ctx context.Context, userID uuid.UUID, gender string) error {
	if err := r.client.SafeSAdd(ctx, waitingKey(gender), userID.String()).Err(); err != nil {
		return fmt.Errorf("failed to add to waiting set: %w", err)
	}
	return nil
}

// RemoveWaiting removes a user from the waiting set for their gender
func (r *QueuePresenceRepository) RemoveWaiting(ctx context.Context, userID uuid.UUID, gender string) error {
	if err := r.client.SafeSRem(ctx, waitingKey(gender), userID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove from waiting set: %w", err)
	}
	return nil
}

// CountWaiting returns the waiting set sizes per gender
func (r *QueuePresenceRepository) CountWaiting(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 2)
	for _, gender := range []string{domain.GenderMale, domain.GenderFemale} {
		count, err := r.client.SafeSCard(ctx, waitingKey(gender)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to count waiting set: %w", err)
		}
		counts[gender] = count
	}
	return counts, nil
}
