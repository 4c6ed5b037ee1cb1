package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"vibelink-backend/internal/database"
	"vibelink-backend/internal/domain"
)

// MatchEventRepository publishes pairing events over Redis pub/sub.
//
// Polling checkMatch remains the contract a client must satisfy; the
// event channel lets event-capable clients learn about pairing without
// waiting for the next poll tick. Publishing is best-effort: a failure
// is logged by the caller and never fails the join.
type MatchEventRepository struct {
	client *database.RedisClient
}

// NewMatchEventRepository creates a new MatchEventRepository
func NewMatchEventRepository(client *database.RedisClient) *MatchEventRepository {
	return &MatchEventRepository{client: client}
}

// PairedEvent is the payload published when a waiting user gets paired
type PairedEvent struct {
	SessionID   uuid.UUID `json:"session_id"`
	PeerID      uuid.UUID `json:"peer_id"`
	ChannelName string    `json:"channel_name"`
}

func pairedChannel(userID uuid.UUID) string {
	return fmt.Sprintf("match:paired:%s", userID)
}

// PublishPaired notifies one participant that a session was created for them
func (r *MatchEventRepository) PublishPaired(ctx context.Context, userID uuid.UUID, session *domain.MatchSession) error {
	event := PairedEvent{
		SessionID:   session.SessionID,
		PeerID:      session.Peer(userID),
		ChannelName: session.ChannelName,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal paired event: %w", err)
	}

	if err := r.client.SafePublish(ctx, pairedChannel(userID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish paired event: %w", err)
	}

	return nil
}

// SubscribePaired subscribes to pairing events for a user. A gateway or
// socket tier consumes this; this service only publishes.
func (r *MatchEventRepository) SubscribePaired(ctx context.Context, userID uuid.UUID) *goredis.PubSub {
	return r.client.SafeSubscribe(ctx, pairedChannel(userID))
}
