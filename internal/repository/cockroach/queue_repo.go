package cockroach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vibelink-backend/internal/domain"
)

// QueueRepository handles queue entry data operations, including the
// atomic claim that pairs a joiner with a waiting entry
type QueueRepository struct {
	pool *pgxpool.Pool
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(pool *pgxpool.Pool) *QueueRepository {
	return &QueueRepository{pool: pool}
}

// CreateWaiting inserts a fresh waiting entry for the user
func (r *QueueRepository) CreateWaiting(ctx context.Context, userID uuid.UUID, gender string) (*domain.QueueEntry, error) {
	entry := &domain.QueueEntry{
		EntryID:    uuid.New(),
		UserID:     userID,
		Gender:     gender,
		Status:     domain.QueueStatusWaiting,
		EnqueuedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO queue_entries (entry_id, user_id, gender, status, enqueued_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.EntryID,
		entry.UserID,
		entry.Gender,
		entry.Status,
		entry.EnqueuedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create queue entry: %w", err)
	}

	return entry, nil
}

// DeleteWaiting removes the user's waiting entry if present. Idempotent:
// returns false without error when no waiting entry exists.
func (r *QueueRepository) DeleteWaiting(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `
		DELETE FROM queue_entries
		WHERE user_id = $1 AND status = 'waiting'
	`

	tag, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete queue entry: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// HasWaiting checks whether the user currently has a waiting entry
func (r *QueueRepository) HasWaiting(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM queue_entries
			WHERE user_id = $1 AND status = 'waiting'
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check queue entry: %w", err)
	}

	return exists, nil
}

// CountWaitingByGender returns the number of waiting entries per gender
func (r *QueueRepository) CountWaitingByGender(ctx context.Context) (map[string]int64, error) {
	query := `
		SELECT gender, COUNT(*)
		FROM queue_entries
		WHERE status = 'waiting'
		GROUP BY gender
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count waiting entries: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{domain.GenderMale: 0, domain.GenderFemale: 0}
	for rows.Next() {
		var gender string
		var count int64
		if err := rows.Scan(&gender, &count); err != nil {
			return nil, fmt.Errorf("failed to scan waiting count: %w", err)
		}
		counts[gender] = count
	}

	return counts, nil
}

// PruneStale removes waiting entries older than ttl. Used by the optional
// queue TTL policy; a zero ttl disables pruning at the service layer.
func (r *QueueRepository) PruneStale(ctx context.Context, ttl time.Duration) (int64, error) {
	query := `
		DELETE FROM queue_entries
		WHERE status = 'waiting' AND enqueued_at < $1
	`

	tag, err := r.pool.Exec(ctx, query, time.Now().UTC().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to prune stale queue entries: %w", err)
	}

	return tag.RowsAffected(), nil
}

// PairWithWaiting atomically consumes the oldest compatible waiting entry
// and creates a match session for both users in one transaction.
//
// Returns (nil, nil) when no compatible entry exists, or when the claim is
// lost to a concurrent join; the caller falls through to CreateWaiting.
// If the session insert fails after the claim, the whole transaction rolls
// back and the waiting entry is restored untouched, so the join fails
// entirely rather than leaving a matched-but-sessionless user.
func (r *QueueRepository) PairWithWaiting(ctx context.Context, joinerID uuid.UUID, joinerGender string) (*domain.MatchSession, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin pairing transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Claim: single conditional delete, first writer wins. Oldest
	// compatible waiting entry is chosen; no further tie-break.
	claimQuery := `
		DELETE FROM queue_entries
		WHERE entry_id = (
			SELECT entry_id FROM queue_entries
			WHERE status = 'waiting' AND gender = $1 AND user_id <> $2
			ORDER BY enqueued_at ASC
			LIMIT 1
		)
		RETURNING user_id
	`

	var waitingUserID uuid.UUID
	err = tx.QueryRow(ctx, claimQuery, domain.OppositeGender(joinerGender), joinerID).Scan(&waitingUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isSerializationFailure(err) {
			// No candidate, or a concurrent join claimed it first
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim waiting entry: %w", err)
	}

	session := &domain.MatchSession{
		SessionID:   uuid.New(),
		UserA:       waitingUserID,
		UserB:       joinerID,
		ChannelName: fmt.Sprintf("match-%s", uuid.New()),
		AAudioOn:    true,
		AVideoOn:    true,
		BAudioOn:    true,
		BVideoOn:    true,
		CreatedAt:   time.Now().UTC(),
	}

	insertQuery := `
		INSERT INTO match_sessions (
			session_id, user_a, user_b, channel_name,
			a_audio_on, a_video_on, b_audio_on, b_video_on, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = tx.Exec(ctx, insertQuery,
		session.SessionID,
		session.UserA,
		session.UserB,
		session.ChannelName,
		session.AAudioOn,
		session.AVideoOn,
		session.BAudioOn,
		session.BVideoOn,
		session.CreatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create match session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to commit pairing transaction: %w", err)
	}

	return session, nil
}

// isSerializationFailure detects CockroachDB's retryable transaction
// conflict (SQLSTATE 40001), raised when a concurrent join wins the claim
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}
