package cockroach

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vibelink-backend/internal/domain"
)

// ErrSessionNotFound is returned when no matching session row exists
var ErrSessionNotFound = errors.New("match session not found")

const sessionColumns = `
	session_id, user_a, user_b, channel_name,
	a_audio_on, a_video_on, b_audio_on, b_video_on,
	created_at, ended_at
`

// SessionRepository handles match session data operations
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*domain.MatchSession, error) {
	session := &domain.MatchSession{}
	err := row.Scan(
		&session.SessionID,
		&session.UserA,
		&session.UserB,
		&session.ChannelName,
		&session.AAudioOn,
		&session.AVideoOn,
		&session.BAudioOn,
		&session.BVideoOn,
		&session.CreatedAt,
		&session.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return session, nil
}

// GetByID retrieves a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, sessionID uuid.UUID) (*domain.MatchSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM match_sessions
		WHERE session_id = $1
	`

	return scanSession(r.pool.QueryRow(ctx, query, sessionID))
}

// GetActiveByUser retrieves the user's current unended session, if any.
// This backs the checkMatch poll; a waiting client discovers pairing here.
func (r *SessionRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.MatchSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM match_sessions
		WHERE (user_a = $1 OR user_b = $1) AND ended_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`

	return scanSession(r.pool.QueryRow(ctx, query, userID))
}

// End marks a session as ended. Returns false when the session was already
// ended (or missing); ended is terminal and never reverts.
func (r *SessionRepository) End(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	query := `
		UPDATE match_sessions
		SET ended_at = NOW()
		WHERE session_id = $1 AND ended_at IS NULL
	`

	tag, err := r.pool.Exec(ctx, query, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to end session: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ToggleMedia flips one participant's audio or video flag on an active
// session and returns the updated row. The flag is orthogonal to the
// session's active/ended classification. Returns ErrSessionNotFound when
// the session is gone or already ended.
func (r *SessionRepository) ToggleMedia(ctx context.Context, sessionID uuid.UUID, isUserA bool, action domain.SessionAction) (*domain.MatchSession, error) {
	var column string
	switch {
	case action == domain.ActionToggleAudio && isUserA:
		column = "a_audio_on"
	case action == domain.ActionToggleAudio && !isUserA:
		column = "b_audio_on"
	case action == domain.ActionToggleVideo && isUserA:
		column = "a_video_on"
	case action == domain.ActionToggleVideo && !isUserA:
		column = "b_video_on"
	default:
		return nil, fmt.Errorf("unsupported media action: %s", action)
	}

	query := fmt.Sprintf(`
		UPDATE match_sessions
		SET %s = NOT %s
		WHERE session_id = $1 AND ended_at IS NULL
		RETURNING `+sessionColumns, column, column)

	return scanSession(r.pool.QueryRow(ctx, query, sessionID))
}

// GetUserSessions retrieves past and present sessions for a user,
// newest first
func (r *SessionRepository) GetUserSessions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.MatchSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM match_sessions
		WHERE user_a = $1 OR user_b = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get user sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.MatchSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}
