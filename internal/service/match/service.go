package match

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vibelink-backend/internal/domain"
	"vibelink-backend/internal/repository/cockroach"
	apperrors "vibelink-backend/pkg/errors"
)

// QueueRepository is the transactional queue store contract
type QueueRepository interface {
	CreateWaiting(ctx context.Context, userID uuid.UUID, gender string) (*domain.QueueEntry, error)
	DeleteWaiting(ctx context.Context, userID uuid.UUID) (bool, error)
	HasWaiting(ctx context.Context, userID uuid.UUID) (bool, error)
	CountWaitingByGender(ctx context.Context) (map[string]int64, error)
	PruneStale(ctx context.Context, ttl time.Duration) (int64, error)
	PairWithWaiting(ctx context.Context, joinerID uuid.UUID, joinerGender string) (*domain.MatchSession, error)
}

// SessionRepository is the match session store contract
type SessionRepository interface {
	GetByID(ctx context.Context, sessionID uuid.UUID) (*domain.MatchSession, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.MatchSession, error)
	End(ctx context.Context, sessionID uuid.UUID) (bool, error)
	ToggleMedia(ctx context.Context, sessionID uuid.UUID, isUserA bool, action domain.SessionAction) (*domain.MatchSession, error)
	GetUserSessions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.MatchSession, error)
}

// UserRepository is the user store contract
type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// ReportRepository is the append-only report log contract
type ReportRepository interface {
	Save(report *domain.Report) error
}

// EventPublisher notifies a waiting participant about pairing
type EventPublisher interface {
	PublishPaired(ctx context.Context, userID uuid.UUID, session *domain.MatchSession) error
}

// QueuePresence mirrors the waiting pool for cheap stats reads
type QueuePresence interface {
	AddWaiting(ctx context.Context, userID uuid.UUID, gender string) error
	RemoveWaiting(ctx context.Context, userID uuid.UUID, gender string) error
	CountWaiting(ctx context.Context) (map[string]int64, error)
}

// ReportThrottle enforces the duplicate-report window
type ReportThrottle interface {
	Acquire(ctx context.Context, reporterID, reportedID uuid.UUID, window time.Duration) (bool, error)
}

// Config holds matching policy knobs. The observed product behavior
// leaves these unbounded; they are deliberate configuration points.
type Config struct {
	// QueueTTL prunes waiting entries older than this before each join.
	// Zero disables pruning (unlimited wait).
	QueueTTL time.Duration
	// ReportThrottleWindow suppresses duplicate reports per
	// reporter/reported pair. Zero disables throttling.
	ReportThrottleWindow time.Duration
	// HistoryDefaultLimit and HistoryMaxLimit bound session history pages
	HistoryDefaultLimit int
	HistoryMaxLimit     int
}

// DefaultConfig returns the production policy defaults
func DefaultConfig() Config {
	return Config{
		QueueTTL:             0,
		ReportThrottleWindow: time.Hour,
		HistoryDefaultLimit:  20,
		HistoryMaxLimit:      100,
	}
}

// Service handles queue admission, session lifecycle, and reporting
type Service struct {
	queueRepo   QueueRepository
	sessionRepo SessionRepository
	userRepo    UserRepository
	reportRepo  ReportRepository
	events      EventPublisher
	presence    QueuePresence
	throttle    ReportThrottle
	cfg         Config
	log         *zap.Logger
}

// NewService creates a new match service
func NewService(
	queueRepo QueueRepository,
	sessionRepo SessionRepository,
	userRepo UserRepository,
	reportRepo ReportRepository,
	events EventPublisher,
	presence QueuePresence,
	throttle ReportThrottle,
	cfg Config,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.HistoryDefaultLimit == 0 {
		cfg.HistoryDefaultLimit = 20
	}
	if cfg.HistoryMaxLimit == 0 {
		cfg.HistoryMaxLimit = 100
	}
	return &Service{
		queueRepo:   queueRepo,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		reportRepo:  reportRepo,
		events:      events,
		presence:    presence,
		throttle:    throttle,
		cfg:         cfg,
		log:         log,
	}
}

// JoinResult is the outcome of queue admission
type JoinResult struct {
	Matched bool                 `json:"matched"`
	Session *domain.MatchSession `json:"session,omitempty"`
	Entry   *domain.QueueEntry   `json:"entry,omitempty"`
}

// CheckResult is the outcome of a checkMatch poll
type CheckResult struct {
	Matched bool                 `json:"matched"`
	Session *domain.MatchSession `json:"session,omitempty"`
}

// UpdateResult is the outcome of a session mutation. Join is set only for
// the next action, which re-runs queue admission for the caller.
type UpdateResult struct {
	Session *domain.MatchSession `json:"session"`
	Join    *JoinResult          `json:"join,omitempty"`
}

// QueueStatsOutput reports waiting pool sizes
type QueueStatsOutput struct {
	WaitingMale   int64 `json:"waiting_male"`
	WaitingFemale int64 `json:"waiting_female"`
}

// JoinQueue admits a user into the pairing pool. If an opposite-gender
// waiting entry exists it is consumed atomically and a session is created
// for both users; otherwise the caller becomes a waiting entry and
// discovers pairing through CheckMatch polls.
func (s *Service) JoinQueue(ctx context.Context, userID uuid.UUID) (*JoinResult, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, cockroach.ErrUserNotFound) {
			return nil, apperrors.UserNotFoundError()
		}
		return nil, apperrors.DatabaseError(err)
	}

	// Server-side re-validation; the client pre-checks but is not trusted
	if !user.CanMatch() {
		return nil, apperrors.GenderRequiredError()
	}

	// One active pairing state per user
	waiting, err := s.queueRepo.HasWaiting(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if waiting {
		return nil, apperrors.AlreadyQueuedError()
	}
	if _, err := s.sessionRepo.GetActiveByUser(ctx, userID); err == nil {
		return nil, apperrors.AlreadyQueuedError()
	} else if !errors.Is(err, cockroach.ErrSessionNotFound) {
		return nil, apperrors.DatabaseError(err)
	}

	if s.cfg.QueueTTL > 0 {
		if pruned, err := s.queueRepo.PruneStale(ctx, s.cfg.QueueTTL); err != nil {
			s.log.Warn("failed to prune stale queue entries", zap.Error(err))
		} else if pruned > 0 {
			s.log.Info("pruned stale queue entries", zap.Int64("count", pruned))
		}
	}

	gender := *user.Gender

	session, err := s.queueRepo.PairWithWaiting(ctx, userID, gender)
	if err != nil {
		// The claim rolled back; the waiting entry is intact and the
		// caller holds no queue state. Retry is explicit.
		return nil, apperrors.TransientError("pairing failed, please retry", err)
	}

	if session != nil {
		peer := session.Peer(userID)
		if err := s.presence.RemoveWaiting(ctx, peer, domain.OppositeGender(gender)); err != nil {
			s.log.Warn("failed to update waiting presence", zap.Error(err))
		}
		// Best-effort: the waiting side still discovers the session by polling
		if err := s.events.PublishPaired(ctx, peer, session); err != nil {
			s.log.Warn("failed to publish paired event",
				zap.String("session_id", session.SessionID.String()),
				zap.Error(err))
		}
		return &JoinResult{Matched: true, Session: session}, nil
	}

	entry, err := s.queueRepo.CreateWaiting(ctx, userID, gender)
	if err != nil {
		return nil, apperrors.TransientError("failed to enter the queue, please retry", err)
	}

	if err := s.presence.AddWaiting(ctx, userID, gender); err != nil {
		s.log.Warn("failed to update waiting presence", zap.Error(err))
	}

	return &JoinResult{Matched: false, Entry: entry}, nil
}

// LeaveQueue removes the caller's waiting entry if present. Idempotent:
// repeated calls and calls for users with no entry succeed quietly, so a
// detached teardown call is always safe.
func (s *Service) LeaveQueue(ctx context.Context, userID uuid.UUID) error {
	removed, err := s.queueRepo.DeleteWaiting(ctx, userID)
	if err != nil {
		return apperrors.DatabaseError(err)
	}

	if removed {
		// The gender is not known here; removing from both sets is harmless
		for _, gender := range []string{domain.GenderMale, domain.GenderFemale} {
			if err := s.presence.RemoveWaiting(ctx, userID, gender); err != nil {
				s.log.Warn("failed to update waiting presence", zap.Error(err))
			}
		}
	}

	return nil
}

// CheckMatch is the read-only poll by which a waiting client discovers it
// has been paired. With a session ID it reports on that session; ended
// sessions always come back unmatched and never reactivate.
func (s *Service) CheckMatch(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID) (*CheckResult, error) {
	if sessionID != nil {
		session, err := s.sessionRepo.GetByID(ctx, *sessionID)
		if err != nil {
			if errors.Is(err, cockroach.ErrSessionNotFound) {
				return &CheckResult{Matched: false}, nil
			}
			return nil, apperrors.DatabaseError(err)
		}
		if !session.HasParticipant(userID) {
			return nil, apperrors.NotParticipantError()
		}
		if session.IsEnded() {
			// Terminal-session indicator: unmatched, with the ended session attached
			return &CheckResult{Matched: false, Session: session}, nil
		}
		return &CheckResult{Matched: true, Session: session}, nil
	}

	session, err := s.sessionRepo.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, cockroach.ErrSessionNotFound) {
			return &CheckResult{Matched: false}, nil
		}
		return nil, apperrors.DatabaseError(err)
	}

	return &CheckResult{Matched: true, Session: session}, nil
}

// UpdateSession applies a participant action to a session.
//
//	end          -> terminal; idempotent
//	next         -> end, then re-run queue admission for the caller only
//	toggle_audio -> flip the caller's audio flag (active sessions only)
//	toggle_video -> flip the caller's video flag (active sessions only)
func (s *Service) UpdateSession(ctx context.Context, sessionID, userID uuid.UUID, action domain.SessionAction) (*UpdateResult, error) {
	if !domain.ValidSessionAction(action) {
		return nil, apperrors.ValidationError("unknown session action: " + string(action))
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, cockroach.ErrSessionNotFound) {
			return nil, apperrors.SessionNotFoundError()
		}
		return nil, apperrors.DatabaseError(err)
	}

	if !session.HasParticipant(userID) {
		return nil, apperrors.NotParticipantError()
	}

	switch action {
	case domain.ActionEnd:
		return s.endSession(ctx, session)

	case domain.ActionNext:
		result, err := s.endSession(ctx, session)
		if err != nil {
			return nil, err
		}
		// The peer's session has ended independently; only the caller
		// re-enters the queue
		join, err := s.JoinQueue(ctx, userID)
		if err != nil {
			return nil, err
		}
		result.Join = join
		return result, nil

	default: // toggle_audio, toggle_video
		if session.IsEnded() {
			return nil, apperrors.SessionEndedError()
		}
		updated, err := s.sessionRepo.ToggleMedia(ctx, sessionID, session.UserA == userID, action)
		if err != nil {
			if errors.Is(err, cockroach.ErrSessionNotFound) {
				// Ended between the read and the toggle
				return nil, apperrors.SessionEndedError()
			}
			return nil, apperrors.DatabaseError(err)
		}
		return &UpdateResult{Session: updated}, nil
	}
}

func (s *Service) endSession(ctx context.Context, session *domain.MatchSession) (*UpdateResult, error) {
	if session.IsEnded() {
		return &UpdateResult{Session: session}, nil
	}

	if _, err := s.sessionRepo.End(ctx, session.SessionID); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	updated, err := s.sessionRepo.GetByID(ctx, session.SessionID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	return &UpdateResult{Session: updated}, nil
}

// ReportUser records a complaint about the other party in a session and
// ends the session as a side effect: no continued session with a
// reported party.
func (s *Service) ReportUser(ctx context.Context, reporterID, reportedID, sessionID uuid.UUID, reason domain.ReportReason) (*domain.Report, error) {
	if !domain.ValidReportReason(reason) {
		return nil, apperrors.ValidationError("unknown report reason: " + string(reason))
	}
	if reporterID == reportedID {
		return nil, apperrors.ValidationError("cannot report yourself")
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, cockroach.ErrSessionNotFound) {
			return nil, apperrors.SessionNotFoundError()
		}
		return nil, apperrors.DatabaseError(err)
	}

	if !session.HasParticipant(reporterID) || !session.HasParticipant(reportedID) {
		return nil, apperrors.NotParticipantError()
	}

	if s.cfg.ReportThrottleWindow > 0 {
		ok, err := s.throttle.Acquire(ctx, reporterID, reportedID, s.cfg.ReportThrottleWindow)
		if err != nil {
			// Fail-open: never block abuse handling on Redis
			s.log.Warn("report throttle check failed", zap.Error(err))
		}
		if !ok {
			return nil, apperrors.ReportThrottledError()
		}
	}

	report := &domain.Report{
		ReportID:   uuid.New(),
		ReporterID: reporterID,
		ReportedID: reportedID,
		SessionID:  sessionID,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.reportRepo.Save(report); err != nil {
		return nil, apperrors.TransientError("failed to record report, please retry", err)
	}

	if !session.IsEnded() {
		if _, err := s.sessionRepo.End(ctx, sessionID); err != nil {
			return nil, apperrors.DatabaseError(err)
		}
	}

	return report, nil
}

// GetSessionHistory retrieves the user's past and present sessions
func (s *Service) GetSessionHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.MatchSession, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryDefaultLimit
	}
	if limit > s.cfg.HistoryMaxLimit {
		limit = s.cfg.HistoryMaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	sessions, err := s.sessionRepo.GetUserSessions(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	return sessions, nil
}

// QueueStats reports the waiting pool sizes, preferring the Redis mirror
// and falling back to the transactional store when Redis is degraded
func (s *Service) QueueStats(ctx context.Context) (*QueueStatsOutput, error) {
	counts, err := s.presence.CountWaiting(ctx)
	if err != nil {
		counts, err = s.queueRepo.CountWaitingByGender(ctx)
		if err != nil {
			return nil, apperrors.DatabaseError(err)
		}
	}

	return &QueueStatsOutput{
		WaitingMale:   counts[domain.GenderMale],
		WaitingFemale: counts[domain.GenderFemale],
	}, nil
}
