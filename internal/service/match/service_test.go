package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"vibelink-backend/internal/domain"
	"vibelink-backend/internal/repository/cockroach"
	apperrors "vibelink-backend/pkg/errors"
)

// MockQueueRepository is a mock implementation of QueueRepository
type MockQueueRepository struct {
	mock.Mock
}

func (m *MockQueueRepository) CreateWaiting(ctx context.Context, userID uuid.UUID, gender string) (*domain.QueueEntry, error) {
	args := m.Called(ctx, userID, gender)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueEntry), args.Error(1)
}

func (m *MockQueueRepository) DeleteWaiting(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockQueueRepository) HasWaiting(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockQueueRepository) CountWaitingByGender(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockQueueRepository) PruneStale(ctx context.Context, ttl time.Duration) (int64, error) {
	args := m.Called(ctx, ttl)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQueueRepository) PairWithWaiting(ctx context.Context, joinerID uuid.UUID, joinerGender string) (*domain.MatchSession, error) {
	args := m.Called(ctx, joinerID, joinerGender)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchSession), args.Error(1)
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) GetByID(ctx context.Context, sessionID uuid.UUID) (*domain.MatchSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchSession), args.Error(1)
}

func (m *MockSessionRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.MatchSession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchSession), args.Error(1)
}

func (m *MockSessionRepository) End(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepository) ToggleMedia(ctx context.Context, sessionID uuid.UUID, isUserA bool, action domain.SessionAction) (*domain.MatchSession, error) {
	args := m.Called(ctx, sessionID, isUserA, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchSession), args.Error(1)
}

func (m *MockSessionRepository) GetUserSessions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.MatchSession, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.MatchSession), args.Error(1)
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockReportRepository is a mock implementation of ReportRepository
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Save(report *domain.Report) error {
	args := m.Called(report)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishPaired(ctx context.Context, userID uuid.UUID, session *domain.MatchSession) error {
	args := m.Called(ctx, userID, session)
	return args.Error(0)
}

// MockQueuePresence is a mock implementation of QueuePresence
type MockQueuePresence struct {
	mock.Mock
}

func (m *MockQueuePresence) AddWaiting(ctx context.Context, userID uuid.UUID, gender string) error {
	args := m.Called(ctx, userID, gender)
	return args.Error(0)
}

func (m *MockQueuePresence) RemoveWaiting(ctx context.Context, userID uuid.UUID, gender string) error {
	args := m.Called(ctx, userID, gender)
	return args.Error(0)
}

func (m *MockQueuePresence) CountWaiting(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

// MockReportThrottle is a mock implementation of ReportThrottle
type MockReportThrottle struct {
	mock.Mock
}

func (m *MockReportThrottle) Acquire(ctx context.Context, reporterID, reportedID uuid.UUID, window time.Duration) (bool, error) {
	args := m.Called(ctx, reporterID, reportedID, window)
	return args.Bool(0), args.Error(1)
}

type serviceMocks struct {
	queue    *MockQueueRepository
	sessions *MockSessionRepository
	users    *MockUserRepository
	reports  *MockReportRepository
	events   *MockEventPublisher
	presence *MockQueuePresence
	throttle *MockReportThrottle
}

func newTestService(cfg Config) (*Service, *serviceMocks) {
	m := &serviceMocks{
		queue:    new(MockQueueRepository),
		sessions: new(MockSessionRepository),
		users:    new(MockUserRepository),
		reports:  new(MockReportRepository),
		events:   new(MockEventPublisher),
		presence: new(MockQueuePresence),
		throttle: new(MockReportThrottle),
	}
	svc := NewService(m.queue, m.sessions, m.users, m.reports, m.events, m.presence, m.throttle, cfg, nil)
	return svc, m
}

func maleUser(id uuid.UUID) *domain.User {
	gender := domain.GenderMale
	return &domain.User{
		UserID:   id,
		Username: "alex",
		Gender:   &gender,
	}
}

func activeSession(userA, userB uuid.UUID) *domain.MatchSession {
	return &domain.MatchSession{
		SessionID:   uuid.New(),
		UserA:       userA,
		UserB:       userB,
		ChannelName: "match-" + uuid.NewString(),
		AAudioOn:    true,
		AVideoOn:    true,
		BAudioOn:    true,
		BVideoOn:    true,
		CreatedAt:   time.Now().UTC().Add(-time.Minute),
	}
}

func endedSession(userA, userB uuid.UUID) *domain.MatchSession {
	s := activeSession(userA, userB)
	now := time.Now().UTC()
	s.EndedAt = &now
	return s
}

// TestJoinQueuePairs tests that joining with an opposite-gender waiter
// creates a session for both users
func TestJoinQueuePairs(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	waiterID := uuid.New()
	session := activeSession(waiterID, userID)

	m.users.On("GetByID", mock.Anything, userID).Return(maleUser(userID), nil)
	m.queue.On("HasWaiting", mock.Anything, userID).Return(false, nil)
	m.sessions.On("GetActiveByUser", mock.Anything, userID).Return(nil, cockroach.ErrSessionNotFound)
	m.queue.On("PairWithWaiting", mock.Anything, userID, domain.GenderMale).Return(session, nil)
	m.presence.On("RemoveWaiting", mock.Anything, waiterID, domain.GenderFemale).Return(nil)
	m.events.On("PublishPaired", mock.Anything, waiterID, session).Return(nil)

	result, err := svc.JoinQueue(context.Background(), userID)

	assert.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, session.SessionID, result.Session.SessionID)
	assert.Nil(t, result.Entry)

	m.queue.AssertExpectations(t)
	m.events.AssertExpectations(t)
}

// TestJoinQueueWaits tests that joining with nobody compatible creates a
// waiting entry
func TestJoinQueueWaits(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	entry := &domain.QueueEntry{
		EntryID:    uuid.New(),
		UserID:     userID,
		Gender:     domain.GenderMale,
		Status:     domain.QueueStatusWaiting,
		EnqueuedAt: time.Now().UTC(),
	}

	m.users.On("GetByID", mock.Anything, userID).Return(maleUser(userID), nil)
	m.queue.On("HasWaiting", mock.Anything, userID).Return(false, nil)
	m.sessions.On("GetActiveByUser", mock.Anything, userID).Return(nil, cockroach.ErrSessionNotFound)
	m.queue.On("PairWithWaiting", mock.Anything, userID, domain.GenderMale).Return(nil, nil)
	m.queue.On("CreateWaiting", mock.Anything, userID, domain.GenderMale).Return(entry, nil)
	m.presence.On("AddWaiting", mock.Anything, userID, domain.GenderMale).Return(nil)

	result, err := svc.JoinQueue(context.Background(), userID)

	assert.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Equal(t, entry.EntryID, result.Entry.EntryID)
	assert.Nil(t, result.Session)

	m.queue.AssertExpectations(t)
}

// TestJoinQueueRequiresGender tests that users without a recorded gender
// are rejected before touching the queue
func TestJoinQueueRequiresGender(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	m.users.On("GetByID", mock.Anything, userID).Return(&domain.User{UserID: userID, Username: "sam"}, nil)

	result, err := svc.JoinQueue(context.Background(), userID)

	assert.Nil(t, result)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGenderRequired))
	m.queue.AssertNotCalled(t, "PairWithWaiting", mock.Anything, mock.Anything, mock.Anything)
}

// TestJoinQueueAlreadyWaiting tests the one-pairing-state-per-user guard
func TestJoinQueueAlreadyWaiting(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	m.users.On("GetByID", mock.Anything, userID).Return(maleUser(userID), nil)
	m.queue.On("HasWaiting", mock.Anything, userID).Return(true, nil)

	result, err := svc.JoinQueue(context.Background(), userID)

	assert.Nil(t, result)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAlreadyQueued))
}

// TestJoinQueueActiveSession tests that a user inside a live session
// cannot re-enter the queue
func TestJoinQueueActiveSession(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	m.users.On("GetByID", mock.Anything, userID).Return(maleUser(userID), nil)
	m.queue.On("HasWaiting", mock.Anything, userID).Return(false, nil)
	m.sessions.On("GetActiveByUser", mock.Anything, userID).Return(activeSession(userID, uuid.New()), nil)

	result, err := svc.JoinQueue(context.Background(), userID)

	assert.Nil(t, result)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAlreadyQueued))
}

// TestJoinQueuePairingFailure tests that a failed claim leaves the caller
// with no queue state and a retryable error
func TestJoinQueuePairingFailure(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	m.users.On("GetByID", mock.Anything, userID).Return(maleUser(userID), nil)
	m.queue.On("HasWaiting", mock.Anything, userID).Return(false, nil)
	m.sessions.On("GetActiveByUser", mock.Anything, userID).Return(nil, cockroach.ErrSessionNotFound)
	m.queue.On("PairWithWaiting", mock.Anything, userID, domain.GenderMale).Return(nil, errors.New("connection reset"))

	result, err := svc.JoinQueue(context.Background(), userID)

	assert.Nil(t, result)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTransient))
	m.queue.AssertNotCalled(t, "CreateWaiting", mock.Anything, mock.Anything, mock.Anything)
}

// TestJoinQueuePublishFailureStillMatches tests that pub/sub trouble never
// fails the join; the peer falls back to polling
func TestJoinQueuePublishFailureStillMatches(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	waiterID := uuid.New()
	session := activeSession(waiterID, userID)

	m.users.On("GetByID", mock.Anything, userID).Return(maleUser(userID), nil)
	m.queue.On("HasWaiting", mock.Anything, userID).Return(false, nil)
	m.sessions.On("GetActiveByUser", mock.Anything, userID).Return(nil, cockroach.ErrSessionNotFound)
	m.queue.On("PairWithWaiting", mock.Anything, userID, domain.GenderMale).Return(session, nil)
	m.presence.On("RemoveWaiting", mock.Anything, waiterID, domain.GenderFemale).Return(errors.New("redis degraded"))
	m.events.On("PublishPaired", mock.Anything, waiterID, session).Return(errors.New("redis degraded"))

	result, err := svc.JoinQueue(context.Background(), userID)

	assert.NoError(t, err)
	assert.True(t, result.Matched)
}

// TestJoinQueuePrunesStaleEntries tests that a configured TTL prunes old
// waiters before pairing
func TestJoinQueuePrunesStaleEntries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueTTL = 10 * time.Minute
	svc, m := newTestService(cfg)

	userID := uuid.New()
	m.users.On("GetByID", mock.Anything, userID).Return(maleUser(userID), nil)
	m.queue.On("HasWaiting", mock.Anything, userID).Return(false, nil)
	m.sessions.On("GetActiveByUser", mock.Anything, userID).Return(nil, cockroach.ErrSessionNotFound)
	m.queue.On("PruneStale", mock.Anything, 10*time.Minute).Return(int64(2), nil)
	m.queue.On("PairWithWaiting", mock.Anything, userID, domain.GenderMale).Return(nil, nil)
	m.queue.On("CreateWaiting", mock.Anything, userID, domain.GenderMale).Return(&domain.QueueEntry{UserID: userID}, nil)
	m.presence.On("AddWaiting", mock.Anything, userID, domain.GenderMale).Return(nil)

	_, err := svc.JoinQueue(context.Background(), userID)

	assert.NoError(t, err)
	m.queue.AssertCalled(t, "PruneStale", mock.Anything, 10*time.Minute)
}

// TestLeaveQueueIdempotent tests that leaving with no waiting entry is
// not an error, so blind teardown calls are safe
func TestLeaveQueueIdempotent(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	m.queue.On("DeleteWaiting", mock.Anything, userID).Return(false, nil)

	err := svc.LeaveQueue(context.Background(), userID)

	assert.NoError(t, err)
	m.presence.AssertNotCalled(t, "RemoveWaiting", mock.Anything, mock.Anything, mock.Anything)
}

// TestLeaveQueueRemovesEntry tests the normal leave path
func TestLeaveQueueRemovesEntry(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	m.queue.On("DeleteWaiting", mock.Anything, userID).Return(true, nil)
	m.presence.On("RemoveWaiting", mock.Anything, userID, mock.AnythingOfType("string")).Return(nil)

	err := svc.LeaveQueue(context.Background(), userID)

	assert.NoError(t, err)
	m.queue.AssertExpectations(t)
}

// TestCheckMatchNoSession tests the unmatched poll result
func TestCheckMatchNoSession(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	m.sessions.On("GetActiveByUser", mock.Anything, userID).Return(nil, cockroach.ErrSessionNotFound)

	result, err := svc.CheckMatch(context.Background(), userID, nil)

	assert.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Nil(t, result.Session)
}

// TestCheckMatchFindsSession tests that a paired waiter discovers their
// session on the next poll
func TestCheckMatchFindsSession(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	session := activeSession(userID, uuid.New())
	m.sessions.On("GetActiveByUser", mock.Anything, userID).Return(session, nil)

	result, err := svc.CheckMatch(context.Background(), userID, nil)

	assert.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, session.SessionID, result.Session.SessionID)
}

// TestCheckMatchEndedSession tests that an ended session polls as
// unmatched and never reactivates
func TestCheckMatchEndedSession(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	session := endedSession(userID, uuid.New())
	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(session, nil)

	result, err := svc.CheckMatch(context.Background(), userID, &session.SessionID)

	assert.NoError(t, err)
	assert.False(t, result.Matched)
	assert.NotNil(t, result.Session)
	assert.NotNil(t, result.Session.EndedAt)
}

// TestCheckMatchForeignSession tests that polling someone else's session
// is forbidden
func TestCheckMatchForeignSession(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	session := activeSession(uuid.New(), uuid.New())
	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(session, nil)

	result, err := svc.CheckMatch(context.Background(), userID, &session.SessionID)

	assert.Nil(t, result)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotParticipant))
}

// TestUpdateSessionEnd tests ending an active session
func TestUpdateSessionEnd(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	session := activeSession(userID, uuid.New())
	ended := *session
	now := time.Now().UTC()
	ended.EndedAt = &now

	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(session, nil).Once()
	m.sessions.On("End", mock.Anything, session.SessionID).Return(true, nil)
	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(&ended, nil).Once()

	result, err := svc.UpdateSession(context.Background(), session.SessionID, userID, domain.ActionEnd)

	assert.NoError(t, err)
	assert.NotNil(t, result.Session.EndedAt)
	assert.Nil(t, result.Join)
	m.sessions.AssertExpectations(t)
}

// TestUpdateSessionEndIdempotent tests that ending an already-ended
// session succeeds without another write
func TestUpdateSessionEndIdempotent(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	session := endedSession(userID, uuid.New())
	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(session, nil)

	result, err := svc.UpdateSession(context.Background(), session.SessionID, userID, domain.ActionEnd)

	assert.NoError(t, err)
	assert.NotNil(t, result.Session.EndedAt)
	m.sessions.AssertNotCalled(t, "End", mock.Anything, mock.Anything)
}

// TestUpdateSessionNext tests that next ends the session and re-enters
// only the caller into the queue
func TestUpdateSessionNext(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	peerID := uuid.New()
	session := activeSession(userID, peerID)
	ended := *session
	now := time.Now().UTC()
	ended.EndedAt = &now

	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(session, nil).Once()
	m.sessions.On("End", mock.Anything, session.SessionID).Return(true, nil)
	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(&ended, nil).Once()

	// Queue admission for the caller only
	m.users.On("GetByID", mock.Anything, userID).Return(maleUser(userID), nil)
	m.queue.On("HasWaiting", mock.Anything, userID).Return(false, nil)
	m.sessions.On("GetActiveByUser", mock.Anything, userID).Return(nil, cockroach.ErrSessionNotFound)
	m.queue.On("PairWithWaiting", mock.Anything, userID, domain.GenderMale).Return(nil, nil)
	m.queue.On("CreateWaiting", mock.Anything, userID, domain.GenderMale).Return(&domain.QueueEntry{UserID: userID}, nil)
	m.presence.On("AddWaiting", mock.Anything, userID, domain.GenderMale).Return(nil)

	result, err := svc.UpdateSession(context.Background(), session.SessionID, userID, domain.ActionNext)

	assert.NoError(t, err)
	assert.NotNil(t, result.Session.EndedAt)
	assert.NotNil(t, result.Join)
	assert.False(t, result.Join.Matched)

	m.users.AssertNotCalled(t, "GetByID", mock.Anything, peerID)
}

// TestUpdateSessionToggleVideo tests flipping the caller's video flag
func TestUpdateSessionToggleVideo(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	session := activeSession(userID, uuid.New())
	toggled := *session
	toggled.AVideoOn = false

	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(session, nil)
	m.sessions.On("ToggleMedia", mock.Anything, session.SessionID, true, domain.ActionToggleVideo).Return(&toggled, nil)

	result, err := svc.UpdateSession(context.Background(), session.SessionID, userID, domain.ActionToggleVideo)

	assert.NoError(t, err)
	assert.False(t, result.Session.AVideoOn)
	assert.True(t, result.Session.BVideoOn)
}

// TestUpdateSessionToggleOnEnded tests that media toggles are rejected on
// terminal sessions
func TestUpdateSessionToggleOnEnded(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	session := endedSession(userID, uuid.New())
	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(session, nil)

	result, err := svc.UpdateSession(context.Background(), session.SessionID, userID, domain.ActionToggleAudio)

	assert.Nil(t, result)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionEnded))
	m.sessions.AssertNotCalled(t, "ToggleMedia", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestUpdateSessionToggleRace tests the session ending between the read
// and the toggle write
func TestUpdateSessionToggleRace(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	session := activeSession(userID, uuid.New())
	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(session, nil)
	m.sessions.On("ToggleMedia", mock.Anything, session.SessionID, true, domain.ActionToggleAudio).Return(nil, cockroach.ErrSessionNotFound)

	result, err := svc.UpdateSession(context.Background(), session.SessionID, userID, domain.ActionToggleAudio)

	assert.Nil(t, result)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionEnded))
}

// TestUpdateSessionNotParticipant tests that outsiders cannot act on a
// session
func TestUpdateSessionNotParticipant(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	session := activeSession(uuid.New(), uuid.New())
	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(session, nil)

	result, err := svc.UpdateSession(context.Background(), session.SessionID, uuid.New(), domain.ActionEnd)

	assert.Nil(t, result)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotParticipant))
}

// TestUpdateSessionUnknownAction tests action validation
func TestUpdateSessionUnknownAction(t *testing.T) {
	svc, _ := newTestService(DefaultConfig())

	result, err := svc.UpdateSession(context.Background(), uuid.New(), uuid.New(), domain.SessionAction("dance"))

	assert.Nil(t, result)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

// TestReportUser tests that a valid report is recorded and ends the
// session
func TestReportUser(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	reporterID := uuid.New()
	reportedID := uuid.New()
	session := activeSession(reporterID, reportedID)

	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(session, nil)
	m.throttle.On("Acquire", mock.Anything, reporterID, reportedID, time.Hour).Return(true, nil)
	m.reports.On("Save", mock.AnythingOfType("*domain.Report")).Return(nil)
	m.sessions.On("End", mock.Anything, session.SessionID).Return(true, nil)

	report, err := svc.ReportUser(context.Background(), reporterID, reportedID, session.SessionID, domain.ReasonHarassment)

	assert.NoError(t, err)
	assert.Equal(t, reporterID, report.ReporterID)
	assert.Equal(t, reportedID, report.ReportedID)
	assert.Equal(t, domain.ReasonHarassment, report.Reason)

	m.reports.AssertExpectations(t)
	m.sessions.AssertExpectations(t)
}

// TestReportUserThrottled tests duplicate-report suppression
func TestReportUserThrottled(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	reporterID := uuid.New()
	reportedID := uuid.New()
	session := activeSession(reporterID, reportedID)

	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(session, nil)
	m.throttle.On("Acquire", mock.Anything, reporterID, reportedID, time.Hour).Return(false, nil)

	report, err := svc.ReportUser(context.Background(), reporterID, reportedID, session.SessionID, domain.ReasonSpam)

	assert.Nil(t, report)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeReportThrottle))
	m.reports.AssertNotCalled(t, "Save", mock.Anything)
}

// TestReportUserThrottleFailOpen tests that a Redis failure does not
// block abuse handling
func TestReportUserThrottleFailOpen(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	reporterID := uuid.New()
	reportedID := uuid.New()
	session := activeSession(reporterID, reportedID)

	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(session, nil)
	m.throttle.On("Acquire", mock.Anything, reporterID, reportedID, time.Hour).Return(true, errors.New("redis degraded"))
	m.reports.On("Save", mock.AnythingOfType("*domain.Report")).Return(nil)
	m.sessions.On("End", mock.Anything, session.SessionID).Return(true, nil)

	report, err := svc.ReportUser(context.Background(), reporterID, reportedID, session.SessionID, domain.ReasonOther)

	assert.NoError(t, err)
	assert.NotNil(t, report)
}

// TestReportUserSelfReport tests the self-report guard
func TestReportUserSelfReport(t *testing.T) {
	svc, _ := newTestService(DefaultConfig())

	userID := uuid.New()

	report, err := svc.ReportUser(context.Background(), userID, userID, uuid.New(), domain.ReasonSpam)

	assert.Nil(t, report)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

// TestReportUserOutsiderRejected tests reporting a user who was not in
// the session
func TestReportUserOutsiderRejected(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	reporterID := uuid.New()
	session := activeSession(reporterID, uuid.New())
	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(session, nil)

	report, err := svc.ReportUser(context.Background(), reporterID, uuid.New(), session.SessionID, domain.ReasonSpam)

	assert.Nil(t, report)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotParticipant))
}

// TestReportUserEndedSession tests that a report against an already-ended
// session is still recorded, without a second end write
func TestReportUserEndedSession(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	reporterID := uuid.New()
	reportedID := uuid.New()
	session := endedSession(reporterID, reportedID)

	m.sessions.On("GetByID", mock.Anything, session.SessionID).Return(session, nil)
	m.throttle.On("Acquire", mock.Anything, reporterID, reportedID, time.Hour).Return(true, nil)
	m.reports.On("Save", mock.AnythingOfType("*domain.Report")).Return(nil)

	report, err := svc.ReportUser(context.Background(), reporterID, reportedID, session.SessionID, domain.ReasonInappropriate)

	assert.NoError(t, err)
	assert.NotNil(t, report)
	m.sessions.AssertNotCalled(t, "End", mock.Anything, mock.Anything)
}

// TestGetSessionHistoryClampsLimit tests history paging bounds
func TestGetSessionHistoryClampsLimit(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	userID := uuid.New()
	m.sessions.On("GetUserSessions", mock.Anything, userID, 100, 0).Return([]*domain.MatchSession{}, nil)

	_, err := svc.GetSessionHistory(context.Background(), userID, 500, 0)

	assert.NoError(t, err)
	m.sessions.AssertCalled(t, "GetUserSessions", mock.Anything, userID, 100, 0)
}

// TestQueueStatsFallsBack tests the Redis-to-CockroachDB fallback for
// waiting counts
func TestQueueStatsFallsBack(t *testing.T) {
	svc, m := newTestService(DefaultConfig())

	m.presence.On("CountWaiting", mock.Anything).Return(nil, errors.New("redis degraded"))
	m.queue.On("CountWaitingByGender", mock.Anything).Return(map[string]int64{
		domain.GenderMale:   3,
		domain.GenderFemale: 1,
	}, nil)

	stats, err := svc.QueueStats(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(3), stats.WaitingMale)
	assert.Equal(t, int64(1), stats.WaitingFemale)
}
