package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueueEntryStatus classifies a queue entry
type QueueEntryStatus string

const (
	QueueStatusWaiting QueueEntryStatus = "waiting"
	QueueStatusMatched QueueEntryStatus = "matched"
	QueueStatusLeft    QueueEntryStatus = "left"
)

// QueueEntry represents a user waiting to be paired for a video match
// Maps to CockroachDB queue_entries table
type QueueEntry struct {
	EntryID    uuid.UUID        `json:"entry_id" db:"entry_id"`
	UserID     uuid.UUID        `json:"user_id" db:"user_id"`
	Gender     string           `json:"gender" db:"gender"` // male, female
	Status     QueueEntryStatus `json:"status" db:"status"`
	EnqueuedAt time.Time        `json:"enqueued_at" db:"enqueued_at"`
}

// MatchSession represents a paired video call shared by exactly two users.
// Once EndedAt is set the session is terminal and never reactivates.
type MatchSession struct {
	SessionID   uuid.UUID  `json:"session_id" db:"session_id"`
	UserA       uuid.UUID  `json:"user_a" db:"user_a"`
	UserB       uuid.UUID  `json:"user_b" db:"user_b"`
	ChannelName string     `json:"channel_name" db:"channel_name"` // opaque token for the realtime video provider
	AAudioOn    bool       `json:"a_audio_on" db:"a_audio_on"`
	AVideoOn    bool       `json:"a_video_on" db:"a_video_on"`
	BAudioOn    bool       `json:"b_audio_on" db:"b_audio_on"`
	BVideoOn    bool       `json:"b_video_on" db:"b_video_on"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

// IsEnded reports whether the session has reached its terminal state
func (s *MatchSession) IsEnded() bool {
	return s.EndedAt != nil
}

// HasParticipant reports whether userID is one of the two participants
func (s *MatchSession) HasParticipant(userID uuid.UUID) bool {
	return s.UserA == userID || s.UserB == userID
}

// Peer returns the other participant's ID. Callers must check
// HasParticipant first; Peer returns uuid.Nil for non-participants.
func (s *MatchSession) Peer(userID uuid.UUID) uuid.UUID {
	switch userID {
	case s.UserA:
		return s.UserB
	case s.UserB:
		return s.UserA
	}
	return uuid.Nil
}

// SessionAction enumerates mutations a participant may apply to a session
type SessionAction string

const (
	ActionEnd         SessionAction = "end"
	ActionNext        SessionAction = "next"
	ActionToggleVideo SessionAction = "toggle_video"
	ActionToggleAudio SessionAction = "toggle_audio"
)

// ValidSessionAction checks the action against the known set
func ValidSessionAction(a SessionAction) bool {
	switch a {
	case ActionEnd, ActionNext, ActionToggleVideo, ActionToggleAudio:
		return true
	}
	return false
}

// OppositeGender returns the gender a joiner can be paired with
func OppositeGender(gender string) string {
	if gender == GenderMale {
		return GenderFemale
	}
	return GenderMale
}
