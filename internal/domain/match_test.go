package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSessionParticipants(t *testing.T) {
	userA := uuid.New()
	userB := uuid.New()
	session := &MatchSession{SessionID: uuid.New(), UserA: userA, UserB: userB}

	assert.True(t, session.HasParticipant(userA))
	assert.True(t, session.HasParticipant(userB))
	assert.False(t, session.HasParticipant(uuid.New()))

	assert.Equal(t, userB, session.Peer(userA))
	assert.Equal(t, userA, session.Peer(userB))
	assert.Equal(t, uuid.Nil, session.Peer(uuid.New()))
}

func TestSessionIsEnded(t *testing.T) {
	session := &MatchSession{SessionID: uuid.New()}
	assert.False(t, session.IsEnded())

	now := time.Now().UTC()
	session.EndedAt = &now
	assert.True(t, session.IsEnded())
}

func TestValidSessionAction(t *testing.T) {
	assert.True(t, ValidSessionAction(ActionEnd))
	assert.True(t, ValidSessionAction(ActionNext))
	assert.True(t, ValidSessionAction(ActionToggleVideo))
	assert.True(t, ValidSessionAction(ActionToggleAudio))
	assert.False(t, ValidSessionAction(SessionAction("pause")))
}

func TestOppositeGender(t *testing.T) {
	assert.Equal(t, GenderFemale, OppositeGender(GenderMale))
	assert.Equal(t, GenderMale, OppositeGender(GenderFemale))
}
