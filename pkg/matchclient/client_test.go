package matchclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

func testSession(userA, userB uuid.UUID) *Session {
	return &Session{
		SessionID:   uuid.New(),
		UserA:       userA,
		UserB:       userB,
		ChannelName: "match-test",
		AAudioOn:    true,
		AVideoOn:    true,
		BAudioOn:    true,
		BVideoOn:    true,
		CreatedAt:   time.Now().UTC(),
	}
}

// TestMatcherPollsUntilMatched tests the join-then-poll flow: an
// unmatched join is followed by polls until the server reports a session
func TestMatcherPollsUntilMatched(t *testing.T) {
	userID := uuid.New()
	session := testSession(userID, uuid.New())

	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/match/queue/join", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, JoinResult{Matched: false})
	})
	mux.HandleFunc("/v1/match/session", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 3 {
			writeSuccess(w, http.StatusOK, CheckResult{Matched: false})
			return
		}
		writeSuccess(w, http.StatusOK, CheckResult{Matched: true, Session: session})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, "test-token", WithPollInterval(10*time.Millisecond))
	matcher := NewMatcher(client)

	got, err := matcher.Start(context.Background())

	require.NoError(t, err)
	assert.Equal(t, session.SessionID, got.SessionID)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(3))
}

// TestMatcherImmediateMatch tests that a matched join skips polling
func TestMatcherImmediateMatch(t *testing.T) {
	userID := uuid.New()
	session := testSession(uuid.New(), userID)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/match/queue/join", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusCreated, JoinResult{Matched: true, Session: session})
	})
	mux.HandleFunc("/v1/match/session", func(w http.ResponseWriter, r *http.Request) {
		t.Error("poll endpoint should not be called on immediate match")
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, "test-token", WithPollInterval(10*time.Millisecond))
	got, err := NewMatcher(client).Start(context.Background())

	require.NoError(t, err)
	assert.Equal(t, session.SessionID, got.SessionID)
}

// TestMatcherCancelLeavesQueue tests that cancelling the wait removes the
// queue entry exactly once, even with a second explicit Teardown
func TestMatcherCancelLeavesQueue(t *testing.T) {
	var leaves int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/match/queue/join", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, JoinResult{Matched: false})
	})
	mux.HandleFunc("/v1/match/queue", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			atomic.AddInt32(&leaves, 1)
			writeSuccess(w, http.StatusOK, map[string]bool{"left": true})
		}
	})
	mux.HandleFunc("/v1/match/session", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, CheckResult{Matched: false})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, "test-token", WithPollInterval(10*time.Millisecond))
	matcher := NewMatcher(client)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := matcher.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// A second teardown from another path must not issue another leave
	matcher.Teardown()

	assert.Equal(t, int32(1), atomic.LoadInt32(&leaves))
}

// TestToggleOptimisticRollback tests that a rejected toggle restores the
// local flag
func TestToggleOptimisticRollback(t *testing.T) {
	userID := uuid.New()
	session := testSession(userID, uuid.New())

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/match/sessions/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusConflict, "SESSION_ENDED", "Session has already ended")
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	controller := NewSessionController(client, userID, session)

	require.True(t, controller.VideoOn())

	on, err := controller.ToggleVideo(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "SESSION_ENDED", apiErr.Code)
	assert.True(t, on, "flag must roll back after server rejection")
	assert.True(t, controller.VideoOn())
}

// TestToggleAppliesServerState tests that an accepted toggle keeps the
// local flag and adopts the server's session snapshot
func TestToggleAppliesServerState(t *testing.T) {
	userID := uuid.New()
	session := testSession(userID, uuid.New())

	updated := *session
	updated.AAudioOn = false

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/match/sessions/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "toggle_audio", body["action"])
		writeSuccess(w, http.StatusOK, UpdateResult{Session: &updated})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	controller := NewSessionController(client, userID, session)

	on, err := controller.ToggleAudio(context.Background())

	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, controller.Session().AAudioOn)
}

// TestJoinQueueSurfacesAPIError tests structured error decoding
func TestJoinQueueSurfacesAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/match/queue/join", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusConflict, "ALREADY_QUEUED", "User is already queued or in a session")
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	result, err := client.JoinQueue(context.Background())

	assert.Nil(t, result)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ALREADY_QUEUED", apiErr.Code)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

// TestAuthorizationHeader tests that every request carries the bearer token
func TestAuthorizationHeader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/match/queue/join", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		writeSuccess(w, http.StatusOK, JoinResult{Matched: false})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	_, err := client.JoinQueue(context.Background())
	require.NoError(t, err)
}
