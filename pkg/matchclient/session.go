package matchclient

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// SessionController wraps an active session with local media state so the
// UI can flip toggles instantly. Each toggle is applied locally first and
// rolled back if the server rejects it.
type SessionController struct {
	client *Client
	userID uuid.UUID

	mu      sync.Mutex
	session *Session
	audioOn bool
	videoOn bool
}

// NewSessionController creates a controller for the given user's side of
// the session
func NewSessionController(client *Client, userID uuid.UUID, session *Session) *SessionController {
	c := &SessionController{
		client:  client,
		userID:  userID,
		session: session,
	}
	if session.UserA == userID {
		c.audioOn = session.AAudioOn
		c.videoOn = session.AVideoOn
	} else {
		c.audioOn = session.BAudioOn
		c.videoOn = session.BVideoOn
	}
	return c
}

// Session returns the current session snapshot
func (c *SessionController) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// AudioOn reports the local audio state
func (c *SessionController) AudioOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioOn
}

// VideoOn reports the local video state
func (c *SessionController) VideoOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.videoOn
}

// ToggleAudio flips the local audio flag immediately, then confirms with
// the server; the flag is restored if the server rejects the toggle
func (c *SessionController) ToggleAudio(ctx context.Context) (bool, error) {
	return c.toggle(ctx, "toggle_audio", &c.audioOn)
}

// ToggleVideo flips the local video flag immediately, then confirms with
// the server; the flag is restored if the server rejects the toggle
func (c *SessionController) ToggleVideo(ctx context.Context) (bool, error) {
	return c.toggle(ctx, "toggle_video", &c.videoOn)
}

func (c *SessionController) toggle(ctx context.Context, action string, flag *bool) (bool, error) {
	c.mu.Lock()
	*flag = !*flag
	sessionID := c.session.SessionID
	c.mu.Unlock()

	result, err := c.client.UpdateSession(ctx, sessionID, action)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		*flag = !*flag
		return *flag, err
	}

	c.session = result.Session
	return *flag, nil
}

// End terminates the session
func (c *SessionController) End(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.session.SessionID
	c.mu.Unlock()

	result, err := c.client.UpdateSession(ctx, sessionID, "end")
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session = result.Session
	c.mu.Unlock()
	return nil
}

// Next ends the session and re-enters the queue for this user only. The
// returned result carries the new queue state.
func (c *SessionController) Next(ctx context.Context) (*JoinResult, error) {
	c.mu.Lock()
	sessionID := c.session.SessionID
	c.mu.Unlock()

	result, err := c.client.UpdateSession(ctx, sessionID, "next")
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = result.Session
	c.mu.Unlock()
	return result.Join, nil
}

// ReportPeer reports the other participant and ends the session
func (c *SessionController) ReportPeer(ctx context.Context, reason string) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	peerID := session.UserA
	if peerID == c.userID {
		peerID = session.UserB
	}

	return c.client.Report(ctx, session.SessionID, peerID, reason)
}
