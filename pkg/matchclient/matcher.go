package matchclient

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Matcher drives one matching attempt: queue admission, the waiting poll
// loop, and teardown. Teardown runs at most once no matter how many
// paths race to it (cancel button, screen dismiss, context expiry).
type Matcher struct {
	client *Client

	teardownOnce sync.Once
}

// NewMatcher creates a Matcher over the given client
func NewMatcher(client *Client) *Matcher {
	return &Matcher{client: client}
}

// Start joins the queue and, if not matched immediately, polls until a
// session appears or ctx is done. On any non-matched exit it leaves the
// queue so no stale waiting entry is left behind.
func (m *Matcher) Start(ctx context.Context) (*Session, error) {
	result, err := m.client.JoinQueue(ctx)
	if err != nil {
		return nil, err
	}

	if result.Matched {
		return result.Session, nil
	}

	session, err := m.poll(ctx)
	if err != nil {
		m.Teardown()
		return nil, err
	}

	return session, nil
}

func (m *Matcher) poll(ctx context.Context) (*Session, error) {
	ticker := time.NewTicker(m.client.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			result, err := m.client.CheckMatch(ctx, uuid.Nil)
			if err != nil {
				// Transient poll failures keep the loop alive; the queue
				// entry is still there and the next tick retries
				continue
			}
			if result.Matched {
				return result.Session, nil
			}
		}
	}
}

// Teardown removes this user's waiting entry. Idempotent and detached
// from the caller's context: a dismissed screen must still clean up even
// though its own context is already cancelled.
func (m *Matcher) Teardown() {
	m.teardownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// LeaveQueue succeeds quietly when no entry exists
		_ = m.client.LeaveQueue(ctx)
	})
}
