package matchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Default polling cadence for waiting clients
const DefaultPollInterval = 2 * time.Second

// Session is the client view of a match session
type Session struct {
	SessionID   uuid.UUID  `json:"session_id"`
	UserA       uuid.UUID  `json:"user_a"`
	UserB       uuid.UUID  `json:"user_b"`
	ChannelName string     `json:"channel_name"`
	AAudioOn    bool       `json:"a_audio_on"`
	AVideoOn    bool       `json:"a_video_on"`
	BAudioOn    bool       `json:"b_audio_on"`
	BVideoOn    bool       `json:"b_video_on"`
	CreatedAt   time.Time  `json:"created_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// JoinResult is the outcome of queue admission
type JoinResult struct {
	Matched bool     `json:"matched"`
	Session *Session `json:"session,omitempty"`
}

// CheckResult is the outcome of a match poll
type CheckResult struct {
	Matched bool     `json:"matched"`
	Session *Session `json:"session,omitempty"`
}

// UpdateResult is the outcome of a session action
type UpdateResult struct {
	Session *Session    `json:"session"`
	Join    *JoinResult `json:"join,omitempty"`
}

// APIError is a structured error returned by the matching API
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

// Client talks to the matching API on behalf of one authenticated user
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	pollInterval time.Duration
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPollInterval overrides the match polling cadence
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// NewClient creates a client for the matching API. token is the user's
// bearer token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:      baseURL,
		token:        token,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !env.Success {
		if env.Error != nil {
			env.Error.StatusCode = resp.StatusCode
			return env.Error
		}
		return &APIError{Code: "UNKNOWN", Message: "request failed", StatusCode: resp.StatusCode}
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}

// JoinQueue enters the matching queue
func (c *Client) JoinQueue(ctx context.Context) (*JoinResult, error) {
	var result JoinResult
	if err := c.do(ctx, http.MethodPost, "/v1/match/queue/join", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LeaveQueue removes this user's waiting entry; safe to call when not queued
func (c *Client) LeaveQueue(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/match/queue", nil, nil)
}

// CheckMatch polls for this user's session. sessionID may be uuid.Nil to
// ask about any active session.
func (c *Client) CheckMatch(ctx context.Context, sessionID uuid.UUID) (*CheckResult, error) {
	path := "/v1/match/session"
	if sessionID != uuid.Nil {
		path += "?session_id=" + url.QueryEscape(sessionID.String())
	}

	var result CheckResult
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateSession applies an action (end, next, toggle_video, toggle_audio)
func (c *Client) UpdateSession(ctx context.Context, sessionID uuid.UUID, action string) (*UpdateResult, error) {
	var result UpdateResult
	body := map[string]string{"action": action}
	if err := c.do(ctx, http.MethodPost, "/v1/match/sessions/"+sessionID.String(), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Report files a complaint about the peer in a session
func (c *Client) Report(ctx context.Context, sessionID, reportedID uuid.UUID, reason string) error {
	body := map[string]string{
		"session_id":       sessionID.String(),
		"reported_user_id": reportedID.String(),
		"reason":           reason,
	}
	return c.do(ctx, http.MethodPost, "/v1/match/reports", body, nil)
}
