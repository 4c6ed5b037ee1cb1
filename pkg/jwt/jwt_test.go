package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

func newTestManager() *JWTManager {
	return NewJWTManager(testSecret, 15*time.Minute, 30*24*time.Hour)
}

// TestGenerateAndValidateAccessToken tests the full token round trip
func TestGenerateAndValidateAccessToken(t *testing.T) {
	manager := newTestManager()
	userID := uuid.New()

	tokenString, err := manager.GenerateAccessToken(userID, "alice", "user")
	assert.NoError(t, err)
	assert.NotEmpty(t, tokenString)

	claims, err := manager.ValidateToken(tokenString)
	assert.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user", claims.Role)
	assert.True(t, claims.HasAudience(Audience))
	assert.Equal(t, Issuer, claims.Issuer)
}

// TestValidateToken_WrongSecret tests rejection of tokens signed with another key
func TestValidateToken_WrongSecret(t *testing.T) {
	manager := newTestManager()
	other := NewJWTManager("another-secret-key-32-characters-xx", 15*time.Minute, time.Hour)

	tokenString, err := other.GenerateAccessToken(uuid.New(), "bob", "user")
	assert.NoError(t, err)

	_, err = manager.ValidateToken(tokenString)
	assert.Error(t, err)
}

// TestValidateToken_Expired tests rejection of expired tokens
func TestValidateToken_Expired(t *testing.T) {
	manager := NewJWTManager(testSecret, -time.Minute, time.Hour)

	tokenString, err := manager.GenerateAccessToken(uuid.New(), "carol", "user")
	assert.NoError(t, err)

	_, err = manager.ValidateToken(tokenString)
	assert.Error(t, err)
	assert.True(t, IsTokenExpired(tokenString))
}

// TestExtractUserID tests unverified extraction used for logging
func TestExtractUserID(t *testing.T) {
	manager := newTestManager()
	userID := uuid.New()

	tokenString, err := manager.GenerateAccessToken(userID, "dave", "user")
	assert.NoError(t, err)

	extracted, err := manager.ExtractUserID(tokenString)
	assert.NoError(t, err)
	assert.Equal(t, userID, extracted)
}

// TestGenerateRefreshToken tests the refresh token carries the subject only
func TestGenerateRefreshToken(t *testing.T) {
	manager := newTestManager()
	userID := uuid.New()

	tokenString, err := manager.GenerateRefreshToken(userID)
	assert.NoError(t, err)

	claims, err := manager.ValidateToken(tokenString)
	assert.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Empty(t, claims.Username)
}
