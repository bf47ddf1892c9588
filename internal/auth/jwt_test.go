package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-state/mesh-state-server/internal/config"
)

func newTestManager(ttl time.Duration) *JWTManager {
	return NewJWTManager(&config.JWTConfig{
		Secret:         "test-secret",
		AccessTokenTTL: ttl,
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := newTestManager(time.Hour)

	token, err := m.GenerateToken("admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, "mesh-state-server", claims.Issuer)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := newTestManager(time.Hour).GenerateToken("admin")
	require.NoError(t, err)

	other := NewJWTManager(&config.JWTConfig{Secret: "other-secret", AccessTokenTTL: time.Hour})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	m := newTestManager(-time.Minute)

	token, err := m.GenerateToken("admin")
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	_, err := newTestManager(time.Hour).ValidateToken("not.a.token")
	assert.Error(t, err)
}
