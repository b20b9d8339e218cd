package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain"
)

func testManager() *JWTManager {
	return NewJWTManager(config.JWTConfig{
		Secret: "test-secret-at-least-32-characters-long",
		Issuer: "carequeue-test",
	})
}

func TestSignAndValidate(t *testing.T) {
	m := testManager()
	claims := &domain.Claims{
		UserID: uuid.New(),
		Email:  "pat@example.com",
		Role:   domain.RolePatient,
	}

	token, err := m.Sign(claims, time.Hour)
	require.NoError(t, err)

	got, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, claims.UserID, got.UserID)
	assert.Equal(t, claims.Email, got.Email)
	assert.Equal(t, domain.RolePatient, got.Role)
}

func TestValidateExpiredToken(t *testing.T) {
	m := testManager()
	token, err := m.Sign(&domain.Claims{UserID: uuid.New(), Role: domain.RoleDoctor}, -time.Hour)
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateWrongSecret(t *testing.T) {
	token, err := testManager().Sign(&domain.Claims{UserID: uuid.New()}, time.Hour)
	require.NoError(t, err)

	other := NewJWTManager(config.JWTConfig{
		Secret: "a-completely-different-signing-secret!!",
		Issuer: "carequeue-test",
	})
	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateWrongIssuer(t *testing.T) {
	other := NewJWTManager(config.JWTConfig{
		Secret: "test-secret-at-least-32-characters-long",
		Issuer: "someone-else",
	})
	token, err := other.Sign(&domain.Claims{UserID: uuid.New()}, time.Hour)
	require.NoError(t, err)

	_, err = testManager().ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateGarbage(t *testing.T) {
	_, err := testManager().ValidateAccessToken("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
