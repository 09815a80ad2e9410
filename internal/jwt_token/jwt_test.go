package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
)

var jwtService = NewJWTService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)

func Test_GenerateOperatorToken(t *testing.T) {
	token, err := jwtService.GenerateOperatorToken(id.Energy, "operator-1", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "energy", claims.Domain)
	assert.Equal(t, "operator-1", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateOperatorToken(id.Energy, "operator-1", -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, "token has expired", dErrors.MessageOf(err))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewJWTService("other-key", "test-issuer", "test-audience")
	token, err := other.GenerateOperatorToken(id.Health, "operator-2", time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
}

func Test_ValidateToken_UnknownDomain(t *testing.T) {
	token, err := jwtService.GenerateOperatorToken(id.DomainID("mars"), "operator-3", time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
}

func Test_MiddlewareValidator(t *testing.T) {
	token, err := jwtService.GenerateOperatorToken(id.Governance, "chair", time.Hour)
	require.NoError(t, err)

	claims, err := NewMiddlewareValidator(jwtService).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id.Governance, claims.Domain)
	assert.Equal(t, "chair", claims.Subject)
}
