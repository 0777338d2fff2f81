package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "ezclaim/pkg/domain-errors"
)

var jwtService = NewJWTService("test-signing-key", "test-issuer")
var scopes = []string{"CLAIM_READ", "AUDIT"}
var expiresIn = time.Hour

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken("admin", scopes, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, "CLAIM_READ AUDIT", claims.Scope)
	assert.Equal(t, scopes, claims.Scopes())
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken("admin", scopes, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.EqualError(t, err, "token has expired")
}

func Test_ValidateToken_WrongKeyOrIssuer(t *testing.T) {
	token, err := NewJWTService("other-key", "test-issuer").GenerateAccessToken("admin", scopes, expiresIn)
	require.NoError(t, err)
	_, err = jwtService.ValidateToken(token)
	require.EqualError(t, err, "invalid token")

	token, err = NewJWTService("test-signing-key", "someone-else").GenerateAccessToken("admin", scopes, expiresIn)
	require.NoError(t, err)
	_, err = jwtService.ValidateToken(token)
	require.EqualError(t, err, "invalid token")
}

func Test_ValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Scope:            "AUDIT",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "admin", Issuer: "test-issuer"},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
}

func Test_Adapter(t *testing.T) {
	token, err := jwtService.GenerateAccessToken("reader", scopes, expiresIn)
	require.NoError(t, err)

	claims, err := NewJWTServiceAdapter(jwtService).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "reader", claims.Subject)
	assert.Equal(t, scopes, claims.Scopes)
}
