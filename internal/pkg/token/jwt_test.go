package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laststock/internal/pkg/token"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := token.NewService("segredo", time.Hour)

	tok, err := svc.GenerateToken("u-1", "ana@fabrica.com", "admin")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "ana@fabrica.com", claims.Actor)
	assert.Equal(t, "admin", claims.Role)
}

func TestValidate_WrongSecretAndExpired(t *testing.T) {
	tok, err := token.NewService("a", time.Hour).GenerateToken("u-1", "x", "staff")
	require.NoError(t, err)

	_, err = token.NewService("b", time.Hour).ValidateToken(tok)
	assert.Error(t, err)

	expired, err := token.NewService("a", -time.Minute).GenerateToken("u-1", "x", "staff")
	require.NoError(t, err)
	_, err = token.NewService("a", time.Hour).ValidateToken(expired)
	assert.Error(t, err)
}

func TestValidate_RejectsForeignIssuerAndAlgorithm(t *testing.T) {
	svc := token.NewService("segredo", time.Hour)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, token.CustomClaims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "outro",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := foreign.SignedString([]byte("segredo"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.ErrorIs(t, err, token.ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, token.CustomClaims{UserID: "u-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}
