package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_RoundTrip(t *testing.T) {
	secret := []byte("s3cret")
	token, err := GenerateToken(secret, 42, "reader", true, "sid-1", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "reader", claims.Username)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "sid-1", claims.SessionID)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken([]byte("a"), 1, "x", false, "sid", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken([]byte("b"), token)
	assert.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	token, err := GenerateToken([]byte("a"), 1, "x", false, "sid", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken([]byte("a"), token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1})
	str, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken([]byte("a"), str)
	assert.Error(t, err)
}
