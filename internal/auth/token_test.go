package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-desk/internal/domain"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	token, exp, err := tm.GenerateToken(&domain.User{ID: 42, Role: domain.RoleSupportAgent})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, domain.RoleSupportAgent, claims.Role)
	assert.Equal(t, "42", claims.Subject)
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenManager("one", 30).GenerateToken(&domain.User{ID: 1, Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = NewTokenManager("two", 30).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	issued := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return issued }
	token, _, err := tm.GenerateToken(&domain.User{ID: 1, Role: domain.RoleEndUser})
	require.NoError(t, err)

	tm.now = func() time.Time { return issued.Add(30 * time.Second) }
	_, err = tm.ParseToken(token)
	assert.NoError(t, err)

	tm.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = tm.ParseToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenManager_RejectsForeignIssuerAndAlgorithm(t *testing.T) {
	secret := []byte("secret")
	now := time.Now()
	foreign := &Claims{UserID: 7, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, foreign).SignedString(secret)
	require.NoError(t, err)
	_, err = NewTokenManager("secret", 30).ParseToken(token)
	assert.Error(t, err)

	hs512 := &Claims{UserID: 7, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS512, hs512).SignedString(secret)
	require.NoError(t, err)
	_, err = NewTokenManager("secret", 30).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RequiresSubject(t *testing.T) {
	_, _, err := NewTokenManager("secret", 30).GenerateToken(&domain.User{})
	assert.Error(t, err)
}

func TestPasswordHelpers(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "correct horse"))
	assert.Error(t, ComparePassword(hash, "wrong"))

	unusable, err := UnusablePasswordHash(4)
	require.NoError(t, err)
	assert.Error(t, ComparePassword(unusable, ""))
}
