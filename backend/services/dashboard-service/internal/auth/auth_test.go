package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("s3cret")
	require.NoError(t, err)
	return NewService("operator", hash, hasher, NewTokenService("test-secret", time.Hour), zap.NewNop())
}

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("pw")
	require.NoError(t, err)
	assert.NoError(t, hasher.Compare(hash, "pw"))
	assert.ErrorIs(t, hasher.Compare(hash, "other"), ErrInvalidCredentials)
	assert.NoError(t, hasher.CheckHash(hash))

	err = hasher.Compare("not-a-bcrypt-hash", "pw")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Error(t, hasher.CheckHash("not-a-bcrypt-hash"))

	_, err = hasher.Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
	_, err = hasher.Hash(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestNewBcryptHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	assert.Equal(t, bcrypt.MinCost, NewBcryptHasher(1).cost)
	assert.Equal(t, bcrypt.MaxCost, NewBcryptHasher(99).cost)
}

func TestLoginWithBrokenHashIsRejected(t *testing.T) {
	svc := NewService("operator", "plain-text", NewBcryptHasher(bcrypt.MinCost), NewTokenService("test-secret", time.Hour), zap.NewNop())
	_, err := svc.Login(context.Background(), "operator", "plain-text")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokenService("secret", time.Minute)

	signed, expiresAt, err := tokens.GenerateToken("operator")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

	claims, err := tokens.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Operator())

	_, _, err = tokens.GenerateToken("")
	assert.Error(t, err)
}

func TestValidateTokenRejectsForeignAndExpired(t *testing.T) {
	tokens := NewTokenService("secret", time.Minute)

	signed, _, err := NewTokenService("other-secret", time.Minute).GenerateToken("operator")
	require.NoError(t, err)
	_, err = tokens.ValidateToken(signed)
	assert.Error(t, err)

	expired := NewTokenService("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	signed, _, err = expired.GenerateToken("operator")
	require.NoError(t, err)
	_, err = tokens.ValidateToken(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = tokens.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	svc := newTestService(t)

	session, err := svc.Login(context.Background(), " operator ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "operator", session.Operator)

	claims, err := svc.Tokens().ValidateToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Operator())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)

	for _, tc := range []struct{ operator, password string }{
		{"operator", "wrong"},
		{"intruder", "s3cret"},
		{"", "s3cret"},
		{"operator", ""},
	} {
		_, err := svc.Login(context.Background(), tc.operator, tc.password)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "%+v", tc)
	}
}
