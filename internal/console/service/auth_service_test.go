package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"github.com/xela07ax/graph-privilege-auditor/internal/infra/auth"
	"golang.org/x/crypto/bcrypt"
)

type fakeUsers struct {
	user *domain.User
}

func (f *fakeUsers) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	if f.user != nil && f.user.Username == username {
		return f.user, nil
	}
	return nil, nil
}

func testUser(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		ID:           "u-1",
		Username:     "auditor",
		PasswordHash: string(hash),
		Scopes:       map[string]bool{"assessments.read": true},
	}
}

// Выданный токен должен проходить проверку RS256 с парным публичным ключом.
func TestGenerateTokenRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	svc := NewAuthService(&fakeUsers{user: testUser(t, "s3cret")}, key, time.Hour)

	resp, err := svc.GenerateToken(context.Background(), "auditor", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Greater(t, resp.ExpiresIn, int64(0))

	claims, err := auth.NewBaseValidator(&key.PublicKey).VerifyToken("Bearer " + resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.True(t, claims.Scopes["assessments.read"])
}

func TestGenerateTokenRejectsBadPassword(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	svc := NewAuthService(&fakeUsers{user: testUser(t, "s3cret")}, key, time.Hour)

	_, err = svc.GenerateToken(context.Background(), "auditor", "wrong")
	assert.Error(t, err)
}

func TestGenerateTokenRejectsUnknownUser(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	svc := NewAuthService(&fakeUsers{}, key, time.Hour)

	_, err = svc.GenerateToken(context.Background(), "ghost", "whatever")
	assert.Error(t, err)
}
