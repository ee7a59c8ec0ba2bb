package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	domainerrors "github.com/ilbumi/satin/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokens(t *testing.T) *TokenService {
	t.Helper()
	key, err := GenerateKeyHex()
	require.NoError(t, err)
	s, err := NewTokenService(key, time.Hour)
	require.NoError(t, err)
	return s
}

func TestNewTokenService_RejectsBadKeys(t *testing.T) {
	_, err := NewTokenService("abcd", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenService(string(make([]byte, 64)), time.Hour)
	assert.Error(t, err)
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	s := newTestTokens(t)

	issued, err := s.Issue("cli")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", issued.TokenType)
	assert.Contains(t, issued.Token, "v4.local.")
	assert.WithinDuration(t, time.Now().Add(time.Hour), issued.ExpiresAt, 5*time.Second)

	claims, err := s.Verify(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "cli", claims.Client)
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.Equal(t, tokenAudience, claims.Audience)
	assert.NotEmpty(t, claims.TokenID)
}

func TestTokenService_Expired(t *testing.T) {
	s := newTestTokens(t)
	issued, err := s.Issue("")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Verify(issued.Token)
	assert.Error(t, err)
}

func TestTokenService_WrongKey(t *testing.T) {
	issued, err := newTestTokens(t).Issue("")
	require.NoError(t, err)

	_, err = newTestTokens(t).Verify(issued.Token)
	assert.Error(t, err)
}

func TestVerifyAPIKey(t *testing.T) {
	hashed, err := HashAPIKey("s3cret")
	require.NoError(t, err)
	assert.True(t, IsHashed(hashed))

	tests := []struct {
		name       string
		configured string
		presented  string
		want       bool
	}{
		{"plaintext match", "s3cret", "s3cret", true},
		{"plaintext mismatch", "s3cret", "nope", false},
		{"hashed match", hashed, "s3cret", true},
		{"hashed mismatch", hashed, "S3CRET", false},
		{"corrupt hash", "$argon2id$v=19$broken", "s3cret", false},
		{"empty presented", "s3cret", "", false},
		{"nothing configured", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyAPIKey(tt.configured, tt.presented))
		})
	}

	_, err = HashAPIKey("")
	assert.Error(t, err)
}

func TestAuthenticator(t *testing.T) {
	a := NewAuthenticator("s3cret", newTestTokens(t), nil)
	require.True(t, a.Enabled())

	_, err := a.Exchange("wrong", "cli")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	issued, err := a.Exchange("s3cret", "cli")
	require.NoError(t, err)

	claims, err := a.Authenticate("Bearer " + issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "cli", claims.Client)

	claims, err = a.Authenticate("bearer  " + issued.Token)
	require.NoError(t, err)
	assert.NotNil(t, claims)

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer garbage"} {
		_, err := a.Authenticate(header)
		assert.ErrorIs(t, err, domainerrors.ErrUnauthorized, header)
	}
}

func TestAuthenticator_Disabled(t *testing.T) {
	a := NewAuthenticator("", newTestTokens(t), nil)
	assert.False(t, a.Enabled())

	_, err := a.Exchange("anything", "")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, first, keyHexLength)

	second, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "token.key"), []byte("short"), 0o600))
	_, err = LoadOrGenerateKey(dir)
	assert.Error(t, err)
}
