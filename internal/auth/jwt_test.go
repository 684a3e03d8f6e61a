package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/careboard/internal/auth"
)

func TestJWT_IssueAndValidateRoundTrip(t *testing.T) {
	t.Parallel()

	secret := "test-secret-key-very-long-and-secure"
	userID := uuid.New()
	email := "patient@example.com"

	tests := []struct {
		name      string
		issue     func(string, uuid.UUID, string, time.Duration) (string, error)
		tokenType string
	}{
		{name: "access token", issue: auth.IssueAccessToken, tokenType: "access"},
		{name: "refresh token", issue: auth.IssueRefreshToken, tokenType: "refresh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := tt.issue(secret, userID, email, 5*time.Minute)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			claims, err := auth.ValidateToken(secret, token)
			require.NoError(t, err)
			require.NotNil(t, claims)

			assert.Equal(t, userID.String(), claims.UserID)
			assert.Equal(t, email, claims.Email)
			assert.Equal(t, tt.tokenType, claims.TokenType)
			assert.Equal(t, "careboard", claims.Issuer)
			assert.NotEmpty(t, claims.ID)
			assert.NotNil(t, claims.IssuedAt)
			assert.NotNil(t, claims.ExpiresAt)
		})
	}
}

func TestJWT_ExpiredTokenRejected(t *testing.T) {
	t.Parallel()

	// Issue a token that has already expired (negative TTL).
	token, err := auth.IssueAccessToken("test-secret-key", uuid.New(), "a@example.com", -1*time.Second)
	require.NoError(t, err)

	claims, err := auth.ValidateToken("test-secret-key", token)
	require.Error(t, err)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWT_InvalidSecretRejected(t *testing.T) {
	t.Parallel()

	token, err := auth.IssueAccessToken("secret-a", uuid.New(), "a@example.com", 5*time.Minute)
	require.NoError(t, err)

	claims, err := auth.ValidateToken("secret-b", token)
	require.Error(t, err)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWT_ForeignIssuerRejected(t *testing.T) {
	t.Parallel()

	claims := jwt.RegisteredClaims{
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = auth.ValidateToken("secret", token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWT_MalformedTokenRejected(t *testing.T) {
	t.Parallel()

	claims, err := auth.ValidateToken("secret", "not.a.valid.jwt.token")
	require.Error(t, err)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestStateToken(t *testing.T) {
	t.Parallel()

	state, err := auth.IssueStateToken("secret", time.Minute)
	require.NoError(t, err)
	require.NoError(t, auth.ValidateStateToken("secret", state))

	require.ErrorIs(t, auth.ValidateStateToken("other", state), auth.ErrInvalidToken)

	access, err := auth.IssueAccessToken("secret", uuid.New(), "a@example.com", time.Minute)
	require.NoError(t, err)
	require.ErrorIs(t, auth.ValidateStateToken("secret", access), auth.ErrInvalidToken, "access token is not a state")

	expired, err := auth.IssueStateToken("secret", -time.Second)
	require.NoError(t, err)
	require.ErrorIs(t, auth.ValidateStateToken("secret", expired), auth.ErrInvalidToken)
}
