package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/careboard/internal/auth"
	"github.com/gosuda/careboard/internal/domain"
)

// --- configurable mock UserRepository for service tests ---

// mockServiceRepo is a configurable mock implementing domain.UserRepository.
// It captures calls and returns preconfigured responses for service-level tests.
type mockServiceRepo struct {
	mu sync.Mutex

	// GetByEmail behavior. Responses are consumed in order; the last one
	// repeats.
	getByEmailUsers []*domain.User
	getByEmailErrs  []error
	getByEmailCalls int

	// GetByID behavior.
	getByIDUser *domain.User
	getByIDErr  error

	// Create behavior.
	createErr   error
	createdUser *domain.User // captures the user passed to Create.
}

func (m *mockServiceRepo) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createdUser = u
	return m.createErr
}

func (m *mockServiceRepo) GetByID(context.Context, uuid.UUID) (*domain.User, error) {
	return m.getByIDUser, m.getByIDErr
}

func (m *mockServiceRepo) GetByEmail(context.Context, string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := min(m.getByEmailCalls, len(m.getByEmailErrs)-1)
	m.getByEmailCalls++
	var u *domain.User
	if i < len(m.getByEmailUsers) {
		u = m.getByEmailUsers[i]
	}
	return u, m.getByEmailErrs[i]
}

// --- test constants ---

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testEmail     = "alice@example.com"
	testUserName  = "Alice"
)

var (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 7 * 24 * time.Hour
)

// newTestService creates a Service with the given mock and standard test config.
func newTestService(repo *mockServiceRepo) *auth.Service {
	return auth.NewService(repo, testJWTSecret, testAccessTTL, testRefreshTTL)
}

// --- EnsureUser / SignIn tests ---

func TestEnsureUser(t *testing.T) {
	t.Parallel()

	t.Run("existing user is returned unchanged", func(t *testing.T) {
		t.Parallel()

		existing := &domain.User{ID: uuid.New(), Email: testEmail, Name: testUserName}
		repo := &mockServiceRepo{getByEmailUsers: []*domain.User{existing}, getByEmailErrs: []error{nil}}

		user, err := newTestService(repo).EnsureUser(t.Context(), testEmail, "Other Name")

		require.NoError(t, err)
		assert.Same(t, existing, user)
		assert.Nil(t, repo.createdUser, "no user must be created")
	})

	t.Run("unknown email creates user", func(t *testing.T) {
		t.Parallel()

		repo := &mockServiceRepo{getByEmailErrs: []error{domain.ErrNotFound}}

		user, err := newTestService(repo).EnsureUser(t.Context(), "  Alice@Example.com", testUserName)

		require.NoError(t, err)
		require.NotNil(t, repo.createdUser)
		assert.Same(t, repo.createdUser, user)
		assert.Equal(t, testEmail, user.Email, "email is normalized")
		assert.Equal(t, testUserName, user.Name)
		assert.NotEqual(t, uuid.Nil, user.ID)
	})

	t.Run("concurrent create falls back to lookup", func(t *testing.T) {
		t.Parallel()

		winner := &domain.User{ID: uuid.New(), Email: testEmail}
		repo := &mockServiceRepo{
			getByEmailUsers: []*domain.User{nil, winner},
			getByEmailErrs:  []error{domain.ErrNotFound, nil},
			createErr:       domain.ErrConflict,
		}

		user, err := newTestService(repo).EnsureUser(t.Context(), testEmail, testUserName)

		require.NoError(t, err)
		assert.Same(t, winner, user)
	})

	t.Run("lookup failure is propagated", func(t *testing.T) {
		t.Parallel()

		repoErr := errors.New("database connection refused")
		repo := &mockServiceRepo{getByEmailErrs: []error{repoErr}}

		user, err := newTestService(repo).EnsureUser(t.Context(), testEmail, testUserName)

		require.ErrorIs(t, err, repoErr)
		assert.Nil(t, user)
	})

	t.Run("empty email is rejected", func(t *testing.T) {
		t.Parallel()

		repo := &mockServiceRepo{getByEmailErrs: []error{domain.ErrNotFound}}

		_, err := newTestService(repo).EnsureUser(t.Context(), "", testUserName)

		require.Error(t, err)
		assert.Nil(t, repo.createdUser)
	})
}

func TestSignIn_IssuesTokenPair(t *testing.T) {
	t.Parallel()

	existing := &domain.User{ID: uuid.New(), Email: testEmail}
	repo := &mockServiceRepo{getByEmailUsers: []*domain.User{existing}, getByEmailErrs: []error{nil}}

	user, tokens, err := newTestService(repo).SignIn(t.Context(), testEmail, testUserName)
	require.NoError(t, err)
	assert.Same(t, existing, user)

	access, err := auth.ValidateToken(testJWTSecret, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access", access.TokenType)
	assert.Equal(t, existing.ID.String(), access.UserID)
	assert.Equal(t, testEmail, access.Email)

	refresh, err := auth.ValidateToken(testJWTSecret, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refresh.TokenType)
}

// --- RefreshToken tests ---

func TestRefreshToken(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New(), Email: testEmail}

	t.Run("valid refresh token issues access token", func(t *testing.T) {
		t.Parallel()

		refresh, err := auth.IssueRefreshToken(testJWTSecret, user.ID, user.Email, time.Hour)
		require.NoError(t, err)

		access, err := newTestService(&mockServiceRepo{getByIDUser: user}).RefreshToken(t.Context(), refresh)
		require.NoError(t, err)

		claims, err := auth.ValidateToken(testJWTSecret, access)
		require.NoError(t, err)
		assert.Equal(t, "access", claims.TokenType)
		assert.Equal(t, user.ID.String(), claims.UserID)
	})

	t.Run("access token is not accepted as refresh token", func(t *testing.T) {
		t.Parallel()

		access, err := auth.IssueAccessToken(testJWTSecret, user.ID, user.Email, time.Hour)
		require.NoError(t, err)

		_, err = newTestService(&mockServiceRepo{getByIDUser: user}).RefreshToken(t.Context(), access)
		require.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("deleted user is rejected", func(t *testing.T) {
		t.Parallel()

		refresh, err := auth.IssueRefreshToken(testJWTSecret, user.ID, user.Email, time.Hour)
		require.NoError(t, err)

		_, err = newTestService(&mockServiceRepo{getByIDErr: domain.ErrNotFound}).RefreshToken(t.Context(), refresh)
		require.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := newTestService(&mockServiceRepo{}).RefreshToken(t.Context(), "garbage")
		require.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

// --- State tests ---

func TestService_State(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockServiceRepo{})
	state, err := svc.NewState(time.Minute)
	require.NoError(t, err)
	require.NoError(t, svc.CheckState(state))
	require.Error(t, svc.CheckState("forged"))
}

func TestGetUser(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New(), Email: testEmail}
	got, err := newTestService(&mockServiceRepo{getByIDUser: user}).GetUser(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Same(t, user, got)

	_, err = newTestService(&mockServiceRepo{getByIDErr: domain.ErrNotFound}).GetUser(t.Context(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}
