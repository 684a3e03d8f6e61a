package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/careboard/internal/api/v1"
	"github.com/gosuda/careboard/internal/auth"
	"github.com/gosuda/careboard/internal/domain"
)

const successURL = "https://care.example.com/signed-in"

func stateService() *mockAuthService {
	return &mockAuthService{
		newStateFunc: func(ttl time.Duration) (string, error) {
			if ttl <= 0 {
				return "", errors.New("bad ttl")
			}
			return "state-token", nil
		},
		checkStateFunc: func(state string) error {
			if state != "state-token" {
				return auth.ErrInvalidToken
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// GET /auth/oauth/google/login
// ---------------------------------------------------------------------------

func TestOAuthLogin(t *testing.T) {
	t.Parallel()

	t.Run("redirects_to_provider", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		provider := &mockIdentityProvider{
			authorizationURLFunc: func(state string) string {
				return "https://accounts.example.com/auth?state=" + state
			},
		}
		v1.RegisterAuthRoutes(api, stateService(), provider, successURL)

		resp := api.Get("/auth/oauth/google/login")

		require.Equal(t, http.StatusFound, resp.Code)
		assert.Equal(t, "https://accounts.example.com/auth?state=state-token", resp.Header().Get("Location"))
	})

	t.Run("not_configured", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAuthRoutes(api, stateService(), nil, successURL)

		resp := api.Get("/auth/oauth/google/login")
		assert.Equal(t, http.StatusNotImplemented, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// GET /auth/oauth/google/callback
// ---------------------------------------------------------------------------

func TestOAuthCallback(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New(), Email: "patient@example.com", Name: "Pat"}

	newAPI := func(t *testing.T, exchange func(ctx context.Context, code string) (*auth.UserInfo, error)) humatest.TestAPI {
		t.Helper()

		_, api := humatest.New(t)
		svc := stateService()
		svc.signInFunc = func(_ context.Context, email, name string) (*domain.User, auth.Tokens, error) {
			assert.Equal(t, "patient@example.com", email)
			assert.Equal(t, "Pat", name)
			return user, auth.Tokens{AccessToken: "access-tok", RefreshToken: "refresh-tok"}, nil
		}
		provider := &mockIdentityProvider{exchangeCodeFunc: exchange}
		v1.RegisterAuthRoutes(api, svc, provider, successURL)
		return api
	}

	okExchange := func(_ context.Context, code string) (*auth.UserInfo, error) {
		if code != "good-code" {
			return nil, errors.New("oauth2: invalid_grant")
		}
		return &auth.UserInfo{ProviderID: "g-1", Email: "patient@example.com", Name: "Pat"}, nil
	}

	t.Run("signs_in_and_redirects_with_tokens", func(t *testing.T) {
		t.Parallel()

		api := newAPI(t, okExchange)
		resp := api.Get("/auth/oauth/google/callback?code=good-code&state=state-token")
		require.Equal(t, http.StatusFound, resp.Code)

		loc := resp.Header().Get("Location")
		require.True(t, strings.HasPrefix(loc, successURL+"#"), "unexpected location %q", loc)

		fragment, err := url.ParseQuery(strings.TrimPrefix(loc, successURL+"#"))
		require.NoError(t, err)
		assert.Equal(t, "access-tok", fragment.Get("access_token"))
		assert.Equal(t, "refresh-tok", fragment.Get("refresh_token"))
	})

	tests := []struct {
		name     string
		query    string
		exchange func(ctx context.Context, code string) (*auth.UserInfo, error)
		status   int
	}{
		{name: "bad_state", query: "code=good-code&state=forged", exchange: okExchange, status: http.StatusBadRequest},
		{name: "missing_code", query: "state=state-token", exchange: okExchange, status: http.StatusBadRequest},
		{name: "user_declined", query: "error=access_denied&state=state-token", exchange: okExchange, status: http.StatusUnauthorized},
		{name: "exchange_fails", query: "code=bad-code&state=state-token", exchange: okExchange, status: http.StatusUnauthorized},
		{
			name:  "unverified_email",
			query: "code=good-code&state=state-token",
			exchange: func(_ context.Context, _ string) (*auth.UserInfo, error) {
				return nil, auth.ErrEmailNotVerified
			},
			status: http.StatusForbidden,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			api := newAPI(t, tc.exchange)
			resp := api.Get("/auth/oauth/google/callback?" + tc.query)
			assert.Equal(t, tc.status, resp.Code)
			assert.Empty(t, resp.Header().Get("Location"))
		})
	}
}

// ---------------------------------------------------------------------------
// POST /auth/refresh
// ---------------------------------------------------------------------------

func TestRefreshToken(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockAuthService{
			refreshTokenFunc: func(_ context.Context, tok string) (string, error) {
				assert.Equal(t, "refresh-tok", tok)
				return "new-access", nil
			},
		}
		v1.RegisterAuthRoutes(api, svc, nil, successURL)

		resp := api.Post("/auth/refresh", map[string]any{"refresh_token": "refresh-tok"})
		require.Equal(t, http.StatusOK, resp.Code)

		var body struct {
			AccessToken string `json:"access_token"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, "new-access", body.AccessToken)
	})

	t.Run("invalid_token", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockAuthService{
			refreshTokenFunc: func(_ context.Context, _ string) (string, error) {
				return "", auth.ErrInvalidToken
			},
		}
		v1.RegisterAuthRoutes(api, svc, nil, successURL)

		resp := api.Post("/auth/refresh", map[string]any{"refresh_token": "expired"})
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("missing_token", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAuthRoutes(api, &mockAuthService{}, nil, successURL)

		resp := api.Post("/auth/refresh", map[string]any{"refresh_token": ""})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}
