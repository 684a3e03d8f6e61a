package v1

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/careboard/internal/auth"
)

const oauthStateTTL = 10 * time.Minute

type OAuthLoginInput struct{}

type RedirectOutput struct {
	Location string `header:"Location"`
}

type OAuthCallbackInput struct {
	Code  string `query:"code" doc:"Authorization code"`
	State string `query:"state" doc:"State issued by the login endpoint"`
	Error string `query:"error" doc:"Provider error, if the user declined"`
}

type RefreshInput struct {
	Body struct {
		RefreshToken string `json:"refresh_token" minLength:"1" doc:"Refresh token"` //nolint:gosec // G117: token refresh DTO
	}
}

type RefreshOutput struct {
	Body struct {
		AccessToken string `json:"access_token"` //nolint:gosec // G117: auth response DTO
	}
}

// RegisterAuthRoutes wires sign-in. provider may be nil when Google sign-in
// is not configured; the OAuth endpoints then answer 501. After a successful
// callback the browser is sent to successURL with the tokens in the fragment.
func RegisterAuthRoutes(api huma.API, authSvc AuthService, provider IdentityProvider, successURL string) {
	huma.Register(api, huma.Operation{
		OperationID:   "oauth-google-login",
		Method:        http.MethodGet,
		Path:          "/auth/oauth/google/login",
		Summary:       "Start Google sign-in",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusFound,
	}, func(_ context.Context, _ *OAuthLoginInput) (*RedirectOutput, error) {
		if provider == nil {
			return nil, huma.Error501NotImplemented("Google sign-in is not configured")
		}

		state, err := authSvc.NewState(oauthStateTTL)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to issue state", err)
		}

		return &RedirectOutput{Location: provider.AuthorizationURL(state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "oauth-google-callback",
		Method:        http.MethodGet,
		Path:          "/auth/oauth/google/callback",
		Summary:       "Complete Google sign-in",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusFound,
	}, func(ctx context.Context, input *OAuthCallbackInput) (*RedirectOutput, error) {
		if provider == nil {
			return nil, huma.Error501NotImplemented("Google sign-in is not configured")
		}
		if input.Error != "" {
			return nil, huma.Error401Unauthorized("sign-in was not completed: " + input.Error)
		}
		if input.Code == "" {
			return nil, huma.Error400BadRequest("missing authorization code")
		}
		if err := authSvc.CheckState(input.State); err != nil {
			return nil, huma.Error400BadRequest("invalid or expired state")
		}

		info, err := provider.ExchangeCode(ctx, input.Code)
		if err != nil {
			if errors.Is(err, auth.ErrEmailNotVerified) {
				return nil, huma.Error403Forbidden("Google account email is not verified")
			}
			log.Warn().Err(err).Msg("oauth callback: code exchange failed")
			return nil, huma.Error401Unauthorized("sign-in failed")
		}

		user, tokens, err := authSvc.SignIn(ctx, info.Email, info.Name)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to sign in", err)
		}
		log.Info().Str("user_id", user.ID.String()).Msg("user signed in")

		fragment := url.Values{}
		fragment.Set("access_token", tokens.AccessToken)
		fragment.Set("refresh_token", tokens.RefreshToken)
		return &RedirectOutput{Location: successURL + "#" + fragment.Encode()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        "/auth/refresh",
		Summary:     "Refresh access token",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RefreshInput) (*RefreshOutput, error) {
		accessToken, err := authSvc.RefreshToken(ctx, input.Body.RefreshToken)
		if err != nil {
			return nil, huma.Error401Unauthorized("invalid or expired refresh token")
		}

		out := &RefreshOutput{}
		out.Body.AccessToken = accessToken
		return out, nil
	})
}
