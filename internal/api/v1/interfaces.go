package v1

import (
	"context"
	"time"

	"github.com/gosuda/careboard/internal/auth"
	"github.com/gosuda/careboard/internal/domain"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Users() domain.UserRepository
	Records() domain.RecordRepository
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	SignIn(ctx context.Context, email, name string) (*domain.User, auth.Tokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	NewState(ttl time.Duration) (string, error)
	CheckState(state string) error
}

// IdentityProvider abstracts the OAuth2 sign-in round trip.
// *auth.OAuthProvider satisfies this interface.
type IdentityProvider interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*auth.UserInfo, error)
}

// Analyzer abstracts the document analysis model for handler testing.
// *analysis.Client satisfies this interface.
type Analyzer interface {
	AnalyzeDocument(ctx context.Context, data []byte, mimeType string) (string, error)
	GeneratePlan(ctx context.Context, analysis string) (string, error)
}
