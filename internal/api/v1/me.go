package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/careboard/internal/domain"
)

type GetMeInput struct{}

type GetMeOutput struct {
	Body struct {
		ID        uuid.UUID `json:"id"`
		Email     string    `json:"email"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"createdAt"`
	}
}

func RegisterMeRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Get the signed-in user",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *GetMeInput) (*GetMeOutput, error) {
		ident, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		user, err := store.Users().GetByID(ctx, ident.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to get user", err)
		}

		out := &GetMeOutput{}
		out.Body.ID = user.ID
		out.Body.Email = user.Email
		out.Body.Name = user.Name
		out.Body.CreatedAt = user.CreatedAt
		return out, nil
	})
}
