package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/chatflow/chatflow/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) *models.Identity {
	id, _ := ctx.Value(identityKey).(*models.Identity)
	return id
}

func IDFromContext(ctx context.Context) uuid.UUID {
	if id := FromContext(ctx); id != nil {
		return id.ID
	}
	return uuid.Nil
}
