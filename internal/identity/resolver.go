// Package identity resolves bearer tokens into authenticated principals.
// Resolution happens fresh on every request: there is no token cache and no
// session store, so a revoked token stops working on the next request.
package identity

import (
	"context"

	"github.com/chatflow/chatflow/internal/models"
)

// Resolver exchanges a bearer token for an Identity. Implementations must
// be request-scoped and stateless; any provider-side rejection is reported
// as a generic Unauthenticated error so provider detail never reaches the
// caller.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*models.Identity, error)
}
