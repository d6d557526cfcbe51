// Package ownership enforces per-resource tenant isolation. The owner
// filter is part of the existence check itself, so a resource belonging to
// another user is indistinguishable from a nonexistent one.
package ownership

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chatflow/chatflow/internal/apierr"
)

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Guard struct {
	db DB
}

func NewGuard(db DB) *Guard {
	return &Guard{db: db}
}

// Table names are baked into the statements; anything else is a programming
// error, not client input.
var resources = map[string]struct {
	query string
	label string
}{
	"chatbots": {
		query: "SELECT EXISTS(SELECT 1 FROM chatbots WHERE id = $1 AND user_id = $2)",
		label: "Chatbot",
	},
	"documents": {
		query: "SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1 AND user_id = $2)",
		label: "Document",
	},
}

// Assert confirms the resource exists and belongs to owner in a single
// filtered query. Zero rows yields NotFound; the message deliberately
// conflates "does not exist" and "exists but not yours".
func (g *Guard) Assert(ctx context.Context, table string, id, owner uuid.UUID) error {
	res, ok := resources[table]
	if !ok {
		return apierr.Store("Internal server error.", fmt.Errorf("ownership: unknown table %q", table))
	}

	var exists bool
	if err := g.db.QueryRow(ctx, res.query, id, owner).Scan(&exists); err != nil {
		return apierr.Store("Internal server error.", fmt.Errorf("ownership check for %s: %w", table, err))
	}
	if !exists {
		return apierr.NotFound(res.label + " not found or you do not have permission to access it.")
	}
	return nil
}
