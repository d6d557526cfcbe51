package models

import "github.com/google/uuid"

// Identity is the authenticated principal resolved from a bearer token by
// the external identity provider. Its ID is the sole authorization key used
// everywhere else; it is resolved fresh on every request and never cached.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  string    `json:"role"`
}
