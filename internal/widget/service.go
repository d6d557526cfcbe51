package widget

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chatflow/chatflow/internal/apierr"
	"github.com/chatflow/chatflow/internal/models"
)

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service reads widget configuration through the anonymous store
// credential. It is constructed with the minimal-privilege pool and must
// never be handed the authenticated one.
type Service struct {
	db DB
}

func NewService(db DB) *Service {
	return &Service{db: db}
}

// Config fetches the public projection for an active chatbot together with
// its configured allowed domain. Draft and archived chatbots read as
// nonexistent.
func (s *Service) Config(ctx context.Context, botID uuid.UUID) (*models.WidgetConfig, string, error) {
	var cfg models.WidgetConfig
	var allowedDomain string
	err := s.db.QueryRow(ctx,
		`SELECT name, greeting, placeholder, primary_color, position, size,
		        show_avatar, enable_typing, allowed_domain, initial_messages
		 FROM chatbots WHERE id = $1 AND status = 'active'`,
		botID,
	).Scan(
		&cfg.Name, &cfg.Greeting, &cfg.Placeholder, &cfg.PrimaryColor,
		&cfg.Position, &cfg.Size, &cfg.ShowAvatar, &cfg.EnableTyping,
		&allowedDomain, &cfg.InitialMessages,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", apierr.NotFound("Active chatbot not found.")
	}
	if err != nil {
		return nil, "", apierr.Store("Could not load widget configuration.", err)
	}
	if cfg.InitialMessages == nil {
		cfg.InitialMessages = []string{}
	}
	return &cfg, allowedDomain, nil
}
