package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	BotStatusActive   = "active"
	BotStatusDraft    = "draft"
	BotStatusArchived = "archived"
)

type Chatbot struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	Name            string    `json:"name" db:"name"`
	Description     string    `json:"description" db:"description"`
	Status          string    `json:"status" db:"status"`
	Greeting        string    `json:"greeting" db:"greeting"`
	Placeholder     string    `json:"placeholder" db:"placeholder"`
	PrimaryColor    string    `json:"primary_color" db:"primary_color"`
	Position        string    `json:"position" db:"position"`
	Size            string    `json:"size" db:"size"`
	ShowAvatar      bool      `json:"show_avatar" db:"show_avatar"`
	EnableTyping    bool      `json:"enable_typing" db:"enable_typing"`
	ResponseDelay   int       `json:"response_delay" db:"response_delay"`
	AllowedDomain   string    `json:"allowed_domain" db:"allowed_domain"`
	InitialMessages []string  `json:"initial_messages" db:"initial_messages"`
	Conversations   int       `json:"conversations" db:"conversations"`
	Accuracy        int       `json:"accuracy" db:"accuracy"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	LastUpdated     time.Time `json:"last_updated" db:"last_updated"`
}

// WidgetConfig is the public projection of a chatbot served to the
// embeddable widget. It carries display fields only; nothing
// owner-identifying is ever included.
type WidgetConfig struct {
	Name            string   `json:"name"`
	Greeting        string   `json:"greeting"`
	Placeholder     string   `json:"placeholder"`
	PrimaryColor    string   `json:"primaryColor"`
	Position        string   `json:"position"`
	Size            string   `json:"size"`
	ShowAvatar      bool     `json:"showAvatar"`
	EnableTyping    bool     `json:"enableTyping"`
	InitialMessages []string `json:"initialMessages"`
}
