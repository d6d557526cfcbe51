package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SourceTypeFile = "file"
	SourceTypeURL  = "url"
)

const (
	DocStatusProcessing = "processing"
	DocStatusCompleted  = "completed"
	DocStatusFailed     = "failed"
)

// Document is a knowledge source attached to a chatbot. UserID always
// equals the owning chatbot's UserID; both are stamped at creation and
// immutable afterwards. StoragePath is set only for file sources.
type Document struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ChatbotID   uuid.UUID `json:"chatbot_id" db:"chatbot_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	SourceType  string    `json:"source_type" db:"source_type"`
	SourceName  string    `json:"source_name" db:"source_name"`
	StoragePath string    `json:"storage_path,omitempty" db:"storage_path"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
