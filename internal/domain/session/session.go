// Package session defines persisted conversation sessions.
package session

import (
	"time"

	"github.com/Strob0t/SandForge/internal/config"
	"github.com/Strob0t/SandForge/internal/domain/message"
)

// Session is a persisted conversation: JSON-serializable and round-trippable
// through the storage port.
type Session struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Messages  []message.Message `json:"messages"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Config    config.Agent      `json:"config"`
}

// New returns an empty session with both timestamps set to now.
func New(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Title:     "New Session",
		CreatedAt: now,
		UpdatedAt: now,
		Config:    config.DefaultAgent(),
	}
}

// Summary is a compact session view for listings.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}
