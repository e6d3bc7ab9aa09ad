package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/SandForge/internal/domain/message"
	"github.com/Strob0t/SandForge/internal/domain/session"
	"github.com/Strob0t/SandForge/internal/port/storage"
)

const sessionKeyPrefix = "session:"

// SessionService persists conversation sessions through the storage port.
type SessionService struct {
	store storage.Port
	log   *slog.Logger
}

// NewSessionService creates a session service over the given store.
func NewSessionService(store storage.Port, log *slog.Logger) *SessionService {
	return &SessionService{store: store, log: log}
}

// Create starts a new empty session.
func (s *SessionService) Create(ctx context.Context) (*session.Session, error) {
	sess := session.New(uuid.NewString())
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info("session created", "session_id", sess.ID)
	return sess, nil
}

// Get loads a session by ID.
func (s *SessionService) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := s.store.Get(ctx, sessionKeyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// Save persists a session, refreshing its update timestamp and deriving a
// title from the first user message when none has been set.
func (s *SessionService) Save(ctx context.Context, sess *session.Session) error {
	sess.UpdatedAt = time.Now().UTC()
	if sess.Title == "" || sess.Title == "New Session" {
		if t := deriveTitle(sess.Messages); t != "" {
			sess.Title = t
		}
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.store.Set(ctx, sessionKeyPrefix+sess.ID, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, sessionKeyPrefix+id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List returns summaries of all sessions, most recently updated first.
func (s *SessionService) List(ctx context.Context) ([]session.Summary, error) {
	keys, err := s.store.ListKeys(ctx, sessionKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	summaries := make([]session.Summary, 0, len(keys))
	for _, key := range keys {
		data, err := s.store.Get(ctx, key)
		if err != nil || data == nil {
			continue
		}
		var sess session.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			s.log.Warn("skipping corrupt session", "key", key, "error", err)
			continue
		}
		summaries = append(summaries, session.Summary{
			ID:           sess.ID,
			Title:        sess.Title,
			UpdatedAt:    sess.UpdatedAt,
			MessageCount: len(sess.Messages),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// deriveTitle takes the first user message, truncated to a listing-friendly
// length.
func deriveTitle(msgs []message.Message) string {
	for _, m := range msgs {
		if m.Role != message.RoleUser {
			continue
		}
		title := m.Content.Text
		if len(title) > 50 {
			title = title[:50]
		}
		return title
	}
	return ""
}
