package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/helixml/damkit/domain/chat"
	"github.com/helixml/damkit/domain/tenant"
)

// ChatSessions loads and stores chat sessions for their owners only.
type ChatSessions struct {
	store chat.SessionStore
	now   func() time.Time
}

// NewChatSessions creates a new ChatSessions service.
func NewChatSessions(store chat.SessionStore) *ChatSessions {
	return &ChatSessions{store: store, now: time.Now}
}

// New starts and saves an empty session for the principal.
func (s *ChatSessions) New(ctx context.Context, p tenant.Principal) (chat.Session, error) {
	sess := chat.NewSession(p.TenantID(), p.UserID(), s.now())
	if err := s.store.Save(ctx, sess); err != nil {
		return chat.Session{}, fmt.Errorf("save chat session: %w", err)
	}
	return sess, nil
}

// Get loads a session owned by the principal. Sessions of other users are
// reported as not found.
func (s *ChatSessions) Get(ctx context.Context, p tenant.Principal, id string) (chat.Session, error) {
	sess, err := s.store.Load(ctx, id)
	if err != nil {
		return chat.Session{}, err
	}
	if sess.TenantID != p.TenantID() || sess.UserID != p.UserID() {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	return sess, nil
}

// Resume loads the session with id, or starts a new one when id is empty,
// expired, or not the principal's.
func (s *ChatSessions) Resume(ctx context.Context, p tenant.Principal, id string) (chat.Session, error) {
	if id != "" {
		sess, err := s.Get(ctx, p, id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, chat.ErrSessionNotFound) {
			return chat.Session{}, err
		}
	}
	return chat.NewSession(p.TenantID(), p.UserID(), s.now()), nil
}

// Save persists the session.
func (s *ChatSessions) Save(ctx context.Context, sess chat.Session) error {
	if err := s.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("save chat session: %w", err)
	}
	return nil
}

// Clear deletes a session owned by the principal.
func (s *ChatSessions) Clear(ctx context.Context, p tenant.Principal, id string) error {
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}
