// Package chat provides chat sessions, messages, and intent classification
// for the assistant.
package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
)

// SessionTTL is how long a session lives after its last activity.
const SessionTTL = 24 * time.Hour

// ErrSessionNotFound is returned when a session is missing or expired.
var ErrSessionNotFound = errors.New("chat session not found")

// Role is the author of a chat message.
type Role string

// Role values.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// CoerceRole maps anything other than assistant to user.
func CoerceRole(s string) Role {
	if Role(s) == RoleAssistant {
		return RoleAssistant
	}
	return RoleUser
}

// Message is one turn in a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// UploadedFile references a staged upload waiting to be placed.
type UploadedFile struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// Session is a persisted conversation.
type Session struct {
	ID           string        `json:"id"`
	TenantID     string        `json:"tenant_id"`
	UserID       string        `json:"user_id"`
	Messages     []Message     `json:"messages"`
	PendingFile  *UploadedFile `json:"pending_file,omitempty"`
	LastActivity time.Time     `json:"last_activity"`
}

// NewSession starts an empty session for a user.
func NewSession(tenantID, userID string, now time.Time) Session {
	return Session{
		ID:           NewSessionID(now),
		TenantID:     tenantID,
		UserID:       userID,
		LastActivity: now,
	}
}

// Expired reports whether the session has been idle longer than ttl.
func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastActivity) > ttl
}

// Append adds a message and touches the session.
func (s *Session) Append(role Role, content string, now time.Time) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content, Timestamp: now})
	s.LastActivity = now
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewSessionID returns "session_{unix-ms}_{9 base36 chars}".
func NewSessionID(now time.Time) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return fmt.Sprintf("session_%s_%s", strconv.FormatInt(now.UnixMilli(), 10), suffix)
}

// SessionStore persists sessions with expiry.
type SessionStore interface {
	Load(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}
