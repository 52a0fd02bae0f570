package dto

import (
	"time"

	"github.com/helixml/damkit/domain/chat"
)

// ChatMessage is one turn supplied by the client.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a chat turn. Messages, when given, replace the stored
// history of the session.
type ChatRequest struct {
	Messages     []ChatMessage      `json:"messages,omitempty"`
	Message      string             `json:"message,omitempty"`
	UploadedFile *chat.UploadedFile `json:"uploaded_file,omitempty"`
	SessionID    string             `json:"session_id,omitempty"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id,omitempty"`
}

// SessionResponse is a stored chat session.
type SessionResponse struct {
	ID           string             `json:"id"`
	Messages     []chat.Message     `json:"messages"`
	PendingFile  *chat.UploadedFile `json:"pending_file,omitempty"`
	LastActivity time.Time          `json:"last_activity"`
}

// NewSessionResponse converts a session for the API.
func NewSessionResponse(s chat.Session) SessionResponse {
	messages := s.Messages
	if messages == nil {
		messages = []chat.Message{}
	}
	return SessionResponse{
		ID:           s.ID,
		Messages:     messages,
		PendingFile:  s.PendingFile,
		LastActivity: s.LastActivity,
	}
}
