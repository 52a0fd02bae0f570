package session

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/helixml/damkit/domain/chat"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	cache *gocache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore creates a MemoryStore that evicts idle sessions after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	ttl = normalizeTTL(ttl)
	return &MemoryStore{
		cache: gocache.New(ttl, ttl/4),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Load returns the session or chat.ErrSessionNotFound.
func (s *MemoryStore) Load(_ context.Context, id string) (chat.Session, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	sess := v.(chat.Session)
	if sess.Expired(s.now(), s.ttl) {
		s.cache.Delete(id)
		return chat.Session{}, chat.ErrSessionNotFound
	}
	sess.Messages = append([]chat.Message(nil), sess.Messages...)
	return sess, nil
}

// Save stores a copy of the session and resets its expiry.
func (s *MemoryStore) Save(_ context.Context, sess chat.Session) error {
	sess.LastActivity = s.now()
	sess.Messages = append([]chat.Message(nil), sess.Messages...)
	if sess.PendingFile != nil {
		f := *sess.PendingFile
		sess.PendingFile = &f
	}
	s.cache.Set(sess.ID, sess, s.ttl)
	return nil
}

// Delete removes the session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

var _ chat.SessionStore = (*MemoryStore)(nil)
