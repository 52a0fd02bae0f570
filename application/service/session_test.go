package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/damkit/domain/chat"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/infrastructure/session"
)

func TestChatSessions_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	svc := NewChatSessions(session.NewMemoryStore(time.Hour))

	sess, err := svc.New(ctx, alice)
	require.NoError(t, err)
	sess.Append(chat.RoleUser, "hello", time.Now())
	require.NoError(t, svc.Save(ctx, sess))

	loaded, err := svc.Get(ctx, alice, sess.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, "hello", loaded.Messages[0].Content)

	_, err = svc.Get(ctx, tenant.NewPrincipal("bob", "t1"), sess.ID)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	_, err = svc.Get(ctx, tenant.NewPrincipal("alice", "t2"), sess.ID)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)

	require.ErrorIs(t, svc.Clear(ctx, tenant.NewPrincipal("bob", "t1"), sess.ID), chat.ErrSessionNotFound)
	require.NoError(t, svc.Clear(ctx, alice, sess.ID))
	_, err = svc.Get(ctx, alice, sess.ID)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestChatSessions_ResumeStartsFresh(t *testing.T) {
	ctx := context.Background()
	svc := NewChatSessions(session.NewMemoryStore(time.Hour))

	sess, err := svc.Resume(ctx, alice, "")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Empty(t, sess.Messages)

	other, err := svc.Resume(ctx, alice, "session_unknown")
	require.NoError(t, err)
	assert.NotEqual(t, "session_unknown", other.ID)
	assert.Equal(t, "t1", other.TenantID)
	assert.Equal(t, "alice", other.UserID)
}
