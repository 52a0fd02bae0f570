package folder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFolder_IsRecent(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	recent := Reconstruct("f1", "t1", "A", "", "u1", now.Add(-6*24*time.Hour), now)
	old := Reconstruct("f2", "t1", "B", "", "u1", now.Add(-8*24*time.Hour), now)

	assert.True(t, recent.IsRecent(now))
	assert.False(t, old.IsRecent(now))
}

func TestFolder_WithName(t *testing.T) {
	f := NewFolder("f1", "t1", "Drafts", "", "u1")
	renamed := f.WithName("Final")

	assert.Equal(t, "Drafts", f.Name())
	assert.Equal(t, "Final", renamed.Name())
	assert.Equal(t, "final", renamed.NameKey())
}
