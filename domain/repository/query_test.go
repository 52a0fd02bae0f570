package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_CollectsOptions(t *testing.T) {
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	q := Build(
		WithTenantID("t1"),
		WithIDIn([]string{"a", "b"}),
		WithCreatedSince(since),
		WithNewestFirst(),
		WithLimit(5),
		WithOffset(10),
		WithParam("similar_to", []float32{1, 0}),
	)

	conds := q.Conditions()
	require.Len(t, conds, 2)
	assert.Equal(t, "tenant_id = t1", conds[0].String())
	assert.True(t, conds[1].In())

	clauses := q.Clauses()
	require.Len(t, clauses, 1)
	assert.Equal(t, "created_at >= ?", clauses[0].SQL())
	assert.Equal(t, []any{since}, clauses[0].Args())

	orders := q.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "created_at", orders[0].Field())
	assert.False(t, orders[0].Ascending())

	assert.Equal(t, 5, q.LimitValue())
	assert.Equal(t, 10, q.OffsetValue())

	v, ok := q.Param("similar_to")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0}, v)

	_, ok = q.Param("missing")
	assert.False(t, ok)
}

func TestQuery_AccessorsReturnCopies(t *testing.T) {
	q := Build(WithCondition("name", "x"))
	conds := q.Conditions()
	conds[0] = Condition{field: "other"}

	if q.Conditions()[0].Field() != "name" {
		t.Errorf("expected Conditions to return a copy")
	}
}
