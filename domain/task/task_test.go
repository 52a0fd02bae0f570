package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask_DedupKeyIsStable(t *testing.T) {
	a := NewTask(OperationGenerateEmbedding, PriorityNormal, map[string]any{"asset_id": "a1", "tenant_id": "t1"})
	b := NewTask(OperationGenerateEmbedding, PriorityBackground, map[string]any{"tenant_id": "t1", "asset_id": "a1"})

	assert.Equal(t, "damkit.asset.generate_embedding:asset_id=a1,tenant_id=t1", a.DedupKey())
	assert.Equal(t, a.DedupKey(), b.DedupKey())
	assert.Equal(t, int(PriorityNormal), a.Priority())
}

func TestNewTask_CopiesPayload(t *testing.T) {
	payload := map[string]any{"tenant_id": "t1"}
	tk := NewTask(OperationBackfillEmbeddings, PriorityBackground, payload)
	payload["tenant_id"] = "changed"

	assert.Equal(t, "t1", tk.Payload()["tenant_id"])

	got := tk.Payload()
	got["tenant_id"] = "mutated"
	assert.Equal(t, "t1", tk.Payload()["tenant_id"])
}

func TestPayloadString(t *testing.T) {
	payload := map[string]any{"asset_id": "a1", "count": 3, "empty": ""}

	v, err := PayloadString(payload, "asset_id")
	require.NoError(t, err)
	assert.Equal(t, "a1", v)

	_, err = PayloadString(payload, "missing")
	assert.Error(t, err)
	_, err = PayloadString(payload, "count")
	assert.Error(t, err)
	_, err = PayloadString(payload, "empty")
	assert.Error(t, err)
}

func TestAll_ListsEveryOperation(t *testing.T) {
	assert.ElementsMatch(t, []Operation{OperationGenerateEmbedding, OperationBackfillEmbeddings}, All())
}
