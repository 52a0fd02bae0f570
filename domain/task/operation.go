package task

// Operation represents the type of task operation.
type Operation string

// Operation values for the task queue.
const (
	// OperationGenerateEmbedding captions and embeds one image asset.
	// Payload: asset_id, tenant_id.
	OperationGenerateEmbedding Operation = "damkit.asset.generate_embedding"

	// OperationBackfillEmbeddings embeds every image asset of a tenant that
	// has none yet. Payload: tenant_id.
	OperationBackfillEmbeddings Operation = "damkit.tenant.backfill_embeddings"
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	return string(o)
}

// All returns every operation the worker must have a handler for.
func All() []Operation {
	return []Operation{OperationGenerateEmbedding, OperationBackfillEmbeddings}
}
