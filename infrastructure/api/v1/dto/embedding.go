package dto

// GenerateEmbeddingRequest asks for one asset to be captioned and embedded.
type GenerateEmbeddingRequest struct {
	AssetID string `json:"assetId"`
}

// GenerateEmbeddingResponse reports a generation.
type GenerateEmbeddingResponse struct {
	Success bool   `json:"success"`
	AssetID string `json:"assetId,omitempty"`
	Message string `json:"message,omitempty"`
}

// BackfillResponse reports a backfill run.
type BackfillResponse struct {
	Success   bool   `json:"success"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Message   string `json:"message"`
}
