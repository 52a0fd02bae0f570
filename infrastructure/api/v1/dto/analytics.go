package dto

// RecordEventRequest records an asset activity event.
type RecordEventRequest struct {
	AssetID   string `json:"asset_id"`
	EventType string `json:"event_type"`
}
