package dto

import "time"

// AssetUpdateAttributes holds the asset fields to change. Absent fields are
// kept; an empty folder_id moves the asset out of its folder.
type AssetUpdateAttributes struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	FolderID    *string   `json:"folder_id,omitempty"`
}

// AssetUpdateData represents asset update data in JSON:API format.
type AssetUpdateData struct {
	Type       string                `json:"type"`
	Attributes AssetUpdateAttributes `json:"attributes"`
}

// AssetUpdateRequest represents a JSON:API request to update an asset.
type AssetUpdateRequest struct {
	Data AssetUpdateData `json:"data"`
}

// AssetFromURLAttributes describes a remote file to import.
type AssetFromURLAttributes struct {
	URL         string   `json:"url"`
	FolderID    string   `json:"folder_id,omitempty"`
	FolderName  string   `json:"folder_name,omitempty"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// AssetFromURLData represents URL import data in JSON:API format.
type AssetFromURLData struct {
	Type       string                 `json:"type"`
	Attributes AssetFromURLAttributes `json:"attributes"`
}

// AssetFromURLRequest represents a JSON:API request to import a remote file.
type AssetFromURLRequest struct {
	Data AssetFromURLData `json:"data"`
}

// SignedURLResponse carries a time-limited download URL.
type SignedURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BlockedUploadResponse is returned when verification refuses an upload.
type BlockedUploadResponse struct {
	Error        string         `json:"error"`
	Verification VerifyResponse `json:"verification"`
}
