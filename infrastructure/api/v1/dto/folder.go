package dto

// FolderCreateAttributes holds the fields of a new folder.
type FolderCreateAttributes struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// FolderCreateData represents folder creation data in JSON:API format.
type FolderCreateData struct {
	Type       string                 `json:"type"`
	Attributes FolderCreateAttributes `json:"attributes"`
}

// FolderCreateRequest represents a JSON:API request to create a folder.
type FolderCreateRequest struct {
	Data FolderCreateData `json:"data"`
}

// FolderUpdateAttributes holds the folder fields to change. Absent fields
// are kept.
type FolderUpdateAttributes struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// FolderUpdateData represents folder update data in JSON:API format.
type FolderUpdateData struct {
	Type       string                 `json:"type"`
	Attributes FolderUpdateAttributes `json:"attributes"`
}

// FolderUpdateRequest represents a JSON:API request to update a folder.
type FolderUpdateRequest struct {
	Data FolderUpdateData `json:"data"`
}
