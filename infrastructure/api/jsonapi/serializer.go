package jsonapi

import (
	"strconv"

	"github.com/helixml/damkit/application/service"
	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/domain/folder"
	"github.com/helixml/damkit/domain/task"
	"github.com/helixml/damkit/domain/verification"
)

// Resource type names.
const (
	TypeFolder       = "folder"
	TypeAsset        = "asset"
	TypeTask         = "task"
	TypeVerification = "verification"
)

// FolderAttributes represents folder attributes in JSON:API format.
type FolderAttributes struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	AssetCount  *int64    `json:"asset_count,omitempty"`
	CreatedAt   *DateTime `json:"created_at,omitempty"`
	UpdatedAt   *DateTime `json:"updated_at,omitempty"`
}

// AssetAttributes represents asset attributes in JSON:API format.
type AssetAttributes struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	FileType     string    `json:"file_type"`
	FileSize     int64     `json:"file_size"`
	Tags         []string  `json:"tags"`
	OwnerID      string    `json:"owner_id"`
	HasEmbedding bool      `json:"has_embedding"`
	Similarity   *float64  `json:"similarity,omitempty"`
	CreatedAt    *DateTime `json:"created_at,omitempty"`
	UpdatedAt    *DateTime `json:"updated_at,omitempty"`
}

// TaskAttributes represents a queued task.
type TaskAttributes struct {
	Type      string         `json:"type"`
	Priority  int            `json:"priority"`
	Payload   map[string]any `json:"payload"`
	CreatedAt *DateTime      `json:"created_at,omitempty"`
}

// VerificationAttributes represents a stored verification.
type VerificationAttributes struct {
	ContentType verification.ContentType `json:"content_type"`
	ContentURL  string                   `json:"content_url,omitempty"`
	Verdict     verification.Verdict     `json:"analysis_result"`
	Decision    verification.Decision    `json:"decision"`
	CreatedAt   *DateTime                `json:"created_at,omitempty"`
}

// Serializer converts domain values to JSON:API resources.
type Serializer struct{}

// NewSerializer creates a new Serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// FolderResource converts a folder to a resource. count may be nil when the
// asset count is not known.
func (s *Serializer) FolderResource(f folder.Folder, count *int64) *Resource {
	return NewResource(TypeFolder, f.ID(), FolderAttributes{
		Name:        f.Name(),
		Description: f.Description(),
		CreatedBy:   f.CreatedBy(),
		AssetCount:  count,
		CreatedAt:   NewDateTime(f.CreatedAt()).Ptr(),
		UpdatedAt:   NewDateTime(f.UpdatedAt()).Ptr(),
	})
}

// FolderSummaryResources converts a folder listing.
func (s *Serializer) FolderSummaryResources(summaries []folder.Summary) []*Resource {
	result := make([]*Resource, len(summaries))
	for i, sum := range summaries {
		count := sum.AssetCount
		result[i] = s.FolderResource(sum.Folder, &count)
	}
	return result
}

// AssetResource converts an asset to a resource with its folder relationship.
func (s *Serializer) AssetResource(a asset.Asset) *Resource {
	r := NewResource(TypeAsset, a.ID(), s.assetAttributes(a))
	r.Relationships = Relationships{"folder": folderRelationship(a.FolderID())}
	return r
}

func (s *Serializer) assetAttributes(a asset.Asset) AssetAttributes {
	tags := a.Tags()
	if tags == nil {
		tags = []string{}
	}
	return AssetAttributes{
		Name:         a.Name(),
		Description:  a.Description(),
		FileType:     a.FileType(),
		FileSize:     a.FileSize(),
		Tags:         tags,
		OwnerID:      a.OwnerID(),
		HasEmbedding: a.HasEmbedding(),
		CreatedAt:    NewDateTime(a.CreatedAt()).Ptr(),
		UpdatedAt:    NewDateTime(a.UpdatedAt()).Ptr(),
	}
}

func folderRelationship(folderID string) *Relationship {
	if folderID == "" {
		return &Relationship{Data: nil}
	}
	return &Relationship{Data: ResourceIdentifier{Type: TypeFolder, ID: folderID}}
}

// AssetViewResources converts listed assets, including their folders.
func (s *Serializer) AssetViewResources(views []service.AssetView) ([]*Resource, []any) {
	resources := make([]*Resource, len(views))
	seen := map[string]bool{}
	var included []any
	for i, v := range views {
		resources[i] = s.AssetResource(v.Asset)
		if v.Folder != nil && !seen[v.Folder.ID()] {
			seen[v.Folder.ID()] = true
			included = append(included, s.FolderResource(*v.Folder, nil))
		}
	}
	return resources, included
}

// SearchHitResources converts search hits, carrying similarity scores.
func (s *Serializer) SearchHitResources(hits []service.SearchHit) []*Resource {
	resources := make([]*Resource, len(hits))
	for i, h := range hits {
		attrs := s.assetAttributes(h.Asset)
		attrs.Similarity = h.Similarity
		r := NewResource(TypeAsset, h.Asset.ID(), attrs)
		r.Relationships = Relationships{"folder": folderRelationship(h.Asset.FolderID())}
		resources[i] = r
	}
	return resources
}

// TaskResource converts a task to a resource.
func (s *Serializer) TaskResource(t task.Task) *Resource {
	return NewResource(TypeTask, strconv.FormatInt(t.ID(), 10), TaskAttributes{
		Type:      t.Operation().String(),
		Priority:  t.Priority(),
		Payload:   t.Payload(),
		CreatedAt: NewDateTime(t.CreatedAt()).Ptr(),
	})
}

// TaskResources converts tasks.
func (s *Serializer) TaskResources(tasks []task.Task) []*Resource {
	result := make([]*Resource, len(tasks))
	for i, t := range tasks {
		result[i] = s.TaskResource(t)
	}
	return result
}

// VerificationResource converts a verification result.
func (s *Serializer) VerificationResource(r verification.Result) *Resource {
	return NewResource(TypeVerification, r.ID, VerificationAttributes{
		ContentType: r.ContentType,
		ContentURL:  r.ContentURL,
		Verdict:     r.Verdict,
		Decision:    verification.Evaluate(r.Verdict),
		CreatedAt:   NewDateTime(r.CreatedAt).Ptr(),
	})
}
