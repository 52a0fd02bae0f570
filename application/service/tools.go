package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/helixml/damkit/domain/folder"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/infrastructure/provider"
	"github.com/helixml/damkit/internal/prompts"
)

// Tool names exposed to models and MCP clients.
const (
	ToolCreateFolder        = "create_folder"
	ToolListFolders         = "list_folders"
	ToolUploadAssetFromURL  = "upload_asset_from_url"
	ToolUploadSelectedAsset = "upload_selected_asset"
	ToolListAssets          = "list_assets"
	ToolSearchAssets        = "search_assets"
	ToolBackfillEmbeddings  = "backfill_embeddings"
)

// ErrUnknownTool is returned for a tool name outside the catalogue.
var ErrUnknownTool = errors.New("unknown tool")

func stringProp(description string) map[string]any {
	p := map[string]any{"type": "string"}
	if description != "" {
		p["description"] = description
	}
	return p
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var tagsProp = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

var toolParameters = map[string]map[string]any{
	ToolCreateFolder: objectSchema(map[string]any{
		"name":        stringProp("Folder name - extract from user message or ask for clarification if not provided"),
		"description": stringProp("Optional description"),
	}, "name"),
	ToolListFolders: objectSchema(map[string]any{}),
	ToolUploadAssetFromURL: objectSchema(map[string]any{
		"url":         stringProp("Public URL of the file"),
		"folder_id":   stringProp("Destination folder id"),
		"folder_name": stringProp("Alternative to folder_id: destination folder name"),
		"name":        stringProp("Optional desired file name, with or without extension"),
		"description": stringProp(""),
		"tags":        tagsProp,
	}, "url"),
	ToolUploadSelectedAsset: objectSchema(map[string]any{
		"temp_file_path": stringProp("Temporary file path in storage (provided in system prompt when file is attached)"),
		"folder_id":      stringProp("Destination folder id"),
		"folder_name":    stringProp("Destination folder name - infer from context or file type if user doesn't specify (e.g., 'Documents' for PDFs, 'Images' for photos)"),
		"name":           stringProp("Optional desired file name"),
		"description":    stringProp("Extract any description or context from user message"),
		"tags":           tagsProp,
	}, "temp_file_path"),
	ToolListAssets: objectSchema(map[string]any{
		"folder_id":   stringProp("Optional: Filter assets by folder ID"),
		"folder_name": stringProp("Optional: Filter assets by folder name"),
		"limit":       map[string]any{"type": "number", "description": "Maximum number of results to return (1-100, default: 20)"},
	}),
	ToolSearchAssets: objectSchema(map[string]any{
		"query": stringProp("Search query (e.g., 'logo', 'pdf documents', 'images from last month')"),
		"limit": map[string]any{"type": "number", "description": "Maximum number of results to return (1-50, default: 10)"},
	}, "query"),
	ToolBackfillEmbeddings: objectSchema(map[string]any{}),
}

var toolOrder = []string{
	ToolCreateFolder,
	ToolListFolders,
	ToolUploadAssetFromURL,
	ToolUploadSelectedAsset,
	ToolListAssets,
	ToolSearchAssets,
	ToolBackfillEmbeddings,
}

type toolArgs struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	TempFilePath string   `json:"temp_file_path"`
	FolderID     string   `json:"folder_id"`
	FolderName   string   `json:"folder_name"`
	Tags         []string `json:"tags"`
	Query        string   `json:"query"`
	Limit        float64  `json:"limit"`
}

// Tools runs the assistant's tool catalogue against the services.
type Tools struct {
	folders    *Folder
	assets     *Asset
	embeddings *Embedding
	prompts    prompts.Set
}

// NewTools creates the tool catalogue.
func NewTools(folders *Folder, assets *Asset, embeddings *Embedding, set prompts.Set) *Tools {
	return &Tools{
		folders:    folders,
		assets:     assets,
		embeddings: embeddings,
		prompts:    set,
	}
}

// Definitions returns every tool with its description and JSON schema.
func (t *Tools) Definitions() []provider.Tool {
	defs := make([]provider.Tool, len(toolOrder))
	for i, name := range toolOrder {
		defs[i] = provider.Tool{
			Name:        name,
			Description: t.prompts.ToolDescription(name),
			Parameters:  toolParameters[name],
		}
	}
	return defs
}

// Execute runs a tool and always returns a JSON document: the result, or
// {"error": ...} describing why the call failed.
func (t *Tools) Execute(ctx context.Context, p tenant.Principal, name, arguments string) string {
	result, err := t.Call(ctx, p, name, arguments)
	if err != nil {
		msg := "Tool execution failed: " + UserMessage(err)
		if errors.Is(err, ErrUnknownTool) {
			msg = "Unknown tool: " + name
		}
		result = map[string]any{"error": msg}
	}
	out, err := json.Marshal(result)
	if err != nil {
		return `{"error":"Tool execution failed: encode result"}`
	}
	return string(out)
}

// Call runs a tool and returns its result value. Malformed arguments are
// treated as empty.
func (t *Tools) Call(ctx context.Context, p tenant.Principal, name, arguments string) (any, error) {
	var args toolArgs
	if arguments != "" {
		_ = json.Unmarshal([]byte(arguments), &args)
	}

	switch name {
	case ToolCreateFolder:
		return t.createFolder(ctx, p, args)
	case ToolListFolders:
		return t.listFolders(ctx, p)
	case ToolUploadAssetFromURL:
		return t.uploadFromURL(ctx, p, args)
	case ToolUploadSelectedAsset:
		return t.uploadSelected(ctx, p, args)
	case ToolListAssets:
		return t.listAssets(ctx, p, args)
	case ToolSearchAssets:
		return t.searchAssets(ctx, p, args)
	case ToolBackfillEmbeddings:
		return t.backfill(ctx, p)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

type folderRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (t *Tools) createFolder(ctx context.Context, p tenant.Principal, args toolArgs) (any, error) {
	f, err := t.folders.Create(ctx, p, args.Name, args.Description)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"folder": folderRef{ID: f.ID(), Name: f.Name(), Description: f.Description()},
	}, nil
}

type folderItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	AssetCount      int64  `json:"asset_count"`
	CreatedAt       string `json:"created_at"`
	CreatedRecently bool   `json:"created_recently"`
}

func (t *Tools) listFolders(ctx context.Context, p tenant.Principal) (any, error) {
	listing, err := t.folders.List(ctx, p.TenantID())
	if err != nil {
		return nil, err
	}
	return FolderListPayload(listing, time.Now()), nil
}

// FolderListPayload renders a folder listing the way the list_folders tool
// reports it.
func FolderListPayload(listing FolderListing, now time.Time) map[string]any {
	items := make([]folderItem, len(listing.Folders))
	for i, s := range listing.Folders {
		description := s.Folder.Description()
		if description == "" {
			description = "No description"
		}
		items[i] = folderItem{
			ID:              s.Folder.ID(),
			Name:            s.Folder.Name(),
			Description:     description,
			AssetCount:      s.AssetCount,
			CreatedAt:       s.Folder.CreatedAt().Format("1/2/2006"),
			CreatedRecently: s.Folder.IsRecent(now),
		}
	}
	return map[string]any{
		"message":      listing.Message,
		"folders":      items,
		"total_count":  listing.TotalCount,
		"total_assets": listing.TotalAssets,
	}
}

type uploadedAsset struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
	FolderID string `json:"folder_id"`
}

func (t *Tools) uploadFromURL(ctx context.Context, p tenant.Principal, args toolArgs) (any, error) {
	a, err := t.assets.UploadFromURL(ctx, p, URLParams{
		URL:         args.URL,
		FolderID:    args.FolderID,
		FolderName:  args.FolderName,
		Name:        args.Name,
		Description: args.Description,
		Tags:        args.Tags,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"asset": uploadedAsset{
		ID: a.ID(), Name: a.Name(), FileType: a.FileType(), FileSize: a.FileSize(), FolderID: a.FolderID(),
	}}, nil
}

func (t *Tools) uploadSelected(ctx context.Context, p tenant.Principal, args toolArgs) (any, error) {
	a, err := t.assets.PlaceStaged(ctx, p, StagedParams{
		TempPath:    args.TempFilePath,
		FolderID:    args.FolderID,
		FolderName:  args.FolderName,
		Name:        args.Name,
		Description: args.Description,
		Tags:        args.Tags,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"asset": uploadedAsset{
		ID: a.ID(), Name: a.Name(), FileType: a.FileType(), FileSize: a.FileSize(), FolderID: a.FolderID(),
	}}, nil
}

type assetItem struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	FileType    string     `json:"file_type"`
	FileSize    int64      `json:"file_size"`
	FileSizeMB  string     `json:"file_size_mb"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"created_at"`
	Folder      *folderRef `json:"folder"`
}

func (t *Tools) listAssets(ctx context.Context, p tenant.Principal, args toolArgs) (any, error) {
	listing, err := t.assets.List(ctx, p.TenantID(), ListParams{
		FolderID:   args.FolderID,
		FolderName: args.FolderName,
		Limit:      int(args.Limit),
	})
	if err != nil {
		return nil, err
	}
	return AssetListPayload(listing), nil
}

// AssetListPayload renders an asset listing the way the list_assets tool
// reports it.
func AssetListPayload(listing AssetListing) map[string]any {
	items := make([]assetItem, len(listing.Assets))
	for i, v := range listing.Assets {
		a := v.Asset
		item := assetItem{
			ID:          a.ID(),
			Name:        a.Name(),
			Description: describe(a.Description()),
			FileType:    a.FileType(),
			FileSize:    a.FileSize(),
			FileSizeMB:  strconv.FormatFloat(a.SizeMB(), 'f', 2, 64),
			Tags:        a.Tags(),
			CreatedAt:   a.CreatedAt(),
		}
		if item.Tags == nil {
			item.Tags = []string{}
		}
		if v.Folder != nil {
			item.Folder = &folderRef{ID: v.Folder.ID(), Name: v.Folder.Name()}
		}
		items[i] = item
	}
	return map[string]any{
		"assets":        items,
		"total_count":   len(items),
		"showing_limit": listing.ShowingLimit,
	}
}

type searchItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	FileType    string    `json:"file_type"`
	FileSize    string    `json:"file_size"`
	Tags        []string  `json:"tags"`
	Similarity  string    `json:"similarity,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (t *Tools) searchAssets(ctx context.Context, p tenant.Principal, args toolArgs) (any, error) {
	result, err := t.assets.Search(ctx, p.TenantID(), args.Query, int(args.Limit))
	if err != nil {
		return nil, err
	}
	return SearchPayload(result), nil
}

// SearchPayload renders a search result the way the search_assets tool
// reports it.
func SearchPayload(result SearchResult) map[string]any {
	items := make([]searchItem, len(result.Hits))
	for i, h := range result.Hits {
		a := h.Asset
		item := searchItem{
			ID:          a.ID(),
			Name:        a.Name(),
			Description: describe(a.Description()),
			FileType:    a.FileType(),
			FileSize:    strconv.FormatFloat(float64(a.FileSize())/1024, 'f', 1, 64) + " KB",
			Tags:        a.Tags(),
			CreatedAt:   a.CreatedAt(),
		}
		if item.Tags == nil {
			item.Tags = []string{}
		}
		if h.Similarity != nil {
			item.Similarity = strconv.FormatFloat(*h.Similarity, 'f', 3, 64)
		}
		items[i] = item
	}
	return map[string]any{
		"message": result.Message,
		"assets":  items,
	}
}

func (t *Tools) backfill(ctx context.Context, p tenant.Principal) (any, error) {
	result, err := t.embeddings.Backfill(ctx, p.TenantID())
	if err != nil {
		return nil, err
	}
	message := result.Message
	if message == "" {
		message = "Embeddings generated successfully"
	}
	return map[string]any{"message": message, "details": result}, nil
}

func describe(s string) string {
	if s == "" {
		return "No description"
	}
	return s
}

// DuplicatePayload renders a duplicate folder error with its suggestions.
func DuplicatePayload(dup *folder.DuplicateError) map[string]any {
	return map[string]any{
		"error":       dup.Error(),
		"suggestions": dup.Suggestions,
	}
}
