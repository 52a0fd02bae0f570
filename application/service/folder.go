package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/domain/folder"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/domain/tenant"
)

// EmptyFolderListMessage is returned when a tenant has no folders.
const EmptyFolderListMessage = "No folders found. You can create your first folder by saying 'Create folder called [FolderName]'."

// ErrFolderNotEmpty is returned when deleting a folder that still holds assets.
var ErrFolderNotEmpty = fmt.Errorf("%w: folder is not empty", repository.ErrConflict)

// FolderListing is the folder overview for a tenant.
type FolderListing struct {
	Message     string
	Folders     []folder.Summary
	TotalCount  int
	TotalAssets int64
	RecentCount int
}

// FolderUpdate holds the fields to change on a folder. Nil fields are kept.
type FolderUpdate struct {
	Name        *string
	Description *string
}

// Folder manages folders with case-insensitive unique names per tenant.
type Folder struct {
	folders folder.Store
	assets  asset.Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewFolder creates a new Folder service.
func NewFolder(folders folder.Store, assets asset.Store, logger *slog.Logger) *Folder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Folder{
		folders: folders,
		assets:  assets,
		logger:  logger,
		now:     time.Now,
	}
}

// CheckDuplicate returns the tenant's folder whose name matches name
// case-insensitively. The bool is false when there is none.
func (s *Folder) CheckDuplicate(ctx context.Context, tenantID, name string) (folder.Folder, bool, error) {
	existing, err := s.folders.FindOne(ctx, repository.WithTenantID(tenantID), folder.WithNameKey(name))
	if errors.Is(err, repository.ErrNotFound) {
		return folder.Folder{}, false, nil
	}
	if err != nil {
		return folder.Folder{}, false, fmt.Errorf("check duplicate folder: %w", err)
	}
	return existing, true, nil
}

// Create validates the name, rejects duplicates, and inserts the folder.
func (s *Folder) Create(ctx context.Context, p tenant.Principal, name, description string) (folder.Folder, error) {
	trimmed, err := folder.ValidateName(name)
	if err != nil {
		return folder.Folder{}, err
	}

	existing, found, err := s.CheckDuplicate(ctx, p.TenantID(), trimmed)
	if err != nil {
		return folder.Folder{}, err
	}
	if found {
		return folder.Folder{}, folder.NewDuplicateError(trimmed, existing.Name(), s.now().Year())
	}

	f := folder.NewFolder(uuid.NewString(), p.TenantID(), trimmed, description, p.UserID())
	created, err := s.folders.Create(ctx, f)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return folder.Folder{}, s.raceDuplicate(ctx, p.TenantID(), trimmed)
		}
		return folder.Folder{}, fmt.Errorf("create folder: %w", err)
	}

	s.logger.Info("folder created",
		slog.String("tenant_id", p.TenantID()),
		slog.String("folder_id", created.ID()),
		slog.String("name", created.Name()),
	)
	return created, nil
}

// raceDuplicate builds the duplicate error after the unique index rejected
// a write that passed the pre-check.
func (s *Folder) raceDuplicate(ctx context.Context, tenantID, name string) error {
	existingName := name
	if existing, found, err := s.CheckDuplicate(ctx, tenantID, name); err == nil && found {
		existingName = existing.Name()
	}
	return folder.NewDuplicateError(name, existingName, s.now().Year())
}

// Get returns one folder of the tenant.
func (s *Folder) Get(ctx context.Context, tenantID, id string) (folder.Folder, error) {
	f, err := s.folders.FindOne(ctx, repository.WithTenantID(tenantID), repository.WithID(id))
	if err != nil {
		return folder.Folder{}, fmt.Errorf("get folder %s: %w", id, err)
	}
	return f, nil
}

// FindByName returns the tenant's folder with a case-insensitively equal name.
func (s *Folder) FindByName(ctx context.Context, tenantID, name string) (folder.Folder, error) {
	f, found, err := s.CheckDuplicate(ctx, tenantID, name)
	if err != nil {
		return folder.Folder{}, err
	}
	if !found {
		return folder.Folder{}, fmt.Errorf("%w: folder %q", repository.ErrNotFound, name)
	}
	return f, nil
}

// List returns the tenant's folders newest first with asset counts and a
// summary message.
func (s *Folder) List(ctx context.Context, tenantID string) (FolderListing, error) {
	folders, err := s.folders.Find(ctx, repository.WithTenantID(tenantID), repository.WithNewestFirst())
	if err != nil {
		return FolderListing{}, fmt.Errorf("list folders: %w", err)
	}
	if len(folders) == 0 {
		return FolderListing{Message: EmptyFolderListMessage, Folders: []folder.Summary{}}, nil
	}

	counts, err := s.folders.AssetCounts(ctx, tenantID)
	if err != nil {
		return FolderListing{}, err
	}

	now := s.now()
	listing := FolderListing{
		Folders:    make([]folder.Summary, len(folders)),
		TotalCount: len(folders),
	}
	for i, f := range folders {
		n := counts[f.ID()]
		listing.Folders[i] = folder.Summary{Folder: f, AssetCount: n}
		listing.TotalAssets += n
		if f.IsRecent(now) {
			listing.RecentCount++
		}
	}

	listing.Message = fmt.Sprintf("Found %d folder(s) containing %d asset(s) total.", listing.TotalCount, listing.TotalAssets)
	if listing.RecentCount > 0 {
		listing.Message += fmt.Sprintf(" %d folder(s) created recently.", listing.RecentCount)
	}
	return listing, nil
}

// Update renames or redescribes a folder. Renames follow the same
// duplicate rules as Create.
func (s *Folder) Update(ctx context.Context, tenantID, id string, update FolderUpdate) (folder.Folder, error) {
	f, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return folder.Folder{}, err
	}

	if update.Name != nil {
		name, err := folder.ValidateName(*update.Name)
		if err != nil {
			return folder.Folder{}, err
		}
		if folder.NameKey(name) != f.NameKey() {
			existing, found, err := s.CheckDuplicate(ctx, tenantID, name)
			if err != nil {
				return folder.Folder{}, err
			}
			if found && existing.ID() != f.ID() {
				return folder.Folder{}, folder.NewDuplicateError(name, existing.Name(), s.now().Year())
			}
		}
		f = f.WithName(name)
	}
	if update.Description != nil {
		f = f.WithDescription(*update.Description)
	}

	saved, err := s.folders.Save(ctx, f)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return folder.Folder{}, s.raceDuplicate(ctx, tenantID, f.Name())
		}
		return folder.Folder{}, fmt.Errorf("update folder: %w", err)
	}
	return saved, nil
}

// Delete removes a folder. A folder with assets is refused unless unfile
// is set, in which case its assets are moved to no folder first.
func (s *Folder) Delete(ctx context.Context, tenantID, id string, unfile bool) error {
	f, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	n, err := s.assets.Count(ctx, repository.WithTenantID(tenantID), repository.WithFolderID(id))
	if err != nil {
		return fmt.Errorf("count folder assets: %w", err)
	}
	if n > 0 {
		if !unfile {
			return ErrFolderNotEmpty
		}
		if err := s.assets.Unfile(ctx, tenantID, id); err != nil {
			return err
		}
	}

	if err := s.folders.Delete(ctx, f); err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	s.logger.Info("folder deleted",
		slog.String("tenant_id", tenantID),
		slog.String("folder_id", id),
		slog.Int64("unfiled_assets", n),
	)
	return nil
}
