package persistence

import (
	"encoding/json"
	"log/slog"

	"github.com/helixml/damkit/domain/analytics"
	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/domain/folder"
	"github.com/helixml/damkit/domain/task"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/domain/verification"
	"github.com/helixml/damkit/internal/database"
)

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ProfileMapper maps between tenant.Profile and ProfileModel.
type ProfileMapper struct{}

// ToDomain converts a ProfileModel to a tenant.Profile.
func (ProfileMapper) ToDomain(e ProfileModel) tenant.Profile {
	return tenant.ReconstructProfile(e.ID, e.TenantID, e.Email, e.FullName, e.CreatedAt, e.UpdatedAt)
}

// ToModel converts a tenant.Profile to a ProfileModel.
func (ProfileMapper) ToModel(p tenant.Profile) ProfileModel {
	return ProfileModel{
		ID:        p.ID(),
		TenantID:  p.TenantID(),
		Email:     p.Email(),
		FullName:  p.FullName(),
		CreatedAt: p.CreatedAt(),
		UpdatedAt: p.UpdatedAt(),
	}
}

// FolderMapper maps between folder.Folder and FolderModel.
type FolderMapper struct{}

// ToDomain converts a FolderModel to a folder.Folder.
func (FolderMapper) ToDomain(e FolderModel) folder.Folder {
	return folder.Reconstruct(e.ID, e.TenantID, e.Name, e.Description, e.CreatedBy, e.CreatedAt, e.UpdatedAt)
}

// ToModel converts a folder.Folder to a FolderModel.
func (FolderMapper) ToModel(f folder.Folder) FolderModel {
	return FolderModel{
		ID:          f.ID(),
		TenantID:    f.TenantID(),
		Name:        f.Name(),
		NameKey:     f.NameKey(),
		Description: f.Description(),
		CreatedBy:   f.CreatedBy(),
		CreatedAt:   f.CreatedAt(),
		UpdatedAt:   f.UpdatedAt(),
	}
}

// AssetMapper maps between asset.Asset and AssetModel.
type AssetMapper struct{}

// ToDomain converts an AssetModel to an asset.Asset.
func (AssetMapper) ToDomain(e AssetModel) asset.Asset {
	return asset.Reconstruct(
		e.ID,
		e.TenantID,
		derefString(e.FolderID),
		e.OwnerID,
		e.Name,
		e.Description,
		e.FilePath,
		e.FileType,
		e.FileSize,
		[]string(e.Tags),
		[]float32(e.Embedding),
		e.CreatedAt,
		e.UpdatedAt,
	)
}

// ToModel converts an asset.Asset to an AssetModel.
func (AssetMapper) ToModel(a asset.Asset) AssetModel {
	return AssetModel{
		ID:          a.ID(),
		TenantID:    a.TenantID(),
		FolderID:    optionalString(a.FolderID()),
		OwnerID:     a.OwnerID(),
		Name:        a.Name(),
		Description: a.Description(),
		FilePath:    a.FilePath(),
		FileType:    a.FileType(),
		FileSize:    a.FileSize(),
		Tags:        StringList(a.Tags()),
		Embedding:   database.Vector(a.Embedding()),
		CreatedAt:   a.CreatedAt(),
		UpdatedAt:   a.UpdatedAt(),
	}
}

// AnalyticsEventMapper maps between analytics.Event and AnalyticsEventModel.
type AnalyticsEventMapper struct{}

// ToDomain converts an AnalyticsEventModel to an analytics.Event.
func (AnalyticsEventMapper) ToDomain(e AnalyticsEventModel) analytics.Event {
	return analytics.ReconstructEvent(e.ID, e.TenantID, derefString(e.AssetID), e.UserID, analytics.EventType(e.EventType), e.CreatedAt)
}

// ToModel converts an analytics.Event to an AnalyticsEventModel.
func (AnalyticsEventMapper) ToModel(ev analytics.Event) AnalyticsEventModel {
	return AnalyticsEventModel{
		ID:        ev.ID(),
		TenantID:  ev.TenantID(),
		AssetID:   optionalString(ev.AssetID()),
		UserID:    ev.UserID(),
		EventType: string(ev.Type()),
		CreatedAt: ev.CreatedAt(),
	}
}

// VerificationMapper maps between verification.Result and VerificationResultModel.
type VerificationMapper struct{}

// ToDomain converts a VerificationResultModel to a verification.Result.
func (VerificationMapper) ToDomain(e VerificationResultModel) verification.Result {
	var verdict verification.Verdict
	if len(e.AnalysisResult) > 0 {
		if err := json.Unmarshal([]byte(e.AnalysisResult), &verdict); err != nil {
			slog.Warn("failed to decode stored verdict", slog.String("id", e.ID), slog.Any("error", err))
		}
	}
	verdict.IsFake = e.IsFake
	verdict.ConfidenceScore = e.ConfidenceScore
	verdict.DetectedIssues = []string(e.DetectedIssues)
	return verification.Result{
		ID:          e.ID,
		UserID:      e.UserID,
		TenantID:    e.TenantID,
		ContentType: verification.ContentType(e.ContentType),
		ContentURL:  e.ContentURL,
		ContentText: e.ContentText,
		Verdict:     verdict,
		CreatedAt:   e.CreatedAt,
	}
}

// ToModel converts a verification.Result to a VerificationResultModel.
func (VerificationMapper) ToModel(r verification.Result) VerificationResultModel {
	analysis, err := json.Marshal(r.Verdict)
	if err != nil {
		slog.Warn("failed to encode verdict", slog.String("id", r.ID), slog.Any("error", err))
	}
	return VerificationResultModel{
		ID:              r.ID,
		UserID:          r.UserID,
		TenantID:        r.TenantID,
		ContentType:     string(r.ContentType),
		ContentURL:      r.ContentURL,
		ContentText:     r.ContentText,
		AnalysisResult:  string(analysis),
		ConfidenceScore: r.Verdict.ConfidenceScore,
		IsFake:          r.Verdict.IsFake,
		DetectedIssues:  StringList(r.Verdict.DetectedIssues),
		CreatedAt:       r.CreatedAt,
	}
}

// TaskMapper maps between task.Task and TaskModel.
type TaskMapper struct{}

// ToDomain converts a TaskModel to a task.Task.
func (TaskMapper) ToDomain(e TaskModel) task.Task {
	var payload map[string]any
	if len(e.Payload) > 0 {
		if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
			slog.Warn("failed to decode task payload", slog.Int64("task_id", e.ID), slog.Any("error", err))
		}
	}
	return task.NewTaskWithID(e.ID, e.DedupKey, task.Operation(e.Type), e.Priority, payload, e.CreatedAt, e.UpdatedAt)
}

// ToModel converts a task.Task to a TaskModel.
func (TaskMapper) ToModel(t task.Task) TaskModel {
	payload, err := t.PayloadJSON()
	if err != nil {
		slog.Warn("failed to encode task payload", slog.String("dedup_key", t.DedupKey()), slog.Any("error", err))
	}
	return TaskModel{
		ID:        t.ID(),
		DedupKey:  t.DedupKey(),
		Type:      t.Operation().String(),
		Payload:   string(payload),
		Priority:  t.Priority(),
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}
}
