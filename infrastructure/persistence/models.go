package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/helixml/damkit/internal/database"
)

// StringList stores a string slice as a JSON array in a text column.
type StringList []string

// Scan implements sql.Scanner.
func (s *StringList) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
	if len(data) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(data, s)
}

// Value implements driver.Valuer.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ProfileModel links a user to a tenant.
type ProfileModel struct {
	ID        string    `gorm:"column:id;type:varchar(64);primaryKey"`
	TenantID  string    `gorm:"column:tenant_id;type:varchar(64);index;not null"`
	Email     string    `gorm:"column:email;type:varchar(255)"`
	FullName  string    `gorm:"column:full_name;type:varchar(255)"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName returns the table name.
func (ProfileModel) TableName() string { return "profiles" }

// FolderModel is a folder row. name_key is lower(trim(name)) and is unique
// per tenant.
type FolderModel struct {
	ID          string    `gorm:"column:id;type:varchar(64);primaryKey"`
	TenantID    string    `gorm:"column:tenant_id;type:varchar(64);not null;uniqueIndex:idx_folders_tenant_name_key,priority:1"`
	Name        string    `gorm:"column:name;type:varchar(255);not null"`
	NameKey     string    `gorm:"column:name_key;type:varchar(255);not null;uniqueIndex:idx_folders_tenant_name_key,priority:2"`
	Description string    `gorm:"column:description;type:text;default:''"`
	CreatedBy   string    `gorm:"column:created_by;type:varchar(64)"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

// TableName returns the table name.
func (FolderModel) TableName() string { return "folders" }

// AssetModel is an asset row.
type AssetModel struct {
	ID          string          `gorm:"column:id;type:varchar(64);primaryKey"`
	TenantID    string          `gorm:"column:tenant_id;type:varchar(64);index;not null"`
	FolderID    *string         `gorm:"column:folder_id;type:varchar(64);index"`
	OwnerID     string          `gorm:"column:owner_id;type:varchar(64)"`
	Name        string          `gorm:"column:name;type:varchar(255);not null"`
	Description string          `gorm:"column:description;type:text;default:''"`
	FilePath    string          `gorm:"column:file_path;type:varchar(512);not null"`
	FileType    string          `gorm:"column:file_type;type:varchar(255)"`
	FileSize    int64           `gorm:"column:file_size"`
	Tags        StringList      `gorm:"column:tags;type:text"`
	Embedding   database.Vector `gorm:"column:embedding;type:text"`
	CreatedAt   time.Time       `gorm:"column:created_at;not null;index"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;not null"`
}

// TableName returns the table name.
func (AssetModel) TableName() string { return "assets" }

// AnalyticsEventModel is an append-only activity row.
type AnalyticsEventModel struct {
	ID        string    `gorm:"column:id;type:varchar(64);primaryKey"`
	TenantID  string    `gorm:"column:tenant_id;type:varchar(64);index;not null"`
	AssetID   *string   `gorm:"column:asset_id;type:varchar(64);index"`
	UserID    string    `gorm:"column:user_id;type:varchar(64)"`
	EventType string    `gorm:"column:event_type;type:varchar(32);index;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
}

// TableName returns the table name.
func (AnalyticsEventModel) TableName() string { return "analytics_events" }

// VerificationResultModel is a stored verification verdict.
type VerificationResultModel struct {
	ID              string          `gorm:"column:id;type:varchar(64);primaryKey"`
	UserID          string          `gorm:"column:user_id;type:varchar(64);index"`
	TenantID        string          `gorm:"column:tenant_id;type:varchar(64);index;not null"`
	ContentType     string          `gorm:"column:content_type;type:varchar(16);not null"`
	ContentURL      string          `gorm:"column:content_url;type:text"`
	ContentText     string          `gorm:"column:content_text;type:text"`
	AnalysisResult  string          `gorm:"column:analysis_result;type:text"`
	ConfidenceScore float64         `gorm:"column:confidence_score"`
	IsFake          bool            `gorm:"column:is_fake"`
	DetectedIssues  StringList      `gorm:"column:detected_issues;type:text"`
	CreatedAt       time.Time       `gorm:"column:created_at;not null"`
}

// TableName returns the table name.
func (VerificationResultModel) TableName() string { return "verification_results" }

// TaskModel is a queued task row.
type TaskModel struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	DedupKey  string          `gorm:"column:dedup_key;type:varchar(255);uniqueIndex;not null"`
	Type      string          `gorm:"column:type;type:varchar(255);index;not null"`
	Payload   string          `gorm:"column:payload;type:text"`
	Priority  int             `gorm:"column:priority;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name.
func (TaskModel) TableName() string { return "tasks" }
