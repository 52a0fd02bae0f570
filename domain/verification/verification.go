// Package verification provides content verification requests, verdicts,
// and the upload blocking policy.
package verification

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/helixml/damkit/domain/repository"
)

// ContentType is the kind of content submitted for verification.
type ContentType string

// ContentType values.
const (
	ContentImage ContentType = "image"
	ContentText  ContentType = "text"
	ContentURL   ContentType = "url"
)

// Request is a verification submission.
type Request struct {
	ContentType ContentType
	ContentURL  string
	ContentText string
}

// Validate checks that the request carries the payload its type needs.
func (r Request) Validate() error {
	switch r.ContentType {
	case ContentImage:
		if strings.TrimSpace(r.ContentURL) == "" {
			return fmt.Errorf("%w: image content requires contentUrl", repository.ErrValidation)
		}
		if _, err := ParseDataURL(r.ContentURL); err != nil {
			return err
		}
	case ContentText, ContentURL:
		if strings.TrimSpace(r.ContentText) == "" {
			return fmt.Errorf("%w: %s content requires contentText", repository.ErrValidation, r.ContentType)
		}
	default:
		return fmt.Errorf("%w: unsupported content type %q", repository.ErrValidation, r.ContentType)
	}
	return nil
}

// InlineData is decoded base64 content from a data URL.
type InlineData struct {
	MIMEType string
	Data     []byte
}

// ParseDataURL decodes "data:<mime>;base64,<payload>".
func ParseDataURL(s string) (InlineData, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return InlineData{}, fmt.Errorf("%w: contentUrl must be a data URL", repository.ErrValidation)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return InlineData{}, fmt.Errorf("%w: malformed data URL", repository.ErrValidation)
	}
	mimeType, encoding, _ := strings.Cut(header, ";")
	if encoding != "base64" {
		return InlineData{}, fmt.Errorf("%w: data URL must be base64 encoded", repository.ErrValidation)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return InlineData{}, fmt.Errorf("%w: decode data URL: %w", repository.ErrValidation, err)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return InlineData{MIMEType: mimeType, Data: data}, nil
}

// Verdict is the model's structured assessment.
type Verdict struct {
	IsFake          bool     `json:"is_fake"`
	ConfidenceScore float64  `json:"confidence_score"`
	DetectedIssues  []string `json:"detected_issues"`
	AnalysisSummary string   `json:"analysis_summary"`
	Recommendations string   `json:"recommendations"`
}

// Result is a persisted verification.
type Result struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	TenantID    string      `json:"tenant_id"`
	ContentType ContentType `json:"content_type"`
	ContentURL  string      `json:"content_url,omitempty"`
	ContentText string      `json:"content_text,omitempty"`
	Verdict     Verdict     `json:"analysis_result"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Store persists verification results.
type Store interface {
	Save(ctx context.Context, r Result) (Result, error)
	Find(ctx context.Context, options ...repository.Option) ([]Result, error)
}
