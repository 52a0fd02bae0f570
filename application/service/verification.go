package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/domain/verification"
	"github.com/helixml/damkit/infrastructure/provider"
	"github.com/helixml/damkit/internal/prompts"
)

// ErrVerificationUnavailable is returned when no vision model is configured.
var ErrVerificationUnavailable = errors.New("no vision provider configured")

// verdictSchema is the JSON object the model must return.
var verdictSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"is_fake":          map[string]any{"type": "boolean"},
		"confidence_score": map[string]any{"type": "number"},
		"detected_issues": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"analysis_summary": map[string]any{"type": "string"},
		"recommendations":  map[string]any{"type": "string"},
	},
	"required": []string{"is_fake", "confidence_score", "detected_issues", "analysis_summary", "recommendations"},
}

// Verification asks a vision model for an authenticity and safety verdict.
type Verification struct {
	results verification.Store
	model   provider.TextGenerator
	prompts prompts.Set
	logger  *slog.Logger
}

// NewVerification creates a new Verification service.
func NewVerification(results verification.Store, model provider.TextGenerator, set prompts.Set, logger *slog.Logger) *Verification {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verification{
		results: results,
		model:   model,
		prompts: set,
		logger:  logger,
	}
}

// Verify analyses the content, persists the verdict, and returns it.
// Provider failures are returned without retrying.
func (s *Verification) Verify(ctx context.Context, p tenant.Principal, req verification.Request) (verification.Result, error) {
	if err := req.Validate(); err != nil {
		return verification.Result{}, err
	}
	if s.model == nil {
		return verification.Result{}, ErrVerificationUnavailable
	}

	userTurn, err := s.userTurn(req)
	if err != nil {
		return verification.Result{}, err
	}

	cfg := s.prompts.Verification
	chatReq := provider.NewChatCompletionRequest([]provider.Message{
		provider.SystemMessage(cfg.System),
		userTurn,
	}).
		WithTemperature(cfg.Temperature).
		WithMaxTokens(cfg.MaxTokens).
		WithResponseSchema("verification_verdict", verdictSchema)

	resp, err := s.model.ChatCompletion(ctx, chatReq)
	if err != nil {
		return verification.Result{}, fmt.Errorf("verify content: %w", err)
	}

	verdict, err := ParseVerdict(resp.Content())
	if err != nil {
		return verification.Result{}, err
	}

	result := verification.Result{
		ID:          uuid.NewString(),
		UserID:      p.UserID(),
		TenantID:    p.TenantID(),
		ContentType: req.ContentType,
		ContentURL:  req.ContentURL,
		ContentText: req.ContentText,
		Verdict:     verdict,
		CreatedAt:   time.Now().UTC(),
	}

	saved, err := s.results.Save(ctx, result)
	if err != nil {
		return verification.Result{}, fmt.Errorf("save verification: %w", err)
	}

	s.logger.Info("content verified",
		slog.String("tenant_id", p.TenantID()),
		slog.String("content_type", string(req.ContentType)),
		slog.Bool("is_fake", verdict.IsFake),
		slog.String("decision", string(verification.Evaluate(verdict))),
	)
	return saved, nil
}

// VerifyBytes verifies raw image bytes before they are stored.
func (s *Verification) VerifyBytes(ctx context.Context, p tenant.Principal, contentType string, data []byte) (verification.Result, error) {
	img := provider.Image{MIMEType: contentType, Data: data}
	return s.Verify(ctx, p, verification.Request{
		ContentType: verification.ContentImage,
		ContentURL:  img.DataURL(),
	})
}

// History returns the tenant's most recent verifications, newest first.
func (s *Verification) History(ctx context.Context, tenantID string, limit int) ([]verification.Result, error) {
	results, err := s.results.Find(ctx,
		repository.WithTenantID(tenantID),
		repository.WithNewestFirst(),
		repository.WithLimit(clamp(limit, DefaultListLimit, MaxListLimit)),
	)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	return results, nil
}

func (s *Verification) userTurn(req verification.Request) (provider.Message, error) {
	if req.ContentType == verification.ContentImage {
		inline, err := verification.ParseDataURL(req.ContentURL)
		if err != nil {
			return provider.Message{}, err
		}
		return provider.UserImageMessage(s.prompts.Verification.Image, provider.Image{
			MIMEType: inline.MIMEType,
			Data:     inline.Data,
		}), nil
	}
	return provider.UserMessage(s.prompts.VerificationText(string(req.ContentType), req.ContentText)), nil
}

// ParseVerdict decodes the model's JSON verdict, tolerating a fenced code block.
func ParseVerdict(content string) (verification.Verdict, error) {
	text := strings.TrimSpace(content)
	if rest, ok := strings.CutPrefix(text, "```"); ok {
		rest = strings.TrimPrefix(rest, "json")
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), "```"))
	}

	var v verification.Verdict
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return verification.Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}
	if v.DetectedIssues == nil {
		v.DetectedIssues = []string{}
	}
	return v, nil
}
