package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	MaxTokens      int
	Timeout        time.Duration
	// MaxRetries of zero selects the default; a negative value disables retries.
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
	Transport     http.RoundTripper
}

// GeminiProvider implements chat, vision, and embeddings against the Gemini API.
type GeminiProvider struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	maxTokens      int
	maxRetries     int
	initialDelay   time.Duration
	backoffFactor  float64
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	if cfg.Timeout > 0 || cfg.Transport != nil {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	maxRetries := cfg.MaxRetries
	switch {
	case maxRetries < 0:
		maxRetries = 0
	case maxRetries == 0:
		maxRetries = 5
	}
	initialDelay := cfg.InitialDelay
	if initialDelay == 0 {
		initialDelay = 2 * time.Second
	}
	backoffFactor := cfg.BackoffFactor
	if backoffFactor == 0 {
		backoffFactor = 2.0
	}

	return &GeminiProvider{
		client:         client,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		maxTokens:      cfg.MaxTokens,
		maxRetries:     maxRetries,
		initialDelay:   initialDelay,
		backoffFactor:  backoffFactor,
	}, nil
}

// SupportsTextGeneration reports whether a chat model is configured.
func (p *GeminiProvider) SupportsTextGeneration() bool { return p.chatModel != "" }

// SupportsEmbedding reports whether an embedding model is configured.
func (p *GeminiProvider) SupportsEmbedding() bool { return p.embeddingModel != "" }

// Close is a no-op; the genai client holds no resources.
func (p *GeminiProvider) Close() error { return nil }

// ChatCompletion generates content, translating tool menus, tool turns, and
// response schemas into their Gemini equivalents.
func (p *GeminiProvider) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	if !p.SupportsTextGeneration() {
		return ChatCompletionResponse{}, ErrUnsupportedOperation
	}

	system, contents := toGeminiContents(req.Messages())

	config := &genai.GenerateContentConfig{SystemInstruction: system}

	maxTokens := req.MaxTokens()
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}
	if t, ok := req.Temperature(); ok {
		config.Temperature = genai.Ptr(float32(t))
	}
	if schema := req.ResponseSchema(); schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = GeminiSchema(schema.Schema)
	}
	if tools := req.Tools(); len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, tool := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  GeminiSchema(tool.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	var resp *genai.GenerateContentResponse
	err := p.withRetry(ctx, func() error {
		var err error
		resp, err = p.client.Models.GenerateContent(ctx, p.chatModel, contents, config)
		return err
	})
	if err != nil {
		return ChatCompletionResponse{}, wrapGeminiError("chat_completion", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return ChatCompletionResponse{}, NewProviderError("chat_completion", 0, "no candidates in response", ErrEmptyResponse)
	}

	var calls []ToolCall
	for i, fc := range resp.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return ChatCompletionResponse{}, fmt.Errorf("marshal function args: %w", err)
		}
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		calls = append(calls, ToolCall{ID: id, Name: fc.Name, Arguments: string(args)})
	}

	var usage Usage
	if md := resp.UsageMetadata; md != nil {
		usage = NewUsage(int(md.PromptTokenCount), int(md.CandidatesTokenCount), int(md.TotalTokenCount))
	}

	return NewChatCompletionResponse(geminiText(resp), string(resp.Candidates[0].FinishReason), calls, usage), nil
}

// geminiText concatenates the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) string {
	c := resp.Candidates[0].Content
	if c == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range c.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func toGeminiContents(messages []Message) (*genai.Content, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		switch m.Role() {
		case RoleSystem:
			system = append(system, m.Content())
		case RoleAssistant:
			var parts []*genai.Part
			if m.Content() != "" {
				parts = append(parts, genai.NewPartFromText(m.Content()))
			}
			for _, tc := range m.ToolCalls() {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Name,
					Args: decodeArgs(tc.Arguments),
				}})
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		case RoleTool:
			response := decodeArgs(m.Content())
			if len(response) == 0 {
				response = map[string]any{"output": m.Content()}
			}
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{{
				FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolCallID(),
					Name:     m.Name(),
					Response: response,
				},
			}}, genai.RoleUser))
		default:
			parts := []*genai.Part{genai.NewPartFromText(m.Content())}
			for _, img := range m.Images() {
				parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
		}
	}

	if len(system) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser), contents
}

func decodeArgs(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{}
	}
	return out
}

// Embed generates embeddings for the given texts in a single call.
func (p *GeminiProvider) Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	if !p.SupportsEmbedding() {
		return EmbeddingResponse{}, ErrUnsupportedOperation
	}

	texts := req.Texts()
	if len(texts) == 0 {
		return NewEmbeddingResponse([][]float32{}, NewUsage(0, 0, 0)), nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	var resp *genai.EmbedContentResponse
	err := p.withRetry(ctx, func() error {
		var err error
		resp, err = p.client.Models.EmbedContent(ctx, p.embeddingModel, contents, nil)
		if err != nil {
			return err
		}
		if len(resp.Embeddings) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts", errEmbeddingCountMismatch, len(resp.Embeddings), len(texts))
		}
		return nil
	})
	if err != nil {
		return EmbeddingResponse{}, wrapGeminiError("embedding", err)
	}

	embeddings := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e != nil {
			embeddings[i] = e.Values
		}
	}
	return NewEmbeddingResponse(embeddings, NewUsage(0, 0, 0)), nil
}

func (p *GeminiProvider) withRetry(ctx context.Context, fn func() error) error {
	return retry(ctx, p.maxRetries, p.initialDelay, p.backoffFactor, isGeminiRetryable, fn)
}

func geminiAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

func isGeminiRetryable(err error) bool {
	if errors.Is(err, errEmbeddingCountMismatch) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if apiErr, ok := geminiAPIError(err); ok {
		return retryableStatus(apiErr.Code)
	}
	return false
}

func wrapGeminiError(operation string, err error) error {
	if apiErr, ok := geminiAPIError(err); ok {
		return NewProviderError(operation, apiErr.Code, apiErr.Message, err)
	}
	return NewProviderError(operation, 0, "request failed", err)
}

// GeminiSchema converts a JSON Schema document into a Gemini schema. Unknown
// keywords are ignored.
func GeminiSchema(schema map[string]any) *genai.Schema {
	if len(schema) == 0 {
		return nil
	}

	out := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		out.Type = geminiType(t)
	}
	if d, ok := schema["description"].(string); ok {
		out.Description = d
	}
	out.Enum = stringSlice(schema["enum"])
	out.Required = stringSlice(schema["required"])

	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				out.Properties[name] = GeminiSchema(sub)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = GeminiSchema(items)
	}
	return out
}

func geminiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	}
	return genai.TypeUnspecified
}

func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, x := range vals {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

var _ FullProvider = (*GeminiProvider)(nil)
