// Package provider wraps model APIs behind one chat, vision, and embedding
// surface. Providers may support one or both capabilities.
package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"maps"
	"slices"
)

// Common errors.
var (
	// ErrUnsupportedOperation indicates the provider doesn't support the requested operation.
	ErrUnsupportedOperation = errors.New("operation not supported by this provider")

	// ErrEmptyResponse indicates the model returned no choices or candidates.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Image is inline image data attached to a user message.
type Image struct {
	MIMEType string
	Data     []byte
}

// DataURL renders the image as "data:<mime>;base64,<data>".
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Tool describes a function the model may call. Parameters is a JSON schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Message represents a chat message.
type Message struct {
	role       string
	content    string
	images     []Image
	toolCalls  []ToolCall
	toolCallID string
	name       string
}

// NewMessage creates a new Message.
func NewMessage(role, content string) Message {
	return Message{role: role, content: content}
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message { return NewMessage(RoleSystem, content) }

// UserMessage creates a user message.
func UserMessage(content string) Message { return NewMessage(RoleUser, content) }

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message { return NewMessage(RoleAssistant, content) }

// UserImageMessage creates a user message carrying text and images.
func UserImageMessage(content string, images ...Image) Message {
	m := NewMessage(RoleUser, content)
	m.images = slices.Clone(images)
	return m
}

// AssistantToolCallMessage records the model's turn that requested tool calls.
func AssistantToolCallMessage(content string, calls []ToolCall) Message {
	m := NewMessage(RoleAssistant, content)
	m.toolCalls = slices.Clone(calls)
	return m
}

// ToolResultMessage carries the JSON result of one tool call.
func ToolResultMessage(callID, name, content string) Message {
	m := NewMessage(RoleTool, content)
	m.toolCallID = callID
	m.name = name
	return m
}

// Role returns the message role.
func (m Message) Role() string { return m.role }

// Content returns the message content.
func (m Message) Content() string { return m.content }

// Images returns attached images.
func (m Message) Images() []Image { return slices.Clone(m.images) }

// ToolCalls returns the tool calls of an assistant turn.
func (m Message) ToolCalls() []ToolCall { return slices.Clone(m.toolCalls) }

// ToolCallID returns the call a tool message answers.
func (m Message) ToolCallID() string { return m.toolCallID }

// Name returns the tool name of a tool message.
func (m Message) Name() string { return m.name }

// ResponseSchema asks for a JSON object matching Schema.
type ResponseSchema struct {
	Name   string
	Schema map[string]any
}

// ChatCompletionRequest represents a request for text generation.
type ChatCompletionRequest struct {
	messages    []Message
	tools       []Tool
	maxTokens   int
	temperature *float64
	schema      *ResponseSchema
}

// NewChatCompletionRequest creates a new ChatCompletionRequest.
func NewChatCompletionRequest(messages []Message) ChatCompletionRequest {
	return ChatCompletionRequest{messages: slices.Clone(messages)}
}

// WithTools returns a new request offering tools to the model.
func (r ChatCompletionRequest) WithTools(tools []Tool) ChatCompletionRequest {
	r.tools = slices.Clone(tools)
	return r
}

// WithMaxTokens returns a new request with the specified max tokens.
func (r ChatCompletionRequest) WithMaxTokens(n int) ChatCompletionRequest {
	r.maxTokens = n
	return r
}

// WithTemperature returns a new request with the specified temperature.
func (r ChatCompletionRequest) WithTemperature(t float64) ChatCompletionRequest {
	r.temperature = &t
	return r
}

// WithResponseSchema returns a new request constrained to JSON output.
func (r ChatCompletionRequest) WithResponseSchema(name string, schema map[string]any) ChatCompletionRequest {
	r.schema = &ResponseSchema{Name: name, Schema: maps.Clone(schema)}
	return r
}

// Messages returns the messages.
func (r ChatCompletionRequest) Messages() []Message { return slices.Clone(r.messages) }

// Tools returns the offered tools.
func (r ChatCompletionRequest) Tools() []Tool { return slices.Clone(r.tools) }

// MaxTokens returns the max tokens setting.
func (r ChatCompletionRequest) MaxTokens() int { return r.maxTokens }

// Temperature returns the temperature and whether one was set.
func (r ChatCompletionRequest) Temperature() (float64, bool) {
	if r.temperature == nil {
		return 0, false
	}
	return *r.temperature, true
}

// ResponseSchema returns the requested output schema, or nil.
func (r ChatCompletionRequest) ResponseSchema() *ResponseSchema { return r.schema }

// ChatCompletionResponse represents a text generation response.
type ChatCompletionResponse struct {
	content      string
	finishReason string
	toolCalls    []ToolCall
	usage        Usage
}

// NewChatCompletionResponse creates a new ChatCompletionResponse.
func NewChatCompletionResponse(content, finishReason string, toolCalls []ToolCall, usage Usage) ChatCompletionResponse {
	return ChatCompletionResponse{
		content:      content,
		finishReason: finishReason,
		toolCalls:    slices.Clone(toolCalls),
		usage:        usage,
	}
}

// Content returns the generated content.
func (r ChatCompletionResponse) Content() string { return r.content }

// FinishReason returns why generation stopped.
func (r ChatCompletionResponse) FinishReason() string { return r.finishReason }

// ToolCalls returns the tool calls the model requested.
func (r ChatCompletionResponse) ToolCalls() []ToolCall { return slices.Clone(r.toolCalls) }

// Usage returns token usage information.
func (r ChatCompletionResponse) Usage() Usage { return r.usage }

// Usage represents token usage information.
type Usage struct {
	promptTokens     int
	completionTokens int
	totalTokens      int
}

// NewUsage creates a new Usage.
func NewUsage(prompt, completion, total int) Usage {
	return Usage{promptTokens: prompt, completionTokens: completion, totalTokens: total}
}

// PromptTokens returns the number of prompt tokens.
func (u Usage) PromptTokens() int { return u.promptTokens }

// CompletionTokens returns the number of completion tokens.
func (u Usage) CompletionTokens() int { return u.completionTokens }

// TotalTokens returns the total number of tokens.
func (u Usage) TotalTokens() int { return u.totalTokens }

// EmbeddingRequest represents a request for embeddings.
type EmbeddingRequest struct {
	texts []string
}

// NewEmbeddingRequest creates a new EmbeddingRequest.
func NewEmbeddingRequest(texts []string) EmbeddingRequest {
	return EmbeddingRequest{texts: slices.Clone(texts)}
}

// Texts returns the texts to embed.
func (r EmbeddingRequest) Texts() []string { return slices.Clone(r.texts) }

// EmbeddingResponse represents an embedding response.
type EmbeddingResponse struct {
	embeddings [][]float32
	usage      Usage
}

// NewEmbeddingResponse creates a new EmbeddingResponse.
func NewEmbeddingResponse(embeddings [][]float32, usage Usage) EmbeddingResponse {
	embs := make([][]float32, len(embeddings))
	for i, e := range embeddings {
		embs[i] = slices.Clone(e)
	}
	return EmbeddingResponse{embeddings: embs, usage: usage}
}

// Embeddings returns the embedding vectors.
func (r EmbeddingResponse) Embeddings() [][]float32 {
	embs := make([][]float32, len(r.embeddings))
	for i, e := range r.embeddings {
		embs[i] = slices.Clone(e)
	}
	return embs
}

// Usage returns token usage information.
func (r EmbeddingResponse) Usage() Usage { return r.usage }

// TextGenerator generates chat completions, including tool calls, image
// input, and schema-constrained JSON.
type TextGenerator interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error)
}

// Embedder generates embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error)
}

// Provider reports capabilities and releases resources.
type Provider interface {
	SupportsTextGeneration() bool
	SupportsEmbedding() bool
	Close() error
}

// FullProvider implements both text generation and embedding.
type FullProvider interface {
	Provider
	TextGenerator
	Embedder
}
