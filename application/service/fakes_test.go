package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/infrastructure/persistence"
	"github.com/helixml/damkit/infrastructure/provider"
	"github.com/helixml/damkit/infrastructure/session"
	"github.com/helixml/damkit/infrastructure/storage"
	"github.com/helixml/damkit/internal/database"
	"github.com/helixml/damkit/internal/prompts"
	"github.com/helixml/damkit/internal/testdb"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

var alice = tenant.NewPrincipal("alice", "t1")

// scriptedModel implements provider.TextGenerator. It replays responses in
// order and repeats the last one once the script runs out.
type scriptedModel struct {
	mu        sync.Mutex
	responses []provider.ChatCompletionResponse
	err       error
	reply     func(provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error)
	requests  []provider.ChatCompletionRequest
}

func (m *scriptedModel) ChatCompletion(_ context.Context, req provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return provider.ChatCompletionResponse{}, m.err
	}
	if m.reply != nil {
		return m.reply(req)
	}
	if len(m.responses) == 0 {
		return provider.ChatCompletionResponse{}, provider.ErrEmptyResponse
	}
	i := min(len(m.requests)-1, len(m.responses)-1)
	return m.responses[i], nil
}

func (m *scriptedModel) calls() []provider.ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.ChatCompletionRequest(nil), m.requests...)
}

func textReply(content string) provider.ChatCompletionResponse {
	return provider.NewChatCompletionResponse(content, "stop", nil, provider.Usage{})
}

func toolReply(calls ...provider.ToolCall) provider.ChatCompletionResponse {
	return provider.NewChatCompletionResponse("", "tool_calls", calls, provider.Usage{})
}

// stubEmbedder implements provider.Embedder with a fixed vector per text.
type stubEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	err      error
	texts    []string
}

func (e *stubEmbedder) Embed(_ context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.texts = append(e.texts, req.Texts()...)
	if e.err != nil {
		return provider.EmbeddingResponse{}, e.err
	}
	out := make([][]float32, 0, len(req.Texts()))
	for _, text := range req.Texts() {
		if v, ok := e.vectors[text]; ok {
			out = append(out, v)
			continue
		}
		out = append(out, e.fallback)
	}
	return provider.NewEmbeddingResponse(out, provider.Usage{}), nil
}

// failingDeletes wraps an object store whose Delete always fails.
type failingDeletes struct {
	asset.ObjectStore
}

func (failingDeletes) Delete(context.Context, string) error {
	return errors.New("bucket unavailable")
}

// fixture wires every service over an in-memory database and a temporary
// directory of objects.
type fixture struct {
	db         database.Database
	assetStore persistence.AssetStore
	taskStore  persistence.TaskStore
	events     persistence.AnalyticsStore
	objects    *storage.LocalStore
	model      *scriptedModel
	embedder   *stubEmbedder

	folders    *Folder
	embeddings *Embedding
	analytics  *Analytics
	queue      *Queue
	assets     *Asset
	tools      *Tools
	sessions   *ChatSessions
	assistant  *Assistant
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	objects    func(asset.ObjectStore) asset.ObjectStore
	noEmbedder bool
}

func withObjectStore(wrap func(asset.ObjectStore) asset.ObjectStore) fixtureOption {
	return func(c *fixtureConfig) { c.objects = wrap }
}

func withoutEmbedder() fixtureOption {
	return func(c *fixtureConfig) { c.noEmbedder = true }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	db := testdb.New(t)
	local, err := storage.NewLocalStore(storage.LocalConfig{
		Dir:        t.TempDir(),
		BaseURL:    "http://dam.test/files/",
		SigningKey: "secret",
	})
	require.NoError(t, err)

	var objects asset.ObjectStore = local
	if cfg.objects != nil {
		objects = cfg.objects(local)
	}

	f := &fixture{
		db:         db,
		assetStore: persistence.NewAssetStore(db, nil),
		taskStore:  persistence.NewTaskStore(db),
		events:     persistence.NewAnalyticsStore(db),
		objects:    local,
		model:      &scriptedModel{},
		embedder:   &stubEmbedder{fallback: []float32{0, 1, 0}},
	}

	set := prompts.Default()
	var embedder provider.Embedder = f.embedder
	if cfg.noEmbedder {
		embedder = nil
	}

	f.folders = NewFolder(persistence.NewFolderStore(db), f.assetStore, nil)
	f.embeddings = NewEmbedding(f.assetStore, objects, f.model, embedder, set, nil)
	f.analytics = NewAnalytics(f.events, f.assetStore, nil)
	f.queue = NewQueue(f.taskStore, nil)
	f.assets = NewAsset(f.assetStore, objects, f.folders, f.embeddings, f.analytics, f.queue, nil, nil)
	f.tools = NewTools(f.folders, f.assets, f.embeddings, set)
	f.sessions = NewChatSessions(session.NewMemoryStore(0))
	f.assistant = NewAssistant(f.model, f.tools, f.folders, f.assets, f.sessions, set, nil)
	return f
}

func (f *fixture) uploadPNG(t *testing.T, name, folderID string) asset.Asset {
	t.Helper()
	a, err := f.assets.Upload(context.Background(), alice, UploadParams{
		Name:     name,
		Size:     int64(len(pngBytes)),
		Reader:   bytes.NewReader(pngBytes),
		FolderID: folderID,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) uploadText(t *testing.T, name, body string) asset.Asset {
	t.Helper()
	a, err := f.assets.Upload(context.Background(), alice, UploadParams{
		Name:        name,
		ContentType: "text/plain",
		Size:        int64(len(body)),
		Reader:      bytes.NewReader([]byte(body)),
	})
	require.NoError(t, err)
	return a
}
