package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/damkit/application/service"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/infrastructure/api"
)

func mcpRequest(t *testing.T, method string, id int, params map[string]any) []byte {
	t.Helper()
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return b
}

func postMCP(t *testing.T, handler http.Handler, body []byte, sessionID, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// initMCPSession sends an initialize request and returns the session ID.
func initMCPSession(t *testing.T, handler http.Handler, authorization string) string {
	t.Helper()
	body := mcpRequest(t, "initialize", 1, map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "0.0.1"},
	})
	w := postMCP(t, handler, body, "", authorization)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sessionID := w.Header().Get("Mcp-Session-Id")
	require.NotEmpty(t, sessionID, "initialize did not return a session ID")
	return sessionID
}

// toolResultText decodes the JSON-RPC response from a tools/call and returns
// the text content and whether the tool reported an error.
func toolResultText(t *testing.T, w *httptest.ResponseRecorder) (string, bool) {
	t.Helper()
	var resp struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	if len(resp.Result.Content) == 0 {
		return "", resp.Result.IsError
	}
	return resp.Result.Content[0].Text, resp.Result.IsError
}

func TestMCPEndpoint_Initialize(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	body := mcpRequest(t, "initialize", 1, map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "0.0.1"},
	})
	w := postMCP(t, handler, body, "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result struct {
			ServerInfo struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"serverInfo"`
			Capabilities struct {
				Tools json.RawMessage `json:"tools"`
			} `json:"capabilities"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.Equal(t, "damkit", resp.Result.ServerInfo.Name)
	assert.Equal(t, "1.0.0", resp.Result.ServerInfo.Version)
	assert.NotNil(t, resp.Result.Capabilities.Tools)
}

func TestMCPEndpoint_ListTools(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	sessionID := initMCPSession(t, handler, "")

	w := postMCP(t, handler, mcpRequest(t, "tools/list", 2, nil), sessionID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	var names []string
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		service.ToolCreateFolder,
		service.ToolListFolders,
		service.ToolUploadAssetFromURL,
		service.ToolUploadSelectedAsset,
		service.ToolListAssets,
		service.ToolSearchAssets,
		service.ToolBackfillEmbeddings,
	}, names)
}

func TestMCPEndpoint_RejectsInvalidContentType(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMCPEndpoint_ToolCallRequiresCredentials(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	sessionID := initMCPSession(t, handler, "")

	body := mcpRequest(t, "tools/call", 2, map[string]any{
		"name":      service.ToolListFolders,
		"arguments": map[string]any{},
	})
	w := postMCP(t, handler, body, sessionID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	text, isError := toolResultText(t, w)
	assert.True(t, isError)
	assert.Contains(t, text, "Unauthorized")
}

func TestMCPEndpoint_ToolCallScopedToTenant(t *testing.T) {
	handler, client, auth := newTestHandler(t)
	ctx := context.Background()

	_, err := client.Folders.Create(ctx, tenant.NewPrincipal("alice", "acme"), "Campaigns", "")
	require.NoError(t, err)
	_, err = client.Folders.Create(ctx, tenant.NewPrincipal("bob", "globex"), "Secret", "")
	require.NoError(t, err)

	authorization := bearer(t, auth, "alice", "acme")
	sessionID := initMCPSession(t, handler, authorization)

	body := mcpRequest(t, "tools/call", 2, map[string]any{
		"name":      service.ToolListFolders,
		"arguments": map[string]any{},
	})
	w := postMCP(t, handler, body, sessionID, authorization)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	text, isError := toolResultText(t, w)
	require.False(t, isError, text)
	assert.Contains(t, text, "Campaigns")
	assert.NotContains(t, text, "Secret")
}

// TestMCPEndpoint_ServerMiddlewareStack runs MCP through the full server
// middleware stack as built by ListenAndServe. chi's Timeout middleware
// must not wrap the streamable handler's ResponseWriter.
func TestMCPEndpoint_ServerMiddlewareStack(t *testing.T) {
	client := newTestClient(t)
	auth := newTestAuth(t, client)
	apiServer := api.NewAPIServer(client, auth)
	require.NoError(t, apiServer.MountRoutes())

	srv := api.NewServer("", nil, api.WithCORSOrigins("*"))
	srv.Router().Mount("/", apiServer.Router())
	handler := srv.Router()

	authorization := bearer(t, auth, "alice", "acme")
	sessionID := initMCPSession(t, handler, authorization)

	w := postMCP(t, handler, mcpRequest(t, "tools/list", 2, nil), sessionID, authorization)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	callBody := mcpRequest(t, "tools/call", 3, map[string]any{
		"name":      service.ToolCreateFolder,
		"arguments": map[string]any{"name": "Brand Assets"},
	})
	w = postMCP(t, handler, callBody, sessionID, authorization)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	text, isError := toolResultText(t, w)
	require.False(t, isError, text)
	assert.Contains(t, text, "Brand Assets")
}
