package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppConfig_Defaults(t *testing.T) {
	cfg := NewAppConfig()

	assert.Equal(t, DefaultHost, cfg.Host())
	assert.Equal(t, DefaultPort, cfg.Port())
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, LogFormatPretty, cfg.LogFormat())
	assert.Nil(t, cfg.ChatEndpoint())
	assert.Nil(t, cfg.VisionEndpoint())
	assert.Nil(t, cfg.EmbeddingEndpoint())
	assert.Equal(t, StorageLocal, cfg.Storage().Backend())
	assert.Equal(t, time.Hour, cfg.Storage().SignedURLTTL())
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.False(t, cfg.Auth().IsConfigured())
	assert.Equal(t, filepath.Join(cfg.DataDir(), "objects"), cfg.StorageDir())
	assert.Equal(t, DefaultWorkerPollPeriod, cfg.WorkerPollPeriod())
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins())
	assert.False(t, cfg.SkipProviderValidation())
}

func TestWithDataDir_MovesDefaultDatabase(t *testing.T) {
	cfg := NewAppConfigWithOptions(WithDataDir("/srv/dam"))
	assert.Equal(t, "sqlite:////srv/dam/damkit.db", cfg.DBURL())

	explicit := NewAppConfigWithOptions(WithDBURL("postgres://u:p@h/db"), WithDataDir("/srv/dam"))
	assert.Equal(t, "postgres://u:p@h/db", explicit.DBURL())
}

func TestAppConfig_ApplyDoesNotMutate(t *testing.T) {
	base := NewAppConfig()
	changed := base.Apply(WithPort(1234), WithAPIKeys([]string{"k"}))

	assert.Equal(t, DefaultPort, base.Port())
	assert.Equal(t, 1234, changed.Port())
	assert.Empty(t, base.APIKeys())
	assert.Equal(t, []string{"k"}, changed.APIKeys())
}

func TestEndpoint_Options(t *testing.T) {
	e := NewEndpointWithOptions(
		WithProvider(ProviderGemini),
		WithModel("gemini-2.0-flash"),
		WithBaseURL("http://localhost"),
		WithAPIKey("key"),
		WithTimeout(5*time.Second),
		WithMaxRetries(1),
	)

	assert.True(t, e.IsConfigured())
	assert.Equal(t, ProviderGemini, e.Provider())
	assert.Equal(t, "gemini-2.0-flash", e.Model())
	assert.Equal(t, 5*time.Second, e.Timeout())
	assert.Equal(t, 1, e.MaxRetries())
	assert.Equal(t, DefaultEndpointMaxTokens, e.MaxTokens())
	assert.False(t, NewEndpoint().IsConfigured())
}

func TestLogAttrs_HidesSecrets(t *testing.T) {
	cfg := NewAppConfigWithOptions(
		WithDBURL("postgres://user:hunter2@db/dam"),
		WithAuth("jwt-secret", "", 0),
		WithChatEndpoint(NewEndpointWithOptions(WithModel("gpt-4o-mini"), WithAPIKey("sk-live"))),
	)

	for _, attr := range cfg.LogAttrs() {
		v := attr.Value.String()
		assert.NotContains(t, v, "hunter2", attr.Key)
		assert.NotContains(t, v, "jwt-secret", attr.Key)
		assert.NotContains(t, v, "sk-live", attr.Key)
	}
}

func TestParseAPIKeys(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"a", []string{"a"}},
		{" a , b ,,c ", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		got := ParseAPIKeys(tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}
