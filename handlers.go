package damkit

import (
	"fmt"
	"log/slog"
	"strings"

	embeddinghandler "github.com/helixml/damkit/application/handler/embedding"
	"github.com/helixml/damkit/domain/task"
)

// registerHandlers registers all task handlers with the worker registry.
func (c *Client) registerHandlers() {
	// Embedding handlers need a vision model to caption and an embedder to
	// vectorise the caption.
	if c.embeddingReady {
		c.registry.Register(task.OperationGenerateEmbedding, embeddinghandler.NewGenerate(c.Embeddings, c.logger))
		c.registry.Register(task.OperationBackfillEmbeddings, embeddinghandler.NewBackfill(c.Embeddings, c.logger))
	}

	c.logger.Info("registered task handlers", slog.Int("missing", len(c.registry.Missing())))
}

// validateHandlers checks that every task operation has a registered handler.
// Returns an error listing missing operations and which provider to configure.
func (c *Client) validateHandlers() error {
	missing := c.registry.Missing()
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, len(missing))
	for i, op := range missing {
		names[i] = op.String()
	}
	return fmt.Errorf(
		"missing handlers for operations: [%s]: configure a vision provider and an embedding provider or set SKIP_PROVIDER_VALIDATION=true to start without them",
		strings.Join(names, ", "),
	)
}

// buildDatabaseURL constructs the database URL from configuration.
func buildDatabaseURL(cfg *clientConfig) (string, error) {
	switch cfg.database {
	case databaseSQLite:
		return "sqlite:///" + cfg.dbPath, nil
	case databasePostgres:
		if !strings.HasPrefix(cfg.dbDSN, "postgres://") && !strings.HasPrefix(cfg.dbDSN, "postgresql://") {
			return "", fmt.Errorf("%w: postgres dsn must start with postgres:// or postgresql://", ErrNoDatabase)
		}
		return cfg.dbDSN, nil
	case databaseURL:
		return cfg.dbDSN, nil
	default:
		return "", ErrNoDatabase
	}
}
