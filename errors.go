package damkit

import "errors"

// Exported errors for library consumers.
var (
	// ErrNoDatabase indicates no database was configured.
	ErrNoDatabase = errors.New("damkit: no database configured")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("damkit: client is closed")
)
