// Package v1 provides the v1 API routes.
package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/infrastructure/api/middleware"
)

// principal returns the authenticated caller, writing a 401 when the auth
// middleware did not run.
func principal(w http.ResponseWriter, req *http.Request, logger *slog.Logger) (tenant.Principal, bool) {
	p, ok := tenant.FromContext(req.Context())
	if !ok {
		middleware.WriteError(w, req, middleware.NewAuthenticationError("missing token"), logger)
		return tenant.Principal{}, false
	}
	return p, true
}

// decodeJSON reads the request body into dst.
func decodeJSON(req *http.Request, dst any) error {
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", repository.ErrValidation, err)
	}
	return nil
}

// queryInt parses an optional integer query parameter. Absent or malformed
// values yield 0, which callers treat as the default.
func queryInt(req *http.Request, name string) int {
	n, err := strconv.Atoi(req.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

// queryBool parses an optional boolean query or form value.
func queryBool(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}

// splitTags parses a comma separated tag list.
func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
