package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/helixml/damkit/application/service"
	"github.com/helixml/damkit/domain/chat"
	"github.com/helixml/damkit/domain/folder"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/infrastructure/api/jsonapi"
	"github.com/helixml/damkit/infrastructure/provider"
	"github.com/helixml/damkit/infrastructure/storage"
)

// Sentinel errors for errors.Is matching.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrServer         = errors.New("server error")
)

// APIError carries an explicit HTTP status and message.
type APIError struct {
	code    int
	message string
	cause   error
}

// NewAPIError creates a new APIError.
func NewAPIError(code int, message string, cause error) *APIError {
	return &APIError{code: code, message: message, cause: cause}
}

// Code returns the HTTP status code.
func (e *APIError) Code() int { return e.code }

// Message returns the message shown to clients.
func (e *APIError) Message() string { return e.message }

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("api error %d: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("api error %d: %s", e.code, e.message)
}

// Unwrap returns the cause.
func (e *APIError) Unwrap() error { return e.cause }

// AuthenticationError reports a rejected or missing credential.
type AuthenticationError struct {
	reason string
}

// NewAuthenticationError creates a new AuthenticationError.
func NewAuthenticationError(reason string) *AuthenticationError {
	return &AuthenticationError{reason: reason}
}

func (e *AuthenticationError) Error() string { return "authentication failed: " + e.reason }

// Reason returns why authentication failed.
func (e *AuthenticationError) Reason() string { return e.reason }

// Is matches ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// ServerError reports an upstream failure with its status.
type ServerError struct {
	statusCode int
	message    string
}

// NewServerError creates a new ServerError.
func NewServerError(statusCode int, message string) *ServerError {
	return &ServerError{statusCode: statusCode, message: message}
}

// StatusCode returns the HTTP status.
func (e *ServerError) StatusCode() int { return e.statusCode }

// Message returns the message.
func (e *ServerError) Message() string { return e.message }

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.statusCode, e.message)
}

// Is matches ErrServer.
func (e *ServerError) Is(target error) bool { return target == ErrServer }

// Problem is the HTTP rendering of an error.
type Problem struct {
	Status      int
	Title       string
	Detail      string
	Suggestions []string
}

// Classify maps err to its HTTP status and the message shown to clients.
func Classify(err error) Problem {
	var (
		apiErr    *APIError
		serverErr *ServerError
		authErr   *AuthenticationError
		provErr   *provider.ProviderError
		fetchErr  *storage.FetchError
	)

	if dup, ok := folder.AsDuplicate(err); ok {
		return Problem{Status: http.StatusConflict, Title: "Conflict", Detail: folder.UserMessage(err), Suggestions: dup.Suggestions}
	}

	switch {
	case errors.As(err, &apiErr):
		return Problem{Status: apiErr.Code(), Title: "API Error", Detail: apiErr.Message()}
	case errors.As(err, &serverErr):
		return Problem{Status: serverErr.StatusCode(), Title: "Server Error", Detail: serverErr.Message()}
	case errors.As(err, &authErr):
		return Problem{Status: http.StatusUnauthorized, Title: "Unauthorized", Detail: "Unauthorized: " + authErr.Reason()}
	case errors.As(err, &provErr):
		status := http.StatusInternalServerError
		switch {
		case provErr.IsRateLimited():
			status = http.StatusTooManyRequests
		case provErr.IsAuthFailure():
			status = http.StatusForbidden
		}
		return Problem{Status: status, Title: "Provider Error", Detail: provider.ErrorText(err)}
	case errors.Is(err, tenant.ErrNoTenant):
		return Problem{Status: http.StatusForbidden, Title: "Forbidden", Detail: "No tenant assigned to user"}
	case errors.Is(err, service.ErrAssistantUnavailable):
		return Problem{Status: http.StatusServiceUnavailable, Title: "Service Unavailable", Detail: "No chat provider configured"}
	case errors.Is(err, service.ErrVerificationUnavailable),
		errors.Is(err, service.ErrCaptioningUnavailable),
		errors.Is(err, service.ErrEmbeddingUnavailable):
		return Problem{Status: http.StatusServiceUnavailable, Title: "Service Unavailable", Detail: err.Error()}
	case errors.As(err, &fetchErr):
		return Problem{Status: http.StatusBadGateway, Title: "Bad Gateway", Detail: service.UserMessage(err)}
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, storage.ErrObjectNotFound),
		errors.Is(err, chat.ErrSessionNotFound):
		return Problem{Status: http.StatusNotFound, Title: "Not Found", Detail: service.UserMessage(err)}
	case errors.Is(err, repository.ErrValidation):
		return Problem{Status: http.StatusBadRequest, Title: "Validation Error", Detail: service.UserMessage(err)}
	case errors.Is(err, repository.ErrConflict):
		return Problem{Status: http.StatusConflict, Title: "Conflict", Detail: service.UserMessage(err)}
	}
	return Problem{Status: http.StatusInternalServerError, Title: "Internal Server Error", Detail: err.Error()}
}

// WriteError writes a JSON:API formatted error response.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	p := Classify(err)
	logProblem(r, err, p, logger)

	e := jsonapi.NewError(strconv.Itoa(p.Status), p.Title, p.Detail)
	e.ID = GetCorrelationID(r.Context())
	if len(p.Suggestions) > 0 {
		e.Meta = &jsonapi.Meta{"suggestions": p.Suggestions}
	}

	w.Header().Set("Content-Type", "application/vnd.api+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(jsonapi.NewErrorResponse(e))
}

// WriteMessage writes {"error": message} with the classified status, for
// endpoints whose clients read a flat error field.
func WriteMessage(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger, extra map[string]any) {
	p := Classify(err)
	logProblem(r, err, p, logger)

	body := map[string]any{"error": p.Detail}
	if len(p.Suggestions) > 0 {
		body["suggestions"] = p.Suggestions
	}
	for k, v := range extra {
		body[k] = v
	}
	WriteJSON(w, p.Status, body)
}

func logProblem(r *http.Request, err error, p Problem, logger *slog.Logger) {
	if logger == nil {
		return
	}
	level := slog.LevelWarn
	if p.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request error",
		"correlation_id", GetCorrelationID(r.Context()),
		"status", p.Status,
		"error", err.Error(),
		"path", r.URL.Path,
	)
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
