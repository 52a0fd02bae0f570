package folder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/helixml/damkit/domain/repository"
)

// MaxNameLength is the longest folder name accepted, in characters.
const MaxNameLength = 100

// Validation errors.
var (
	ErrInvalidName = fmt.Errorf("%w: invalid folder name", repository.ErrValidation)
	ErrMissingName = fmt.Errorf("%w: Missing folder name", ErrInvalidName)
	ErrNameTooLong = fmt.Errorf("%w: Folder name is too long (max %d characters)", ErrInvalidName, MaxNameLength)
)

// ValidateName trims name and checks it against the naming rules.
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrMissingName
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return trimmed, nil
}

// NameKey folds a name for case-insensitive comparison.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Suggestions lists alternative names for a name that is taken.
func Suggestions(name string, year int) []string {
	y := strconv.Itoa(year)
	return []string{
		name + "_v2",
		name + "_new",
		name + "_" + y,
		name + "_projects",
		name + "_docs",
		"Personal_" + name,
		"Work_" + name,
	}
}

// DuplicateError reports a folder name already used in the tenant.
type DuplicateError struct {
	Requested   string
	Existing    string
	Suggestions []string
}

// NewDuplicateError builds the error for a clash with the existing folder name.
func NewDuplicateError(requested, existing string, year int) *DuplicateError {
	if existing == "" {
		existing = requested
	}
	return &DuplicateError{
		Requested:   requested,
		Existing:    existing,
		Suggestions: Suggestions(existing, year),
	}
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("A folder named %q already exists. Please choose a different name.", e.Existing)
}

// Unwrap lets errors.Is match repository.ErrConflict.
func (e *DuplicateError) Unwrap() error { return repository.ErrConflict }

// AsDuplicate extracts a DuplicateError from err.
func AsDuplicate(err error) (*DuplicateError, bool) {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup, true
	}
	return nil, false
}

// UserMessage returns the text of a validation error without the wrapping prefixes.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingName):
		return "Missing folder name"
	case errors.Is(err, ErrNameTooLong):
		return fmt.Sprintf("Folder name is too long (max %d characters)", MaxNameLength)
	}
	if dup, ok := AsDuplicate(err); ok {
		return dup.Error()
	}
	return err.Error()
}
