package database

import (
	"errors"
	"strings"

	"github.com/helixml/damkit/domain/repository"
	"gorm.io/gorm"
)

// ErrNotFound indicates the requested entity was not found.
var ErrNotFound = repository.ErrNotFound

// IsUniqueViolation reports whether err came from a unique index. GORM's
// TranslateError covers both drivers; the message checks catch errors raised
// inside raw statements where translation does not run.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "UNIQUE constraint")
}
