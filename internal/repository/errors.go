package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a post or attachment row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEntry is returned when a post id is already stored.
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// uniqueViolationMarkers are driver messages for a primary or unique key
// clash, for connections opened without gorm's TranslateError.
var uniqueViolationMarkers = []string{
	"duplicate key",     // postgres
	"23505",             // postgres SQLSTATE
	"UNIQUE constraint", // sqlite
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	for _, marker := range uniqueViolationMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
