package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// IsNotFoundError reports whether err means the requested row does not exist,
// so callers can translate it without importing gorm.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsConflictError reports whether err was caused by a uniqueness violation,
// typically a second concurrent insert on the same natural key.
func IsConflictError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
