// Package sqlite implements the repository interfaces on SQLite. Uniqueness
// constraints declared in the migrations are the concurrency backstop for
// visitor resolution and conversion de-duplication.
package sqlite

import (
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"

	apperr "github.com/openpulse/pulse-backend-go/pkg/errors"
)

// translateUnique maps a driver-level unique constraint failure onto the
// sentinel callers retry against. Other errors pass through unchanged.
func translateUnique(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		if se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return apperr.ErrUniqueViolation
		}
	}
	return err
}
