// Package repositories is the customer aggregate store: gorm-backed access
// to customers and the records they own. Every method resolves its
// connection through database.Conn, so calls made inside
// database.Transaction join the caller's transaction.
package repositories

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("repositories: record not found")
	// ErrVersionConflict is returned by versioned writes whose expected
	// version no longer matches the stored row.
	ErrVersionConflict = errors.New("repositories: version conflict")
	// ErrDuplicate is returned when an insert collides with an existing key.
	ErrDuplicate = errors.New("repositories: duplicate key")
)
