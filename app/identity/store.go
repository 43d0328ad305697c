// Package identity is the adapter in front of the identity store: the
// independently managed record of login name, credentials, e-mail, profile
// and role grants. Every operation is keyed by login name.
package identity

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/shop/app/models"
)

var (
	// ErrNotFound is returned when no identity exists for a login name.
	ErrNotFound = errors.New("identity: not found")
	// ErrLoginNameExists is returned by Create for a login name already in use.
	ErrLoginNameExists = errors.New("identity: login name already exists")
	// ErrUnknownRole is returned when granting or revoking an undefined role.
	ErrUnknownRole = errors.New("identity: unknown role")
)

// Store is a backend holding identity records. Implementations return
// copies; callers may modify what they receive.
type Store interface {
	Get(ctx context.Context, loginName string) (*models.Identity, error)
	FindByEmail(ctx context.Context, email string) ([]*models.Identity, error)
	FindByEmailPrefix(ctx context.Context, prefix string) ([]*models.Identity, error)
	FindByLastName(ctx context.Context, lastName string) ([]*models.Identity, error)
	LoginNamesByPrefix(ctx context.Context, prefix string) ([]string, error)
	ListLoginNames(ctx context.Context) ([]string, error)

	// Insert stores a new record including its roles, failing with
	// ErrLoginNameExists on a duplicate key.
	Insert(ctx context.Context, id *models.Identity) error
	// Replace overwrites profile, credential and flags of an existing record.
	// Roles are left untouched.
	Replace(ctx context.Context, id *models.Identity) error
	// Delete removes the record and reports whether it existed.
	Delete(ctx context.Context, loginName string) (bool, error)

	AddRoles(ctx context.Context, loginName string, roles []models.Role) error
	RemoveRoles(ctx context.Context, loginName string, roles []models.Role) error
	Roles(ctx context.Context, loginName string) ([]models.Role, error)

	// Name identifies the backend in logs and metrics.
	Name() string
}
