package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/pkg/auth"
	"github.com/shashiranjanraj/shop/pkg/cache"
	"github.com/shashiranjanraj/shop/pkg/logger"
	"github.com/shashiranjanraj/shop/pkg/metrics"
)

// DefaultRole is granted to every identity created through Create.
const DefaultRole = models.RoleCustomer

// Adapter is the single entry point to the identity store. It owns the
// role cache; nothing else reads or invalidates it.
type Adapter struct {
	store Store
	roles *roleCache
}

// NewAdapter wires store behind a read-through role cache kept in c for ttl.
func NewAdapter(store Store, c cache.Store, ttl time.Duration) *Adapter {
	if c == nil {
		c = cache.NewMemory()
	}
	return &Adapter{store: store, roles: &roleCache{store: store, cache: c, ttl: ttl}}
}

// Backend names the underlying store.
func (a *Adapter) Backend() string { return a.store.Name() }

func (a *Adapter) observe(call string) func() {
	start := time.Now()
	return func() { metrics.ObserveIdentityCall(a.store.Name(), call, start) }
}

// FindByLoginName returns the identity for loginName with its current roles.
func (a *Adapter) FindByLoginName(ctx context.Context, loginName string) (*models.Identity, error) {
	defer a.observe("find_by_login_name")()

	id, err := a.store.Get(ctx, loginName)
	if err != nil {
		return nil, err
	}
	roles, err := a.roles.get(ctx, loginName)
	if err != nil {
		return nil, err
	}
	id.Roles = roles
	return id, nil
}

// FindByEmail returns every identity using email. E-mail is not a key, so
// the result may hold several login names.
func (a *Adapter) FindByEmail(ctx context.Context, email string) ([]*models.Identity, error) {
	defer a.observe("find_by_email")()
	return a.store.FindByEmail(ctx, email)
}

func (a *Adapter) FindByEmailPrefix(ctx context.Context, prefix string) ([]*models.Identity, error) {
	defer a.observe("find_by_email_prefix")()
	return a.store.FindByEmailPrefix(ctx, prefix)
}

// FindLoginNamesByLastName returns the login names of identities with lastName.
func (a *Adapter) FindLoginNamesByLastName(ctx context.Context, lastName string) ([]string, error) {
	defer a.observe("find_by_last_name")()
	ids, err := a.store.FindByLastName(ctx, lastName)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.LoginName
	}
	return out, nil
}

func (a *Adapter) LoginNamesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	defer a.observe("login_names_by_prefix")()
	return a.store.LoginNamesByPrefix(ctx, prefix)
}

func (a *Adapter) ListLoginNames(ctx context.Context) ([]string, error) {
	defer a.observe("list_login_names")()
	return a.store.ListLoginNames(ctx)
}

// Create stores a new, enabled identity holding the default role. A
// non-empty password is hashed; an empty one leaves the identity without a
// credential.
func (a *Adapter) Create(ctx context.Context, id *models.Identity) error {
	defer a.observe("create")()

	if _, err := a.store.Get(ctx, id.LoginName); err == nil {
		return ErrLoginNameExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	rec := id.Clone()
	rec.Enabled = true
	if rec.Password != "" {
		hash, err := auth.HashPassword(rec.Password)
		if err != nil {
			return fmt.Errorf("identity: create %s: %w", id.LoginName, err)
		}
		rec.PasswordHash = hash
		rec.Password = ""
	}
	rec.Roles = []models.Role{DefaultRole}

	if err := a.store.Insert(ctx, rec); err != nil {
		return err
	}
	a.roles.invalidate(ctx, id.LoginName)

	id.Enabled = true
	id.PasswordHash = rec.PasswordHash
	id.Password = ""
	id.Roles = rec.Roles
	logger.WithCtx(ctx).Debug("identity: created", "login_name", id.LoginName, "backend", a.store.Name())
	return nil
}

// Update writes the profile of id if it differs from the stored record.
// A non-empty Password replaces the credential; otherwise a non-empty
// PasswordHash is written back verbatim, and an empty one keeps the stored
// hash. Roles are never touched.
func (a *Adapter) Update(ctx context.Context, id *models.Identity) error {
	_, err := a.Apply(ctx, id)
	return err
}

// Apply is Update returning the record as stored afterwards. Revert takes
// that record to tell whether anyone has written the identity since.
func (a *Adapter) Apply(ctx context.Context, id *models.Identity) (*models.Identity, error) {
	defer a.observe("update")()

	cur, err := a.store.Get(ctx, id.LoginName)
	if err != nil {
		return nil, err
	}

	rec := id.Clone()
	switch {
	case rec.Password != "":
		hash, err := auth.HashPassword(rec.Password)
		if err != nil {
			return nil, fmt.Errorf("identity: update %s: %w", id.LoginName, err)
		}
		rec.PasswordHash = hash
		rec.Password = ""
	case rec.PasswordHash == "":
		rec.PasswordHash = cur.PasswordHash
	}
	// Stores keep millisecond precision.
	if rec.ExpiresAt != nil {
		t := rec.ExpiresAt.UTC().Truncate(time.Millisecond)
		rec.ExpiresAt = &t
	}
	rec.Roles = cur.Roles

	if rec.PasswordHash == cur.PasswordHash && rec.SameProfile(cur) {
		return cur, nil
	}
	if err := a.store.Replace(ctx, rec); err != nil {
		return nil, err
	}
	logger.WithCtx(ctx).Debug("identity: updated", "login_name", id.LoginName)
	return rec, nil
}

// Revert restores snapshot over the write that produced written. When the
// stored record no longer matches written another writer got there first;
// it is left alone and Revert reports false.
func (a *Adapter) Revert(ctx context.Context, written, snapshot *models.Identity) (bool, error) {
	cur, err := a.store.Get(ctx, written.LoginName)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if cur.PasswordHash != written.PasswordHash || !written.SameProfile(cur) {
		return false, nil
	}
	return true, a.Restore(ctx, snapshot)
}

// Remove deletes the identity. Removing an absent login name is a no-op.
func (a *Adapter) Remove(ctx context.Context, loginName string) error {
	defer a.observe("remove")()

	existed, err := a.store.Delete(ctx, loginName)
	if err != nil {
		return err
	}
	a.roles.invalidate(ctx, loginName)
	if existed {
		logger.WithCtx(ctx).Debug("identity: removed", "login_name", loginName)
	}
	return nil
}

// Restore writes snapshot back as it was, credential hash and roles
// included. Used to undo an identity write whose customer-side
// counterpart failed.
func (a *Adapter) Restore(ctx context.Context, snapshot *models.Identity) error {
	defer a.observe("restore")()

	rec := snapshot.Clone()
	rec.Password = ""
	err := a.store.Replace(ctx, rec)
	if errors.Is(err, ErrNotFound) {
		err = a.store.Insert(ctx, rec)
	} else if err == nil {
		cur, rerr := a.store.Roles(ctx, rec.LoginName)
		if rerr != nil {
			return rerr
		}
		if err = a.store.RemoveRoles(ctx, rec.LoginName, cur); err == nil && len(rec.Roles) > 0 {
			err = a.store.AddRoles(ctx, rec.LoginName, rec.Roles)
		}
	}
	a.roles.invalidate(ctx, rec.LoginName)
	return err
}

func checkRoles(roles []models.Role) error {
	for _, r := range roles {
		if !r.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownRole, r)
		}
	}
	return nil
}

// GrantRoles adds roles to loginName.
func (a *Adapter) GrantRoles(ctx context.Context, loginName string, roles ...models.Role) error {
	defer a.observe("grant_roles")()
	if err := checkRoles(roles); err != nil {
		return err
	}
	if len(roles) == 0 {
		return nil
	}
	err := a.store.AddRoles(ctx, loginName, roles)
	a.roles.invalidate(ctx, loginName)
	return err
}

// RevokeRoles removes roles from loginName.
func (a *Adapter) RevokeRoles(ctx context.Context, loginName string, roles ...models.Role) error {
	defer a.observe("revoke_roles")()
	if err := checkRoles(roles); err != nil {
		return err
	}
	if len(roles) == 0 {
		return nil
	}
	err := a.store.RemoveRoles(ctx, loginName, roles)
	a.roles.invalidate(ctx, loginName)
	return err
}

// HasRole reports whether loginName holds role. An unknown login name holds
// no roles.
func (a *Adapter) HasRole(ctx context.Context, loginName string, role models.Role) (bool, error) {
	roles, err := a.Roles(ctx, loginName)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

// Roles returns the grants of loginName through the role cache.
func (a *Adapter) Roles(ctx context.Context, loginName string) ([]models.Role, error) {
	defer a.observe("roles")()
	return a.roles.get(ctx, loginName)
}

// InvalidateRoles drops the cached grants of loginName.
func (a *Adapter) InvalidateRoles(ctx context.Context, loginName string) {
	a.roles.invalidate(ctx, loginName)
}
