package identity

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/pkg/auth"
	"github.com/shashiranjanraj/shop/pkg/cache"
)

// countingStore counts backend role reads so tests can observe the cache.
type countingStore struct {
	*MemoryStore
	roleReads atomic.Int64
}

func (s *countingStore) Roles(ctx context.Context, loginName string) ([]models.Role, error) {
	s.roleReads.Add(1)
	return s.MemoryStore.Roles(ctx, loginName)
}

func newAdapter(t *testing.T) (*Adapter, *countingStore) {
	t.Helper()
	auth.SetCost(bcrypt.MinCost)
	t.Cleanup(func() { auth.SetCost(bcrypt.DefaultCost) })

	store := &countingStore{MemoryStore: NewMemoryStore()}
	return NewAdapter(store, cache.NewMemory(), time.Minute), store
}

func theo() *models.Identity {
	return &models.Identity{
		LoginName: "theo",
		Password:  "secret",
		LastName:  "Theodor",
		Email:     "theo@test.de",
		Address:   models.Address{PostalCode: "76133", City: "Karlsruhe"},
	}
}

func TestAdapter_CreateGrantsDefaultRoleAndHashes(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t)

	in := theo()
	require.NoError(t, a.Create(ctx, in))
	assert.Empty(t, in.Password)
	assert.True(t, in.Enabled)

	got, err := a.FindByLoginName(ctx, "theo")
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, []models.Role{models.RoleCustomer}, got.Roles)
	assert.True(t, auth.CheckPassword(got.PasswordHash, "secret"))

	assert.ErrorIs(t, a.Create(ctx, theo()), ErrLoginNameExists)
}

func TestAdapter_FindByEmailReturnsAllSharers(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t)

	require.NoError(t, a.Create(ctx, theo()))
	twin := theo()
	twin.LoginName = "theo2"
	require.NoError(t, a.Create(ctx, twin))

	ids, err := a.FindByEmail(ctx, "theo@test.de")
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "theo", ids[0].LoginName)
	assert.Equal(t, "theo2", ids[1].LoginName)

	ids, err = a.FindByEmailPrefix(ctx, "theo@")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	names, err := a.LoginNamesByPrefix(ctx, "theo")
	require.NoError(t, err)
	assert.Equal(t, []string{"theo", "theo2"}, names)

	names, err = a.FindLoginNamesByLastName(ctx, "Theodor")
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

func TestAdapter_UpdateKeepsHashUnlessPasswordGiven(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t)
	require.NoError(t, a.Create(ctx, theo()))

	cur, err := a.FindByLoginName(ctx, "theo")
	require.NoError(t, err)
	oldHash := cur.PasswordHash

	edit := cur.Clone()
	edit.PasswordHash = ""
	edit.Email = "theo@example.de"
	require.NoError(t, a.Update(ctx, edit))

	got, err := a.FindByLoginName(ctx, "theo")
	require.NoError(t, err)
	assert.Equal(t, "theo@example.de", got.Email)
	assert.Equal(t, oldHash, got.PasswordHash)
	assert.Equal(t, []models.Role{models.RoleCustomer}, got.Roles)

	edit.Password = "changed"
	require.NoError(t, a.Update(ctx, edit))
	got, err = a.FindByLoginName(ctx, "theo")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(got.PasswordHash, "changed"))

	missing := theo()
	missing.LoginName = "nobody"
	assert.ErrorIs(t, a.Update(ctx, missing), ErrNotFound)
}

func TestAdapter_RoleCacheReadThroughAndInvalidation(t *testing.T) {
	ctx := context.Background()
	a, store := newAdapter(t)
	require.NoError(t, a.Create(ctx, theo()))

	ok, err := a.HasRole(ctx, "theo", models.RoleCustomer)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = a.HasRole(ctx, "theo", models.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, 1, store.roleReads.Load(), "second lookup must be served from cache")

	require.NoError(t, a.GrantRoles(ctx, "theo", models.RoleAdmin, models.RoleEmployee))
	ok, err = a.HasRole(ctx, "theo", models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 2, store.roleReads.Load())

	require.NoError(t, a.RevokeRoles(ctx, "theo", models.RoleAdmin))
	roles, err := a.Roles(ctx, "theo")
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.Role{models.RoleCustomer, models.RoleEmployee}, roles)

	assert.ErrorIs(t, a.GrantRoles(ctx, "theo", models.Role("root")), ErrUnknownRole)
	assert.ErrorIs(t, a.GrantRoles(ctx, "nobody", models.RoleAdmin), ErrNotFound)
}

func TestAdapter_RemoveIsIdempotentAndClearsRoles(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t)
	require.NoError(t, a.Create(ctx, theo()))

	_, err := a.Roles(ctx, "theo")
	require.NoError(t, err)

	require.NoError(t, a.Remove(ctx, "theo"))
	require.NoError(t, a.Remove(ctx, "theo"))

	_, err = a.FindByLoginName(ctx, "theo")
	assert.ErrorIs(t, err, ErrNotFound)
	ok, err := a.HasRole(ctx, "theo", models.RoleCustomer)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdapter_RestoreRevertsUpdate(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t)
	require.NoError(t, a.Create(ctx, theo()))
	require.NoError(t, a.GrantRoles(ctx, "theo", models.RoleEmployee))

	snapshot, err := a.FindByLoginName(ctx, "theo")
	require.NoError(t, err)

	edit := snapshot.Clone()
	edit.Email = "elsewhere@test.de"
	edit.Password = "other"
	require.NoError(t, a.Update(ctx, edit))
	require.NoError(t, a.RevokeRoles(ctx, "theo", models.RoleEmployee))

	require.NoError(t, a.Restore(ctx, snapshot))

	got, err := a.FindByLoginName(ctx, "theo")
	require.NoError(t, err)
	assert.Equal(t, "theo@test.de", got.Email)
	assert.Equal(t, snapshot.PasswordHash, got.PasswordHash)
	assert.ElementsMatch(t, snapshot.Roles, got.Roles)

	require.NoError(t, a.Remove(ctx, "theo"))
	require.NoError(t, a.Restore(ctx, snapshot))
	got, err = a.FindByLoginName(ctx, "theo")
	require.NoError(t, err)
	assert.ElementsMatch(t, snapshot.Roles, got.Roles)
}

func TestAdapter_RevertOnlyOverOwnWrite(t *testing.T) {
	ctx := context.Background()
	a, store := newAdapter(t)
	require.NoError(t, a.Create(ctx, theo()))

	snapshot, err := a.FindByLoginName(ctx, "theo")
	require.NoError(t, err)

	edit := snapshot.Clone()
	edit.FirstName = "Mine"
	written, err := a.Apply(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, "Mine", written.FirstName)

	restored, err := a.Revert(ctx, written, snapshot)
	require.NoError(t, err)
	assert.True(t, restored)
	got, err := a.FindByLoginName(ctx, "theo")
	require.NoError(t, err)
	assert.Empty(t, got.FirstName)

	written, err = a.Apply(ctx, edit)
	require.NoError(t, err)
	other := written.Clone()
	other.FirstName = "Theirs"
	require.NoError(t, store.Replace(ctx, other))

	restored, err = a.Revert(ctx, written, snapshot)
	require.NoError(t, err)
	assert.False(t, restored)
	got, err = a.FindByLoginName(ctx, "theo")
	require.NoError(t, err)
	assert.Equal(t, "Theirs", got.FirstName)
}
