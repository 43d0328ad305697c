package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/shop/app/identity"
	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/app/repositories"
	"github.com/shashiranjanraj/shop/app/services"
	"github.com/shashiranjanraj/shop/pkg/event"
)

func TestRegister_CreatesCustomerAndIdentity(t *testing.T) {
	f := setup(t)
	t.Cleanup(event.Flush)

	fired := make(chan services.CustomerRegistered, 1)
	event.Listen(services.EventCustomerRegistered, func(p interface{}) {
		fired <- p.(services.CustomerRegistered)
	})

	c := f.register(t, "theo", "Theodor", "theo@test.de")
	assert.NotZero(t, c.ID)
	assert.Equal(t, "theo", c.LoginName)
	assert.Zero(t, c.Version)

	id, err := f.identities.FindByLoginName(bg, "theo")
	require.NoError(t, err)
	assert.True(t, id.Enabled)
	assert.NotEmpty(t, id.PasswordHash)
	assert.Equal(t, []models.Role{models.RoleCustomer}, id.Roles)

	select {
	case ev := <-fired:
		assert.Equal(t, c.ID, ev.CustomerID)
		assert.Equal(t, "theo@test.de", ev.Email)
	case <-time.After(2 * time.Second):
		t.Fatal("customer.registered not fired")
	}
}

func TestRegister_LoginNameExists(t *testing.T) {
	f := setup(t)
	f.register(t, "theo", "Theodor", "theo@test.de")

	_, err := f.svc.Register(bg, models.NewPrivateCustomer(nil), newIdentity("theo", "Theodor", "theo2@test.de"))
	assert.ErrorIs(t, err, services.ErrLoginNameExists)
}

func TestRegister_EmailExists(t *testing.T) {
	f := setup(t)
	f.register(t, "maria", "Musterfrau", "other@test.de")

	_, err := f.svc.Register(bg, models.NewPrivateCustomer(nil), newIdentity("theo", "Theodor", "other@test.de"))
	assert.ErrorIs(t, err, services.ErrEmailExists)

	_, err = f.identities.FindByLoginName(bg, "theo")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestRegister_Invalid(t *testing.T) {
	f := setup(t)

	c := models.NewPrivateCustomer(nil)
	c.TermsAccepted = false
	_, err := f.svc.Register(bg, c, newIdentity("theo", "theodor", "not-an-email"))
	require.ErrorIs(t, err, services.ErrInvalidCustomer)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("termsAccepted"))
	assert.True(t, verr.Has("identity.lastName"))
	assert.True(t, verr.Has("identity.email"))

	_, err = f.svc.Register(bg, models.NewPrivateCustomer(nil), nil)
	assert.ErrorIs(t, err, services.ErrInvalidCustomer)
}

func TestRegister_RemovesIdentityWhenInsertFails(t *testing.T) {
	f := setup(t)

	// A customer row without identity makes the insert collide.
	ghost := models.NewCorporateCustomer(nil)
	ghost.LoginName = "ghost"
	require.NoError(t, f.customers.Create(bg, ghost))

	_, err := f.svc.Register(bg, models.NewPrivateCustomer(nil), newIdentity("ghost", "Geist", "ghost@test.de"))
	assert.ErrorIs(t, err, services.ErrLoginNameExists)

	_, err = f.identities.FindByLoginName(bg, "ghost")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestUpdate_SameEmailSameLogin(t *testing.T) {
	f := setup(t)
	c := f.register(t, "theo", "Theodor", "theo@test.de")

	loaded, err := f.svc.FindByID(bg, c.ID, repositories.CustomerOnly)
	require.NoError(t, err)
	loaded.Category = 3
	loaded.Identity.FirstName = "Theo"

	updated, err := f.svc.Update(bg, loaded, false)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, 3, updated.Category)
	assert.Equal(t, "Theo", updated.Identity.FirstName)
	assert.Equal(t, 0, loaded.Version, "input is not modified")

	id, err := f.identities.FindByLoginName(bg, "theo")
	require.NoError(t, err)
	assert.Equal(t, "Theo", id.FirstName)
	assert.Equal(t, []models.Role{models.RoleCustomer}, id.Roles)
}

func TestUpdate_EmailOwnedByOtherLogin(t *testing.T) {
	f := setup(t)
	c := f.register(t, "theo", "Theodor", "theo@test.de")
	f.register(t, "maria", "Musterfrau", "other@test.de")

	loaded, err := f.svc.FindByID(bg, c.ID, repositories.CustomerOnly)
	require.NoError(t, err)
	loaded.Identity.Email = "other@test.de"

	_, err = f.svc.Update(bg, loaded, false)
	require.ErrorIs(t, err, services.ErrEmailExists)
	var ee *services.EmailExistsError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "maria", ee.Owner)

	id, err := f.identities.FindByLoginName(bg, "theo")
	require.NoError(t, err)
	assert.Equal(t, "theo@test.de", id.Email)
}

func TestUpdate_LostUpdateLeavesIdentityUntouched(t *testing.T) {
	for _, alreadyLoaded := range []bool{false, true} {
		t.Run(map[bool]string{false: "checked", true: "already_loaded"}[alreadyLoaded], func(t *testing.T) {
			f := setup(t)
			c := f.register(t, "theo", "Theodor", "theo@test.de")

			first, err := f.svc.FindByID(bg, c.ID, repositories.CustomerOnly)
			require.NoError(t, err)
			stale := first.Clone()

			first.Category = 1
			_, err = f.svc.Update(bg, first, false)
			require.NoError(t, err)

			stale.Category = 5
			stale.Identity.FirstName = "Changed"
			stale.Identity.Email = "new@test.de"
			_, err = f.svc.Update(bg, stale, alreadyLoaded)
			assert.ErrorIs(t, err, services.ErrLostUpdate)

			id, err := f.identities.FindByLoginName(bg, "theo")
			require.NoError(t, err)
			assert.Equal(t, "Test", id.FirstName)
			assert.Equal(t, "theo@test.de", id.Email)
			assert.Equal(t, []models.Role{models.RoleCustomer}, id.Roles)

			got, err := f.svc.FindByID(bg, c.ID, repositories.CustomerOnly)
			require.NoError(t, err)
			assert.Equal(t, 1, got.Category)
			assert.Equal(t, 1, got.Version)
		})
	}
}

func TestUpdate_ConcurrentlyDeleted(t *testing.T) {
	for _, alreadyLoaded := range []bool{false, true} {
		f := setup(t)
		c := f.register(t, "theo", "Theodor", "theo@test.de")

		loaded, err := f.svc.FindByID(bg, c.ID, repositories.CustomerOnly)
		require.NoError(t, err)
		require.NoError(t, f.svc.Delete(bg, c.ID))

		_, err = f.svc.Update(bg, loaded, alreadyLoaded)
		assert.ErrorIs(t, err, services.ErrConcurrentlyDeleted, "alreadyLoaded=%v", alreadyLoaded)
		assert.False(t, errors.Is(err, services.ErrNotFound))
	}
}

func TestUpdate_WithoutIdentityPayload(t *testing.T) {
	f := setup(t)
	c := f.register(t, "theo", "Theodor", "theo@test.de")

	c.Identity = nil
	c.Newsletter = true
	updated, err := f.svc.Update(bg, c, false)
	require.NoError(t, err)
	assert.True(t, updated.Newsletter)
	require.NotNil(t, updated.Identity)
	assert.Equal(t, "theo@test.de", updated.Identity.Email)
}

func TestUpdate_RejectsLoginNameChange(t *testing.T) {
	f := setup(t)
	c := f.register(t, "theo", "Theodor", "theo@test.de")

	loaded, err := f.svc.FindByID(bg, c.ID, repositories.CustomerOnly)
	require.NoError(t, err)
	loaded.Identity.LoginName = "theodor"

	_, err = f.svc.Update(bg, loaded, false)
	assert.ErrorIs(t, err, services.ErrInvalidCustomer)
}

func TestUpdate_AlreadyLoadedKeepsStoredLoginName(t *testing.T) {
	f := setup(t)
	c := f.register(t, "theo", "Theodor", "theo@test.de")
	f.register(t, "maria", "Maria", "maria@test.de")

	loaded, err := f.svc.FindByID(bg, c.ID, repositories.CustomerOnly)
	require.NoError(t, err)
	loaded.LoginName = "maria"
	loaded.Identity.LoginName = "maria"
	loaded.Identity.FirstName = "Changed"

	_, err = f.svc.Update(bg, loaded, true)
	assert.ErrorIs(t, err, services.ErrInvalidCustomer)

	maria, err := f.identities.FindByLoginName(bg, "maria")
	require.NoError(t, err)
	assert.Equal(t, "Test", maria.FirstName)
}

// interleavingStore runs between once, right after the first Replace, to
// stand in for an update that commits while another is still in flight.
type interleavingStore struct {
	identity.Store
	between func(ctx context.Context)
	once    sync.Once
}

func (s *interleavingStore) Replace(ctx context.Context, id *models.Identity) error {
	if err := s.Store.Replace(ctx, id); err != nil {
		return err
	}
	if s.between != nil {
		s.once.Do(func() { s.between(ctx) })
	}
	return nil
}

func TestUpdate_LostUpdateKeepsConcurrentIdentityChange(t *testing.T) {
	store := &interleavingStore{Store: identity.NewMemoryStore()}
	f := setupWithStore(t, store)
	c := f.register(t, "theo", "Theodor", "theo@test.de")

	loser, err := f.svc.FindByID(bg, c.ID, repositories.CustomerOnly)
	require.NoError(t, err)

	store.between = func(ctx context.Context) {
		winner, err := store.Store.Get(ctx, "theo")
		require.NoError(t, err)
		winner.FirstName = "Winner"
		require.NoError(t, store.Store.Replace(ctx, winner))

		row, err := f.customers.FindByID(ctx, c.ID, repositories.CustomerOnly)
		require.NoError(t, err)
		row.Category = 2
		require.NoError(t, f.customers.Merge(ctx, row))
	}

	loser.Category = 5
	loser.Identity.FirstName = "Loser"
	_, err = f.svc.Update(bg, loser, false)
	require.ErrorIs(t, err, services.ErrLostUpdate)

	id, err := f.identities.FindByLoginName(bg, "theo")
	require.NoError(t, err)
	assert.Equal(t, "Winner", id.FirstName)
}

func TestDelete_HasOrdersLeavesBothStores(t *testing.T) {
	f := setup(t)
	c := f.register(t, "theo", "Theodor", "theo@test.de")
	f.addOrder(t, c.ID)

	err := f.svc.Delete(bg, c.ID)
	require.ErrorIs(t, err, services.ErrHasOrders)
	var he *services.HasOrdersError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, 1, he.Count)

	_, err = f.svc.FindByID(bg, c.ID, repositories.CustomerOnly)
	assert.NoError(t, err)
	_, err = f.identities.FindByLoginName(bg, "theo")
	assert.NoError(t, err)
}

func TestDelete_HasCartPositions(t *testing.T) {
	f := setup(t)
	c := f.register(t, "theo", "Theodor", "theo@test.de")
	require.NoError(t, f.carts.Add(bg, &models.CartPosition{CustomerID: c.ID, ArticleID: 3, Quantity: 2}))

	err := f.svc.Delete(bg, c.ID)
	require.ErrorIs(t, err, services.ErrHasCartPositions)
	var he *services.HasCartPositionsError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, 1, he.Count())

	_, err = f.identities.FindByLoginName(bg, "theo")
	assert.NoError(t, err)
}

func TestDelete_RemovesBothRecords(t *testing.T) {
	f := setup(t)
	c := f.register(t, "theo", "Theodor", "theo@test.de")

	require.NoError(t, f.svc.Delete(bg, c.ID))

	_, err := f.svc.FindByID(bg, c.ID, repositories.CustomerOnly)
	assert.ErrorIs(t, err, services.ErrNotFound)
	_, err = f.identities.FindByLoginName(bg, "theo")
	assert.ErrorIs(t, err, identity.ErrNotFound)

	assert.NoError(t, f.svc.Delete(bg, c.ID), "deleting twice is a no-op")
}

func TestCustomerLifecycle_EndToEnd(t *testing.T) {
	f := setup(t)
	theo := f.register(t, "theo", "Theodor", "theo@test.de")
	f.register(t, "maria", "Musterfrau", "other@test.de")

	loaded, err := f.svc.FindByID(bg, theo.ID, repositories.CustomerOnly)
	require.NoError(t, err)
	loaded.Identity.Email = "theo@test.de"
	loaded.Remarks = "same e-mail again"
	current, err := f.svc.Update(bg, loaded, false)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version)

	taken := current.Clone()
	taken.Identity.Email = "other@test.de"
	_, err = f.svc.Update(bg, taken, false)
	assert.ErrorIs(t, err, services.ErrEmailExists)

	stale := current.Clone()
	stale.Version = current.Version - 1
	_, err = f.svc.Update(bg, stale, false)
	assert.ErrorIs(t, err, services.ErrLostUpdate)

	order := f.addOrder(t, theo.ID)
	err = f.svc.Delete(bg, theo.ID)
	var he *services.HasOrdersError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, 1, he.Count)

	require.NoError(t, f.orders.Delete(bg, order.ID))
	require.NoError(t, f.svc.Delete(bg, theo.ID))
	_, err = f.svc.FindByID(bg, theo.ID, repositories.CustomerOnly)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestReads(t *testing.T) {
	f := setup(t)
	theo := f.register(t, "theo", "Theodor", "theo@test.de")
	maria := f.register(t, "maria", "Musterfrau", "maria@shop.de")
	f.register(t, "anna", "Musterfrau", "anna@test.de")
	order := f.addOrder(t, maria.ID)

	byLogin, err := f.svc.FindByLoginName(bg, "theo", repositories.CustomerOnly)
	require.NoError(t, err)
	assert.Equal(t, theo.ID, byLogin.ID)
	assert.True(t, byLogin.TermsAccepted)
	require.NotNil(t, byLogin.Identity)
	assert.Equal(t, "theo@test.de", byLogin.Identity.Email)

	byOrder, err := f.svc.FindByOrderID(bg, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "maria", byOrder.LoginName)

	withOrders, err := f.svc.FindByID(bg, maria.ID, repositories.WithOrders)
	require.NoError(t, err)
	assert.Len(t, withOrders.Orders, 1)

	prefixed, err := f.svc.FindByEmailPrefix(bg, "theo@")
	require.NoError(t, err)
	require.Len(t, prefixed, 1)
	assert.Equal(t, "theo", prefixed[0].LoginName)

	family, err := f.svc.FindByLastName(bg, "Musterfrau", repositories.CustomerOnly)
	require.NoError(t, err)
	assert.Len(t, family, 2)

	all, err := f.svc.FindAll(bg, repositories.CustomerOnly)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	since, err := f.svc.FindSince(bg, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, since, 3)

	names, err := f.svc.LoginNamesByPrefix(bg, "ma")
	require.NoError(t, err)
	assert.Equal(t, []string{"maria"}, names)

	ids, err := f.svc.IDsByPrefix(bg, "1")
	require.NoError(t, err)
	assert.Contains(t, ids, theo.ID)

	_, err = f.svc.FindByLoginName(bg, "nobody", repositories.CustomerOnly)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestReads_RefreshIdentityOnLoad(t *testing.T) {
	f := setup(t)
	c := f.register(t, "theo", "Theodor", "theo@test.de")

	id, err := f.identities.FindByLoginName(bg, "theo")
	require.NoError(t, err)
	id.Email = "changed@test.de"
	require.NoError(t, f.identities.Update(bg, id))

	got, err := f.svc.FindByID(bg, c.ID, repositories.CustomerOnly)
	require.NoError(t, err)
	assert.Equal(t, "changed@test.de", got.Email())
}
