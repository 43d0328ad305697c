package services_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/shop/app/identity"
	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/app/repositories"
	"github.com/shashiranjanraj/shop/app/services"
	_ "github.com/shashiranjanraj/shop/database/migrations"
	"github.com/shashiranjanraj/shop/pkg/auth"
	"github.com/shashiranjanraj/shop/pkg/cache"
	"github.com/shashiranjanraj/shop/pkg/database"
	"github.com/shashiranjanraj/shop/pkg/migration"
	"github.com/shashiranjanraj/shop/pkg/storage"
	"github.com/shashiranjanraj/shop/pkg/workerpool"
)

// countingDisk counts writes on a local disk and can fail Stat on demand.
type countingDisk struct {
	*storage.LocalDisk
	puts    atomic.Int64
	statErr error
}

func (d *countingDisk) Put(ctx context.Context, path string, content []byte) error {
	d.puts.Add(1)
	return d.LocalDisk.Put(ctx, path, content)
}

func (d *countingDisk) Stat(ctx context.Context, path string) (storage.FileInfo, error) {
	if d.statErr != nil {
		return storage.FileInfo{}, d.statErr
	}
	return d.LocalDisk.Stat(ctx, path)
}

type fixture struct {
	db         *gorm.DB
	identities *identity.Adapter
	svc        *services.CustomerService
	customers  *repositories.CustomerRepository
	orders     *repositories.OrderRepository
	carts      *repositories.CartRepository
	disk       *countingDisk
	pool       *workerpool.Pool
	writer     *services.AttachmentWriter
}

func setup(t *testing.T) *fixture {
	t.Helper()
	return setupWithStore(t, identity.NewMemoryStore())
}

func setupWithStore(t *testing.T, store identity.Store) *fixture {
	t.Helper()
	auth.SetCost(bcrypt.MinCost)
	t.Cleanup(func() { auth.SetCost(bcrypt.DefaultCost) })

	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, migration.New(db, io.Discard).Run())

	adapter := identity.NewAdapter(store, cache.NewMemory(), time.Minute)
	disk := &countingDisk{LocalDisk: storage.NewLocal(t.TempDir(), "http://localhost/storage")}
	pool := workerpool.New(2)
	t.Cleanup(pool.Shutdown)
	writer := services.NewAttachmentWriter(disk, pool, time.Second)

	return &fixture{
		db:         db,
		identities: adapter,
		svc:        services.NewCustomerService(db, adapter, services.WithAttachmentWriter(writer), services.WithSizeLimit(1024)),
		customers:  repositories.NewCustomerRepository(db),
		orders:     repositories.NewOrderRepository(db),
		carts:      repositories.NewCartRepository(db),
		disk:       disk,
		pool:       pool,
		writer:     writer,
	}
}

var bg = context.Background()

func newIdentity(login, lastName, email string) *models.Identity {
	return &models.Identity{
		LoginName: login,
		Password:  "p4ssw0rd",
		FirstName: "Test",
		LastName:  lastName,
		Email:     email,
		Address:   models.Address{PostalCode: "76133", City: "Karlsruhe", Street: "Moltkestr", HouseNumber: "30"},
	}
}

func (f *fixture) register(t *testing.T, login, lastName, email string) *models.Customer {
	t.Helper()
	c, err := f.svc.Register(bg, models.NewPrivateCustomer(nil), newIdentity(login, lastName, email))
	require.NoError(t, err)
	return c
}

func (f *fixture) addOrder(t *testing.T, customerID uint) *models.Order {
	t.Helper()
	o := &models.Order{CustomerID: customerID}
	o.AddLine(models.OrderLine{ArticleID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("9.99")})
	require.NoError(t, f.orders.Create(bg, o))
	return o
}

var errStat = errors.New("stat failed")
