package repositories_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/shop/app/models"
	_ "github.com/shashiranjanraj/shop/database/migrations"
	"github.com/shashiranjanraj/shop/pkg/database"
	"github.com/shashiranjanraj/shop/pkg/migration"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, migration.New(db, io.Discard).Run())
	return db
}

func newCustomer(login string) *models.Customer {
	c := models.NewPrivateCustomer(nil)
	c.LoginName = login
	c.Category = 1
	c.Revenue = decimal.RequireFromString("12.50")
	c.Private.Hobbies = []models.Hobby{models.HobbySport}
	return c
}

func ctx() context.Context { return context.Background() }

var day = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
