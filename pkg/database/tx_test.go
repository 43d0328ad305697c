package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/shop/pkg/database"
)

type note struct {
	ID   uint `gorm:"primaryKey"`
	Text string
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, db.AutoMigrate(&note{}))

	boom := errors.New("boom")
	err = database.Transaction(context.Background(), db, func(ctx context.Context) error {
		assert.True(t, database.InTransaction(ctx))
		require.NoError(t, database.Conn(ctx, db).Create(&note{Text: "a"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&note{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTransaction_NestedJoinsOuter(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, db.AutoMigrate(&note{}))

	err = database.Transaction(context.Background(), db, func(ctx context.Context) error {
		return database.Transaction(ctx, db, func(inner context.Context) error {
			return database.Conn(inner, db).Create(&note{Text: "b"}).Error
		})
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&note{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.False(t, database.InTransaction(context.Background()))
}
