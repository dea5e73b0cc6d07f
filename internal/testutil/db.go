// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"stockledger/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a fresh in-memory SQLite database with every table migrated.
// The pool is pinned to one connection so all queries see the same database;
// code under test must therefore use the transaction handle inside a
// transaction.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.StockCode{},
		&model.Mapping{},
		&model.StockHistoryEntry{},
		&model.OrderTracking{},
		&model.Operator{},
	))
	return db
}
