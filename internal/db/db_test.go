package db

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"roomcheck-backend/config"
	"roomcheck-backend/internal/model"
)

func TestInit_SQLiteMigratesAllTables(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:                 "sqlite",
		DSN:                    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns:           1,
		MaxIdleConns:           1,
		ConnMaxLifetimeMinutes: 5,
		LogLevel:               "silent",
	}

	gormDB, err := Init(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	for _, m := range model.All() {
		assert.True(t, gormDB.Migrator().HasTable(m), "missing table for %T", m)
	}
	assert.True(t, gormDB.Migrator().HasIndex(&model.Room{}, "LockedByGuestID"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "mysql", DSN: "x"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
