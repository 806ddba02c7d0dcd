package main

import (
	"path/filepath"
	"testing"
	"trip_planner/planner/schema"
	"trip_planner/utils"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsApplyAndRollback(t *testing.T) {
	db, err := utils.OpenDatabase("sqlite://"+filepath.Join(t.TempDir(), "migrate.db"), nil)
	require.NoError(t, err)

	migration := gormigrate.New(db, gormigrate.DefaultOptions, migrations())
	require.NoError(t, migration.Migrate())

	for _, model := range schema.AllModels() {
		assert.True(t, db.Migrator().HasTable(model))
	}

	require.NoError(t, migration.RollbackLast())
	assert.False(t, db.Migrator().HasTable(&schema.UserInvitation{}))
	assert.False(t, db.Migrator().HasTable(&schema.MapUsage{}))
	assert.True(t, db.Migrator().HasTable(&schema.Trip{}))

	require.NoError(t, migration.Migrate())
	assert.True(t, db.Migrator().HasTable(&schema.UserInvitation{}))
}
