package main

import (
	"path/filepath"
	"testing"
	"trip_planner/planner/auth"
	"trip_planner/planner/schema"
	"trip_planner/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDb(t *testing.T) *gorm.DB {
	db, err := utils.OpenDatabase("sqlite://"+filepath.Join(t.TempDir(), "admin.db"), nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(schema.AllModels()...))
	return db
}

func TestCreateAdmin(t *testing.T) {
	db := setupDb(t)

	message, err := createAdmin(db, "root", "root@planner.test", "root_password")
	require.NoError(t, err)
	assert.Contains(t, message, "created admin")

	user, err := schema.GetUserByEmail("root@planner.test", db)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())
	assert.NotNil(t, user.EmailVerifiedAt)

	message, err = createAdmin(db, "root", "ROOT@planner.test", "root_password")
	require.NoError(t, err)
	assert.Contains(t, message, "already an admin")

	_, err = createAdmin(db, "x", "x@planner.test", "short")
	assert.ErrorIs(t, err, auth.ErrPasswordTooShort)
}

func TestCreateAdminPromotesExistingUser(t *testing.T) {
	db := setupDb(t)

	_, err := auth.CreateUser(db, auth.NewUser{Name: "abc", Email: "abc@planner.test", Password: "abc_password", Role: schema.UserRole})
	require.NoError(t, err)

	message, err := createAdmin(db, "ignored", "abc@planner.test", "ignored_password")
	require.NoError(t, err)
	assert.Contains(t, message, "promoted")

	user, err := schema.GetUserByEmail("abc@planner.test", db)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())
	assert.Equal(t, "abc", user.Name)
	assert.NoError(t, auth.CheckPassword(user, "abc_password"))
}

func TestResetPassword(t *testing.T) {
	db := setupDb(t)

	_, err := auth.CreateUser(db, auth.NewUser{Name: "abc", Email: "abc@planner.test", Password: "abc_password", Role: schema.UserRole})
	require.NoError(t, err)

	require.NoError(t, resetPassword(db, "abc@planner.test", "fresh_password"))

	user, err := schema.GetUserByEmail("abc@planner.test", db)
	require.NoError(t, err)
	assert.NoError(t, auth.CheckPassword(user, "fresh_password"))
	assert.ErrorIs(t, auth.CheckPassword(user, "abc_password"), auth.ErrInvalidCredentials)

	assert.ErrorIs(t, resetPassword(db, "nobody@planner.test", "fresh_password"), schema.ErrUserNotFound)
	assert.ErrorIs(t, resetPassword(db, "abc@planner.test", "short"), auth.ErrPasswordTooShort)
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	assert.Error(t, run([]string{}))
	assert.Error(t, run([]string{"drop-everything"}))
}
