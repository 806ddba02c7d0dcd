package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"trip_planner/planner/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupPermissionsDb(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(schema.AllModels()...))
	return db
}

func addUser(t *testing.T, db *gorm.DB, name, role string) schema.User {
	user := schema.User{Id: uuid.New(), Name: name, Email: name + "@planner.test", Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestGetTripPermissions(t *testing.T) {
	db := setupPermissionsDb(t)

	owner := addUser(t, db, "owner", schema.UserRole)
	editor := addUser(t, db, "editor", schema.UserRole)
	viewer := addUser(t, db, "viewer", schema.UserRole)
	outsider := addUser(t, db, "outsider", schema.UserRole)
	admin := addUser(t, db, "admin", schema.AdminRole)

	trip := schema.Trip{Id: uuid.New(), Name: "trip", UserId: owner.Id}
	require.NoError(t, db.Create(&trip).Error)
	require.NoError(t, db.Create(&schema.TripCollaborator{TripId: trip.Id, UserId: editor.Id, Role: schema.EditorRole}).Error)
	require.NoError(t, db.Create(&schema.TripCollaborator{TripId: trip.Id, UserId: viewer.Id, Role: schema.ViewerRole}).Error)

	expected := map[string]tripPermission{
		"owner":    OwnerPermission,
		"editor":   EditPermission,
		"viewer":   ViewPermission,
		"outsider": NoPermission,
		"admin":    OwnerPermission,
	}

	for _, user := range []schema.User{owner, editor, viewer, outsider, admin} {
		permission, err := GetTripPermissions(trip.Id, user, db)
		require.NoError(t, err)
		assert.Equal(t, expected[user.Name], permission, user.Name)
	}

	_, err := GetTripPermissions(uuid.New(), owner, db)
	assert.ErrorIs(t, err, schema.ErrTripNotFound)
}

func withUser(user schema.User, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userRequestContextKey, user)))
	})
}

func TestMarkerCreatorOnly(t *testing.T) {
	db := setupPermissionsDb(t)

	creator := addUser(t, db, "creator", schema.UserRole)
	owner := addUser(t, db, "owner", schema.UserRole)
	admin := addUser(t, db, "admin", schema.AdminRole)

	trip := schema.Trip{Id: uuid.New(), Name: "trip", UserId: owner.Id}
	require.NoError(t, db.Create(&trip).Error)

	marker := schema.Marker{Id: uuid.New(), Name: "m", Type: "other", TripId: trip.Id, UserId: creator.Id}
	require.NoError(t, db.Create(&marker).Error)

	status := func(user schema.User, markerId string) int {
		r := chi.NewRouter()
		r.With(func(next http.Handler) http.Handler { return withUser(user, next) }, MarkerCreatorOnly(db)).
			Put("/{marker_id}", func(w http.ResponseWriter, r *http.Request) {})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("PUT", "/"+markerId, nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, status(creator, marker.Id.String()))
	assert.Equal(t, http.StatusOK, status(admin, marker.Id.String()))
	assert.Equal(t, http.StatusForbidden, status(owner, marker.Id.String()))
	assert.Equal(t, http.StatusNotFound, status(creator, uuid.NewString()))
	assert.Equal(t, http.StatusBadRequest, status(creator, "xyz"))
}

func TestTripPermissionString(t *testing.T) {
	assert.Equal(t, "Edit", EditPermission.String())
	assert.True(t, OwnerPermission > EditPermission && EditPermission > ViewPermission && ViewPermission > NoPermission)
}
