package tests

import (
	"bytes"
	"path/filepath"
	"testing"
	"trip_planner/planner/auth"
	"trip_planner/planner/mail"
	"trip_planner/planner/routing"
	"trip_planner/planner/schema"
	"trip_planner/planner/services"
	"trip_planner/planner/storage"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	planner services.Planner
	api     chi.Router
	db      *gorm.DB
	storage *storageStub
	routing *routingStub
	maps    *mapStub
	mailer  *mailerStub
}

const (
	adminName     = "admin"
	adminEmail    = "admin@planner.test"
	adminPassword = "admin_password123"
)

func setupTestEnv(t *testing.T) *testEnv {
	dbPath := filepath.Join(t.TempDir(), "planner.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}

	if err := db.AutoMigrate(schema.AllModels()...); err != nil {
		t.Fatal(err)
	}

	store := &storageStub{Storage: storage.NewSharedDisk(t.TempDir())}
	routingStub := newRoutingStub()
	maps := &mapStub{image: []byte("\x89PNG test image")}
	mailer := &mailerStub{LogMailer: mail.NewLogMailer()}

	userAuth, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(new(bytes.Buffer)),
		auth.BasicProviderArgs{
			Secret:        []byte("e1f0a2b9c7d4"),
			AdminName:     adminName,
			AdminEmail:    adminEmail,
			AdminPassword: adminPassword,
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	router := routing.NewRouter(map[string]routing.Provider{
		schema.Driving:         routingStub,
		schema.Cycling:         routingStub,
		schema.Walking:         routingStub,
		schema.PublicTransport: routingStub,
	})

	planner := services.NewPlanner(
		db, store, userAuth, router, maps, mailer,
		services.Variables{
			PublicUrl:           "http://localhost:3000",
			PublicRateLimit:     10000,
			MinFreeStorageBytes: 1024 * 1024,
		},
	)

	return &testEnv{
		planner: planner,
		api:     planner.Routes(),
		db:      db,
		storage: store,
		routing: routingStub,
		maps:    maps,
		mailer:  mailer,
	}
}

func (t *testEnv) newClient() client {
	return client{api: t.api}
}

func (t *testEnv) adminClient() (client, error) {
	c := t.newClient()
	err := c.login(loginInfo{Email: adminEmail, Password: adminPassword})
	return c, err
}

// Creates a user through the admin api and returns a client logged in as that user.
func (t *testEnv) newUser(name string) (client, error) {
	admin, err := t.adminClient()
	if err != nil {
		return client{}, err
	}

	login, err := admin.addUser(name, name+"@planner.test", name+"_password")
	if err != nil {
		return client{}, err
	}

	c := t.newClient()
	if err := c.login(login); err != nil {
		return client{}, err
	}
	c.email = login.Email

	return c, nil
}
