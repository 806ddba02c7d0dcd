package main

import (
	"flag"
	"log"
	"trip_planner/cmd/migration/versions"
	"trip_planner/planner/schema"
	"trip_planner/utils"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID:       "1",
			Migrate:  versions.Migration_1_initial_schema,
			Rollback: versions.Rollback_1_initial_schema,
		},
		{
			ID:       "2",
			Migrate:  versions.Migration_2_invitations_and_usage,
			Rollback: versions.Rollback_2_invitations_and_usage,
		},
	}
}

func main() {
	dbUri := flag.String("db_uri", "", "Database URI, either postgresql://... or sqlite://<path>")
	rollback := flag.Bool("rollback", false, "If specified will roll back the last applied migration instead of migrating.")
	flag.Parse()

	if *dbUri == "" {
		log.Fatalf("Missing --db_uri arg")
	}

	db, err := utils.OpenDatabase(*dbUri, nil)
	if err != nil {
		log.Fatal(err)
	}

	migration := gormigrate.New(db, gormigrate.DefaultOptions, migrations())

	migration.InitSchema(func(txn *gorm.DB) error {
		log.Println("clean database detected, running full schema initialization")

		return txn.AutoMigrate(schema.AllModels()...)
	})

	if *rollback {
		if err := migration.RollbackLast(); err != nil {
			log.Fatalf("rollback failed: %v", err)
		}
		log.Println("rollback completed successfully")
		return
	}

	if err := migration.Migrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	log.Println("migration completed successfully")
}
