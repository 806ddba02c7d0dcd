package versions

import (
	"trip_planner/planner/schema"

	"gorm.io/gorm"
)

func Migration_1_initial_schema(txn *gorm.DB) error {
	return txn.AutoMigrate(
		&schema.User{}, &schema.Trip{}, &schema.TripCollaborator{},
		&schema.Marker{}, &schema.Tour{}, &schema.TourMarker{}, &schema.Route{},
	)
}

func Rollback_1_initial_schema(txn *gorm.DB) error {
	return txn.Migrator().DropTable(
		&schema.Route{}, &schema.TourMarker{}, &schema.Tour{}, &schema.Marker{},
		&schema.TripCollaborator{}, &schema.Trip{}, &schema.User{},
	)
}
