package versions

import (
	"trip_planner/planner/schema"

	"gorm.io/gorm"
)

// Adds invitation based registration and the map usage counter.
func Migration_2_invitations_and_usage(txn *gorm.DB) error {
	if err := txn.AutoMigrate(&schema.UserInvitation{}, &schema.MapUsage{}); err != nil {
		return err
	}

	// Users created before invitations existed were created by admins.
	return txn.Model(&schema.User{}).
		Where("email_verified_at IS NULL").
		Update("email_verified_at", gorm.Expr("created_at")).Error
}

func Rollback_2_invitations_and_usage(txn *gorm.DB) error {
	return txn.Migrator().DropTable(&schema.MapUsage{}, &schema.UserInvitation{})
}
