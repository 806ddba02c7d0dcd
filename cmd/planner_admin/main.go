package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"trip_planner/planner/auth"
	"trip_planner/planner/schema"
	"trip_planner/utils"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

const usage = `usage: planner_admin <command> [flags]

commands:
  create-admin    create an admin account, or promote an existing account to admin
  reset-password  set a new password for an account
`

func openDb(envFile, dbUri string) (*gorm.DB, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("error loading .env file '%v': %w", envFile, err)
		}
	}
	if dbUri == "" {
		dbUri = os.Getenv("DATABASE_URI")
	}
	if dbUri == "" {
		return nil, errors.New("database uri must be given with --db_uri or DATABASE_URI")
	}
	return utils.OpenDatabase(dbUri, nil)
}

func createAdmin(db *gorm.DB, name, email, password string) (string, error) {
	var message string
	err := db.Transaction(func(txn *gorm.DB) error {
		user, err := schema.GetUserByEmail(email, txn)
		if err == nil {
			if user.IsAdmin() {
				message = fmt.Sprintf("user %v is already an admin", user.Id)
				return nil
			}
			if err := txn.Model(&user).Update("role", schema.AdminRole).Error; err != nil {
				return fmt.Errorf("error promoting user: %w", err)
			}
			message = fmt.Sprintf("promoted user %v to admin", user.Id)
			return nil
		}
		if !errors.Is(err, schema.ErrUserNotFound) {
			return err
		}

		if err := schema.CheckValidEmail(email); err != nil {
			return err
		}
		if err := schema.CheckValidName(name, 100); err != nil {
			return err
		}

		id, err := auth.CreateUser(txn, auth.NewUser{
			Name: name, Email: email, Password: password, Role: schema.AdminRole, Verified: true,
		})
		if err != nil {
			return err
		}
		message = fmt.Sprintf("created admin %v", id)
		return nil
	})
	return message, err
}

func resetPassword(db *gorm.DB, email, password string) error {
	return db.Transaction(func(txn *gorm.DB) error {
		user, err := schema.GetUserByEmail(email, txn)
		if err != nil {
			return err
		}
		return auth.UpdatePassword(txn, user.Id, password)
	})
}

func run(args []string) error {
	if len(args) < 1 {
		return errors.New(usage)
	}

	flags := flag.NewFlagSet(args[0], flag.ExitOnError)
	envFile := flags.String("env", "", "File to load env variables from.")
	dbUri := flags.String("db_uri", "", "Database URI, defaults to the DATABASE_URI env variable.")
	email := flags.String("email", "", "Email of the account.")
	password := flags.String("password", "", "New password of the account.")

	switch args[0] {
	case "create-admin":
		name := flags.String("name", "admin", "Name of the admin account.")
		if err := flags.Parse(args[1:]); err != nil {
			return err
		}
		if *email == "" || *password == "" {
			return errors.New("create-admin requires --email and --password")
		}

		db, err := openDb(*envFile, *dbUri)
		if err != nil {
			return err
		}

		message, err := createAdmin(db, *name, *email, *password)
		if err != nil {
			return fmt.Errorf("error creating admin: %w", err)
		}
		log.Println(message)

	case "reset-password":
		if err := flags.Parse(args[1:]); err != nil {
			return err
		}
		if *email == "" || *password == "" {
			return errors.New("reset-password requires --email and --password")
		}

		db, err := openDb(*envFile, *dbUri)
		if err != nil {
			return err
		}

		if err := resetPassword(db, *email, *password); err != nil {
			return fmt.Errorf("error resetting password: %w", err)
		}
		log.Printf("password updated for %v", *email)

	default:
		return fmt.Errorf("unknown command '%v'\n\n%v", args[0], usage)
	}

	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
