package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"trip_planner/planner/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFoundWithEmail = errors.New("no user found for given email")
	ErrInvalidCredentials    = errors.New("invalid login credentials")
	ErrGeneratingJwt         = errors.New("error generating jwt")
	ErrEmailAlreadyInUse     = errors.New("email is already in use")
	ErrPasswordTooShort      = errors.New("password must be at least 8 characters")
)

const minPasswordLength = 8

type LoginResult struct {
	UserId      uuid.UUID
	AccessToken string
}

type NewUser struct {
	Name     string
	Email    string
	Password string
	Role     string
	Verified bool
}

type IdentityProvider interface {
	AuthMiddleware() chi.Middlewares

	AllowDirectSignup() bool

	LoginWithEmail(email, password string) (LoginResult, error)

	// Issues an access token without a password check, used after a user has just been
	// created through an accepted invitation.
	IssueToken(userId uuid.UUID) (LoginResult, error)

	// Creates the user using txn so that callers can combine it with other writes.
	CreateUser(txn *gorm.DB, user NewUser) (uuid.UUID, error)

	SetPassword(txn *gorm.DB, userId uuid.UUID, password string) error

	GetTokenExpiration(r *http.Request) (time.Time, error)
}

func HashPassword(password string) ([]byte, error) {
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return nil, fmt.Errorf("error encrypting password: %w", err)
	}
	return hashed, nil
}

// CreateUser inserts a user with a hashed password, rejecting emails already in use
// regardless of case.
func CreateUser(txn *gorm.DB, user NewUser) (uuid.UUID, error) {
	if err := schema.CheckValidUserRole(user.Role); err != nil {
		return uuid.Nil, err
	}

	hashedPwd, err := HashPassword(user.Password)
	if err != nil {
		return uuid.Nil, err
	}

	newUser := schema.User{
		Id:       uuid.New(),
		Name:     user.Name,
		Email:    strings.ToLower(strings.TrimSpace(user.Email)),
		Password: hashedPwd,
		Role:     user.Role,
	}
	if user.Verified {
		now := time.Now().UTC()
		newUser.EmailVerifiedAt = &now
	}

	var existingUser schema.User
	result := txn.Limit(1).Find(&existingUser, "LOWER(email) = ?", newUser.Email)
	if result.Error != nil {
		slog.Error("sql error checking for existing email", "error", result.Error)
		return uuid.Nil, schema.ErrDbAccessFailed
	}
	if result.RowsAffected != 0 {
		return uuid.Nil, ErrEmailAlreadyInUse
	}

	result = txn.Create(&newUser)
	if result.Error != nil {
		slog.Error("sql error creating new user entry", "error", result.Error)
		return uuid.Nil, schema.ErrDbAccessFailed
	}

	return newUser.Id, nil
}

func UpdatePassword(txn *gorm.DB, userId uuid.UUID, password string) error {
	hashedPwd, err := HashPassword(password)
	if err != nil {
		return err
	}

	result := txn.Model(&schema.User{Id: userId}).Update("password", hashedPwd)
	if result.Error != nil {
		slog.Error("sql error updating user password", "user_id", userId, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return schema.ErrUserNotFound
	}
	return nil
}

func addInitialAdminToDb(db *gorm.DB, name, email string, password []byte) error {
	now := time.Now().UTC()
	user := schema.User{
		Id:              uuid.New(),
		Name:            name,
		Email:           strings.ToLower(email),
		Password:        password,
		Role:            schema.AdminRole,
		EmailVerifiedAt: &now,
	}

	err := db.Transaction(func(txn *gorm.DB) error {
		var existingUser schema.User
		result := txn.Limit(1).Find(&existingUser, "LOWER(email) = ?", user.Email)
		if result.Error != nil {
			slog.Error("sql error checking if admin has already been added", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected == 0 {
			result := txn.Create(&user)
			if result.Error != nil {
				slog.Error("sql error creating initial admin user", "error", result.Error)
				return schema.ErrDbAccessFailed
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error adding initial admin to db: %w", err)
	}

	return nil
}

type requestContextKey string

const (
	userRequestContextKey requestContextKey = "user"
)

func CheckPassword(user schema.User, password string) error {
	if err := bcrypt.CompareHashAndPassword(user.Password, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
