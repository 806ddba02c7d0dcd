package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"trip_planner/planner/schema"
	"trip_planner/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BasicIdentityProvider struct {
	jwtManager  *JwtManager
	db          *gorm.DB
	auditLog    AuditLogger
	allowSignup bool
}

type BasicProviderArgs struct {
	Secret      []byte
	TokenTTL    time.Duration
	AllowSignup bool

	AdminName     string
	AdminEmail    string
	AdminPassword string
}

func NewBasicIdentityProvider(db *gorm.DB, auditLog AuditLogger, args BasicProviderArgs) (IdentityProvider, error) {
	hashedPwd, err := HashPassword(args.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("error encrypting admin password: %w", err)
	}

	adminName := args.AdminName
	if adminName == "" {
		adminName = "admin"
	}

	err = addInitialAdminToDb(db, adminName, args.AdminEmail, hashedPwd)
	if err != nil {
		return nil, fmt.Errorf("error adding inital admin to db: %w", err)
	}

	ttl := args.TokenTTL
	if ttl == 0 {
		ttl = 12 * time.Hour
	}

	return &BasicIdentityProvider{
		jwtManager:  NewJwtManager(args.Secret, ttl),
		db:          db,
		auditLog:    auditLog,
		allowSignup: args.AllowSignup,
	}, nil
}

func (auth *BasicIdentityProvider) addUserToContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			userId, err := UserIdFromToken(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			user, err := schema.GetUser(userId, auth.db)
			if err != nil {
				if errors.Is(err, schema.ErrUserNotFound) {
					http.Error(w, err.Error(), http.StatusUnauthorized)
					return
				}
				http.Error(w, fmt.Sprintf("unable to find user %v: %v", userId, err), http.StatusInternalServerError)
				return
			}

			reqCtx := context.WithValue(r.Context(), userRequestContextKey, user)
			next.ServeHTTP(w, r.WithContext(reqCtx))
		}

		return http.HandlerFunc(handler)
	}
}

func (auth *BasicIdentityProvider) AuthMiddleware() chi.Middlewares {
	return chi.Middlewares{auth.jwtManager.Verifier(), auth.jwtManager.Authenticator(), auth.addUserToContext(), auth.auditLog.Middleware}
}

func (auth *BasicIdentityProvider) AllowDirectSignup() bool {
	return auth.allowSignup
}

func (auth *BasicIdentityProvider) LoginWithEmail(email, password string) (LoginResult, error) {
	var user schema.User
	result := auth.db.First(&user, "LOWER(email) = ?", strings.ToLower(email))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return LoginResult{}, ErrUserNotFoundWithEmail
		}
		slog.Error("sql error looking up user by email", "error", result.Error)
		return LoginResult{}, schema.ErrDbAccessFailed
	}

	if err := CheckPassword(user, password); err != nil {
		slog.Info("failed login attempt", "user_id", user.Id, "code", logging.USER_AUTH)
		return LoginResult{}, err
	}

	return auth.IssueToken(user.Id)
}

func (auth *BasicIdentityProvider) IssueToken(userId uuid.UUID) (LoginResult, error) {
	token, err := auth.jwtManager.CreateUserJwt(userId)
	if err != nil {
		return LoginResult{}, ErrGeneratingJwt
	}

	return LoginResult{UserId: userId, AccessToken: token}, nil
}

func (auth *BasicIdentityProvider) CreateUser(txn *gorm.DB, user NewUser) (uuid.UUID, error) {
	userId, err := CreateUser(txn, user)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error creating new user: %w", err)
	}
	return userId, nil
}

func (auth *BasicIdentityProvider) SetPassword(txn *gorm.DB, userId uuid.UUID, password string) error {
	return UpdatePassword(txn, userId, password)
}

func (auth *BasicIdentityProvider) GetTokenExpiration(r *http.Request) (time.Time, error) {
	token, _, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return time.Time{}, fmt.Errorf("error retrieving access token: %w", err)
	}

	return token.Expiration(), nil
}
