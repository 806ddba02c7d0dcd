package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"trip_planner/planner/auth"
	"trip_planner/planner/schema"
	"trip_planner/utils"
	"trip_planner/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	db        *gorm.DB
	userAuth  auth.IdentityProvider
	variables Variables
}

func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.variables.publicRateLimit(), time.Minute))

		if s.userAuth.AllowDirectSignup() {
			r.Post("/signup", s.Signup)
		}

		r.Get("/login", s.LoginWithEmail)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/info", s.Info)
		r.Put("/password", s.ChangePassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly(s.db))

		r.Get("/list", s.List)
		r.Post("/create", s.CreateUser)

		r.Delete("/{user_id}", s.DeleteUser)

		r.Post("/{user_id}/admin", s.PromoteAdmin)
		r.Delete("/{user_id}/admin", s.DemoteAdmin)
	})

	return r
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type signupResponse struct {
	UserId uuid.UUID `json:"user_id"`
}

func userCreationError(err error) error {
	switch {
	case errors.Is(err, auth.ErrEmailAlreadyInUse):
		return CodedError(err, http.StatusConflict)
	case errors.Is(err, auth.ErrPasswordTooShort):
		return CodedError(err, http.StatusUnprocessableEntity)
	case errors.Is(err, schema.ErrDbAccessFailed):
		return CodedError(err, http.StatusInternalServerError)
	}
	return CodedError(err, http.StatusUnprocessableEntity)
}

func (s *UserService) createUser(params signupRequest, role string, verified bool) (uuid.UUID, error) {
	if err := schema.CheckValidName(params.Name, 100); err != nil {
		return uuid.Nil, invalid(err)
	}
	if err := schema.CheckValidEmail(params.Email); err != nil {
		return uuid.Nil, invalid(err)
	}

	var userId uuid.UUID
	err := s.db.Transaction(func(txn *gorm.DB) error {
		id, err := s.userAuth.CreateUser(txn, auth.NewUser{
			Name:     strings.TrimSpace(params.Name),
			Email:    params.Email,
			Password: params.Password,
			Role:     role,
			Verified: verified,
		})
		if err != nil {
			return userCreationError(err)
		}
		userId = id
		return nil
	})

	return userId, err
}

func (s *UserService) Signup(w http.ResponseWriter, r *http.Request) {
	var params signupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if !s.userAuth.AllowDirectSignup() {
		http.Error(w, "direct signup is disabled, registration requires an invitation", http.StatusBadRequest)
		return
	}

	userId, err := s.createUser(params, schema.UserRole, false)
	if err != nil {
		http.Error(w, fmt.Sprintf("signup failed: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("new user signed up", "user_id", userId, "code", logging.USER_AUTH)

	utils.WriteJsonResponse(w, signupResponse{UserId: userId})
}

type loginResponse struct {
	UserId      uuid.UUID `json:"user_id"`
	AccessToken string    `json:"access_token"`
}

func (s *UserService) LoginWithEmail(w http.ResponseWriter, r *http.Request) {
	email, password, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
		return
	}

	login, err := s.userAuth.LoginWithEmail(email, password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrUserNotFoundWithEmail):
			responseCode = http.StatusNotFound
		case errors.Is(err, auth.ErrInvalidCredentials):
			responseCode = http.StatusUnauthorized
		}
		http.Error(w, fmt.Sprintf("login failed: %v", err), responseCode)
		return
	}

	res := loginResponse{UserId: login.UserId, AccessToken: login.AccessToken}
	utils.WriteJsonResponse(w, res)
}

type UserInfo struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Admin     bool      `json:"admin"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

func convertToUserInfo(user *schema.User) UserInfo {
	return UserInfo{
		Id:        user.Id,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		Admin:     user.IsAdmin(),
		Verified:  user.EmailVerifiedAt != nil,
		CreatedAt: user.CreatedAt,
	}
}

func (s *UserService) Info(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	utils.WriteJsonResponse(w, convertToUserInfo(&user))
}

func (s *UserService) List(w http.ResponseWriter, r *http.Request) {
	var users []schema.User
	result := s.db.Order("created_at").Find(&users)
	if result.Error != nil {
		slog.Error("sql error listing users", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing users: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]UserInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, convertToUserInfo(&u))
	}
	utils.WriteJsonResponse(w, infos)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (s *UserService) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var params changePasswordRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := auth.CheckPassword(user, params.OldPassword); err != nil {
		http.Error(w, "current password is incorrect", http.StatusUnauthorized)
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if err := s.userAuth.SetPassword(txn, user.Id, params.NewPassword); err != nil {
			if errors.Is(err, auth.ErrPasswordTooShort) {
				return invalid(err)
			}
			return schemaError(err)
		}
		return nil
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("error changing password: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("user changed password", "user_id", user.Id, "code", logging.USER_AUTH)

	utils.WriteSuccess(w)
}

func (s *UserService) CreateUser(w http.ResponseWriter, r *http.Request) {
	var params signupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	role := params.Role
	if role == "" {
		role = schema.UserRole
	}
	if err := schema.CheckValidUserRole(role); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	userId, err := s.createUser(params, role, true)
	if err != nil {
		http.Error(w, fmt.Sprintf("error creating user: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("admin created user", "user_id", userId, "role", role, "code", logging.USER_AUTH)

	utils.WriteJsonResponse(w, signupResponse{UserId: userId})
}

// Deleting a user hands their trips and markers over to the acting admin.
func (s *UserService) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userId, ok := urlParamUUID(w, r, "user_id")
	if !ok {
		return
	}

	admin, ok := currentUser(w, r)
	if !ok {
		return
	}

	if admin.Id == userId {
		http.Error(w, "admins cannot delete their own account", http.StatusUnprocessableEntity)
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetUser(userId, txn); err != nil {
			return schemaError(err)
		}

		var tripIds []uuid.UUID
		if err := txn.Model(&schema.Trip{}).Where("user_id = ?", userId).Pluck("id", &tripIds).Error; err != nil {
			return dbFailure("sql error listing trips of deleted user", err, "user_id", userId)
		}

		if len(tripIds) > 0 {
			if err := txn.Model(&schema.Trip{}).Where("id IN ?", tripIds).Update("user_id", admin.Id).Error; err != nil {
				return dbFailure("sql error reassigning trips of deleted user", err, "user_id", userId)
			}
			// The new owner is implicit and must not remain listed as a collaborator.
			if err := txn.Where("trip_id IN ? AND user_id = ?", tripIds, admin.Id).Delete(&schema.TripCollaborator{}).Error; err != nil {
				return dbFailure("sql error removing admin collaborations", err, "user_id", admin.Id)
			}
		}

		if err := txn.Model(&schema.Marker{}).Where("user_id = ?", userId).Update("user_id", admin.Id).Error; err != nil {
			return dbFailure("sql error reassigning markers of deleted user", err, "user_id", userId)
		}

		if err := txn.Model(&schema.UserInvitation{}).Where("invited_by = ?", userId).Update("invited_by", admin.Id).Error; err != nil {
			return dbFailure("sql error reassigning invitations of deleted user", err, "user_id", userId)
		}

		if err := txn.Where("user_id = ?", userId).Delete(&schema.TripCollaborator{}).Error; err != nil {
			return dbFailure("sql error removing collaborations of deleted user", err, "user_id", userId)
		}

		if err := txn.Delete(&schema.User{Id: userId}).Error; err != nil {
			return dbFailure("sql error deleting user", err, "user_id", userId)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting user %v: %v", userId, err), GetResponseCode(err))
		return
	}

	slog.Info("deleted user", "user_id", userId, "new_owner", admin.Id, "code", logging.USER_AUTH)

	utils.WriteSuccess(w)
}

func (s *UserService) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	userId, ok := urlParamUUID(w, r, "user_id")
	if !ok {
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		user, err := schema.GetUser(userId, txn)
		if err != nil {
			return schemaError(err)
		}

		if user.IsAdmin() {
			return CodedError(errors.New("user is already an admin"), http.StatusUnprocessableEntity)
		}

		if err := txn.Model(&user).Update("role", schema.AdminRole).Error; err != nil {
			return dbFailure("sql error updating user role to admin", err, "user_id", userId)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error promoting admin: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("promoted user to admin", "user_id", userId, "code", logging.USER_AUTH)

	utils.WriteSuccess(w)
}

func (s *UserService) DemoteAdmin(w http.ResponseWriter, r *http.Request) {
	userId, ok := urlParamUUID(w, r, "user_id")
	if !ok {
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		user, err := schema.GetUser(userId, txn)
		if err != nil {
			return schemaError(err)
		}

		if !user.IsAdmin() {
			return CodedError(errors.New("user is already not an admin"), http.StatusUnprocessableEntity)
		}

		count, err := countRows(txn, &schema.User{}, "role = ?", schema.AdminRole)
		if err != nil {
			return dbFailure("sql error counting existing admins", err)
		}

		if count < 2 {
			return CodedError(fmt.Errorf("cannot demote admin %v since there would be no admins left", userId), http.StatusUnprocessableEntity)
		}

		if err := txn.Model(&user).Update("role", schema.UserRole).Error; err != nil {
			return dbFailure("sql error updating user role to user", err, "user_id", userId)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error demoting admin: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("demoted admin", "user_id", userId, "code", logging.USER_AUTH)

	utils.WriteSuccess(w)
}
