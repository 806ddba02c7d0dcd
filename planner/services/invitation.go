package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"trip_planner/planner/auth"
	"trip_planner/planner/mail"
	"trip_planner/planner/schema"
	"trip_planner/utils"
	"trip_planner/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrInvitationNotValid = errors.New("invitation has expired or has already been accepted")

const maxInvitationHours = 30 * 24

type InvitationService struct {
	db        *gorm.DB
	userAuth  auth.IdentityProvider
	mailer    mail.Mailer
	variables Variables
}

func (s *InvitationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.variables.publicRateLimit(), time.Minute))

		r.Get("/token/{token}", s.Show)
		r.Post("/token/{token}/accept", s.Accept)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly(s.db))

		r.Post("/create", s.Create)
		r.Get("/list", s.List)
		r.Delete("/{invitation_id}", s.Delete)
	})

	return r
}

func generateRandomString(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	str := base64.RawURLEncoding.EncodeToString(bytes)
	if len(str) < n {
		return "", errors.New("insufficient length in generated string")
	}
	return str[:n], nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

type createInvitationRequest struct {
	Email          string `json:"email"`
	Role           string `json:"role"`
	ExpiresInHours *int   `json:"expires_in_hours"`
}

type createInvitationResponse struct {
	InvitationId uuid.UUID `json:"invitation_id"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
	EmailSent    bool      `json:"email_sent"`
}

func (s *InvitationService) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var params createInvitationRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	if err := schema.CheckValidEmail(email); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if params.Role == "" {
		params.Role = schema.UserRole
	}
	if err := schema.CheckValidUserRole(params.Role); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	ttl := s.variables.invitationTTL()
	if params.ExpiresInHours != nil {
		if *params.ExpiresInHours < 1 || *params.ExpiresInHours > maxInvitationHours {
			http.Error(w, fmt.Sprintf("expires_in_hours must be between 1 and %d", maxInvitationHours), http.StatusUnprocessableEntity)
			return
		}
		ttl = time.Duration(*params.ExpiresInHours) * time.Hour
	}

	token, err := generateRandomString(32)
	if err != nil {
		slog.Error("error generating invitation token", "error", err)
		http.Error(w, "error generating invitation token", http.StatusInternalServerError)
		return
	}

	invitation := schema.UserInvitation{
		Id:        uuid.New(),
		Email:     email,
		TokenHash: hashSecret(token),
		Role:      params.Role,
		InvitedBy: user.Id,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		_, err := schema.GetUserByEmail(email, txn)
		if err == nil {
			return CodedError(auth.ErrEmailAlreadyInUse, http.StatusConflict)
		}
		if !errors.Is(err, schema.ErrUserNotFound) {
			return schemaError(err)
		}

		if err := txn.Create(&invitation).Error; err != nil {
			return dbFailure("sql error creating invitation", err)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating invitation: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("created invitation", "invitation_id", invitation.Id, "invited_by", user.Id, "role", invitation.Role, "code", logging.INVITATION)

	emailSent := true
	err = s.mailer.Send(r.Context(), mail.Message{
		To:      email,
		Subject: "You have been invited to join the trip planner",
		Body: fmt.Sprintf(
			"%v has invited you to plan trips together.\n\nAccept the invitation here:\n%v\n\nThe link expires on %v.\n",
			user.Name, s.variables.InvitationLink(token), invitation.ExpiresAt.Format(time.RFC1123),
		),
	})
	if err != nil {
		slog.Error("error sending invitation email", "invitation_id", invitation.Id, "error", err, "code", logging.INVITATION)
		emailSent = false
	}

	utils.WriteJsonResponse(w, createInvitationResponse{
		InvitationId: invitation.Id,
		Token:        token,
		ExpiresAt:    invitation.ExpiresAt,
		EmailSent:    emailSent,
	})
}

type InvitationInfo struct {
	Id         uuid.UUID  `json:"id"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	InvitedBy  uuid.UUID  `json:"invited_by"`
	Status     string     `json:"status"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func invitationStatus(invitation *schema.UserInvitation, now time.Time) string {
	switch {
	case invitation.AcceptedAt != nil:
		return "accepted"
	case !invitation.IsValid(now):
		return "expired"
	default:
		return "pending"
	}
}

func (s *InvitationService) List(w http.ResponseWriter, r *http.Request) {
	var invitations []schema.UserInvitation
	if err := s.db.Order("created_at DESC").Find(&invitations).Error; err != nil {
		slog.Error("sql error listing invitations", "error", err)
		http.Error(w, fmt.Sprintf("error listing invitations: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	now := time.Now()
	infos := make([]InvitationInfo, 0, len(invitations))
	for _, inv := range invitations {
		infos = append(infos, InvitationInfo{
			Id:         inv.Id,
			Email:      inv.Email,
			Role:       inv.Role,
			InvitedBy:  inv.InvitedBy,
			Status:     invitationStatus(&inv, now),
			ExpiresAt:  inv.ExpiresAt,
			AcceptedAt: inv.AcceptedAt,
			CreatedAt:  inv.CreatedAt,
		})
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *InvitationService) Delete(w http.ResponseWriter, r *http.Request) {
	invitationId, ok := urlParamUUID(w, r, "invitation_id")
	if !ok {
		return
	}

	result := s.db.Delete(&schema.UserInvitation{}, "id = ?", invitationId)
	if result.Error != nil {
		slog.Error("sql error deleting invitation", "invitation_id", invitationId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error deleting invitation: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, schema.ErrInvitationNotFound.Error(), http.StatusNotFound)
		return
	}

	slog.Info("deleted invitation", "invitation_id", invitationId, "code", logging.INVITATION)

	utils.WriteSuccess(w)
}

// Unknown tokens are 404, known tokens that are expired or used are 410.
func validInvitation(db *gorm.DB, token string, now time.Time) (schema.UserInvitation, error) {
	invitation, err := schema.GetInvitationByTokenHash(hashSecret(token), db)
	if err != nil {
		return invitation, schemaError(err)
	}
	if !invitation.IsValid(now) {
		return invitation, CodedError(ErrInvitationNotValid, http.StatusGone)
	}
	return invitation, nil
}

type showInvitationResponse struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *InvitationService) Show(w http.ResponseWriter, r *http.Request) {
	token, err := utils.URLParam(r, "token")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	invitation, err := validInvitation(s.db, token, time.Now())
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, showInvitationResponse{
		Email:     invitation.Email,
		Role:      invitation.Role,
		ExpiresAt: invitation.ExpiresAt,
	})
}

type acceptInvitationRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *InvitationService) Accept(w http.ResponseWriter, r *http.Request) {
	token, err := utils.URLParam(r, "token")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params acceptInvitationRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := schema.CheckValidName(params.Name, 100); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var userId uuid.UUID
	var invitation schema.UserInvitation
	err = s.db.Transaction(func(txn *gorm.DB) error {
		now := time.Now().UTC()

		var err error
		invitation, err = validInvitation(txn, token, now)
		if err != nil {
			return err
		}

		if !strings.EqualFold(strings.TrimSpace(params.Email), invitation.Email) {
			return invalid(errors.New("email does not match the invitation"))
		}

		// Guarded on accepted_at so that a token can only be consumed once.
		result := txn.Model(&schema.UserInvitation{}).
			Where("id = ? AND accepted_at IS NULL", invitation.Id).
			Update("accepted_at", now)
		if result.Error != nil {
			return dbFailure("sql error marking invitation accepted", result.Error, "invitation_id", invitation.Id)
		}
		if result.RowsAffected == 0 {
			return CodedError(ErrInvitationNotValid, http.StatusGone)
		}

		userId, err = s.userAuth.CreateUser(txn, auth.NewUser{
			Name:     strings.TrimSpace(params.Name),
			Email:    invitation.Email,
			Password: params.Password,
			Role:     invitation.Role,
			Verified: true,
		})
		if err != nil {
			return userCreationError(err)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error accepting invitation: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("accepted invitation", "invitation_id", invitation.Id, "user_id", userId, "role", invitation.Role, "code", logging.INVITATION)

	login, err := s.userAuth.IssueToken(userId)
	if err != nil {
		http.Error(w, fmt.Sprintf("account created but login failed: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, loginResponse{UserId: login.UserId, AccessToken: login.AccessToken})
}
