package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"trip_planner/planner/auth"
	"trip_planner/planner/schema"
	"trip_planner/utils"
	"trip_planner/utils/logging"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CollaboratorInfo struct {
	UserId    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *TripService) ListCollaborators(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	trip, err := schema.GetTrip(tripId, s.db, true)
	if err != nil {
		err = schemaError(err)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	infos := make([]CollaboratorInfo, 0, len(trip.Collaborators))
	for _, c := range trip.Collaborators {
		info := CollaboratorInfo{UserId: c.UserId, Role: c.Role, CreatedAt: c.CreatedAt}
		if c.User != nil {
			info.Name = c.User.Name
			info.Email = c.User.Email
		}
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, infos)
}

type addCollaboratorRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Adding an existing collaborator again updates their role.
func (s *TripService) AddCollaborator(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	var params addCollaboratorRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Role == "" {
		params.Role = schema.EditorRole
	}
	if err := schema.CheckValidCollaboratorRole(params.Role); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var collaborator schema.TripCollaborator
	err := s.db.Transaction(func(txn *gorm.DB) error {
		trip, err := schema.GetTrip(tripId, txn, false)
		if err != nil {
			return schemaError(err)
		}

		user, err := schema.GetUserByEmail(params.Email, txn)
		if err != nil {
			return schemaError(err)
		}

		if user.Id == trip.UserId {
			return invalid(errors.New("the trip owner cannot be added as a collaborator"))
		}

		collaborator = schema.TripCollaborator{TripId: tripId, UserId: user.Id, Role: params.Role}

		result := txn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trip_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role"}),
		}).Create(&collaborator)
		if result.Error != nil {
			return dbFailure("sql error adding trip collaborator", result.Error, "trip_id", tripId, "user_id", user.Id)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adding collaborator to trip %v: %v", tripId, err), GetResponseCode(err))
		return
	}

	slog.Info("added trip collaborator", "trip_id", tripId, "user_id", collaborator.UserId, "role", collaborator.Role, "code", logging.TRIP_SHARE)

	utils.WriteSuccess(w)
}

func (s *TripService) RemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	userId, ok := urlParamUUID(w, r, "user_id")
	if !ok {
		return
	}

	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if user.Id != userId {
			permission, err := auth.GetTripPermissions(tripId, user, txn)
			if err != nil {
				return schemaError(err)
			}
			if permission < auth.OwnerPermission {
				return CodedError(errors.New("only the trip owner can remove other collaborators"), http.StatusForbidden)
			}
		}

		result := txn.Where("trip_id = ? AND user_id = ?", tripId, userId).Delete(&schema.TripCollaborator{})
		if result.Error != nil {
			return dbFailure("sql error removing trip collaborator", result.Error, "trip_id", tripId, "user_id", userId)
		}
		if result.RowsAffected == 0 {
			return CodedError(schema.ErrCollaboratorNotFound, http.StatusNotFound)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing collaborator from trip %v: %v", tripId, err), GetResponseCode(err))
		return
	}

	slog.Info("removed trip collaborator", "trip_id", tripId, "user_id", userId, "removed_by", user.Id, "code", logging.TRIP_SHARE)

	utils.WriteSuccess(w)
}
