package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrTripNotFound         = errors.New("trip not found")
	ErrCollaboratorNotFound = errors.New("user is not a collaborator on trip")
	ErrMarkerNotFound       = errors.New("marker not found")
	ErrTourNotFound         = errors.New("tour not found")
	ErrRouteNotFound        = errors.New("route not found")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrDbAccessFailed       = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetUserByEmail(email string, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "LOWER(email) = LOWER(?)", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user by email", "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetTrip(tripId uuid.UUID, db *gorm.DB, loadCollaborators bool) (Trip, error) {
	var trip Trip

	var result *gorm.DB = db
	if loadCollaborators {
		result = result.Preload("Collaborators").Preload("Collaborators.User")
	}
	result = result.First(&trip, "id = ?", tripId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return trip, ErrTripNotFound
		}
		slog.Error("sql error in get trip", "trip_id", tripId, "error", result.Error)
		return trip, ErrDbAccessFailed
	}

	return trip, nil
}

func GetTripCollaborator(tripId, userId uuid.UUID, db *gorm.DB) (TripCollaborator, error) {
	var collaborator TripCollaborator

	result := db.First(&collaborator, "trip_id = ? AND user_id = ?", tripId, userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return collaborator, ErrCollaboratorNotFound
		}
		slog.Error("sql error in get trip collaborator", "trip_id", tripId, "user_id", userId, "error", result.Error)
		return collaborator, ErrDbAccessFailed
	}

	return collaborator, nil
}

func GetSharedTripIds(userId uuid.UUID, db *gorm.DB) ([]uuid.UUID, error) {
	var collaborations []TripCollaborator
	result := db.Find(&collaborations, "user_id = ?", userId)
	if result.Error != nil {
		slog.Error("sql error in get shared trip ids", "user_id", userId, "error", result.Error)
		return nil, ErrDbAccessFailed
	}
	ids := make([]uuid.UUID, 0, len(collaborations))
	for _, c := range collaborations {
		ids = append(ids, c.TripId)
	}
	return ids, nil
}

func GetMarker(markerId uuid.UUID, db *gorm.DB) (Marker, error) {
	var marker Marker

	result := db.First(&marker, "id = ?", markerId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return marker, ErrMarkerNotFound
		}
		slog.Error("sql error in get marker", "marker_id", markerId, "error", result.Error)
		return marker, ErrDbAccessFailed
	}

	return marker, nil
}

func GetTour(tourId uuid.UUID, db *gorm.DB) (Tour, error) {
	var tour Tour

	result := db.First(&tour, "id = ?", tourId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return tour, ErrTourNotFound
		}
		slog.Error("sql error in get tour", "tour_id", tourId, "error", result.Error)
		return tour, ErrDbAccessFailed
	}

	return tour, nil
}

func GetRoute(routeId uuid.UUID, db *gorm.DB) (Route, error) {
	var route Route

	result := db.First(&route, "id = ?", routeId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return route, ErrRouteNotFound
		}
		slog.Error("sql error in get route", "route_id", routeId, "error", result.Error)
		return route, ErrDbAccessFailed
	}

	return route, nil
}

func GetInvitationByTokenHash(tokenHash string, db *gorm.DB) (UserInvitation, error) {
	var invitation UserInvitation

	result := db.First(&invitation, "token_hash = ?", tokenHash)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return invitation, ErrInvitationNotFound
		}
		slog.Error("sql error in get invitation", "error", result.Error)
		return invitation, ErrDbAccessFailed
	}

	return invitation, nil
}
