package auth

import (
	"errors"
	"fmt"
	"net/http"
	"trip_planner/planner/schema"
	"trip_planner/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func AdminOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin() {
				http.Error(w, fmt.Sprintf("user %v is not an admin", user.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

type tripPermission int // Private so that no other permissions can be defined

const (
	NoPermission    tripPermission = 0
	ViewPermission  tripPermission = 1
	EditPermission  tripPermission = 2
	OwnerPermission tripPermission = 3
)

func (p tripPermission) String() string {
	switch p {
	case NoPermission:
		return "None"
	case ViewPermission:
		return "View"
	case EditPermission:
		return "Edit"
	case OwnerPermission:
		return "Owner"
	default:
		return "invalid permission"
	}
}

func GetTripPermissions(tripId uuid.UUID, user schema.User, db *gorm.DB) (tripPermission, error) {
	trip, err := schema.GetTrip(tripId, db, false)
	if err != nil {
		return NoPermission, err
	}

	if user.IsAdmin() || trip.UserId == user.Id {
		return OwnerPermission, nil
	}

	collaborator, err := schema.GetTripCollaborator(tripId, user.Id, db)
	if err != nil {
		if errors.Is(err, schema.ErrCollaboratorNotFound) {
			return NoPermission, nil
		}
		return NoPermission, err
	}

	if collaborator.Role == schema.EditorRole {
		return EditPermission, nil
	}
	return ViewPermission, nil
}

func notFoundOrInternal(err error) int {
	switch {
	case errors.Is(err, schema.ErrTripNotFound),
		errors.Is(err, schema.ErrMarkerNotFound),
		errors.Is(err, schema.ErrTourNotFound),
		errors.Is(err, schema.ErrRouteNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Resolves the trip a url param refers to and checks the user holds at least minPermission on it.
func tripResourcePermissionOnly(db *gorm.DB, param string, tripOf func(uuid.UUID, *gorm.DB) (uuid.UUID, error), minPermission tripPermission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			resourceId, err := utils.URLParamUUID(r, param)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			tripId, err := tripOf(resourceId, db)
			if err != nil {
				http.Error(w, err.Error(), notFoundOrInternal(err))
				return
			}

			permission, err := GetTripPermissions(tripId, user, db)
			if err != nil {
				http.Error(w, err.Error(), notFoundOrInternal(err))
				return
			}

			if permission >= minPermission {
				next.ServeHTTP(w, r)
				return
			}

			http.Error(w, fmt.Sprintf("user %v does not have required permission for trip %v (required=%v, actual=%v)", user.Id, tripId, minPermission, permission), http.StatusForbidden)
		}
		return http.HandlerFunc(hfn)
	}
}

func TripPermissionOnly(db *gorm.DB, minPermission tripPermission) func(http.Handler) http.Handler {
	return tripResourcePermissionOnly(db, "trip_id", func(id uuid.UUID, _ *gorm.DB) (uuid.UUID, error) {
		return id, nil
	}, minPermission)
}

func MarkerPermissionOnly(db *gorm.DB, minPermission tripPermission) func(http.Handler) http.Handler {
	return tripResourcePermissionOnly(db, "marker_id", func(id uuid.UUID, db *gorm.DB) (uuid.UUID, error) {
		marker, err := schema.GetMarker(id, db)
		return marker.TripId, err
	}, minPermission)
}

func TourPermissionOnly(db *gorm.DB, minPermission tripPermission) func(http.Handler) http.Handler {
	return tripResourcePermissionOnly(db, "tour_id", func(id uuid.UUID, db *gorm.DB) (uuid.UUID, error) {
		tour, err := schema.GetTour(id, db)
		return tour.TripId, err
	}, minPermission)
}

func RoutePermissionOnly(db *gorm.DB, minPermission tripPermission) func(http.Handler) http.Handler {
	return tripResourcePermissionOnly(db, "route_id", func(id uuid.UUID, db *gorm.DB) (uuid.UUID, error) {
		route, err := schema.GetRoute(id, db)
		return route.TripId, err
	}, minPermission)
}

// Marker mutation is limited to the user that created the marker, independent of how the
// trip is shared. Admins bypass the check.
func MarkerCreatorOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			markerId, err := utils.URLParamUUID(r, "marker_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			marker, err := schema.GetMarker(markerId, db)
			if err != nil {
				http.Error(w, err.Error(), notFoundOrInternal(err))
				return
			}

			if !user.IsAdmin() && marker.UserId != user.Id {
				http.Error(w, fmt.Sprintf("only the creator of marker %v may modify it", markerId), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}
