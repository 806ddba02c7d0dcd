package services

import (
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
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MarkerService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

// Mounted at /trip/{trip_id}/markers.
func (s *MarkerService) TripRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.With(auth.TripPermissionOnly(s.db, auth.ViewPermission)).Get("/", s.List)
	r.With(auth.TripPermissionOnly(s.db, auth.EditPermission)).Post("/", s.Create)

	return r
}

func (s *MarkerService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Route("/{marker_id}", func(r chi.Router) {
		r.Use(auth.MarkerPermissionOnly(s.db, auth.ViewPermission))

		r.Get("/", s.Info)

		r.Group(func(r chi.Router) {
			r.Use(auth.MarkerCreatorOnly(s.db))

			r.Put("/", s.Update)
			r.Delete("/", s.Delete)
		})
	})

	return r
}

type markerParams struct {
	Name      string       `json:"name"`
	Type      string       `json:"type"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Notes     string       `json:"notes"`
	Url       string       `json:"url"`
	IsUnesco  bool         `json:"is_unesco"`
	Planned   plannedDates `json:"planned"`
}

func (p *markerParams) validate() error {
	if err := schema.CheckValidName(p.Name, 255); err != nil {
		return err
	}
	if p.Type == "" {
		p.Type = "other"
	}
	if err := schema.CheckValidMarkerType(p.Type); err != nil {
		return err
	}
	if err := schema.CheckValidCoordinates(p.Latitude, p.Longitude); err != nil {
		return err
	}
	if err := schema.CheckValidUrl(strings.TrimSpace(p.Url)); err != nil {
		return err
	}
	return schema.CheckValidPlannedDates(p.Planned.toSchema())
}

func (p *markerParams) apply(marker *schema.Marker) {
	marker.Name = strings.TrimSpace(p.Name)
	marker.Type = p.Type
	marker.Latitude = p.Latitude
	marker.Longitude = p.Longitude
	marker.Notes = p.Notes
	marker.Url = strings.TrimSpace(p.Url)
	marker.IsUnesco = p.IsUnesco
	marker.Planned = p.Planned.toSchema()
}

type MarkerInfo struct {
	Id        uuid.UUID    `json:"id"`
	TripId    uuid.UUID    `json:"trip_id"`
	CreatorId uuid.UUID    `json:"creator_id"`
	Name      string       `json:"name"`
	Type      string       `json:"type"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Notes     string       `json:"notes"`
	Url       string       `json:"url"`
	IsUnesco  bool         `json:"is_unesco"`
	Planned   plannedDates `json:"planned"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func convertToMarkerInfo(marker *schema.Marker) MarkerInfo {
	return MarkerInfo{
		Id:        marker.Id,
		TripId:    marker.TripId,
		CreatorId: marker.UserId,
		Name:      marker.Name,
		Type:      marker.Type,
		Latitude:  marker.Latitude,
		Longitude: marker.Longitude,
		Notes:     marker.Notes,
		Url:       marker.Url,
		IsUnesco:  marker.IsUnesco,
		Planned:   convertPlannedDates(marker.Planned),
		CreatedAt: marker.CreatedAt,
		UpdatedAt: marker.UpdatedAt,
	}
}

func (s *MarkerService) List(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	var markers []schema.Marker
	if result := s.db.Where("trip_id = ?", tripId).Order("created_at").Find(&markers); result.Error != nil {
		slog.Error("sql error listing markers", "trip_id", tripId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing markers: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]MarkerInfo, 0, len(markers))
	for _, m := range markers {
		infos = append(infos, convertToMarkerInfo(&m))
	}

	utils.WriteJsonResponse(w, infos)
}

type createMarkerResponse struct {
	MarkerId uuid.UUID `json:"marker_id"`
}

func (s *MarkerService) Create(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var params markerParams
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := params.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	marker := schema.Marker{Id: uuid.New(), TripId: tripId, UserId: user.Id}
	params.apply(&marker)

	if result := s.db.Create(&marker); result.Error != nil {
		slog.Error("sql error creating marker", "trip_id", tripId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error creating marker: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	slog.Info("created marker", "marker_id", marker.Id, "trip_id", tripId, "user_id", user.Id, "code", logging.MARKER_UPDATE)

	utils.WriteJsonResponse(w, createMarkerResponse{MarkerId: marker.Id})
}

func (s *MarkerService) Info(w http.ResponseWriter, r *http.Request) {
	markerId, ok := urlParamUUID(w, r, "marker_id")
	if !ok {
		return
	}

	marker, err := schema.GetMarker(markerId, s.db)
	if err != nil {
		err = schemaError(err)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, convertToMarkerInfo(&marker))
}

func (s *MarkerService) Update(w http.ResponseWriter, r *http.Request) {
	markerId, ok := urlParamUUID(w, r, "marker_id")
	if !ok {
		return
	}

	var params markerParams
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := params.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		marker, err := schema.GetMarker(markerId, txn)
		if err != nil {
			return schemaError(err)
		}

		params.apply(&marker)

		if err := txn.Save(&marker).Error; err != nil {
			return dbFailure("sql error updating marker", err, "marker_id", markerId)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating marker %v: %v", markerId, err), GetResponseCode(err))
		return
	}

	slog.Info("updated marker", "marker_id", markerId, "code", logging.MARKER_UPDATE)

	utils.WriteSuccess(w)
}

// Removes the marker from every tour it appears in and drops routes that start or end at it.
func (s *MarkerService) Delete(w http.ResponseWriter, r *http.Request) {
	markerId, ok := urlParamUUID(w, r, "marker_id")
	if !ok {
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		marker, err := schema.GetMarker(markerId, txn)
		if err != nil {
			return schemaError(err)
		}

		var tourIds []uuid.UUID
		if err := txn.Model(&schema.TourMarker{}).Distinct("tour_id").Where("marker_id = ?", markerId).Pluck("tour_id", &tourIds).Error; err != nil {
			return dbFailure("sql error listing tours containing marker", err, "marker_id", markerId)
		}

		if err := txn.Where("marker_id = ?", markerId).Delete(&schema.TourMarker{}).Error; err != nil {
			return dbFailure("sql error removing marker from tours", err, "marker_id", markerId)
		}

		for _, tourId := range tourIds {
			if err := compactTourMarkers(txn, tourId); err != nil {
				return err
			}
		}

		if err := txn.Where("start_marker_id = ? OR end_marker_id = ?", markerId, markerId).Delete(&schema.Route{}).Error; err != nil {
			return dbFailure("sql error deleting routes using marker", err, "marker_id", markerId)
		}

		if err := txn.Delete(&marker).Error; err != nil {
			return dbFailure("sql error deleting marker", err, "marker_id", markerId)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting marker %v: %v", markerId, err), GetResponseCode(err))
		return
	}

	slog.Info("deleted marker", "marker_id", markerId, "code", logging.MARKER_UPDATE)

	utils.WriteSuccess(w)
}
