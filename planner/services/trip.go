package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"trip_planner/planner/auth"
	"trip_planner/planner/schema"
	"trip_planner/planner/staticmap"
	"trip_planner/planner/storage"
	"trip_planner/utils"
	"trip_planner/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TripService struct {
	db        *gorm.DB
	storage   storage.Storage
	maps      staticmap.Provider
	userAuth  auth.IdentityProvider
	variables Variables
}

func (s *TripService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/create", s.Create)
	r.Get("/list", s.List)

	r.Route("/{trip_id}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.TripPermissionOnly(s.db, auth.ViewPermission))

			r.Get("/", s.Info)
			r.Get("/collaborators", s.ListCollaborators)
			r.Get("/preview", s.GetPreview)

			// Either the owner removing someone or a collaborator leaving.
			r.Delete("/collaborators/{user_id}", s.RemoveCollaborator)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.TripPermissionOnly(s.db, auth.EditPermission))

			r.Put("/", s.Update)
			r.With(checkSufficientStorage(s.storage, s.variables.MinFreeStorageBytes)).Post("/preview", s.GeneratePreview)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.TripPermissionOnly(s.db, auth.OwnerPermission))

			r.Delete("/", s.Delete)
			r.Post("/collaborators", s.AddCollaborator)
		})
	})

	return r
}

type plannedDates struct {
	StartYear  *int `json:"start_year"`
	StartMonth *int `json:"start_month"`
	StartDay   *int `json:"start_day"`
	EndYear    *int `json:"end_year"`
	EndMonth   *int `json:"end_month"`
	EndDay     *int `json:"end_day"`
}

func (p plannedDates) toSchema() schema.PlannedDates {
	return schema.PlannedDates{
		StartYear: p.StartYear, StartMonth: p.StartMonth, StartDay: p.StartDay,
		EndYear: p.EndYear, EndMonth: p.EndMonth, EndDay: p.EndDay,
	}
}

func convertPlannedDates(p schema.PlannedDates) plannedDates {
	return plannedDates{
		StartYear: p.StartYear, StartMonth: p.StartMonth, StartDay: p.StartDay,
		EndYear: p.EndYear, EndMonth: p.EndMonth, EndDay: p.EndDay,
	}
}

type viewport struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Zoom      *float64 `json:"zoom"`
}

type tripParams struct {
	Name                string       `json:"name"`
	Viewport            viewport     `json:"viewport"`
	Planned             plannedDates `json:"planned"`
	PlannedDurationDays *int         `json:"planned_duration_days"`
}

func (p *tripParams) validate() error {
	if err := schema.CheckValidName(p.Name, 255); err != nil {
		return err
	}
	if err := schema.CheckValidViewport(p.Viewport.Latitude, p.Viewport.Longitude, p.Viewport.Zoom); err != nil {
		return err
	}
	if err := schema.CheckValidPlannedDates(p.Planned.toSchema()); err != nil {
		return err
	}
	if p.PlannedDurationDays != nil && *p.PlannedDurationDays < 1 {
		return fmt.Errorf("invalid planned duration %d, must be at least 1 day", *p.PlannedDurationDays)
	}
	return nil
}

func (p *tripParams) apply(trip *schema.Trip) {
	trip.Name = strings.TrimSpace(p.Name)
	trip.ViewportLatitude = p.Viewport.Latitude
	trip.ViewportLongitude = p.Viewport.Longitude
	trip.ViewportZoom = p.Viewport.Zoom
	trip.Planned = p.Planned.toSchema()
	trip.PlannedDurationDays = p.PlannedDurationDays
}

type TripInfo struct {
	Id                  uuid.UUID    `json:"id"`
	Name                string       `json:"name"`
	OwnerId             uuid.UUID    `json:"owner_id"`
	OwnerName           string       `json:"owner_name"`
	Permission          string       `json:"permission"`
	Viewport            *viewport    `json:"viewport"`
	Planned             plannedDates `json:"planned"`
	PlannedDurationDays *int         `json:"planned_duration_days"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

func convertToTripInfo(trip *schema.Trip, permission string) TripInfo {
	info := TripInfo{
		Id:                  trip.Id,
		Name:                trip.Name,
		OwnerId:             trip.UserId,
		Permission:          permission,
		Planned:             convertPlannedDates(trip.Planned),
		PlannedDurationDays: trip.PlannedDurationDays,
		CreatedAt:           trip.CreatedAt,
		UpdatedAt:           trip.UpdatedAt,
	}
	if trip.User != nil {
		info.OwnerName = trip.User.Name
	}
	if trip.HasViewport() {
		info.Viewport = &viewport{Latitude: trip.ViewportLatitude, Longitude: trip.ViewportLongitude, Zoom: trip.ViewportZoom}
	}
	return info
}

func permissionName(user schema.User, trip *schema.Trip, collaboratorRoles map[uuid.UUID]string) string {
	if trip.UserId == user.Id {
		return "owner"
	}
	if role, ok := collaboratorRoles[trip.Id]; ok {
		return role
	}
	if user.IsAdmin() {
		return "admin"
	}
	return "none"
}

type createTripResponse struct {
	TripId uuid.UUID `json:"trip_id"`
}

func (s *TripService) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var params tripParams
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := params.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	trip := schema.Trip{Id: uuid.New(), UserId: user.Id}
	params.apply(&trip)

	if result := s.db.Create(&trip); result.Error != nil {
		slog.Error("sql error creating trip", "error", result.Error)
		http.Error(w, fmt.Sprintf("error creating trip: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	slog.Info("created trip", "trip_id", trip.Id, "user_id", user.Id, "code", logging.TRIP_UPDATE)

	utils.WriteJsonResponse(w, createTripResponse{TripId: trip.Id})
}

func (s *TripService) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var collaborations []schema.TripCollaborator
	if result := s.db.Find(&collaborations, "user_id = ?", user.Id); result.Error != nil {
		slog.Error("sql error listing collaborations", "user_id", user.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing trips: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	roles := make(map[uuid.UUID]string, len(collaborations))
	sharedIds := make([]uuid.UUID, 0, len(collaborations))
	for _, c := range collaborations {
		roles[c.TripId] = c.Role
		sharedIds = append(sharedIds, c.TripId)
	}

	query := s.db.Preload("User").Order("created_at")
	if !user.IsAdmin() {
		if len(sharedIds) > 0 {
			query = query.Where("user_id = ? OR id IN ?", user.Id, sharedIds)
		} else {
			query = query.Where("user_id = ?", user.Id)
		}
	}

	var trips []schema.Trip
	if result := query.Find(&trips); result.Error != nil {
		slog.Error("sql error listing trips", "user_id", user.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing trips: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]TripInfo, 0, len(trips))
	for _, trip := range trips {
		infos = append(infos, convertToTripInfo(&trip, permissionName(user, &trip, roles)))
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *TripService) Info(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var trip schema.Trip
	result := s.db.Preload("User").First(&trip, "id = ?", tripId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			http.Error(w, schema.ErrTripNotFound.Error(), http.StatusNotFound)
			return
		}
		slog.Error("sql error loading trip", "trip_id", tripId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error loading trip: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	roles := map[uuid.UUID]string{}
	collaborator, err := schema.GetTripCollaborator(tripId, user.Id, s.db)
	if err == nil {
		roles[tripId] = collaborator.Role
	} else if !errors.Is(err, schema.ErrCollaboratorNotFound) {
		http.Error(w, fmt.Sprintf("error loading trip: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, convertToTripInfo(&trip, permissionName(user, &trip, roles)))
}

func (s *TripService) Update(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	var params tripParams
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := params.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		trip, err := schema.GetTrip(tripId, txn, false)
		if err != nil {
			return schemaError(err)
		}

		params.apply(&trip)

		if err := txn.Save(&trip).Error; err != nil {
			return dbFailure("sql error updating trip", err, "trip_id", tripId)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating trip %v: %v", tripId, err), GetResponseCode(err))
		return
	}

	slog.Info("updated trip", "trip_id", tripId, "code", logging.TRIP_UPDATE)

	utils.WriteSuccess(w)
}

func deleteTripContents(txn *gorm.DB, tripId uuid.UUID) error {
	var tourIds []uuid.UUID
	if err := txn.Model(&schema.Tour{}).Where("trip_id = ?", tripId).Pluck("id", &tourIds).Error; err != nil {
		return dbFailure("sql error listing trip tours", err, "trip_id", tripId)
	}

	if len(tourIds) > 0 {
		if err := txn.Where("tour_id IN ?", tourIds).Delete(&schema.TourMarker{}).Error; err != nil {
			return dbFailure("sql error deleting tour markers", err, "trip_id", tripId)
		}
	}

	steps := []struct {
		model interface{}
		name  string
	}{
		{&schema.Tour{}, "tours"},
		{&schema.Route{}, "routes"},
		{&schema.Marker{}, "markers"},
		{&schema.TripCollaborator{}, "collaborators"},
	}
	for _, step := range steps {
		if err := txn.Where("trip_id = ?", tripId).Delete(step.model).Error; err != nil {
			return dbFailure("sql error deleting trip "+step.name, err, "trip_id", tripId)
		}
	}

	return nil
}

func (s *TripService) Delete(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	var trip schema.Trip
	err := s.db.Transaction(func(txn *gorm.DB) error {
		var err error
		trip, err = schema.GetTrip(tripId, txn, false)
		if err != nil {
			return schemaError(err)
		}

		if err := deleteTripContents(txn, tripId); err != nil {
			return err
		}

		if err := txn.Delete(&trip).Error; err != nil {
			return dbFailure("sql error deleting trip", err, "trip_id", tripId)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting trip %v: %v", tripId, err), GetResponseCode(err))
		return
	}

	if err := s.storage.Delete(trip.PreviewPath()); err != nil {
		slog.Error("error removing trip preview", "trip_id", tripId, "error", err)
	}

	slog.Info("deleted trip", "trip_id", tripId, "code", logging.TRIP_UPDATE)

	utils.WriteSuccess(w)
}

type previewResponse struct {
	Size int `json:"size"`
}

func (s *TripService) GeneratePreview(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	trip, err := schema.GetTrip(tripId, s.db, false)
	if err != nil {
		err = schemaError(err)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	if !trip.HasViewport() {
		http.Error(w, "trip has no viewport to render a preview for", http.StatusUnprocessableEntity)
		return
	}

	img, err := s.maps.Image(r.Context(), staticmap.Viewport{
		Latitude:  *trip.ViewportLatitude,
		Longitude: *trip.ViewportLongitude,
		Zoom:      *trip.ViewportZoom,
	})

	if usageErr := recordMapUsage(s.db, time.Now()); usageErr != nil {
		slog.Error("error recording map usage", "error", usageErr, "code", logging.MAP_IMAGE)
	}

	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, staticmap.ErrQuotaExceeded) {
			code = http.StatusTooManyRequests
		}
		http.Error(w, fmt.Sprintf("error rendering trip preview: %v", err), code)
		return
	}

	if err := s.storage.Write(trip.PreviewPath(), bytes.NewReader(img)); err != nil {
		http.Error(w, fmt.Sprintf("error saving trip preview: %v", err), http.StatusInternalServerError)
		return
	}

	slog.Info("generated trip preview", "trip_id", tripId, "bytes", len(img), "code", logging.MAP_IMAGE)

	utils.WriteJsonResponse(w, previewResponse{Size: len(img)})
}

func (s *TripService) GetPreview(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	trip := schema.Trip{Id: tripId}

	exists, err := s.storage.Exists(trip.PreviewPath())
	if err != nil {
		http.Error(w, fmt.Sprintf("error loading trip preview: %v", err), http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "trip has no preview", http.StatusNotFound)
		return
	}

	file, err := s.storage.Read(trip.PreviewPath())
	if err != nil {
		http.Error(w, fmt.Sprintf("error loading trip preview: %v", err), http.StatusInternalServerError)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, file); err != nil {
		slog.Error("error streaming trip preview", "trip_id", tripId, "error", err)
	}
}
