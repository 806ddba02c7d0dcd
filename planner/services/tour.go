package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"trip_planner/planner/auth"
	"trip_planner/planner/schema"
	"trip_planner/utils"
	"trip_planner/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TourService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

// Mounted at /trip/{trip_id}/tours.
func (s *TourService) TripRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.With(auth.TripPermissionOnly(s.db, auth.ViewPermission)).Get("/", s.Tree)

	r.Group(func(r chi.Router) {
		r.Use(auth.TripPermissionOnly(s.db, auth.EditPermission))

		r.Post("/", s.Create)
		r.Put("/order", s.ReorderTours)
	})

	return r
}

func (s *TourService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Route("/{tour_id}", func(r chi.Router) {
		r.With(auth.TourPermissionOnly(s.db, auth.ViewPermission)).Get("/", s.Info)

		r.Group(func(r chi.Router) {
			r.Use(auth.TourPermissionOnly(s.db, auth.EditPermission))

			r.Put("/", s.Update)
			r.Delete("/", s.Delete)

			r.Post("/markers", s.AttachMarker)
			r.Put("/markers/order", s.ReorderMarkers)
			r.Delete("/markers/{marker_id}", s.DetachMarker)

			r.Put("/sub-tours/order", s.ReorderSubTours)
		})
	})

	return r
}

type tourParams struct {
	Name         string     `json:"name"`
	ParentTourId *uuid.UUID `json:"parent_tour_id"`
}

// An omitted parent_tour_id keeps the current parent, an explicit null moves the tour to
// the top level.
type optionalParent struct {
	Set bool
	Id  *uuid.UUID
}

func (p *optionalParent) UnmarshalJSON(data []byte) error {
	p.Set = true
	if string(data) == "null" {
		p.Id = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("invalid parent_tour_id: %w", err)
	}
	p.Id = &id
	return nil
}

type updateTourParams struct {
	Name         string         `json:"name"`
	ParentTourId optionalParent `json:"parent_tour_id"`
}

// Parents must live in the same trip and be top level, so tours nest at most one level deep.
func checkTourParent(txn *gorm.DB, tripId uuid.UUID, parentId uuid.UUID) error {
	parent, err := schema.GetTour(parentId, txn)
	if err != nil {
		if errors.Is(err, schema.ErrTourNotFound) {
			return invalid(fmt.Errorf("parent tour %v not found", parentId))
		}
		return schemaError(err)
	}
	if parent.TripId != tripId {
		return invalid(errors.New("parent tour must belong to same trip"))
	}
	if parent.ParentTourId != nil {
		return invalid(errors.New("tours can only be nested one level deep"))
	}
	return nil
}

func checkUniqueTourName(txn *gorm.DB, tripId uuid.UUID, parentId *uuid.UUID, name string, exclude uuid.UUID) error {
	var count int64
	result := siblingTours(txn, tripId, parentId).Where("LOWER(name) = LOWER(?) AND id <> ?", name, exclude).Count(&count)
	if result.Error != nil {
		return dbFailure("sql error checking tour name uniqueness", result.Error, "trip_id", tripId)
	}
	if count > 0 {
		return CodedError(fmt.Errorf("a sibling tour named '%v' already exists", name), http.StatusConflict)
	}
	return nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type createTourResponse struct {
	TourId uuid.UUID `json:"tour_id"`
}

func (s *TourService) Create(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	var params tourParams
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := schema.CheckValidName(params.Name, 255); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	tour := schema.Tour{
		Id:           uuid.New(),
		Name:         strings.TrimSpace(params.Name),
		TripId:       tripId,
		ParentTourId: params.ParentTourId,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if tour.ParentTourId != nil {
			if err := checkTourParent(txn, tripId, *tour.ParentTourId); err != nil {
				return err
			}
		}

		if err := checkUniqueTourName(txn, tripId, tour.ParentTourId, tour.Name, tour.Id); err != nil {
			return err
		}

		position, err := nextPosition(siblingTours(txn, tripId, tour.ParentTourId))
		if err != nil {
			return dbFailure("sql error computing tour position", err, "trip_id", tripId)
		}
		tour.Position = position

		if err := txn.Create(&tour).Error; err != nil {
			return dbFailure("sql error creating tour", err, "trip_id", tripId)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating tour: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("created tour", "tour_id", tour.Id, "trip_id", tripId, "code", logging.TOUR_UPDATE)

	utils.WriteJsonResponse(w, createTourResponse{TourId: tour.Id})
}

func loadTourMarkers(db *gorm.DB, tours []schema.Tour) (map[uuid.UUID]schema.Marker, error) {
	ids := make([]uuid.UUID, 0)
	for _, tour := range tours {
		for _, row := range tour.Markers {
			ids = append(ids, row.MarkerId)
		}
	}

	markers := make(map[uuid.UUID]schema.Marker, len(ids))
	if len(ids) == 0 {
		return markers, nil
	}

	var rows []schema.Marker
	if err := db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, m := range rows {
		markers[m.Id] = m
	}
	return markers, nil
}

func (s *TourService) Tree(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	var tours []schema.Tour
	if err := s.db.Preload("Markers").Where("trip_id = ?", tripId).Order("position").Find(&tours).Error; err != nil {
		slog.Error("sql error listing tours", "trip_id", tripId, "error", err)
		http.Error(w, fmt.Sprintf("error listing tours: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	markers, err := loadTourMarkers(s.db, tours)
	if err != nil {
		slog.Error("sql error loading tour markers", "trip_id", tripId, "error", err)
		http.Error(w, fmt.Sprintf("error listing tours: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, buildTourTree(tours, markers))
}

func (s *TourService) Info(w http.ResponseWriter, r *http.Request) {
	tourId, ok := urlParamUUID(w, r, "tour_id")
	if !ok {
		return
	}

	var tours []schema.Tour
	if err := s.db.Preload("Markers").Where("id = ? OR parent_tour_id = ?", tourId, tourId).Find(&tours).Error; err != nil {
		slog.Error("sql error loading tour", "tour_id", tourId, "error", err)
		http.Error(w, fmt.Sprintf("error loading tour: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	markers, err := loadTourMarkers(s.db, tours)
	if err != nil {
		slog.Error("sql error loading tour markers", "tour_id", tourId, "error", err)
		http.Error(w, fmt.Sprintf("error loading tour: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	for _, info := range buildTourTree(tours, markers) {
		if info.Id == tourId {
			utils.WriteJsonResponse(w, info)
			return
		}
	}

	http.Error(w, schema.ErrTourNotFound.Error(), http.StatusNotFound)
}

func (s *TourService) Update(w http.ResponseWriter, r *http.Request) {
	tourId, ok := urlParamUUID(w, r, "tour_id")
	if !ok {
		return
	}

	var params updateTourParams
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := schema.CheckValidName(params.Name, 255); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		tour, err := schema.GetTour(tourId, txn)
		if err != nil {
			return schemaError(err)
		}

		newParent := tour.ParentTourId
		if params.ParentTourId.Set {
			newParent = params.ParentTourId.Id
		}

		if newParent != nil && !sameParent(newParent, tour.ParentTourId) {
			if *newParent == tour.Id {
				return invalid(errors.New("a tour cannot be its own parent"))
			}

			if err := checkTourParent(txn, tour.TripId, *newParent); err != nil {
				return err
			}

			var children int64
			if err := txn.Model(&schema.Tour{}).Where("parent_tour_id = ?", tour.Id).Count(&children).Error; err != nil {
				return dbFailure("sql error counting sub-tours", err, "tour_id", tourId)
			}
			if children > 0 {
				return invalid(errors.New("tours can only be nested one level deep"))
			}
		}

		name := strings.TrimSpace(params.Name)
		if err := checkUniqueTourName(txn, tour.TripId, newParent, name, tour.Id); err != nil {
			return err
		}

		oldParent := tour.ParentTourId
		moved := !sameParent(oldParent, newParent)

		var parent interface{} = gorm.Expr("NULL")
		if newParent != nil {
			parent = *newParent
		}

		updates := map[string]interface{}{"name": name, "parent_tour_id": parent}
		if moved {
			position, err := nextPosition(siblingTours(txn, tour.TripId, newParent))
			if err != nil {
				return dbFailure("sql error computing tour position", err, "tour_id", tourId)
			}
			updates["position"] = position
		}

		if err := txn.Model(&schema.Tour{}).Where("id = ?", tour.Id).Updates(updates).Error; err != nil {
			return dbFailure("sql error updating tour", err, "tour_id", tourId)
		}

		if moved {
			return compactSiblingTours(txn, tour.TripId, oldParent)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating tour %v: %v", tourId, err), GetResponseCode(err))
		return
	}

	slog.Info("updated tour", "tour_id", tourId, "code", logging.TOUR_UPDATE)

	utils.WriteSuccess(w)
}

// Deleting a tour also deletes its sub-tours.
func (s *TourService) Delete(w http.ResponseWriter, r *http.Request) {
	tourId, ok := urlParamUUID(w, r, "tour_id")
	if !ok {
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		tour, err := schema.GetTour(tourId, txn)
		if err != nil {
			return schemaError(err)
		}

		var ids []uuid.UUID
		if err := txn.Model(&schema.Tour{}).Where("parent_tour_id = ?", tourId).Pluck("id", &ids).Error; err != nil {
			return dbFailure("sql error listing sub-tours", err, "tour_id", tourId)
		}
		ids = append(ids, tourId)

		if err := txn.Where("tour_id IN ?", ids).Delete(&schema.TourMarker{}).Error; err != nil {
			return dbFailure("sql error deleting tour markers", err, "tour_id", tourId)
		}

		if err := txn.Where("parent_tour_id = ?", tourId).Delete(&schema.Tour{}).Error; err != nil {
			return dbFailure("sql error deleting sub-tours", err, "tour_id", tourId)
		}

		if err := txn.Delete(&tour).Error; err != nil {
			return dbFailure("sql error deleting tour", err, "tour_id", tourId)
		}

		return compactSiblingTours(txn, tour.TripId, tour.ParentTourId)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting tour %v: %v", tourId, err), GetResponseCode(err))
		return
	}

	slog.Info("deleted tour", "tour_id", tourId, "code", logging.TOUR_UPDATE)

	utils.WriteSuccess(w)
}

type attachMarkerRequest struct {
	MarkerId uuid.UUID `json:"marker_id"`
}

type attachMarkerResponse struct {
	Id       uuid.UUID `json:"id"`
	Position int       `json:"position"`
}

func (s *TourService) AttachMarker(w http.ResponseWriter, r *http.Request) {
	tourId, ok := urlParamUUID(w, r, "tour_id")
	if !ok {
		return
	}

	var params attachMarkerRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	row := schema.TourMarker{Id: uuid.New(), TourId: tourId, MarkerId: params.MarkerId}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		tour, err := schema.GetTour(tourId, txn)
		if err != nil {
			return schemaError(err)
		}

		marker, err := schema.GetMarker(params.MarkerId, txn)
		if err != nil {
			return schemaError(err)
		}

		if marker.TripId != tour.TripId {
			return invalid(errors.New("marker must belong to same trip"))
		}

		position, err := nextPosition(txn.Model(&schema.TourMarker{}).Where("tour_id = ?", tourId))
		if err != nil {
			return dbFailure("sql error computing marker position", err, "tour_id", tourId)
		}
		row.Position = position

		if err := txn.Create(&row).Error; err != nil {
			return dbFailure("sql error attaching marker to tour", err, "tour_id", tourId, "marker_id", params.MarkerId)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error attaching marker to tour %v: %v", tourId, err), GetResponseCode(err))
		return
	}

	slog.Info("attached marker to tour", "tour_id", tourId, "marker_id", params.MarkerId, "position", row.Position, "code", logging.TOUR_UPDATE)

	utils.WriteJsonResponse(w, attachMarkerResponse{Id: row.Id, Position: row.Position})
}

// Without a position query param the first occurrence of the marker is removed.
func (s *TourService) DetachMarker(w http.ResponseWriter, r *http.Request) {
	tourId, ok := urlParamUUID(w, r, "tour_id")
	if !ok {
		return
	}

	markerId, ok := urlParamUUID(w, r, "marker_id")
	if !ok {
		return
	}

	position, err := utils.QueryParamInt(r, "position")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		query := txn.Where("tour_id = ? AND marker_id = ?", tourId, markerId)
		if position != nil {
			query = query.Where("position = ?", *position)
		}

		var rows []schema.TourMarker
		if err := query.Order("position").Limit(1).Find(&rows).Error; err != nil {
			return dbFailure("sql error finding tour marker", err, "tour_id", tourId, "marker_id", markerId)
		}
		if len(rows) == 0 {
			return CodedError(fmt.Errorf("marker %v is not part of tour %v", markerId, tourId), http.StatusNotFound)
		}

		if err := txn.Delete(&rows[0]).Error; err != nil {
			return dbFailure("sql error detaching marker from tour", err, "tour_id", tourId, "marker_id", markerId)
		}

		return compactTourMarkers(txn, tourId)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error detaching marker from tour %v: %v", tourId, err), GetResponseCode(err))
		return
	}

	slog.Info("detached marker from tour", "tour_id", tourId, "marker_id", markerId, "code", logging.TOUR_UPDATE)

	utils.WriteSuccess(w)
}

type reorderMarkersRequest struct {
	MarkerIds []uuid.UUID `json:"marker_ids"`
}

func (s *TourService) ReorderMarkers(w http.ResponseWriter, r *http.Request) {
	tourId, ok := urlParamUUID(w, r, "tour_id")
	if !ok {
		return
	}

	var params reorderMarkersRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var rows []schema.TourMarker
		if err := txn.Where("tour_id = ?", tourId).Order("position, id").Find(&rows).Error; err != nil {
			return dbFailure("sql error loading tour markers", err, "tour_id", tourId)
		}

		current := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			current = append(current, row.MarkerId)
		}

		if err := checkPermutation(current, params.MarkerIds); err != nil {
			return invalid(err)
		}

		positions := assignMarkerPositions(rows, params.MarkerIds)
		for _, row := range rows {
			if positions[row.Id] == row.Position {
				continue
			}
			if err := txn.Model(&schema.TourMarker{}).Where("id = ?", row.Id).Update("position", positions[row.Id]).Error; err != nil {
				return dbFailure("sql error updating tour marker position", err, "tour_id", tourId)
			}
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error reordering markers of tour %v: %v", tourId, err), GetResponseCode(err))
		return
	}

	slog.Info("reordered tour markers", "tour_id", tourId, "count", len(params.MarkerIds), "code", logging.TOUR_UPDATE)

	utils.WriteSuccess(w)
}

type reorderToursRequest struct {
	TourIds []uuid.UUID `json:"tour_ids"`
}

func reorderSiblings(txn *gorm.DB, tripId uuid.UUID, parentId *uuid.UUID, submitted []uuid.UUID) error {
	var current []uuid.UUID
	if err := siblingTours(txn, tripId, parentId).Order("position").Pluck("id", &current).Error; err != nil {
		return dbFailure("sql error loading sibling tours", err, "trip_id", tripId)
	}

	if err := checkPermutation(current, submitted); err != nil {
		return invalid(err)
	}

	return writeTourPositions(txn, submitted)
}

func (s *TourService) ReorderTours(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	var params reorderToursRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		return reorderSiblings(txn, tripId, nil, params.TourIds)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error reordering tours of trip %v: %v", tripId, err), GetResponseCode(err))
		return
	}

	slog.Info("reordered tours", "trip_id", tripId, "code", logging.TOUR_UPDATE)

	utils.WriteSuccess(w)
}

func (s *TourService) ReorderSubTours(w http.ResponseWriter, r *http.Request) {
	tourId, ok := urlParamUUID(w, r, "tour_id")
	if !ok {
		return
	}

	var params reorderToursRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		tour, err := schema.GetTour(tourId, txn)
		if err != nil {
			return schemaError(err)
		}
		return reorderSiblings(txn, tour.TripId, &tour.Id, params.TourIds)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error reordering sub-tours of tour %v: %v", tourId, err), GetResponseCode(err))
		return
	}

	slog.Info("reordered sub-tours", "tour_id", tourId, "code", logging.TOUR_UPDATE)

	utils.WriteSuccess(w)
}
