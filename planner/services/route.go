package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"trip_planner/planner/auth"
	"trip_planner/planner/routing"
	"trip_planner/planner/schema"
	"trip_planner/utils"
	"trip_planner/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RouteService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	router   *routing.Router
}

// Mounted at /trip/{trip_id}/routes.
func (s *RouteService) TripRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.With(auth.TripPermissionOnly(s.db, auth.ViewPermission)).Get("/", s.List)
	r.With(auth.TripPermissionOnly(s.db, auth.EditPermission)).Post("/", s.Create)

	return r
}

func (s *RouteService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Route("/{route_id}", func(r chi.Router) {
		r.With(auth.RoutePermissionOnly(s.db, auth.ViewPermission)).Get("/", s.Info)

		r.Group(func(r chi.Router) {
			r.Use(auth.RoutePermissionOnly(s.db, auth.EditPermission))

			r.Delete("/", s.Delete)
			r.Post("/recalculate", s.Recalculate)
		})
	})

	return r
}

type RouteInfo struct {
	Id             uuid.UUID       `json:"id"`
	TripId         uuid.UUID       `json:"trip_id"`
	StartMarkerId  uuid.UUID       `json:"start_marker_id"`
	EndMarkerId    uuid.UUID       `json:"end_marker_id"`
	TransportMode  string          `json:"transport_mode"`
	Distance       int             `json:"distance"`
	Duration       int             `json:"duration"`
	Geometry       json.RawMessage `json:"geometry"`
	TransitDetails json.RawMessage `json:"transit_details,omitempty"`
	Alternatives   json.RawMessage `json:"alternatives,omitempty"`
	Warning        *string         `json:"warning"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Nullable json columns scan as the literal null, which should be omitted like unset values.
func optionalJson(data datatypes.JSON) json.RawMessage {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.RawMessage(data)
}

func convertToRouteInfo(route *schema.Route) RouteInfo {
	return RouteInfo{
		Id:             route.Id,
		TripId:         route.TripId,
		StartMarkerId:  route.StartMarkerId,
		EndMarkerId:    route.EndMarkerId,
		TransportMode:  route.TransportMode,
		Distance:       route.Distance,
		Duration:       route.Duration,
		Geometry:       json.RawMessage(route.Geometry),
		TransitDetails: optionalJson(route.TransitDetails),
		Alternatives:   optionalJson(route.Alternatives),
		Warning:        route.Warning,
		CreatedAt:      route.CreatedAt,
		UpdatedAt:      route.UpdatedAt,
	}
}

// Loads both endpoints of a route and checks they belong to the trip.
func loadRouteMarkers(db *gorm.DB, tripId, startId, endId uuid.UUID) (schema.Marker, schema.Marker, error) {
	if startId == endId {
		return schema.Marker{}, schema.Marker{}, invalid(errors.New("start and end marker must be different"))
	}

	start, err := schema.GetMarker(startId, db)
	if err != nil {
		return schema.Marker{}, schema.Marker{}, schemaError(err)
	}

	end, err := schema.GetMarker(endId, db)
	if err != nil {
		return schema.Marker{}, schema.Marker{}, schemaError(err)
	}

	if start.TripId != tripId || end.TripId != tripId {
		return schema.Marker{}, schema.Marker{}, invalid(errors.New("marker must belong to same trip"))
	}

	return start, end, nil
}

func (s *RouteService) compute(r *http.Request, start, end schema.Marker, mode string) (routing.Result, error) {
	result, err := s.router.Route(
		r.Context(),
		routing.LatLng{Latitude: start.Latitude, Longitude: start.Longitude},
		routing.LatLng{Latitude: end.Latitude, Longitude: end.Longitude},
		mode,
	)
	if err != nil {
		kind := routing.ErrorKind(err)
		if kind == "" {
			kind = "provider_failure"
		}
		return routing.Result{}, CodedError(fmt.Errorf("route computation failed (%v): %w", kind, err), http.StatusInternalServerError)
	}
	return result, nil
}

func applyRouteResult(route *schema.Route, result routing.Result) error {
	geometry := result.Geometry
	if geometry == nil {
		geometry = [][2]float64{}
	}
	data, err := json.Marshal(geometry)
	if err != nil {
		return fmt.Errorf("error encoding route geometry: %w", err)
	}

	route.Distance = result.Distance
	route.Duration = result.Duration
	route.Geometry = datatypes.JSON(data)
	route.TransitDetails = nil
	route.Alternatives = nil
	route.Warning = nil

	if result.TransitDetails != nil {
		data, err := json.Marshal(result.TransitDetails)
		if err != nil {
			return fmt.Errorf("error encoding transit details: %w", err)
		}
		route.TransitDetails = datatypes.JSON(data)
	}

	if len(result.Alternatives) > 0 {
		data, err := json.Marshal(result.Alternatives)
		if err != nil {
			return fmt.Errorf("error encoding route alternatives: %w", err)
		}
		route.Alternatives = datatypes.JSON(data)
	}

	if result.Warning != "" {
		warning := result.Warning
		route.Warning = &warning
	}

	return nil
}

type createRouteRequest struct {
	StartMarkerId uuid.UUID `json:"start_marker_id"`
	EndMarkerId   uuid.UUID `json:"end_marker_id"`
	TransportMode string    `json:"transport_mode"`
}

func (s *RouteService) Create(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	var params createRouteRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := schema.CheckValidTransportMode(params.TransportMode); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	start, end, err := loadRouteMarkers(s.db, tripId, params.StartMarkerId, params.EndMarkerId)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid route: %v", err), GetResponseCode(err))
		return
	}

	result, err := s.compute(r, start, end, params.TransportMode)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	route := schema.Route{
		Id:            uuid.New(),
		TripId:        tripId,
		StartMarkerId: start.Id,
		EndMarkerId:   end.Id,
		TransportMode: params.TransportMode,
	}
	if err := applyRouteResult(&route, result); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.db.Create(&route).Error; err != nil {
		slog.Error("sql error creating route", "trip_id", tripId, "error", err)
		http.Error(w, fmt.Sprintf("error creating route: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	slog.Info("created route", "route_id", route.Id, "trip_id", tripId, "mode", route.TransportMode, "code", logging.ROUTE_COMPUTE)

	utils.WriteJsonResponse(w, convertToRouteInfo(&route))
}

func (s *RouteService) List(w http.ResponseWriter, r *http.Request) {
	tripId, ok := urlParamUUID(w, r, "trip_id")
	if !ok {
		return
	}

	var routes []schema.Route
	if err := s.db.Where("trip_id = ?", tripId).Order("created_at").Find(&routes).Error; err != nil {
		slog.Error("sql error listing routes", "trip_id", tripId, "error", err)
		http.Error(w, fmt.Sprintf("error listing routes: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]RouteInfo, 0, len(routes))
	for _, route := range routes {
		infos = append(infos, convertToRouteInfo(&route))
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *RouteService) Info(w http.ResponseWriter, r *http.Request) {
	routeId, ok := urlParamUUID(w, r, "route_id")
	if !ok {
		return
	}

	route, err := schema.GetRoute(routeId, s.db)
	if err != nil {
		err = schemaError(err)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, convertToRouteInfo(&route))
}

func (s *RouteService) Recalculate(w http.ResponseWriter, r *http.Request) {
	routeId, ok := urlParamUUID(w, r, "route_id")
	if !ok {
		return
	}

	route, err := schema.GetRoute(routeId, s.db)
	if err != nil {
		err = schemaError(err)
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	start, end, err := loadRouteMarkers(s.db, route.TripId, route.StartMarkerId, route.EndMarkerId)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid route: %v", err), GetResponseCode(err))
		return
	}

	result, err := s.compute(r, start, end, route.TransportMode)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	if err := applyRouteResult(&route, result); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.db.Save(&route).Error; err != nil {
		slog.Error("sql error saving recalculated route", "route_id", routeId, "error", err)
		http.Error(w, fmt.Sprintf("error saving route: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	slog.Info("recalculated route", "route_id", routeId, "code", logging.ROUTE_COMPUTE)

	utils.WriteJsonResponse(w, convertToRouteInfo(&route))
}

func (s *RouteService) Delete(w http.ResponseWriter, r *http.Request) {
	routeId, ok := urlParamUUID(w, r, "route_id")
	if !ok {
		return
	}

	result := s.db.Delete(&schema.Route{}, "id = ?", routeId)
	if result.Error != nil {
		slog.Error("sql error deleting route", "route_id", routeId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error deleting route: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, schema.ErrRouteNotFound.Error(), http.StatusNotFound)
		return
	}

	slog.Info("deleted route", "route_id", routeId, "code", logging.ROUTE_COMPUTE)

	utils.WriteSuccess(w)
}
