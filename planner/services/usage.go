package services

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"trip_planner/planner/auth"
	"trip_planner/planner/schema"
	"trip_planner/utils"
	"trip_planner/utils/logging"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UsageService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *UsageService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/map/track", s.TrackMap)
	r.Get("/map", s.MapUsage)

	return r
}

// Increments the counter of the period containing now, creating the row if needed.
func recordMapUsage(db *gorm.DB, now time.Time) error {
	now = now.UTC()
	usage := schema.MapUsage{Period: schema.UsagePeriod(now), RequestCount: 1, LastRequestAt: now}

	result := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "period"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count":   gorm.Expr("map_usages.request_count + 1"),
			"last_request_at": now,
		}),
	}).Create(&usage)
	if result.Error != nil {
		slog.Error("sql error recording map usage", "period", usage.Period, "error", result.Error, "code", logging.MAP_IMAGE)
		return schema.ErrDbAccessFailed
	}

	return nil
}

func (s *UsageService) TrackMap(w http.ResponseWriter, r *http.Request) {
	if err := recordMapUsage(s.db, time.Now()); err != nil {
		http.Error(w, fmt.Sprintf("error recording map usage: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteSuccess(w)
}

type MapUsageInfo struct {
	Period        string     `json:"period"`
	RequestCount  int64      `json:"request_count"`
	LastRequestAt *time.Time `json:"last_request_at"`
}

type mapUsageResponse struct {
	Current MapUsageInfo   `json:"current"`
	History []MapUsageInfo `json:"history"`
}

func convertToUsageInfo(usage *schema.MapUsage) MapUsageInfo {
	last := usage.LastRequestAt
	return MapUsageInfo{Period: usage.Period, RequestCount: usage.RequestCount, LastRequestAt: &last}
}

func (s *UsageService) MapUsage(w http.ResponseWriter, r *http.Request) {
	var rows []schema.MapUsage
	if err := s.db.Order("period DESC").Limit(12).Find(&rows).Error; err != nil {
		slog.Error("sql error loading map usage", "error", err)
		http.Error(w, fmt.Sprintf("error loading map usage: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	res := mapUsageResponse{
		Current: MapUsageInfo{Period: schema.UsagePeriod(time.Now())},
		History: make([]MapUsageInfo, 0, len(rows)),
	}
	for _, row := range rows {
		info := convertToUsageInfo(&row)
		if row.Period == res.Current.Period {
			res.Current = info
		}
		res.History = append(res.History, info)
	}

	utils.WriteJsonResponse(w, res)
}
