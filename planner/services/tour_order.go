package services

import (
	"fmt"
	"slices"
	"trip_planner/planner/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// checkPermutation verifies that submitted holds exactly the ids of current, counting
// repeated ids.
func checkPermutation(current, submitted []uuid.UUID) error {
	if len(current) != len(submitted) {
		return fmt.Errorf("expected %d ids in new order, got %d", len(current), len(submitted))
	}

	counts := make(map[uuid.UUID]int, len(current))
	for _, id := range current {
		counts[id]++
	}

	for _, id := range submitted {
		remaining, ok := counts[id]
		if !ok {
			return fmt.Errorf("id %v is not part of the current order", id)
		}
		if remaining == 0 {
			return fmt.Errorf("id %v appears more often than in the current order", id)
		}
		counts[id] = remaining - 1
	}

	return nil
}

// assignMarkerPositions maps tour marker row ids to their new positions. Rows must be
// sorted by their current position; when a marker appears more than once its rows are
// consumed in their existing order.
func assignMarkerPositions(rows []schema.TourMarker, submitted []uuid.UUID) map[uuid.UUID]int {
	queues := make(map[uuid.UUID][]uuid.UUID)
	for _, row := range rows {
		queues[row.MarkerId] = append(queues[row.MarkerId], row.Id)
	}

	positions := make(map[uuid.UUID]int, len(rows))
	for i, markerId := range submitted {
		queue := queues[markerId]
		positions[queue[0]] = i
		queues[markerId] = queue[1:]
	}

	return positions
}

type TourMarkerInfo struct {
	Id        uuid.UUID `json:"id"`
	MarkerId  uuid.UUID `json:"marker_id"`
	Position  int       `json:"position"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

type TourInfo struct {
	Id           uuid.UUID        `json:"id"`
	Name         string           `json:"name"`
	TripId       uuid.UUID        `json:"trip_id"`
	ParentTourId *uuid.UUID       `json:"parent_tour_id"`
	Position     int              `json:"position"`
	Markers      []TourMarkerInfo `json:"markers"`
	SubTours     []TourInfo       `json:"sub_tours"`
}

// buildTourTree nests tours under their parents. Tours whose parent is not part of the
// given list are returned as roots. Siblings and markers are ordered by position.
func buildTourTree(tours []schema.Tour, markers map[uuid.UUID]schema.Marker) []TourInfo {
	sorted := slices.Clone(tours)
	slices.SortStableFunc(sorted, func(a, b schema.Tour) int {
		return a.Position - b.Position
	})

	present := make(map[uuid.UUID]bool, len(sorted))
	for _, tour := range sorted {
		present[tour.Id] = true
	}

	children := make(map[uuid.UUID][]schema.Tour)
	roots := make([]schema.Tour, 0)
	for _, tour := range sorted {
		if tour.ParentTourId != nil && present[*tour.ParentTourId] {
			children[*tour.ParentTourId] = append(children[*tour.ParentTourId], tour)
		} else {
			roots = append(roots, tour)
		}
	}

	var convert func(tour schema.Tour) TourInfo
	convert = func(tour schema.Tour) TourInfo {
		rows := slices.Clone(tour.Markers)
		slices.SortStableFunc(rows, func(a, b schema.TourMarker) int {
			return a.Position - b.Position
		})

		info := TourInfo{
			Id:           tour.Id,
			Name:         tour.Name,
			TripId:       tour.TripId,
			ParentTourId: tour.ParentTourId,
			Position:     tour.Position,
			Markers:      make([]TourMarkerInfo, 0, len(rows)),
			SubTours:     make([]TourInfo, 0, len(children[tour.Id])),
		}

		for _, row := range rows {
			entry := TourMarkerInfo{Id: row.Id, MarkerId: row.MarkerId, Position: row.Position}
			if marker, ok := markers[row.MarkerId]; ok {
				entry.Name = marker.Name
				entry.Type = marker.Type
				entry.Latitude = marker.Latitude
				entry.Longitude = marker.Longitude
			}
			info.Markers = append(info.Markers, entry)
		}

		for _, child := range children[tour.Id] {
			info.SubTours = append(info.SubTours, convert(child))
		}

		return info
	}

	infos := make([]TourInfo, 0, len(roots))
	for _, root := range roots {
		infos = append(infos, convert(root))
	}
	return infos
}

func siblingTours(txn *gorm.DB, tripId uuid.UUID, parentId *uuid.UUID) *gorm.DB {
	query := txn.Model(&schema.Tour{}).Where("trip_id = ?", tripId)
	if parentId == nil {
		return query.Where("parent_tour_id IS NULL")
	}
	return query.Where("parent_tour_id = ?", *parentId)
}

func nextPosition(query *gorm.DB) (int, error) {
	var max int
	if err := query.Select("COALESCE(MAX(position), -1)").Row().Scan(&max); err != nil {
		return 0, err
	}
	return max + 1, nil
}

// Rewrites tour marker positions to 0..n-1, keeping their relative order.
func compactTourMarkers(txn *gorm.DB, tourId uuid.UUID) error {
	var rows []schema.TourMarker
	if err := txn.Where("tour_id = ?", tourId).Order("position, id").Find(&rows).Error; err != nil {
		return dbFailure("sql error loading tour markers", err, "tour_id", tourId)
	}

	for i, row := range rows {
		if row.Position == i {
			continue
		}
		if err := txn.Model(&schema.TourMarker{}).Where("id = ?", row.Id).Update("position", i).Error; err != nil {
			return dbFailure("sql error updating tour marker position", err, "tour_id", tourId)
		}
	}

	return nil
}

func compactSiblingTours(txn *gorm.DB, tripId uuid.UUID, parentId *uuid.UUID) error {
	var ids []uuid.UUID
	if err := siblingTours(txn, tripId, parentId).Order("position, created_at").Pluck("id", &ids).Error; err != nil {
		return dbFailure("sql error loading sibling tours", err, "trip_id", tripId)
	}
	return writeTourPositions(txn, ids)
}

func writeTourPositions(txn *gorm.DB, ids []uuid.UUID) error {
	for i, id := range ids {
		if err := txn.Model(&schema.Tour{}).Where("id = ?", id).Update("position", i).Error; err != nil {
			return dbFailure("sql error updating tour position", err, "tour_id", id)
		}
	}
	return nil
}
