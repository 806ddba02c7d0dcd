package tests

import (
	"net/http"
	"testing"
)

func TestMarkerCrud(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	tripId, err := user.createTrip("Rome")
	if err != nil {
		t.Fatal(err)
	}

	markerId, err := user.createMarkerWith(tripId, map[string]interface{}{
		"name":      "Colosseum",
		"type":      "sightseeing",
		"latitude":  41.8902,
		"longitude": 12.4922,
		"notes":     "book tickets in advance",
		"url":       "https://colosseo.it",
		"is_unesco": true,
		"planned":   map[string]int{"start_year": 2025, "start_month": 6, "start_day": 3},
	})
	if err != nil {
		t.Fatal(err)
	}

	marker, err := user.markerInfo(markerId)
	if err != nil {
		t.Fatal(err)
	}
	if marker.Name != "Colosseum" || !marker.IsUnesco || marker.Url != "https://colosseo.it" {
		t.Fatalf("invalid marker info: %+v", marker)
	}
	if marker.CreatorId.String() != user.userId || marker.TripId.String() != tripId {
		t.Fatal("marker should reference its creator and trip")
	}

	defaultType, err := user.createMarkerWith(tripId, map[string]interface{}{
		"name": "Somewhere", "latitude": 41.9, "longitude": 12.5,
	})
	if err != nil {
		t.Fatal(err)
	}
	marker, err = user.markerInfo(defaultType)
	if err != nil {
		t.Fatal(err)
	}
	if marker.Type != "other" {
		t.Fatalf("marker type should default to other, got %v", marker.Type)
	}

	err = user.updateMarker(markerId, map[string]interface{}{
		"name": "Colosseo", "type": "museum", "latitude": 41.8902, "longitude": 12.4922,
	})
	if err != nil {
		t.Fatal(err)
	}

	markers, err := user.listMarkers(tripId)
	if err != nil {
		t.Fatal(err)
	}
	if len(markers) != 2 || markers[0].Name != "Colosseo" || markers[0].Type != "museum" || markers[0].IsUnesco {
		t.Fatalf("invalid markers after update: %+v", markers)
	}

	if err := user.deleteMarker(markerId); err != nil {
		t.Fatal(err)
	}

	_, err = user.markerInfo(markerId)
	expectStatus(t, err, http.StatusNotFound)
}

func TestMarkerValidation(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	tripId, err := user.createTrip("Rome")
	if err != nil {
		t.Fatal(err)
	}

	invalid := []map[string]interface{}{
		{"name": "", "latitude": 0, "longitude": 0},
		{"name": "x", "latitude": 91, "longitude": 0},
		{"name": "x", "latitude": 0, "longitude": -181},
		{"name": "x", "type": "castle", "latitude": 0, "longitude": 0},
		{"name": "x", "url": "colosseo.it", "latitude": 0, "longitude": 0},
		{"name": "x", "latitude": 0, "longitude": 0, "planned": map[string]int{"end_day": 32}},
	}

	for _, body := range invalid {
		_, err := user.createMarkerWith(tripId, body)
		expectStatus(t, err, http.StatusUnprocessableEntity)
	}
}

func TestMarkerPermissions(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	editor, err := env.newUser("editor")
	if err != nil {
		t.Fatal(err)
	}

	viewer, err := env.newUser("viewer")
	if err != nil {
		t.Fatal(err)
	}

	outsider, err := env.newUser("outsider")
	if err != nil {
		t.Fatal(err)
	}

	tripId, err := owner.createTrip("Vienna")
	if err != nil {
		t.Fatal(err)
	}

	if err := owner.addCollaborator(tripId, editor.email, "editor"); err != nil {
		t.Fatal(err)
	}
	if err := owner.addCollaborator(tripId, viewer.email, "viewer"); err != nil {
		t.Fatal(err)
	}

	ownerMarker, err := owner.createMarker(tripId, "Stephansdom", 48.2085, 16.3731)
	if err != nil {
		t.Fatal(err)
	}

	editorMarker, err := editor.createMarker(tripId, "Prater", 48.2167, 16.3959)
	if err != nil {
		t.Fatal(err)
	}

	_, err = viewer.createMarker(tripId, "Naschmarkt", 48.1986, 16.3636)
	expectStatus(t, err, http.StatusForbidden)

	_, err = outsider.listMarkers(tripId)
	expectStatus(t, err, http.StatusForbidden)

	_, err = outsider.markerInfo(ownerMarker)
	expectStatus(t, err, http.StatusForbidden)

	markers, err := viewer.listMarkers(tripId)
	if err != nil {
		t.Fatal(err)
	}
	if len(markers) != 2 {
		t.Fatalf("viewer should see all trip markers: %v", markers)
	}

	update := map[string]interface{}{"name": "Renamed", "latitude": 48.2, "longitude": 16.3}

	// Only the creator of a marker may change it, even the trip owner may not.
	expectStatus(t, editor.updateMarker(ownerMarker, update), http.StatusForbidden)
	expectStatus(t, owner.updateMarker(editorMarker, update), http.StatusForbidden)
	expectStatus(t, owner.deleteMarker(editorMarker), http.StatusForbidden)
	expectStatus(t, viewer.deleteMarker(ownerMarker), http.StatusForbidden)

	if err := editor.updateMarker(editorMarker, update); err != nil {
		t.Fatal(err)
	}

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	if err := admin.deleteMarker(editorMarker); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteMarkerCascades(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	tripId, err := user.createTrip("Scotland")
	if err != nil {
		t.Fatal(err)
	}

	edinburgh, err := user.createMarker(tripId, "Edinburgh", 55.9533, -3.1883)
	if err != nil {
		t.Fatal(err)
	}
	glasgow, err := user.createMarker(tripId, "Glasgow", 55.8642, -4.2518)
	if err != nil {
		t.Fatal(err)
	}
	stirling, err := user.createMarker(tripId, "Stirling", 56.1165, -3.9369)
	if err != nil {
		t.Fatal(err)
	}

	tourId, err := user.createTour(tripId, "Central belt", nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range []string{edinburgh, glasgow, edinburgh, stirling} {
		if err := user.attachMarker(tourId, m); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := user.createRoute(tripId, edinburgh, glasgow, "driving"); err != nil {
		t.Fatal(err)
	}
	if _, err := user.createRoute(tripId, stirling, edinburgh, "cycling"); err != nil {
		t.Fatal(err)
	}
	if _, err := user.createRoute(tripId, glasgow, stirling, "walking"); err != nil {
		t.Fatal(err)
	}

	if err := user.deleteMarker(edinburgh); err != nil {
		t.Fatal(err)
	}

	tour, err := user.tourInfo(tourId)
	if err != nil {
		t.Fatal(err)
	}
	if len(tour.Markers) != 2 {
		t.Fatalf("expected 2 tour markers after delete, got %v", tour.Markers)
	}
	for i, m := range tour.Markers {
		if m.Position != i {
			t.Fatalf("tour marker positions should be compacted: %v", tour.Markers)
		}
	}
	if tour.Markers[0].MarkerId.String() != glasgow || tour.Markers[1].MarkerId.String() != stirling {
		t.Fatalf("remaining tour markers out of order: %v", tour.Markers)
	}

	routes, err := user.listRoutes(tripId)
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 1 || routes[0].StartMarkerId.String() != glasgow {
		t.Fatalf("routes touching deleted marker should be removed: %v", routes)
	}
}
