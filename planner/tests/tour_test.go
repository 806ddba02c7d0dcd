package tests

import (
	"fmt"
	"net/http"
	"testing"
	"trip_planner/planner/services"
)

func markerOrder(tour services.TourInfo) []string {
	ids := make([]string, 0, len(tour.Markers))
	for _, m := range tour.Markers {
		ids = append(ids, m.MarkerId.String())
	}
	return ids
}

func tourOrder(tours []services.TourInfo) []string {
	ids := make([]string, 0, len(tours))
	for _, t := range tours {
		ids = append(ids, t.Id.String())
	}
	return ids
}

func checkOrder(t *testing.T, actual, expected []string) {
	t.Helper()
	if len(actual) != len(expected) {
		t.Fatalf("expected order %v, got %v", expected, actual)
	}
	for i := range actual {
		if actual[i] != expected[i] {
			t.Fatalf("expected order %v, got %v", expected, actual)
		}
	}
}

type tourFixture struct {
	user    client
	tripId  string
	markers []string
}

func setupTourFixture(t *testing.T, env *testEnv, n int) tourFixture {
	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	tripId, err := user.createTrip("Provence")
	if err != nil {
		t.Fatal(err)
	}

	markers := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := user.createMarker(tripId, fmt.Sprintf("marker %d", i), 43.5+float64(i)/10, 5.0)
		if err != nil {
			t.Fatal(err)
		}
		markers = append(markers, id)
	}

	return tourFixture{user: user, tripId: tripId, markers: markers}
}

func TestTourMarkers(t *testing.T) {
	env := setupTestEnv(t)
	f := setupTourFixture(t, env, 3)
	a, b, c := f.markers[0], f.markers[1], f.markers[2]

	tourId, err := f.user.createTour(f.tripId, "Day 1", nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, m := range []string{a, b, a, c} {
		var res map[string]interface{}
		if err := f.user.Post(fmt.Sprintf("/tour/%v/markers", tourId)).Json(map[string]string{"marker_id": m}).Do(&res); err != nil {
			t.Fatal(err)
		}
	}

	tour, err := f.user.tourInfo(tourId)
	if err != nil {
		t.Fatal(err)
	}
	checkOrder(t, markerOrder(tour), []string{a, b, a, c})
	if tour.Markers[1].Name != "marker 1" {
		t.Fatalf("tour markers should include marker details: %+v", tour.Markers[1])
	}

	if err := f.user.reorderMarkers(tourId, []string{c, a, a, b}); err != nil {
		t.Fatal(err)
	}
	tour, err = f.user.tourInfo(tourId)
	if err != nil {
		t.Fatal(err)
	}
	checkOrder(t, markerOrder(tour), []string{c, a, a, b})

	expectStatus(t, f.user.reorderMarkers(tourId, []string{c, a, b}), http.StatusUnprocessableEntity)
	expectStatus(t, f.user.reorderMarkers(tourId, []string{c, a, b, b}), http.StatusUnprocessableEntity)
	expectStatus(t, f.user.reorderMarkers(tourId, []string{c, a, a, b, b}), http.StatusUnprocessableEntity)

	if err := f.user.detachMarker(tourId, a); err != nil {
		t.Fatal(err)
	}
	tour, err = f.user.tourInfo(tourId)
	if err != nil {
		t.Fatal(err)
	}
	checkOrder(t, markerOrder(tour), []string{c, a, b})
	for i, m := range tour.Markers {
		if m.Position != i {
			t.Fatalf("positions should be compacted after detach: %+v", tour.Markers)
		}
	}

	err = f.user.Delete(fmt.Sprintf("/tour/%v/markers/%v?position=0", tourId, c)).Do(nil)
	if err != nil {
		t.Fatal(err)
	}
	err = f.user.Delete(fmt.Sprintf("/tour/%v/markers/%v?position=0", tourId, b)).Do(nil)
	expectStatus(t, err, http.StatusNotFound)

	tour, err = f.user.tourInfo(tourId)
	if err != nil {
		t.Fatal(err)
	}
	checkOrder(t, markerOrder(tour), []string{a, b})

	expectStatus(t, f.user.detachMarker(tourId, c), http.StatusNotFound)
}

func TestTourMarkerFromOtherTrip(t *testing.T) {
	env := setupTestEnv(t)
	f := setupTourFixture(t, env, 1)

	otherTrip, err := f.user.createTrip("Other")
	if err != nil {
		t.Fatal(err)
	}
	otherMarker, err := f.user.createMarker(otherTrip, "elsewhere", 10, 10)
	if err != nil {
		t.Fatal(err)
	}

	tourId, err := f.user.createTour(f.tripId, "Day 1", nil)
	if err != nil {
		t.Fatal(err)
	}

	expectStatus(t, f.user.attachMarker(tourId, otherMarker), http.StatusUnprocessableEntity)
	expectStatus(t, f.user.attachMarker(tourId, "b5c1f6a4-2f0f-4d8e-8f47-6a2b9e4f3c11"), http.StatusNotFound)
}

func TestTourHierarchy(t *testing.T) {
	env := setupTestEnv(t)
	f := setupTourFixture(t, env, 0)

	week1, err := f.user.createTour(f.tripId, "Week 1", nil)
	if err != nil {
		t.Fatal(err)
	}
	week2, err := f.user.createTour(f.tripId, "Week 2", nil)
	if err != nil {
		t.Fatal(err)
	}

	day1, err := f.user.createTour(f.tripId, "Day 1", &week1)
	if err != nil {
		t.Fatal(err)
	}
	day2, err := f.user.createTour(f.tripId, "Day 2", &week1)
	if err != nil {
		t.Fatal(err)
	}

	// Names only need to be unique among siblings.
	if _, err := f.user.createTour(f.tripId, "Day 1", &week2); err != nil {
		t.Fatal(err)
	}
	_, err = f.user.createTour(f.tripId, "day 1", &week1)
	expectStatus(t, err, http.StatusConflict)
	_, err = f.user.createTour(f.tripId, "WEEK 1", nil)
	expectStatus(t, err, http.StatusConflict)

	_, err = f.user.createTour(f.tripId, "Morning", &day1)
	expectStatus(t, err, http.StatusUnprocessableEntity)

	tree, err := f.user.tourTree(f.tripId)
	if err != nil {
		t.Fatal(err)
	}
	checkOrder(t, tourOrder(tree), []string{week1, week2})
	checkOrder(t, tourOrder(tree[0].SubTours), []string{day1, day2})
	if len(tree[1].SubTours) != 1 {
		t.Fatalf("expected one sub-tour in week 2: %+v", tree[1])
	}

	if err := f.user.reorderSubTours(week1, []string{day2, day1}); err != nil {
		t.Fatal(err)
	}
	expectStatus(t, f.user.reorderSubTours(week1, []string{day2}), http.StatusUnprocessableEntity)
	expectStatus(t, f.user.reorderSubTours(week1, []string{day2, week2}), http.StatusUnprocessableEntity)

	if err := f.user.reorderTours(f.tripId, []string{week2, week1}); err != nil {
		t.Fatal(err)
	}
	expectStatus(t, f.user.reorderTours(f.tripId, []string{week2, day1}), http.StatusUnprocessableEntity)

	tree, err = f.user.tourTree(f.tripId)
	if err != nil {
		t.Fatal(err)
	}
	checkOrder(t, tourOrder(tree), []string{week2, week1})
	checkOrder(t, tourOrder(tree[1].SubTours), []string{day2, day1})

	// A tour with children cannot become a child itself.
	expectStatus(t, f.user.updateTour(week1, "Week 1", &week2), http.StatusUnprocessableEntity)
	expectStatus(t, f.user.updateTour(week1, "Week 1", &week1), http.StatusUnprocessableEntity)

	// Moving day 2 to the top level appends it and compacts week 1.
	if err := f.user.moveTourToTop(day2, "Day 2"); err != nil {
		t.Fatal(err)
	}

	tree, err = f.user.tourTree(f.tripId)
	if err != nil {
		t.Fatal(err)
	}
	checkOrder(t, tourOrder(tree), []string{week2, week1, day2})
	if tree[2].Position != 2 || tree[1].SubTours[0].Position != 0 {
		t.Fatalf("positions should be compacted after move: %+v", tree)
	}

	expectStatus(t, f.user.updateTour(day2, "week 2", nil), http.StatusConflict)

	if err := f.user.deleteTour(week1); err != nil {
		t.Fatal(err)
	}
	_, err = f.user.tourInfo(day1)
	expectStatus(t, err, http.StatusNotFound)

	tree, err = f.user.tourTree(f.tripId)
	if err != nil {
		t.Fatal(err)
	}
	checkOrder(t, tourOrder(tree), []string{week2, day2})
	for i, tour := range tree {
		if tour.Position != i {
			t.Fatalf("positions should be compacted after delete: %+v", tree)
		}
	}
}

func TestTourRenameKeepsParent(t *testing.T) {
	env := setupTestEnv(t)
	f := setupTourFixture(t, env, 0)

	week1, err := f.user.createTour(f.tripId, "Week 1", nil)
	if err != nil {
		t.Fatal(err)
	}
	day1, err := f.user.createTour(f.tripId, "Day 1", &week1)
	if err != nil {
		t.Fatal(err)
	}
	day2, err := f.user.createTour(f.tripId, "Day 2", &week1)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.user.updateTour(day1, "Day one", nil); err != nil {
		t.Fatal(err)
	}

	info, err := f.user.tourInfo(day1)
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "Day one" || info.ParentTourId == nil || info.ParentTourId.String() != week1 || info.Position != 0 {
		t.Fatalf("rename should keep the parent and position: %+v", info)
	}

	// Uniqueness is checked against the real siblings, not the top level.
	if err := f.user.updateTour(day2, "week 1", nil); err != nil {
		t.Fatal(err)
	}
	expectStatus(t, f.user.updateTour(day2, "DAY ONE", nil), http.StatusConflict)

	// Resending the current parent is not a move.
	if err := f.user.updateTour(day2, "Day 2", &week1); err != nil {
		t.Fatal(err)
	}

	tree, err := f.user.tourTree(f.tripId)
	if err != nil {
		t.Fatal(err)
	}
	checkOrder(t, tourOrder(tree), []string{week1})
	checkOrder(t, tourOrder(tree[0].SubTours), []string{day1, day2})
}

func TestTourParentFromOtherTrip(t *testing.T) {
	env := setupTestEnv(t)
	f := setupTourFixture(t, env, 0)

	otherTrip, err := f.user.createTrip("Other")
	if err != nil {
		t.Fatal(err)
	}
	otherTour, err := f.user.createTour(otherTrip, "Elsewhere", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.user.createTour(f.tripId, "Child", &otherTour)
	expectStatus(t, err, http.StatusUnprocessableEntity)
}

func TestTourPermissions(t *testing.T) {
	env := setupTestEnv(t)
	f := setupTourFixture(t, env, 1)

	viewer, err := env.newUser("viewer")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.user.addCollaborator(f.tripId, viewer.email, "viewer"); err != nil {
		t.Fatal(err)
	}

	tourId, err := f.user.createTour(f.tripId, "Day 1", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := viewer.tourTree(f.tripId); err != nil {
		t.Fatal(err)
	}
	if _, err := viewer.tourInfo(tourId); err != nil {
		t.Fatal(err)
	}

	_, err = viewer.createTour(f.tripId, "Day 2", nil)
	expectStatus(t, err, http.StatusForbidden)
	expectStatus(t, viewer.attachMarker(tourId, f.markers[0]), http.StatusForbidden)
	expectStatus(t, viewer.updateTour(tourId, "renamed", nil), http.StatusForbidden)
	expectStatus(t, viewer.deleteTour(tourId), http.StatusForbidden)
}
