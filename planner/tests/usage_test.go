package tests

import (
	"net/http"
	"testing"
	"time"
	"trip_planner/planner/schema"
	"trip_planner/planner/services"
)

type mapUsageResponse struct {
	Current services.MapUsageInfo   `json:"current"`
	History []services.MapUsageInfo `json:"history"`
}

func mapUsage(c client) (mapUsageResponse, error) {
	var res mapUsageResponse
	err := c.Get("/usage/map").Do(&res)
	return res, err
}

func TestMapUsageTracking(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	usage, err := mapUsage(user)
	if err != nil {
		t.Fatal(err)
	}
	if usage.Current.RequestCount != 0 || usage.Current.Period != schema.UsagePeriod(time.Now()) {
		t.Fatalf("expected empty usage for current period: %+v", usage)
	}

	for i := 0; i < 3; i++ {
		if err := user.Post("/usage/map/track").Do(nil); err != nil {
			t.Fatal(err)
		}
	}

	usage, err = mapUsage(user)
	if err != nil {
		t.Fatal(err)
	}
	if usage.Current.RequestCount != 3 || usage.Current.LastRequestAt == nil {
		t.Fatalf("expected 3 tracked requests: %+v", usage)
	}
	if len(usage.History) != 1 {
		t.Fatalf("expected a single period in history: %+v", usage.History)
	}

	anon := env.newClient()
	err = anon.Post("/usage/map/track").Do(nil)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestMapUsageHistory(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	last := time.Date(2024, 11, 20, 10, 0, 0, 0, time.UTC)
	if err := env.db.Create(&schema.MapUsage{Period: "2024-11", RequestCount: 42, LastRequestAt: last}).Error; err != nil {
		t.Fatal(err)
	}

	if err := user.Post("/usage/map/track").Do(nil); err != nil {
		t.Fatal(err)
	}

	usage, err := mapUsage(user)
	if err != nil {
		t.Fatal(err)
	}
	if usage.Current.RequestCount != 1 {
		t.Fatalf("old periods should not count towards the current one: %+v", usage.Current)
	}
	if len(usage.History) != 2 || usage.History[1].Period != "2024-11" || usage.History[1].RequestCount != 42 {
		t.Fatalf("history should list periods newest first: %+v", usage.History)
	}
}
