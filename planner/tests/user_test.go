package tests

import (
	"net/http"
	"testing"
)

func TestLoginAndInfo(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	var info map[string]interface{}
	if err := admin.Get("/user/info").Do(&info); err != nil {
		t.Fatal(err)
	}
	if info["email"] != adminEmail || info["admin"] != true {
		t.Fatalf("invalid admin info: %v", info)
	}

	c := env.newClient()
	err = c.login(loginInfo{Email: adminEmail, Password: "wrong_password"})
	expectStatus(t, err, http.StatusUnauthorized)

	err = c.login(loginInfo{Email: "nobody@planner.test", Password: "password123"})
	expectStatus(t, err, http.StatusNotFound)

	err = c.Get("/user/info").Do(nil)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestSignupDisabled(t *testing.T) {
	env := setupTestEnv(t)

	c := env.newClient()
	err := c.Post("/user/signup").Json(map[string]string{
		"name": "abc", "email": "abc@planner.test", "password": "abc_password",
	}).Do(nil)
	if statusOf(err) == http.StatusOK {
		t.Fatal("signup should not be possible without an invitation")
	}
}

func TestAdminCreateUser(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.addUser("abc", "abc@planner.test", "abc_password"); err != nil {
		t.Fatal(err)
	}

	_, err = admin.addUser("abc2", "ABC@planner.test", "abc_password")
	expectStatus(t, err, http.StatusConflict)

	_, err = admin.addUser("xyz", "xyz@planner.test", "short")
	expectStatus(t, err, http.StatusUnprocessableEntity)

	_, err = admin.addUser("xyz", "not-an-email", "xyz_password")
	expectStatus(t, err, http.StatusUnprocessableEntity)

	users, err := admin.listUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || users[0].Email != adminEmail || users[1].Email != "abc@planner.test" {
		t.Fatalf("invalid users: %v", users)
	}
	if !users[1].Verified || users[1].Admin {
		t.Fatal("admin created users should be verified non admins")
	}

	user, err := env.newUser("xyz")
	if err != nil {
		t.Fatal(err)
	}

	_, err = user.addUser("def", "def@planner.test", "def_password")
	expectStatus(t, err, http.StatusForbidden)

	_, err = user.listUsers()
	expectStatus(t, err, http.StatusForbidden)
}

func TestChangePassword(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	err = user.Put("/user/password").Json(map[string]string{
		"old_password": "incorrect", "new_password": "new_password",
	}).Do(nil)
	expectStatus(t, err, http.StatusUnauthorized)

	err = user.Put("/user/password").Json(map[string]string{
		"old_password": "abc_password", "new_password": "short",
	}).Do(nil)
	expectStatus(t, err, http.StatusUnprocessableEntity)

	err = user.Put("/user/password").Json(map[string]string{
		"old_password": "abc_password", "new_password": "new_password",
	}).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	c := env.newClient()
	err = c.login(loginInfo{Email: "abc@planner.test", Password: "abc_password"})
	expectStatus(t, err, http.StatusUnauthorized)

	if err := c.login(loginInfo{Email: "abc@planner.test", Password: "new_password"}); err != nil {
		t.Fatal(err)
	}
}

func TestPromoteDemoteAdmin(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	err = admin.Delete("/user/" + admin.userId + "/admin").Do(nil)
	expectStatus(t, err, http.StatusUnprocessableEntity)

	if err := admin.Post("/user/" + user.userId + "/admin").Do(nil); err != nil {
		t.Fatal(err)
	}

	err = admin.Post("/user/" + user.userId + "/admin").Do(nil)
	expectStatus(t, err, http.StatusUnprocessableEntity)

	if _, err := user.listUsers(); err != nil {
		t.Fatal(err)
	}

	if err := user.Delete("/user/" + admin.userId + "/admin").Do(nil); err != nil {
		t.Fatal(err)
	}

	_, err = admin.listUsers()
	expectStatus(t, err, http.StatusForbidden)

	err = user.Delete("/user/" + user.userId + "/admin").Do(nil)
	expectStatus(t, err, http.StatusUnprocessableEntity)
}

func TestDeleteUserReassignsTrips(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	tripId, err := user.createTrip("Lisbon")
	if err != nil {
		t.Fatal(err)
	}

	markerId, err := user.createMarker(tripId, "Belem Tower", 38.6916, -9.2160)
	if err != nil {
		t.Fatal(err)
	}

	err = admin.Delete("/user/" + admin.userId).Do(nil)
	expectStatus(t, err, http.StatusUnprocessableEntity)

	if err := admin.Delete("/user/" + user.userId).Do(nil); err != nil {
		t.Fatal(err)
	}

	err = admin.Delete("/user/" + user.userId).Do(nil)
	expectStatus(t, err, http.StatusNotFound)

	trip, err := admin.tripInfo(tripId)
	if err != nil {
		t.Fatal(err)
	}
	if trip.OwnerId.String() != admin.userId || trip.Permission != "owner" {
		t.Fatalf("trip should be owned by the deleting admin: %v", trip)
	}

	marker, err := admin.markerInfo(markerId)
	if err != nil {
		t.Fatal(err)
	}
	if marker.CreatorId.String() != admin.userId {
		t.Fatal("marker should be reassigned to the deleting admin")
	}

	users, err := admin.listUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 {
		t.Fatalf("expected only the admin to remain: %v", users)
	}
}

func TestHealthAndUnauthenticated(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	if err := c.Get("/health").Do(nil); err != nil {
		t.Fatal(err)
	}

	expectStatus(t, c.Get("/user/info").Do(nil), http.StatusUnauthorized)
	expectStatus(t, c.Get("/trip/list").Do(nil), http.StatusUnauthorized)
}
