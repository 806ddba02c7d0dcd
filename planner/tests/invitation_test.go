package tests

import (
	"net/http"
	"strings"
	"testing"
	"time"
	"trip_planner/planner/schema"
	"trip_planner/planner/services"
)

func TestInvitationFlow(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	invitation, err := admin.invite("New.Person@planner.test", "")
	if err != nil {
		t.Fatal(err)
	}
	if invitation.Token == "" || !invitation.EmailSent {
		t.Fatalf("invalid invitation response: %+v", invitation)
	}

	sent := env.mailer.Sent()
	if len(sent) != 1 || sent[0].To != "new.person@planner.test" {
		t.Fatalf("invitation email not sent: %v", sent)
	}
	if !strings.Contains(sent[0].Body, "http://localhost:3000/invitation/"+invitation.Token) {
		t.Fatalf("invitation email should contain the link: %v", sent[0].Body)
	}

	c := env.newClient()
	info, err := c.showInvitation(invitation.Token)
	if err != nil {
		t.Fatal(err)
	}
	if info["email"] != "new.person@planner.test" || info["role"] != "user" {
		t.Fatalf("invalid invitation info: %v", info)
	}

	err = c.acceptInvitation(invitation.Token, "New Person", "someone.else@planner.test", "person_password")
	expectStatus(t, err, http.StatusUnprocessableEntity)

	err = c.acceptInvitation(invitation.Token, "New Person", "new.person@planner.test", "short")
	expectStatus(t, err, http.StatusUnprocessableEntity)

	if err := c.acceptInvitation(invitation.Token, "New Person", "NEW.PERSON@planner.test", "person_password"); err != nil {
		t.Fatal(err)
	}

	var user services.UserInfo
	if err := c.Get("/user/info").Do(&user); err != nil {
		t.Fatal(err)
	}
	if user.Name != "New Person" || user.Admin || !user.Verified {
		t.Fatalf("invalid user created from invitation: %+v", user)
	}

	second := env.newClient()
	err = second.acceptInvitation(invitation.Token, "Someone", "new.person@planner.test", "person_password")
	expectStatus(t, err, http.StatusGone)

	_, err = second.showInvitation(invitation.Token)
	expectStatus(t, err, http.StatusGone)

	login := env.newClient()
	if err := login.login(loginInfo{Email: "new.person@planner.test", Password: "person_password"}); err != nil {
		t.Fatal(err)
	}

	var invitations []services.InvitationInfo
	if err := admin.Get("/invitation/list").Do(&invitations); err != nil {
		t.Fatal(err)
	}
	if len(invitations) != 1 || invitations[0].Status != "accepted" || invitations[0].AcceptedAt == nil {
		t.Fatalf("invitation should be marked accepted: %+v", invitations)
	}
}

func TestInvitationAdminRole(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	invitation, err := admin.invite("second.admin@planner.test", "admin")
	if err != nil {
		t.Fatal(err)
	}

	c := env.newClient()
	if err := c.acceptInvitation(invitation.Token, "Second Admin", "second.admin@planner.test", "admin_password"); err != nil {
		t.Fatal(err)
	}

	if _, err := c.listUsers(); err != nil {
		t.Fatal(err)
	}
}

func TestInvitationValidation(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.invite(adminEmail, "user")
	expectStatus(t, err, http.StatusConflict)

	_, err = admin.invite("not-an-email", "user")
	expectStatus(t, err, http.StatusUnprocessableEntity)

	_, err = admin.invite("a@planner.test", "editor")
	expectStatus(t, err, http.StatusUnprocessableEntity)

	err = admin.Post("/invitation/create").Json(map[string]interface{}{
		"email": "a@planner.test", "expires_in_hours": 0,
	}).Do(nil)
	expectStatus(t, err, http.StatusUnprocessableEntity)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}
	_, err = user.invite("b@planner.test", "user")
	expectStatus(t, err, http.StatusForbidden)

	anon := env.newClient()
	_, err = anon.showInvitation("unknown-token")
	expectStatus(t, err, http.StatusNotFound)
}

func TestExpiredInvitation(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	invitation, err := admin.invite("late@planner.test", "user")
	if err != nil {
		t.Fatal(err)
	}

	err = env.db.Model(&schema.UserInvitation{}).
		Where("id = ?", invitation.InvitationId).
		Update("expires_at", time.Now().UTC().Add(-time.Hour)).Error
	if err != nil {
		t.Fatal(err)
	}

	c := env.newClient()
	err = c.acceptInvitation(invitation.Token, "Late", "late@planner.test", "late_password")
	expectStatus(t, err, http.StatusGone)

	var invitations []services.InvitationInfo
	if err := admin.Get("/invitation/list").Do(&invitations); err != nil {
		t.Fatal(err)
	}
	if len(invitations) != 1 || invitations[0].Status != "expired" {
		t.Fatalf("invitation should be listed as expired: %+v", invitations)
	}

	if err := admin.Delete("/invitation/" + invitation.InvitationId).Do(nil); err != nil {
		t.Fatal(err)
	}
	expectStatus(t, admin.Delete("/invitation/"+invitation.InvitationId).Do(nil), http.StatusNotFound)

	_, err = c.showInvitation(invitation.Token)
	expectStatus(t, err, http.StatusNotFound)
}

func TestInvitationMailFailure(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	env.mailer.Fail(true)

	invitation, err := admin.invite("offline@planner.test", "user")
	if err != nil {
		t.Fatal(err)
	}
	if invitation.EmailSent {
		t.Fatal("failed email delivery should be reported")
	}

	anon := env.newClient()
	if _, err := anon.showInvitation(invitation.Token); err != nil {
		t.Fatal(err)
	}
}
