package schema

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T {
	return &v
}

func TestCheckValidViewport(t *testing.T) {
	assert.NoError(t, CheckValidViewport(nil, nil, nil))
	assert.NoError(t, CheckValidViewport(ptr(48.2), ptr(16.37), ptr(10.0)))

	assert.Error(t, CheckValidViewport(ptr(48.2), nil, nil))
	assert.Error(t, CheckValidViewport(ptr(48.2), ptr(16.37), nil))
	assert.Error(t, CheckValidViewport(ptr(91.0), ptr(16.37), ptr(3.0)))
	assert.Error(t, CheckValidViewport(ptr(48.2), ptr(-181.0), ptr(3.0)))
	assert.Error(t, CheckValidViewport(ptr(48.2), ptr(16.37), ptr(23.0)))
}

func TestCheckValidPlannedDates(t *testing.T) {
	assert.NoError(t, CheckValidPlannedDates(PlannedDates{}))
	assert.NoError(t, CheckValidPlannedDates(PlannedDates{StartYear: ptr(2027), EndMonth: ptr(12)}))

	assert.Error(t, CheckValidPlannedDates(PlannedDates{StartMonth: ptr(13)}))
	assert.Error(t, CheckValidPlannedDates(PlannedDates{EndDay: ptr(0)}))
	assert.Error(t, CheckValidPlannedDates(PlannedDates{StartYear: ptr(1200)}))
}

func TestCheckValidUrlAndEmail(t *testing.T) {
	assert.NoError(t, CheckValidUrl(""))
	assert.NoError(t, CheckValidUrl("https://whc.unesco.org/en/list/1033"))
	assert.Error(t, CheckValidUrl("ftp://example.com"))
	assert.Error(t, CheckValidUrl("not a url"))

	assert.NoError(t, CheckValidEmail("a@x.com"))
	assert.Error(t, CheckValidEmail("a.x.com"))
	assert.Error(t, CheckValidEmail("@x.com"))
	assert.Error(t, CheckValidEmail("a@"))
	assert.Error(t, CheckValidEmail("Anna <a@x.com>"))
	assert.Error(t, CheckValidEmail("a b@x.com"))
	assert.Error(t, CheckValidEmail(" a@x.com"))
}

func TestCheckValidName(t *testing.T) {
	assert.NoError(t, CheckValidName("Wien", 10))
	assert.Error(t, CheckValidName("   ", 10))

	// Limits count characters, not bytes.
	assert.NoError(t, CheckValidName(strings.Repeat("ü", 10), 10))
	assert.NoError(t, CheckValidName("Düsseldorf", 10))
	assert.Error(t, CheckValidName(strings.Repeat("ü", 11), 10))
}

func TestEnums(t *testing.T) {
	assert.NoError(t, CheckValidTransportMode(PublicTransport))
	assert.Error(t, CheckValidTransportMode("teleport"))

	assert.NoError(t, CheckValidCollaboratorRole(EditorRole))
	assert.Error(t, CheckValidCollaboratorRole("owner"))

	assert.NoError(t, CheckValidMarkerType("museum"))
	assert.Error(t, CheckValidMarkerType("castle"))
}

func TestInvitationValidity(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	pending := UserInvitation{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, pending.IsValid(now))

	expired := UserInvitation{ExpiresAt: now.Add(-time.Second)}
	assert.False(t, expired.IsValid(now))

	exactlyNow := UserInvitation{ExpiresAt: now}
	assert.False(t, exactlyNow.IsValid(now))

	accepted := UserInvitation{ExpiresAt: now.Add(time.Hour), AcceptedAt: &now}
	assert.False(t, accepted.IsValid(now))
}

func TestUsagePeriod(t *testing.T) {
	assert.Equal(t, "2026-01", UsagePeriod(time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)))
}
