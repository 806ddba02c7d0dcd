package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvitationLink(t *testing.T) {
	vars := Variables{PublicUrl: "https://planner.example.com/"}
	assert.Equal(t, "https://planner.example.com/invitation/abc-123", vars.InvitationLink("abc-123"))
}

func TestHashSecretIsStable(t *testing.T) {
	token, err := generateRandomString(32)
	require.NoError(t, err)
	assert.Len(t, token, 32)
	assert.Equal(t, hashSecret(token), hashSecret(token))
	assert.Len(t, hashSecret(token), 64)
}
