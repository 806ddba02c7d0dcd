package services

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Variables struct {
	// Base url of the frontend, used to build links sent in emails.
	PublicUrl string

	InvitationTTL time.Duration

	// Requests per minute and client ip allowed on login and public invitation endpoints.
	PublicRateLimit int

	// Preview generation is refused when the shared storage has less free space than this.
	MinFreeStorageBytes uint64
}

func (vars *Variables) invitationTTL() time.Duration {
	if vars.InvitationTTL <= 0 {
		return 72 * time.Hour
	}
	return vars.InvitationTTL
}

func (vars *Variables) publicRateLimit() int {
	if vars.PublicRateLimit <= 0 {
		return 20
	}
	return vars.PublicRateLimit
}

func (vars *Variables) InvitationLink(token string) string {
	return fmt.Sprintf("%s/invitation/%s", strings.TrimSuffix(vars.PublicUrl, "/"), url.PathEscape(token))
}
