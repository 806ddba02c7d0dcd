package schema

import (
	"fmt"
	"slices"
)

const (
	AdminRole = "admin"
	UserRole  = "user"
)

func CheckValidUserRole(role string) error {
	if role == AdminRole || role == UserRole {
		return nil
	}
	return fmt.Errorf("invalid role '%v', must be 'admin' or 'user'", role)
}

const (
	EditorRole = "editor"
	ViewerRole = "viewer"
)

func CheckValidCollaboratorRole(role string) error {
	if role == EditorRole || role == ViewerRole {
		return nil
	}
	return fmt.Errorf("invalid collaborator role '%v', must be 'editor' or 'viewer'", role)
}

var MarkerTypes = []string{
	"restaurant", "hotel", "sightseeing", "museum", "nature", "shopping",
	"transport", "activity", "tip", "question", "other",
}

func CheckValidMarkerType(markerType string) error {
	if slices.Contains(MarkerTypes, markerType) {
		return nil
	}
	return fmt.Errorf("invalid marker type '%v'", markerType)
}

const (
	Driving         = "driving"
	Cycling         = "cycling"
	Walking         = "walking"
	PublicTransport = "public_transport"
)

func CheckValidTransportMode(mode string) error {
	if mode == Driving || mode == Cycling || mode == Walking || mode == PublicTransport {
		return nil
	}
	return fmt.Errorf("invalid transport mode '%v', must be one of 'driving', 'cycling', 'walking', 'public_transport'", mode)
}
