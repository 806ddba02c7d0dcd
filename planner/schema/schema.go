package schema

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name     string `gorm:"size:100;not null"`
	Email    string `gorm:"unique;size:254;not null"`
	Password []byte

	Role string `gorm:"size:20;not null;default:'user'"`

	EmailVerifiedAt *time.Time
	CreatedAt       time.Time

	Trips []Trip
}

func (u *User) IsAdmin() bool {
	return u.Role == AdminRole
}

// Planned dates are stored as separate optional parts so that a plan can be as vague as
// "sometime in 2027" or as precise as a single day.
type PlannedDates struct {
	StartYear  *int
	StartMonth *int
	StartDay   *int
	EndYear    *int
	EndMonth   *int
	EndDay     *int
}

type Trip struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name string `gorm:"size:255;not null"`

	UserId uuid.UUID `gorm:"type:uuid;not null;index"`
	User   *User     `gorm:"constraint:OnDelete:CASCADE"`

	ViewportLatitude  *float64
	ViewportLongitude *float64
	ViewportZoom      *float64

	Planned             PlannedDates `gorm:"embedded;embeddedPrefix:planned_"`
	PlannedDurationDays *int

	CreatedAt time.Time
	UpdatedAt time.Time

	Collaborators []TripCollaborator `gorm:"constraint:OnDelete:CASCADE"`
}

func (t *Trip) HasViewport() bool {
	return t.ViewportLatitude != nil && t.ViewportLongitude != nil && t.ViewportZoom != nil
}

func (t *Trip) PreviewPath() string {
	return "trips/" + t.Id.String() + "/preview.png"
}

type TripCollaborator struct {
	TripId uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role   string    `gorm:"size:20;not null"`

	CreatedAt time.Time

	Trip *Trip `gorm:"constraint:OnDelete:CASCADE"`
	User *User `gorm:"constraint:OnDelete:CASCADE"`
}

type Marker struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name string `gorm:"size:255;not null"`
	Type string `gorm:"size:50;not null"`

	Latitude  float64 `gorm:"not null"`
	Longitude float64 `gorm:"not null"`

	Notes    string
	Url      string `gorm:"size:2048"`
	IsUnesco bool   `gorm:"not null;default:false"`

	Planned PlannedDates `gorm:"embedded;embeddedPrefix:planned_"`

	TripId uuid.UUID `gorm:"type:uuid;not null;index"`
	Trip   *Trip     `gorm:"constraint:OnDelete:CASCADE"`

	UserId uuid.UUID `gorm:"type:uuid;not null"`
	User   *User

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Tour struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name string `gorm:"size:255;not null"`

	TripId uuid.UUID `gorm:"type:uuid;not null;index"`
	Trip   *Trip     `gorm:"constraint:OnDelete:CASCADE"`

	ParentTourId *uuid.UUID `gorm:"type:uuid;index"`
	ParentTour   *Tour      `gorm:"constraint:OnDelete:CASCADE"`

	// Order among sibling tours sharing the same parent.
	Position int `gorm:"not null;default:0"`

	CreatedAt time.Time

	Markers []TourMarker `gorm:"constraint:OnDelete:CASCADE"`
}

// A marker may appear more than once in a tour, so rows are keyed by their own id.
type TourMarker struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TourId   uuid.UUID `gorm:"type:uuid;not null;index"`
	MarkerId uuid.UUID `gorm:"type:uuid;not null;index"`
	Position int       `gorm:"not null"`

	Tour   *Tour   `gorm:"constraint:OnDelete:CASCADE"`
	Marker *Marker `gorm:"constraint:OnDelete:CASCADE"`
}

type Route struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TripId uuid.UUID `gorm:"type:uuid;not null;index"`
	Trip   *Trip     `gorm:"constraint:OnDelete:CASCADE"`

	StartMarkerId uuid.UUID `gorm:"type:uuid;not null"`
	StartMarker   *Marker   `gorm:"foreignKey:StartMarkerId;constraint:OnDelete:CASCADE"`
	EndMarkerId   uuid.UUID `gorm:"type:uuid;not null"`
	EndMarker     *Marker   `gorm:"foreignKey:EndMarkerId;constraint:OnDelete:CASCADE"`

	TransportMode string `gorm:"size:50;not null"`

	Distance int `gorm:"not null"` // meters
	Duration int `gorm:"not null"` // seconds

	Geometry       datatypes.JSON `gorm:"not null"`
	TransitDetails datatypes.JSON
	Alternatives   datatypes.JSON
	Warning        *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserInvitation struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Email     string `gorm:"size:254;not null;index"`
	TokenHash string `gorm:"unique;size:64;not null"`
	Role      string `gorm:"size:20;not null"`

	InvitedBy uuid.UUID `gorm:"type:uuid;not null"`
	Inviter   *User     `gorm:"foreignKey:InvitedBy;constraint:OnDelete:CASCADE"`

	ExpiresAt  time.Time `gorm:"not null"`
	AcceptedAt *time.Time
	CreatedAt  time.Time
}

func (i *UserInvitation) IsValid(now time.Time) bool {
	return i.AcceptedAt == nil && i.ExpiresAt.After(now)
}

// One row per calendar period (YYYY-MM) counting requests made to the map image provider.
type MapUsage struct {
	Period        string `gorm:"size:7;primaryKey"`
	RequestCount  int64  `gorm:"not null;default:0"`
	LastRequestAt time.Time
}

func UsagePeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Tables managed by AutoMigrate, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&User{}, &Trip{}, &TripCollaborator{}, &Marker{}, &Tour{}, &TourMarker{},
		&Route{}, &UserInvitation{}, &MapUsage{},
	}
}
