package services

import (
	"log"
	"net/http"
	"os"
	"trip_planner/planner/auth"
	"trip_planner/planner/mail"
	"trip_planner/planner/routing"
	"trip_planner/planner/staticmap"
	"trip_planner/planner/storage"
	"trip_planner/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type Planner struct {
	user       UserService
	trip       TripService
	marker     MarkerService
	tour       TourService
	route      RouteService
	invitation InvitationService
	usage      UsageService
}

func NewPlanner(
	db *gorm.DB, storage storage.Storage, userAuth auth.IdentityProvider, router *routing.Router, maps staticmap.Provider, mailer mail.Mailer, variables Variables,
) Planner {
	return Planner{
		user: UserService{db: db, userAuth: userAuth, variables: variables},
		trip: TripService{
			db:        db,
			storage:   storage,
			maps:      maps,
			userAuth:  userAuth,
			variables: variables,
		},
		marker: MarkerService{db: db, userAuth: userAuth},
		tour:   TourService{db: db, userAuth: userAuth},
		route:  RouteService{db: db, userAuth: userAuth, router: router},
		invitation: InvitationService{
			db:        db,
			userAuth:  userAuth,
			mailer:    mailer,
			variables: variables,
		},
		usage: UsageService{db: db, userAuth: userAuth},
	}
}

func (p *Planner) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", p.user.Routes())
	r.Mount("/trip", p.trip.Routes())
	r.Mount("/trip/{trip_id}/markers", p.marker.TripRoutes())
	r.Mount("/trip/{trip_id}/tours", p.tour.TripRoutes())
	r.Mount("/trip/{trip_id}/routes", p.route.TripRoutes())
	r.Mount("/marker", p.marker.Routes())
	r.Mount("/tour", p.tour.Routes())
	r.Mount("/route", p.route.Routes())
	r.Mount("/invitation", p.invitation.Routes())
	r.Mount("/usage", p.usage.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}
