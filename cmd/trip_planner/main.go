package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	"trip_planner/planner/auth"
	"trip_planner/planner/mail"
	"trip_planner/planner/routing"
	"trip_planner/planner/schema"
	"trip_planner/planner/services"
	"trip_planner/planner/staticmap"
	"trip_planner/planner/storage"
	"trip_planner/utils"
	"trip_planner/utils/logging"

	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type RoutingEnv struct {
	OrsUrl           string `env:"ORS_URL" envDefault:"https://api.openrouteservice.org"`
	OrsApiKey        string `env:"ORS_API_KEY"`
	TransitUrl       string `env:"TRANSIT_URL" envDefault:"https://maps.googleapis.com"`
	TransitApiKey    string `env:"TRANSIT_API_KEY"`
	ProviderProfiles string `env:"PROVIDER_PROFILES"`
}

type MapEnv struct {
	MapboxUrl   string `env:"MAPBOX_URL"`
	MapboxToken string `env:"MAPBOX_TOKEN"`
	MapboxStyle string `env:"MAPBOX_STYLE"`
}

type SmtpEnv struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
}

type PlannerEnv struct {
	DatabaseUri string `env:"DATABASE_URI,required"`
	ShareDir    string `env:"SHARE_DIR,required"`
	PublicUrl   string `env:"PUBLIC_URL,required"`
	JwtSecret   string `env:"JWT_SECRET,required"`

	AdminName     string `env:"ADMIN_NAME" envDefault:"admin"`
	AdminEmail    string `env:"ADMIN_EMAIL,required"`
	AdminPassword string `env:"ADMIN_PASSWORD,required"`

	AllowSignup        bool          `env:"ALLOW_SIGNUP" envDefault:"false"`
	TokenTTL           time.Duration `env:"TOKEN_TTL" envDefault:"12h"`
	InvitationTTLHours int           `env:"INVITATION_TTL_HOURS" envDefault:"72"`
	PublicRateLimit    int           `env:"PUBLIC_RATE_LIMIT" envDefault:"20"`
	MinFreeStorageMb   uint64        `env:"MIN_FREE_STORAGE_MB" envDefault:"100"`
	AuditReads         bool          `env:"AUDIT_READS" envDefault:"false"`

	Routing RoutingEnv `env:""`
	Map     MapEnv     `env:""`
	Smtp    SmtpEnv    `env:""`
}

/**
 * ==========================================================================
 * ==== All variables that are used by the planner must be loaded here.  ====
 * ==== This is to make the data flow clear so that a user can see what  ====
 * ==== variables are exposed, and how the values are propagated through ====
 * ==== the system.                                                      ====
 * ==========================================================================
 */
func loadEnv() (*PlannerEnv, error) {
	cfg := &PlannerEnv{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.InvitationTTLHours < 1 {
		return nil, fmt.Errorf("INVITATION_TTL_HOURS must be at least 1, got %d", cfg.InvitationTTLHours)
	}
	return cfg, nil
}

func loadEnvFile(envFile string) error {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("error loading .env file '%v': %w", envFile, err)
	}
	return nil
}

func openDb(uri string) (*gorm.DB, error) {
	db, err := utils.OpenDatabase(uri, nil)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(schema.AllModels()...); err != nil {
		return nil, fmt.Errorf("error migrating db schema: %w", err)
	}

	return db, nil
}

func (cfg *PlannerEnv) router() (*routing.Router, error) {
	profiles, err := routing.LoadProfiles(cfg.Routing.ProviderProfiles)
	if err != nil {
		return nil, err
	}

	providers := map[string]routing.Provider{}

	if cfg.Routing.OrsApiKey != "" {
		ors := routing.NewOrsProvider(cfg.Routing.OrsUrl, cfg.Routing.OrsApiKey, profiles, nil)
		for mode := range profiles {
			providers[mode] = ors
		}
	} else {
		slog.Warn("ORS_API_KEY not set, driving, cycling and walking routes are unavailable", "code", logging.SYSTEM)
	}

	if cfg.Routing.TransitApiKey != "" {
		providers[schema.PublicTransport] = routing.NewTransitProvider(cfg.Routing.TransitUrl, cfg.Routing.TransitApiKey, nil)
	} else {
		slog.Warn("TRANSIT_API_KEY not set, public transport routes are unavailable", "code", logging.SYSTEM)
	}

	return routing.NewRouter(providers), nil
}

func (cfg *PlannerEnv) mailer() mail.Mailer {
	if cfg.Smtp.Host == "" {
		slog.Warn("SMTP_HOST not set, invitation emails will only be logged", "code", logging.SYSTEM)
		return mail.NewLogMailer()
	}
	return mail.NewSmtpMailer(mail.SmtpConfig{
		Host:     cfg.Smtp.Host,
		Port:     cfg.Smtp.Port,
		Username: cfg.Smtp.Username,
		Password: cfg.Smtp.Password,
		From:     cfg.Smtp.From,
	})
}

func openLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
}

// Returning an error instead of calling log.Fatal lets the deferred closes run.
func runApp() error {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 8000, "Port to run server on")

	flag.Parse()

	if *envFile != "" {
		if err := loadEnvFile(*envFile); err != nil {
			return err
		}
	}

	cfg, err := loadEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(cfg.ShareDir, "logs/"), 0777); err != nil {
		return fmt.Errorf("error creating log dir: %w", err)
	}

	logFile, err := openLogFile(filepath.Join(cfg.ShareDir, "logs/trip_planner.log"))
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer logFile.Close()

	auditLog, err := openLogFile(filepath.Join(cfg.ShareDir, "logs/audit.log"))
	if err != nil {
		return fmt.Errorf("error opening audit log file: %w", err)
	}
	defer auditLog.Close()

	logging.Init(logFile, "trip_planner")

	db, err := openDb(cfg.DatabaseUri)
	if err != nil {
		return err
	}

	audit := auth.NewAuditLogger(auditLog)
	if cfg.AuditReads {
		audit = audit.WithReads()
	}

	identityProvider, err := auth.NewBasicIdentityProvider(
		db,
		audit,
		auth.BasicProviderArgs{
			Secret:        []byte(cfg.JwtSecret),
			TokenTTL:      cfg.TokenTTL,
			AllowSignup:   cfg.AllowSignup,
			AdminName:     cfg.AdminName,
			AdminEmail:    cfg.AdminEmail,
			AdminPassword: cfg.AdminPassword,
		},
	)
	if err != nil {
		return fmt.Errorf("error creating identity provider: %w", err)
	}

	router, err := cfg.router()
	if err != nil {
		return fmt.Errorf("error configuring routing providers: %w", err)
	}

	maps := staticmap.NewMapboxClient(staticmap.MapboxOptions{
		BaseUrl: cfg.Map.MapboxUrl,
		Token:   cfg.Map.MapboxToken,
		Style:   cfg.Map.MapboxStyle,
	})

	planner := services.NewPlanner(
		db,
		storage.NewSharedDisk(filepath.Join(cfg.ShareDir, "data")),
		identityProvider,
		router,
		maps,
		cfg.mailer(),
		services.Variables{
			PublicUrl:           cfg.PublicUrl,
			InvitationTTL:       time.Duration(cfg.InvitationTTLHours) * time.Hour,
			PublicRateLimit:     cfg.PublicRateLimit,
			MinFreeStorageBytes: cfg.MinFreeStorageMb * 1024 * 1024,
		},
	)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.PublicUrl},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api/v1", planner.Routes())
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: r,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutdown signal received", "code", logging.SYSTEM)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err, "code", logging.SYSTEM)
		}
		close(idleConnsClosed)
	}()

	slog.Info("starting server", "port", *port, "code", logging.SYSTEM)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve returned error: %w", err)
	}

	<-idleConnsClosed
	slog.Info("server stopped", "code", logging.SYSTEM)

	return nil
}

func main() {
	if err := runApp(); err != nil {
		log.Fatal(err)
	}
}
