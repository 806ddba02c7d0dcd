package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"trip_planner/utils/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Every provider error wraps exactly one of these kinds.
var (
	ErrNoRouteFound    = errors.New("no route found")
	ErrProviderFailure = errors.New("routing provider failure")
	ErrQuotaExceeded   = errors.New("routing provider quota exceeded")
)

func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrNoRouteFound):
		return "no_route_found"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrProviderFailure):
		return "provider_failure"
	default:
		return ""
	}
}

var (
	routeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routing_requests_total",
		Help: "Requests made to routing providers, by outcome.",
	}, []string{"provider", "mode", "outcome"})

	routeLatency = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Name: "routing_request_seconds",
		Help: "Latency of routing provider requests.",
	}, []string{"provider"})
)

type LatLng struct {
	Latitude  float64
	Longitude float64
}

type TransitStep struct {
	TravelMode    string `json:"travel_mode"`
	Instruction   string `json:"instruction,omitempty"`
	Distance      int    `json:"distance"`
	Duration      int    `json:"duration"`
	Line          string `json:"line,omitempty"`
	Vehicle       string `json:"vehicle,omitempty"`
	DepartureStop string `json:"departure_stop,omitempty"`
	ArrivalStop   string `json:"arrival_stop,omitempty"`
	NumStops      int    `json:"num_stops,omitempty"`
}

type TransitDetails struct {
	DepartureTime string        `json:"departure_time,omitempty"`
	ArrivalTime   string        `json:"arrival_time,omitempty"`
	Steps         []TransitStep `json:"steps"`
}

type Alternative struct {
	Summary  string       `json:"summary,omitempty"`
	Distance int          `json:"distance"`
	Duration int          `json:"duration"`
	Geometry [][2]float64 `json:"geometry"`
}

type Result struct {
	Distance int // meters
	Duration int // seconds

	// Ordered [lng, lat] pairs.
	Geometry [][2]float64

	TransitDetails *TransitDetails
	Alternatives   []Alternative
	Warning        string
}

type Provider interface {
	Name() string

	Route(ctx context.Context, from, to LatLng, mode string) (Result, error)
}

func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// Router dispatches requests to the provider configured for each transport mode.
type Router struct {
	providers map[string]Provider
}

func NewRouter(providers map[string]Provider) *Router {
	return &Router{providers: providers}
}

func (r *Router) Route(ctx context.Context, from, to LatLng, mode string) (Result, error) {
	provider, ok := r.providers[mode]
	if !ok || provider == nil {
		return Result{}, fmt.Errorf("%w: no provider configured for transport mode %v", ErrProviderFailure, mode)
	}

	start := time.Now()
	result, err := provider.Route(ctx, from, to, mode)
	routeLatency.WithLabelValues(provider.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		routeRequests.WithLabelValues(provider.Name(), mode, ErrorKind(err)).Inc()
		slog.Error("routing request failed", "provider", provider.Name(), "mode", mode, "error", err, "code", logging.ROUTE_COMPUTE)
		return Result{}, err
	}

	routeRequests.WithLabelValues(provider.Name(), mode, "ok").Inc()
	slog.Info("routing request complete", "provider", provider.Name(), "mode", mode, "distance", result.Distance, "duration", result.Duration, "code", logging.ROUTE_COMPUTE)

	return result, nil
}
