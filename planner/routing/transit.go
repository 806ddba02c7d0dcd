package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"trip_planner/planner/schema"
)

// TransitProvider computes public transport routes using a directions api compatible with
// the google maps directions response format.
type TransitProvider struct {
	baseUrl string
	apiKey  string
	client  *http.Client
}

func NewTransitProvider(baseUrl, apiKey string, client *http.Client) *TransitProvider {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &TransitProvider{baseUrl: baseUrl, apiKey: apiKey, client: client}
}

func (p *TransitProvider) Name() string {
	return "transit"
}

type textValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

type directionsStep struct {
	TravelMode       string    `json:"travel_mode"`
	HtmlInstructions string    `json:"html_instructions"`
	Distance         textValue `json:"distance"`
	Duration         textValue `json:"duration"`
	TransitDetails   *struct {
		Line struct {
			Name      string `json:"name"`
			ShortName string `json:"short_name"`
			Vehicle   struct {
				Type string `json:"type"`
			} `json:"vehicle"`
		} `json:"line"`
		DepartureStop struct {
			Name string `json:"name"`
		} `json:"departure_stop"`
		ArrivalStop struct {
			Name string `json:"name"`
		} `json:"arrival_stop"`
		NumStops int `json:"num_stops"`
	} `json:"transit_details"`
}

type directionsRoute struct {
	Summary          string `json:"summary"`
	OverviewPolyline struct {
		Points string `json:"points"`
	} `json:"overview_polyline"`
	Legs []struct {
		Distance      textValue        `json:"distance"`
		Duration      textValue        `json:"duration"`
		DepartureTime textValue        `json:"departure_time"`
		ArrivalTime   textValue        `json:"arrival_time"`
		Steps         []directionsStep `json:"steps"`
	} `json:"legs"`
	Warnings []string `json:"warnings"`
}

type directionsResponse struct {
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message"`
	Routes       []directionsRoute `json:"routes"`
}

var htmlTags = regexp.MustCompile(`<[^>]*>`)

func (p *TransitProvider) Route(ctx context.Context, from, to LatLng, mode string) (Result, error) {
	if mode != schema.PublicTransport {
		return Result{}, fmt.Errorf("%w: transport mode %v is not supported by %v", ErrProviderFailure, mode, p.Name())
	}

	endpoint, err := url.JoinPath(p.baseUrl, "maps/api/directions/json")
	if err != nil {
		return Result{}, fmt.Errorf("%w: error creating request url: %v", ErrProviderFailure, err)
	}

	query := url.Values{}
	query.Set("origin", fmt.Sprintf("%f,%f", from.Latitude, from.Longitude))
	query.Set("destination", fmt.Sprintf("%f,%f", to.Latitude, to.Longitude))
	query.Set("mode", "transit")
	query.Set("alternatives", "true")
	query.Set("key", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: error creating request: %v", ErrProviderFailure, err)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: error making request: %v", ErrProviderFailure, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: error reading response: %v", ErrProviderFailure, err)
	}

	if res.StatusCode == http.StatusTooManyRequests {
		return Result{}, fmt.Errorf("%w: status %d", ErrQuotaExceeded, res.StatusCode)
	}
	if res.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: status %d: %v", ErrProviderFailure, res.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed directionsResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Result{}, fmt.Errorf("%w: error decoding response: %v", ErrProviderFailure, err)
	}

	switch parsed.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return Result{}, fmt.Errorf("%w: provider status %v", ErrNoRouteFound, parsed.Status)
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return Result{}, fmt.Errorf("%w: provider status %v: %v", ErrQuotaExceeded, parsed.Status, parsed.ErrorMessage)
	default:
		return Result{}, fmt.Errorf("%w: provider status %v: %v", ErrProviderFailure, parsed.Status, parsed.ErrorMessage)
	}

	if len(parsed.Routes) == 0 || len(parsed.Routes[0].Legs) == 0 {
		return Result{}, fmt.Errorf("%w: response contained no routes", ErrNoRouteFound)
	}

	main := parsed.Routes[0]
	geometry, err := DecodePolyline(main.OverviewPolyline.Points)
	if err != nil {
		return Result{}, fmt.Errorf("%w: invalid route geometry: %v", ErrProviderFailure, err)
	}

	leg := main.Legs[0]
	details := &TransitDetails{
		DepartureTime: leg.DepartureTime.Text,
		ArrivalTime:   leg.ArrivalTime.Text,
		Steps:         make([]TransitStep, 0, len(leg.Steps)),
	}

	usesTransit := false
	for _, step := range leg.Steps {
		s := TransitStep{
			TravelMode:  strings.ToLower(step.TravelMode),
			Instruction: htmlTags.ReplaceAllString(step.HtmlInstructions, ""),
			Distance:    step.Distance.Value,
			Duration:    step.Duration.Value,
		}
		if step.TransitDetails != nil {
			usesTransit = true
			s.Line = step.TransitDetails.Line.ShortName
			if s.Line == "" {
				s.Line = step.TransitDetails.Line.Name
			}
			s.Vehicle = strings.ToLower(step.TransitDetails.Line.Vehicle.Type)
			s.DepartureStop = step.TransitDetails.DepartureStop.Name
			s.ArrivalStop = step.TransitDetails.ArrivalStop.Name
			s.NumStops = step.TransitDetails.NumStops
		}
		details.Steps = append(details.Steps, s)
	}

	warnings := append([]string{}, main.Warnings...)
	if !usesTransit {
		warnings = append(warnings, "no public transport connection found, route uses walking only")
	}

	alternatives := make([]Alternative, 0, len(parsed.Routes)-1)
	for _, alt := range parsed.Routes[1:] {
		if len(alt.Legs) == 0 {
			continue
		}
		altGeometry, err := DecodePolyline(alt.OverviewPolyline.Points)
		if err != nil {
			continue
		}
		alternatives = append(alternatives, Alternative{
			Summary:  alt.Summary,
			Distance: alt.Legs[0].Distance.Value,
			Duration: alt.Legs[0].Duration.Value,
			Geometry: altGeometry,
		})
	}

	return Result{
		Distance:       leg.Distance.Value,
		Duration:       leg.Duration.Value,
		Geometry:       geometry,
		TransitDetails: details,
		Alternatives:   alternatives,
		Warning:        strings.Join(warnings, "; "),
	}, nil
}
