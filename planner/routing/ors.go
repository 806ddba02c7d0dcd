package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
)

// OpenRouteService error codes that mean the request was fine but no route exists.
const (
	orsRouteNotFound = 2009
	orsPointNotFound = 2010
)

type OrsProvider struct {
	baseUrl  string
	apiKey   string
	profiles map[string]string
	client   *http.Client
}

func NewOrsProvider(baseUrl, apiKey string, profiles map[string]string, client *http.Client) *OrsProvider {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &OrsProvider{baseUrl: baseUrl, apiKey: apiKey, profiles: profiles, client: client}
}

func (p *OrsProvider) Name() string {
	return "openrouteservice"
}

type orsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
}

type orsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [][2]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
			} `json:"summary"`
			Warnings []struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"warnings"`
		} `json:"properties"`
	} `json:"features"`
}

type orsError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *OrsProvider) Route(ctx context.Context, from, to LatLng, mode string) (Result, error) {
	profile, ok := p.profiles[mode]
	if !ok {
		return Result{}, fmt.Errorf("%w: transport mode %v is not supported by %v", ErrProviderFailure, mode, p.Name())
	}

	endpoint, err := url.JoinPath(p.baseUrl, "v2/directions", profile, "geojson")
	if err != nil {
		return Result{}, fmt.Errorf("%w: error creating request url: %v", ErrProviderFailure, err)
	}

	body, err := json.Marshal(orsRequest{Coordinates: [][2]float64{
		{from.Longitude, from.Latitude}, {to.Longitude, to.Latitude},
	}})
	if err != nil {
		return Result{}, fmt.Errorf("%w: error encoding request: %v", ErrProviderFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%w: error creating request: %v", ErrProviderFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/geo+json")
	req.Header.Set("Authorization", p.apiKey)

	res, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: error making request: %v", ErrProviderFailure, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: error reading response: %v", ErrProviderFailure, err)
	}

	if res.StatusCode != http.StatusOK {
		return Result{}, p.classifyError(res.StatusCode, data)
	}

	var parsed orsResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Result{}, fmt.Errorf("%w: error decoding response: %v", ErrProviderFailure, err)
	}

	if len(parsed.Features) == 0 {
		return Result{}, fmt.Errorf("%w: response contained no routes", ErrNoRouteFound)
	}

	feature := parsed.Features[0]
	warnings := make([]string, 0, len(feature.Properties.Warnings))
	for _, w := range feature.Properties.Warnings {
		warnings = append(warnings, w.Message)
	}

	return Result{
		Distance: int(math.Round(feature.Properties.Summary.Distance)),
		Duration: int(math.Round(feature.Properties.Summary.Duration)),
		Geometry: feature.Geometry.Coordinates,
		Warning:  strings.Join(warnings, "; "),
	}, nil
}

func (p *OrsProvider) classifyError(status int, body []byte) error {
	var parsed orsError
	_ = json.Unmarshal(body, &parsed)

	message := parsed.Error.Message
	if message == "" {
		message = strings.TrimSpace(string(body))
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, message)
	case parsed.Error.Code == orsRouteNotFound || parsed.Error.Code == orsPointNotFound:
		return fmt.Errorf("%w: %v", ErrNoRouteFound, message)
	default:
		return fmt.Errorf("%w: status %d: %v", ErrProviderFailure, status, message)
	}
}
