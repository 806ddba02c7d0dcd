package staticmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"trip_planner/utils/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrQuotaExceeded   = errors.New("map provider quota exceeded")
	ErrProviderFailure = errors.New("map provider failure")
)

var mapRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "static_map_requests_total",
	Help: "Requests made to the static map image provider, by outcome.",
}, []string{"outcome"})

type Viewport struct {
	Latitude  float64
	Longitude float64
	Zoom      float64
}

type Provider interface {
	Image(ctx context.Context, viewport Viewport) ([]byte, error)
}

// MapboxClient fetches rendered images from the Mapbox static images api.
type MapboxClient struct {
	baseUrl string
	token   string
	style   string
	width   int
	height  int
	client  *http.Client
}

type MapboxOptions struct {
	BaseUrl string
	Token   string
	Style   string
	Width   int
	Height  int
	Client  *http.Client
}

func NewMapboxClient(opts MapboxOptions) *MapboxClient {
	if opts.BaseUrl == "" {
		opts.BaseUrl = "https://api.mapbox.com"
	}
	if opts.Style == "" {
		opts.Style = "mapbox/streets-v12"
	}
	if opts.Width <= 0 {
		opts.Width = 800
	}
	if opts.Height <= 0 {
		opts.Height = 450
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &MapboxClient{
		baseUrl: strings.TrimSuffix(opts.BaseUrl, "/"),
		token:   opts.Token,
		style:   opts.Style,
		width:   opts.Width,
		height:  opts.Height,
		client:  opts.Client,
	}
}

func (c *MapboxClient) imageUrl(viewport Viewport) string {
	query := url.Values{}
	query.Set("access_token", c.token)

	return fmt.Sprintf(
		"%s/styles/v1/%s/static/%.6f,%.6f,%.2f/%dx%d?%s",
		c.baseUrl, c.style, viewport.Longitude, viewport.Latitude, viewport.Zoom, c.width, c.height, query.Encode(),
	)
}

func (c *MapboxClient) Image(ctx context.Context, viewport Viewport) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.imageUrl(viewport), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: error creating request: %v", ErrProviderFailure, err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		mapRequests.WithLabelValues("error").Inc()
		slog.Error("static map request failed", "error", err, "code", logging.MAP_IMAGE)
		return nil, fmt.Errorf("%w: error making request: %v", ErrProviderFailure, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		mapRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: error reading response: %v", ErrProviderFailure, err)
	}

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		mapRequests.WithLabelValues("quota_exceeded").Inc()
		slog.Error("static map quota exceeded", "code", logging.MAP_IMAGE)
		return nil, ErrQuotaExceeded
	case res.StatusCode != http.StatusOK:
		mapRequests.WithLabelValues("error").Inc()
		slog.Error("static map provider returned error", "status", res.StatusCode, "body", string(data), "code", logging.MAP_IMAGE)
		return nil, fmt.Errorf("%w: status %d", ErrProviderFailure, res.StatusCode)
	}

	if !strings.HasPrefix(res.Header.Get("Content-Type"), "image/") {
		mapRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: unexpected content type %q", ErrProviderFailure, res.Header.Get("Content-Type"))
	}

	mapRequests.WithLabelValues("ok").Inc()
	slog.Info("fetched static map image", "bytes", len(data), "code", logging.MAP_IMAGE)

	return data, nil
}
