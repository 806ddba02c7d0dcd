package staticmap_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"trip_planner/planner/staticmap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapboxImage(t *testing.T) {
	var gotPath, gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	client := staticmap.NewMapboxClient(staticmap.MapboxOptions{
		BaseUrl: server.URL,
		Token:   "pk.test",
		Width:   400,
		Height:  300,
		Client:  server.Client(),
	})

	img, err := client.Image(context.Background(), staticmap.Viewport{Latitude: 48.8566, Longitude: 2.3522, Zoom: 11})
	require.NoError(t, err)

	assert.Equal(t, "png-bytes", string(img))
	assert.Equal(t, "/styles/v1/mapbox/streets-v12/static/2.352200,48.856600,11.00/400x300", gotPath)
	assert.Equal(t, "pk.test", gotToken)
}

func TestMapboxErrors(t *testing.T) {
	cases := []struct {
		status      int
		contentType string
		expected    error
	}{
		{status: http.StatusTooManyRequests, contentType: "application/json", expected: staticmap.ErrQuotaExceeded},
		{status: http.StatusUnauthorized, contentType: "application/json", expected: staticmap.ErrProviderFailure},
		{status: http.StatusOK, contentType: "application/json", expected: staticmap.ErrProviderFailure},
	}

	for _, c := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", c.contentType)
			w.WriteHeader(c.status)
			w.Write([]byte(`{"message": "nope"}`))
		}))

		client := staticmap.NewMapboxClient(staticmap.MapboxOptions{BaseUrl: server.URL, Token: "pk", Client: server.Client()})
		_, err := client.Image(context.Background(), staticmap.Viewport{Latitude: 1, Longitude: 2, Zoom: 3})
		assert.ErrorIs(t, err, c.expected, "status %d", c.status)

		server.Close()
	}
}
