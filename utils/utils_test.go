package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type tripBody struct {
	Name string `json:"name"`
}

func TestParseRequestBody(t *testing.T) {
	cases := []struct {
		body   string
		ok     bool
		status int
	}{
		{body: `{"name": "Lisbon"}`, ok: true, status: http.StatusOK},
		{body: ``, ok: false, status: http.StatusBadRequest},
		{body: `{"name": `, ok: false, status: http.StatusBadRequest},
		{body: `{"name": "` + strings.Repeat("a", maxRequestBodyBytes) + `"}`, ok: false, status: http.StatusRequestEntityTooLarge},
	}

	for _, c := range cases {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/trip/create", strings.NewReader(c.body))

		var dest tripBody
		assert.Equal(t, c.ok, ParseRequestBody(w, r, &dest))
		assert.Equal(t, c.status, w.Code)
		if c.ok {
			assert.Equal(t, "Lisbon", dest.Name)
		}
	}
}

func TestWriteJsonResponse(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJsonResponse(w, map[string]int{"request_count": 3})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"request_count": 3}`, w.Body.String())
}

func TestQueryParamInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodDelete, "/tour/x/markers/y?position=2", nil)
	value, err := QueryParamInt(r, "position")
	assert.NoError(t, err)
	assert.Equal(t, 2, *value)

	value, err = QueryParamInt(r, "missing")
	assert.NoError(t, err)
	assert.Nil(t, value)

	r = httptest.NewRequest(http.MethodDelete, "/tour/x/markers/y?position=first", nil)
	_, err = QueryParamInt(r, "position")
	assert.Error(t, err)
}
