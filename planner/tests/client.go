package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"trip_planner/planner/services"

	"github.com/go-chi/chi/v5"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *loginInfo
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{api: api, method: method, endpoint: endpoint}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(email, password string) *httpTestRequest {
	r.login = &loginInfo{Email: email, Password: password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

type statusError struct {
	method   string
	endpoint string
	code     int
	content  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v request to endpoint %v returned status %d, content '%v'", e.method, e.endpoint, e.code, e.content)
}

// Returns the http status an error from Do corresponds to, or 200 for nil.
func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var serr *statusError
	if errors.As(err, &serr) {
		return serr.code
	}
	return -1
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if statusOf(err) != code {
		t.Fatalf("expected status %d, got: %v", code, err)
	}
}

func (r *httpTestRequest) send() (*http.Response, error) {
	if r.json != nil {
		body := new(bytes.Buffer)
		if err := json.NewEncoder(body).Encode(r.json); err != nil {
			return nil, fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	for k, v := range r.headers {
		req.Header.Add(k, v)
	}

	if r.login != nil {
		req.SetBasicAuth(r.login.Email, r.login.Password)
	}

	w := httptest.NewRecorder()
	r.api.ServeHTTP(w, req)

	res := w.Result()
	if res.StatusCode != http.StatusOK {
		defer res.Body.Close()
		content, _ := io.ReadAll(res.Body)
		return nil, &statusError{method: r.method, endpoint: r.endpoint, code: res.StatusCode, content: string(content)}
	}

	return res, nil
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	res, err := r.send()
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if result != nil {
		if err := json.NewDecoder(res.Body).Decode(result); err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

func (r *httpTestRequest) Raw() ([]byte, http.Header, error) {
	res, err := r.send()
	if err != nil {
		return nil, nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	return data, res.Header, err
}

type client struct {
	api       chi.Router
	authToken string
	userId    string
	email     string
}

func (c *client) request(method, endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, method, endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Get(endpoint string) *httpTestRequest {
	return c.request("GET", endpoint)
}

func (c *client) Post(endpoint string) *httpTestRequest {
	return c.request("POST", endpoint)
}

func (c *client) Put(endpoint string) *httpTestRequest {
	return c.request("PUT", endpoint)
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	return c.request("DELETE", endpoint)
}

type loginInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *client) login(login loginInfo) error {
	var res map[string]string
	err := c.Get("/user/login").Login(login.Email, login.Password).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]
	c.email = login.Email

	return nil
}

func (c *client) addUser(name, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "name": name, "password": password,
	}

	err := c.Post("/user/create").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) listUsers() ([]services.UserInfo, error) {
	var users []services.UserInfo
	err := c.Get("/user/list").Do(&users)
	return users, err
}

func (c *client) createTrip(name string) (string, error) {
	return c.createTripWith(map[string]interface{}{"name": name})
}

func (c *client) createTripWith(body map[string]interface{}) (string, error) {
	var res map[string]string
	err := c.Post("/trip/create").Json(body).Do(&res)
	if err != nil {
		return "", err
	}
	return res["trip_id"], nil
}

func (c *client) tripInfo(tripId string) (services.TripInfo, error) {
	var info services.TripInfo
	err := c.Get(fmt.Sprintf("/trip/%v", tripId)).Do(&info)
	return info, err
}

func (c *client) listTrips() ([]services.TripInfo, error) {
	var trips []services.TripInfo
	err := c.Get("/trip/list").Do(&trips)
	return trips, err
}

func (c *client) updateTrip(tripId string, body map[string]interface{}) error {
	return c.Put(fmt.Sprintf("/trip/%v", tripId)).Json(body).Do(nil)
}

func (c *client) deleteTrip(tripId string) error {
	return c.Delete(fmt.Sprintf("/trip/%v", tripId)).Do(nil)
}

func (c *client) addCollaborator(tripId, email, role string) error {
	body := map[string]string{"email": email, "role": role}
	return c.Post(fmt.Sprintf("/trip/%v/collaborators", tripId)).Json(body).Do(nil)
}

func (c *client) removeCollaborator(tripId, userId string) error {
	return c.Delete(fmt.Sprintf("/trip/%v/collaborators/%v", tripId, userId)).Do(nil)
}

func (c *client) listCollaborators(tripId string) ([]services.CollaboratorInfo, error) {
	var collaborators []services.CollaboratorInfo
	err := c.Get(fmt.Sprintf("/trip/%v/collaborators", tripId)).Do(&collaborators)
	return collaborators, err
}

func (c *client) createMarker(tripId, name string, lat, lng float64) (string, error) {
	return c.createMarkerWith(tripId, map[string]interface{}{
		"name": name, "type": "sightseeing", "latitude": lat, "longitude": lng,
	})
}

func (c *client) createMarkerWith(tripId string, body map[string]interface{}) (string, error) {
	var res map[string]string
	err := c.Post(fmt.Sprintf("/trip/%v/markers", tripId)).Json(body).Do(&res)
	if err != nil {
		return "", err
	}
	return res["marker_id"], nil
}

func (c *client) markerInfo(markerId string) (services.MarkerInfo, error) {
	var info services.MarkerInfo
	err := c.Get(fmt.Sprintf("/marker/%v", markerId)).Do(&info)
	return info, err
}

func (c *client) listMarkers(tripId string) ([]services.MarkerInfo, error) {
	var markers []services.MarkerInfo
	err := c.Get(fmt.Sprintf("/trip/%v/markers", tripId)).Do(&markers)
	return markers, err
}

func (c *client) updateMarker(markerId string, body map[string]interface{}) error {
	return c.Put(fmt.Sprintf("/marker/%v", markerId)).Json(body).Do(nil)
}

func (c *client) deleteMarker(markerId string) error {
	return c.Delete(fmt.Sprintf("/marker/%v", markerId)).Do(nil)
}

func (c *client) createTour(tripId, name string, parentId *string) (string, error) {
	body := map[string]interface{}{"name": name}
	if parentId != nil {
		body["parent_tour_id"] = *parentId
	}

	var res map[string]string
	err := c.Post(fmt.Sprintf("/trip/%v/tours", tripId)).Json(body).Do(&res)
	if err != nil {
		return "", err
	}
	return res["tour_id"], nil
}

func (c *client) tourTree(tripId string) ([]services.TourInfo, error) {
	var tree []services.TourInfo
	err := c.Get(fmt.Sprintf("/trip/%v/tours", tripId)).Do(&tree)
	return tree, err
}

func (c *client) tourInfo(tourId string) (services.TourInfo, error) {
	var info services.TourInfo
	err := c.Get(fmt.Sprintf("/tour/%v", tourId)).Do(&info)
	return info, err
}

func (c *client) updateTour(tourId, name string, parentId *string) error {
	body := map[string]interface{}{"name": name}
	if parentId != nil {
		body["parent_tour_id"] = *parentId
	}
	return c.Put(fmt.Sprintf("/tour/%v", tourId)).Json(body).Do(nil)
}

func (c *client) moveTourToTop(tourId, name string) error {
	body := map[string]interface{}{"name": name, "parent_tour_id": nil}
	return c.Put(fmt.Sprintf("/tour/%v", tourId)).Json(body).Do(nil)
}

func (c *client) deleteTour(tourId string) error {
	return c.Delete(fmt.Sprintf("/tour/%v", tourId)).Do(nil)
}

func (c *client) attachMarker(tourId, markerId string) error {
	body := map[string]string{"marker_id": markerId}
	return c.Post(fmt.Sprintf("/tour/%v/markers", tourId)).Json(body).Do(nil)
}

func (c *client) detachMarker(tourId, markerId string) error {
	return c.Delete(fmt.Sprintf("/tour/%v/markers/%v", tourId, markerId)).Do(nil)
}

func (c *client) reorderMarkers(tourId string, markerIds []string) error {
	body := map[string][]string{"marker_ids": markerIds}
	return c.Put(fmt.Sprintf("/tour/%v/markers/order", tourId)).Json(body).Do(nil)
}

func (c *client) reorderTours(tripId string, tourIds []string) error {
	body := map[string][]string{"tour_ids": tourIds}
	return c.Put(fmt.Sprintf("/trip/%v/tours/order", tripId)).Json(body).Do(nil)
}

func (c *client) reorderSubTours(tourId string, tourIds []string) error {
	body := map[string][]string{"tour_ids": tourIds}
	return c.Put(fmt.Sprintf("/tour/%v/sub-tours/order", tourId)).Json(body).Do(nil)
}

func (c *client) createRoute(tripId, startId, endId, mode string) (services.RouteInfo, error) {
	body := map[string]string{"start_marker_id": startId, "end_marker_id": endId, "transport_mode": mode}

	var route services.RouteInfo
	err := c.Post(fmt.Sprintf("/trip/%v/routes", tripId)).Json(body).Do(&route)
	return route, err
}

func (c *client) listRoutes(tripId string) ([]services.RouteInfo, error) {
	var routes []services.RouteInfo
	err := c.Get(fmt.Sprintf("/trip/%v/routes", tripId)).Do(&routes)
	return routes, err
}

func (c *client) recalculateRoute(routeId string) (services.RouteInfo, error) {
	var route services.RouteInfo
	err := c.Post(fmt.Sprintf("/route/%v/recalculate", routeId)).Do(&route)
	return route, err
}

func (c *client) deleteRoute(routeId string) error {
	return c.Delete(fmt.Sprintf("/route/%v", routeId)).Do(nil)
}

type invitationResponse struct {
	InvitationId string `json:"invitation_id"`
	Token        string `json:"token"`
	ExpiresAt    string `json:"expires_at"`
	EmailSent    bool   `json:"email_sent"`
}

func (c *client) invite(email, role string) (invitationResponse, error) {
	body := map[string]string{"email": email, "role": role}

	var res invitationResponse
	err := c.Post("/invitation/create").Json(body).Do(&res)
	return res, err
}

func (c *client) showInvitation(token string) (map[string]string, error) {
	var res map[string]string
	err := c.Get(fmt.Sprintf("/invitation/token/%v", token)).Do(&res)
	return res, err
}

func (c *client) acceptInvitation(token, name, email, password string) error {
	body := map[string]string{"name": name, "email": email, "password": password}

	var res map[string]string
	if err := c.Post(fmt.Sprintf("/invitation/token/%v/accept", token)).Json(body).Do(&res); err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]
	c.email = email
	return nil
}
