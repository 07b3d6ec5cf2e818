package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"example.com/activities/internal/auth"
	"example.com/activities/internal/domain"
	"example.com/activities/internal/geo"
	"example.com/activities/internal/persistence/memory"
)

type mapGeocoder map[string]geo.Coordinate

func (m mapGeocoder) Resolve(_ context.Context, place string) (geo.Coordinate, error) {
	coord, ok := m[place]
	if !ok {
		return geo.Coordinate{}, geo.ErrPlaceNotFound
	}
	return coord, nil
}

var cities = mapGeocoder{
	"Barcelona": {Lat: 41.3874, Lon: 2.1686},
	"Madrid":    {Lat: 40.4168, Lon: -3.7038},
	"Paris":     {Lat: 48.8566, Lon: 2.3522},
}

type fixture struct {
	mux   *http.ServeMux
	store *memory.Store
}

func newFixture(t *testing.T, geocoder geo.Geocoder) fixture {
	t.Helper()

	store := memory.NewStore()
	for _, id := range []string{"user-1", "user-2"} {
		if err := store.UpsertUser(context.Background(), id, "name-"+id); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	service := domain.NewService(store, geo.NewRanker(geocoder, nil))
	mux := http.NewServeMux()
	NewHandler(service, nil).RegisterRoutes(mux)
	return fixture{mux: mux, store: store}
}

func (f fixture) seed(t *testing.T, id, owner, city string) {
	t.Helper()

	now := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	err := f.store.CreateForOwner(context.Background(), domain.Activity{
		ID: id, Name: "Activity " + id, Country: "ES", City: city, Address: "Main 1",
		Type: "culture", Price: 10, OwnerID: owner, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed activity: %v", err)
	}
}

func (f fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	return rr
}

func withClaims(req *http.Request, subject string, scopes ...string) *http.Request {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{
		Subject:   subject,
		Scopes:    set,
		ExpiresAt: time.Now().Add(time.Hour),
	}))
}

func writer(req *http.Request, subject string) *http.Request {
	return withClaims(req, subject, auth.ScopeActivitiesWrite)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func expectRedirect(t *testing.T, rr *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Location"); got != location {
		t.Fatalf("expected redirect to %s got %s", location, got)
	}
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, errType string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected %d got %d: %s", status, rr.Code, rr.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body["type"] != errType {
		t.Fatalf("expected error type %s got %s", errType, body["type"])
	}
}

func TestListActivitiesRanksByDistance(t *testing.T) {
	f := newFixture(t, cities)
	f.seed(t, "act-paris", "user-1", "Paris")
	f.seed(t, "act-madrid", "user-1", "Madrid")
	f.seed(t, "act-bcn", "user-2", "Barcelona")

	rr := f.do(withClaims(httptest.NewRequest(http.MethodGet, "/activities", nil), "user-1", auth.ScopeActivitiesRead))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ListActivitiesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ReferenceCity != "Barcelona" {
		t.Fatalf("unexpected reference city %s", resp.ReferenceCity)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("expected 3 items got %d", len(resp.Items))
	}
	order := []string{resp.Items[0].ID, resp.Items[1].ID, resp.Items[2].ID}
	want := []string{"act-bcn", "act-madrid", "act-paris"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v got %v", want, order)
		}
	}
	if resp.Items[0].DistanceKm != 0 {
		t.Fatalf("reference city activity should have zero distance, got %f", resp.Items[0].DistanceKm)
	}
	if resp.Items[1].DistanceKm < 450 || resp.Items[1].DistanceKm > 550 {
		t.Fatalf("unexpected Madrid distance %f", resp.Items[1].DistanceKm)
	}
}

func TestListActivitiesGeocodingFailure(t *testing.T) {
	f := newFixture(t, cities)
	f.seed(t, "act-1", "user-1", "Atlantis")

	rr := f.do(withClaims(httptest.NewRequest(http.MethodGet, "/activities", nil), "user-1", auth.ScopeActivitiesRead))
	expectError(t, rr, http.StatusBadGateway, "geocoding_failed")
}

func TestRequestsWithoutClaimsAreRejected(t *testing.T) {
	f := newFixture(t, cities)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/favourites", nil))
	expectError(t, rr, http.StatusUnauthorized, "unauthorized")
}

func TestCreateActivityRequiresWriteScope(t *testing.T) {
	f := newFixture(t, cities)

	req := withClaims(jsonRequest(http.MethodPost, "/activities", `{}`), "user-1", auth.ScopeActivitiesRead)
	expectError(t, f.do(req), http.StatusForbidden, "forbidden")
}

func TestCreateActivityJSON(t *testing.T) {
	f := newFixture(t, cities)

	body := `{"name":"Sagrada Familia","country":"Spain","city":"Barcelona","address":"C/ de Mallorca 401","type":"culture","price":26}`
	rr := f.do(writer(jsonRequest(http.MethodPost, "/activities", body), "user-1"))
	expectRedirect(t, rr, "/profile")

	activities, _ := f.store.List(context.Background())
	if len(activities) != 1 {
		t.Fatalf("expected 1 activity got %d", len(activities))
	}
	if activities[0].OwnerID != "user-1" || activities[0].Price != 26 {
		t.Fatalf("unexpected activity %+v", activities[0])
	}
	user, _ := f.store.GetUser(context.Background(), "user-1")
	if len(user.Activities) != 1 || user.Activities[0] != activities[0].ID {
		t.Fatalf("owner activity list not updated: %+v", user.Activities)
	}
}

func TestCreateActivityForm(t *testing.T) {
	f := newFixture(t, cities)

	form := url.Values{
		"name": {"Tapas tour"}, "country": {"Spain"}, "city": {"Madrid"},
		"address": {"Plaza Mayor"}, "type": {"food"}, "price": {"0"},
	}
	req := httptest.NewRequest(http.MethodPost, "/activities", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	expectRedirect(t, f.do(writer(req, "user-2")), "/profile")

	activities, _ := f.store.List(context.Background())
	if len(activities) != 1 || activities[0].City != "Madrid" || activities[0].OwnerID != "user-2" {
		t.Fatalf("unexpected activities %+v", activities)
	}
}

func TestCreateActivityValidation(t *testing.T) {
	f := newFixture(t, cities)

	cases := map[string]string{
		"missing price":  `{"name":"x","country":"y","city":"z","address":"a","type":"food"}`,
		"negative price": `{"name":"x","country":"y","city":"z","address":"a","type":"food","price":-1}`,
		"blank name":     `{"name":"  ","country":"y","city":"z","address":"a","type":"food","price":1}`,
	}
	for name, body := range cases {
		rr := f.do(writer(jsonRequest(http.MethodPost, "/activities", body), "user-1"))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", name, rr.Code)
		}
	}

	rr := f.do(writer(jsonRequest(http.MethodPost, "/activities", `{"name":`), "user-1"))
	expectError(t, rr, http.StatusBadRequest, "invalid_request")

	activities, _ := f.store.List(context.Background())
	if len(activities) != 0 {
		t.Fatalf("invalid payloads must not persist, got %d activities", len(activities))
	}
}

func TestNonFinitePriceIsRejected(t *testing.T) {
	f := newFixture(t, cities)
	f.seed(t, "act-1", "user-1", "Madrid")

	for _, price := range []string{"NaN", "Inf", "-Inf"} {
		form := url.Values{
			"name": {"Tapas tour"}, "country": {"Spain"}, "city": {"Madrid"},
			"address": {"Plaza Mayor"}, "type": {"food"}, "price": {price},
		}
		req := httptest.NewRequest(http.MethodPost, "/activities", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		expectError(t, f.do(writer(req, "user-1")), http.StatusBadRequest, "validation_failed")

		req = httptest.NewRequest(http.MethodPost, "/activities/act-1/edit", strings.NewReader(url.Values{"price": {price}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		expectError(t, f.do(writer(req, "user-1")), http.StatusBadRequest, "validation_failed")
	}

	activities, _ := f.store.List(context.Background())
	if len(activities) != 1 || activities[0].Price != 10 {
		t.Fatalf("non-finite prices must not persist, got %+v", activities)
	}

	rr := f.do(withClaims(httptest.NewRequest(http.MethodGet, "/activities", nil), "user-1", auth.ScopeActivitiesRead))
	if rr.Code != http.StatusOK || !json.Valid(rr.Body.Bytes()) {
		t.Fatalf("expected a readable listing, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateActivityUnknownOwner(t *testing.T) {
	f := newFixture(t, cities)

	body := `{"name":"x","country":"y","city":"z","address":"a","type":"food","price":1}`
	expectError(t, f.do(writer(jsonRequest(http.MethodPost, "/activities", body), "ghost")), http.StatusNotFound, "not_found")
}

func TestActivityDetailsIncludesOwner(t *testing.T) {
	f := newFixture(t, cities)
	f.seed(t, "act-1", "user-1", "Madrid")

	rr := f.do(withClaims(httptest.NewRequest(http.MethodGet, "/activities/act-1/details", nil), "user-2", auth.ScopeActivitiesRead))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ActivityDetailsView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Owner.ID != "user-1" || resp.Owner.Username != "name-user-1" {
		t.Fatalf("unexpected owner %+v", resp.Owner)
	}

	rr = f.do(withClaims(httptest.NewRequest(http.MethodGet, "/activities/missing/details", nil), "user-2", auth.ScopeActivitiesRead))
	expectError(t, rr, http.StatusNotFound, "not_found")
}

func TestEditActivityOwnerOnly(t *testing.T) {
	f := newFixture(t, cities)
	f.seed(t, "act-1", "user-1", "Madrid")

	rr := f.do(writer(httptest.NewRequest(http.MethodGet, "/activities/act-1/edit", nil), "user-2"))
	expectError(t, rr, http.StatusForbidden, "forbidden")

	rr = f.do(writer(jsonRequest(http.MethodPost, "/activities/act-1/edit", `{"name":"Hijacked"}`), "user-2"))
	expectError(t, rr, http.StatusForbidden, "forbidden")

	rr = f.do(writer(httptest.NewRequest(http.MethodGet, "/activities/act-1/edit", nil), "user-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	activity, _ := f.store.Get(context.Background(), "act-1")
	if activity.Name != "Activity act-1" {
		t.Fatalf("forbidden edit must not apply, got name %q", activity.Name)
	}
}

func TestUpdateActivityAppliesProvidedFields(t *testing.T) {
	f := newFixture(t, cities)
	f.seed(t, "act-1", "user-1", "Madrid")

	rr := f.do(writer(jsonRequest(http.MethodPost, "/activities/act-1/edit", `{"name":"Prado","price":15}`), "user-1"))
	expectRedirect(t, rr, "/profile")

	activity, _ := f.store.Get(context.Background(), "act-1")
	if activity.Name != "Prado" || activity.Price != 15 {
		t.Fatalf("patch not applied: %+v", activity)
	}
	if activity.City != "Madrid" || activity.Address != "Main 1" {
		t.Fatalf("untouched fields changed: %+v", activity)
	}

	rr = f.do(writer(jsonRequest(http.MethodPost, "/activities/act-1/edit", `{"city":" "}`), "user-1"))
	expectError(t, rr, http.StatusBadRequest, "validation_failed")
}

func TestDeleteActivity(t *testing.T) {
	f := newFixture(t, cities)
	f.seed(t, "act-1", "user-1", "Madrid")

	rr := f.do(writer(httptest.NewRequest(http.MethodPost, "/activities/act-1/delete", nil), "user-2"))
	expectError(t, rr, http.StatusForbidden, "forbidden")

	rr = f.do(writer(httptest.NewRequest(http.MethodPost, "/activities/act-1/delete", nil), "user-1"))
	expectRedirect(t, rr, "/profile")

	if activity, _ := f.store.Get(context.Background(), "act-1"); activity != nil {
		t.Fatalf("activity should be gone, got %+v", activity)
	}

	rr = f.do(writer(httptest.NewRequest(http.MethodPost, "/activities/act-1/delete", nil), "user-1"))
	expectError(t, rr, http.StatusNotFound, "not_found")
}

func TestFavouritesFlow(t *testing.T) {
	f := newFixture(t, cities)
	f.seed(t, "act-1", "user-1", "Madrid")

	rr := f.do(writer(httptest.NewRequest(http.MethodPost, "/favourites/user-2/addFavourite/act-1", nil), "user-2"))
	expectRedirect(t, rr, "/activities")

	rr = f.do(writer(httptest.NewRequest(http.MethodPost, "/favourites/user-2/addFavourite/act-1", nil), "user-2"))
	expectError(t, rr, http.StatusConflict, "conflict")

	rr = f.do(writer(httptest.NewRequest(http.MethodPost, "/favourites/user-1/addFavourite/act-1", nil), "user-2"))
	expectError(t, rr, http.StatusForbidden, "forbidden")

	rr = f.do(writer(httptest.NewRequest(http.MethodPost, "/favourites/user-2/addFavourite/missing", nil), "user-2"))
	expectError(t, rr, http.StatusNotFound, "not_found")

	rr = f.do(withClaims(httptest.NewRequest(http.MethodGet, "/favourites", nil), "user-2", auth.ScopeActivitiesRead))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp FavouritesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "act-1" {
		t.Fatalf("unexpected favourites %+v", resp.Items)
	}
}

func TestCreateOptionsAndForm(t *testing.T) {
	f := newFixture(t, cities)

	rr := f.do(withClaims(httptest.NewRequest(http.MethodGet, "/activities/create-options", nil), "user-1", auth.ScopeActivitiesRead))
	var opts FormOptionsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &opts); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(opts.Types) == 0 {
		t.Fatalf("expected activity types in options")
	}

	rr = f.do(withClaims(httptest.NewRequest(http.MethodGet, "/activities/create", nil), "user-1", auth.ScopeActivitiesRead))
	var form FormDescriptionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &form); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(form.Required) != len(domain.RequiredCreateFields) {
		t.Fatalf("unexpected required fields %v", form.Required)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, cities)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected healthz response %d %q", rr.Code, rr.Body.String())
	}
}

func TestErrorResponseMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&domain.ValidationError{Fields: map[string]string{"name": "is required"}}, http.StatusBadRequest},
		{domain.ErrUnauthenticated, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrActivityNotFound, http.StatusNotFound},
		{domain.ErrAlreadyFavourite, http.StatusConflict},
		{&geo.GeocodingError{City: "X", Err: errors.New("upstream 503")}, http.StatusBadGateway},
		{&domain.PersistenceError{Op: "create activity", Err: errors.New("connection reset")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _, _ := errorResponse(tc.err)
		if status != tc.status {
			t.Fatalf("%v: expected %d got %d", tc.err, tc.status, status)
		}
	}
}
