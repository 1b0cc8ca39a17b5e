package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ride-pricing/internal/apperror"
	"ride-pricing/internal/config"
	"ride-pricing/internal/models"
)

var (
	lille   = models.GeoPoint{Latitude: 50.6365, Longitude: 3.0635}
	nearby  = models.GeoPoint{Latitude: 50.6292, Longitude: 3.0573}
	farNord = models.GeoPoint{Latitude: 50.7265, Longitude: 3.0635}
)

type stubGeocoder struct {
	points map[string]models.GeoPoint
	err    error
}

func (s *stubGeocoder) Geocode(ctx context.Context, address string) (models.GeoPoint, error) {
	if s.err != nil {
		return models.GeoPoint{}, s.err
	}
	p, ok := s.points[address]
	if !ok {
		return models.GeoPoint{}, apperror.Validation("address is empty", nil)
	}
	return p, nil
}

func (s *stubGeocoder) GeocodeAll(ctx context.Context, addresses []string) ([]models.GeoPoint, error) {
	points := make([]models.GeoPoint, 0, len(addresses))
	for _, a := range addresses {
		p, err := s.Geocode(ctx, a)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

type failingPricing struct {
	err error
}

func (f *failingPricing) EstimateRoute(models.GeoPoint, []models.GeoPoint, int, time.Time) (*models.RouteResult, *models.FareEstimate, error) {
	return nil, nil, f.err
}
func (f *failingPricing) EstimateSimplePrice(float64, float64, float64, float64, int) (*models.FareEstimate, error) {
	return nil, f.err
}
func (f *failingPricing) SurgeMultiplier(time.Time) float64 { return 1 }
func (f *failingPricing) SurgeChangesAt(at time.Time) time.Time { return at.Add(time.Hour) }

func newTestEstimateHandler(geocoder Geocoder) *EstimateHandler {
	h := NewEstimateHandler(newTestPricing(), geocoder, &config.EstimatesConfig{MaxDestinations: 3}, newTestLogger())
	h.now = func() time.Time { return testNow }
	return h
}

func TestEstimateHandler_Estimate(t *testing.T) {
	h := newTestEstimateHandler(nil)

	req := jsonRequest(t, http.MethodPost, "/api/estimates", models.EstimateRequest{
		DeparturePoint: lille,
		Destinations:   []models.GeoPoint{farNord, nearby},
		PassengerCount: 2,
	})
	rr := httptest.NewRecorder()
	h.Estimate(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.EstimateResponse
	decodeBody(t, rr, &resp)
	if resp.Route == nil || resp.Estimate == nil {
		t.Fatalf("expected route and estimate, got %+v", resp)
	}
	if resp.Route.OrderedDestinations[0] != nearby {
		t.Fatalf("expected nearest destination first, got %+v", resp.Route.OrderedDestinations)
	}
	if resp.Estimate.PassengerCount != 2 || resp.Estimate.Currency != models.CurrencyEUR || resp.Estimate.SurgeMultiplier != 1 {
		t.Fatalf("unexpected estimate: %+v", resp.Estimate)
	}
}

func TestEstimateHandler_Estimate_UsesRequestedTime(t *testing.T) {
	h := newTestEstimateHandler(nil)
	night := time.Date(2026, 10, 13, 3, 0, 0, 0, time.UTC)

	req := jsonRequest(t, http.MethodPost, "/api/estimates", models.EstimateRequest{
		DeparturePoint: lille,
		Destinations:   []models.GeoPoint{farNord},
		PassengerCount: 1,
		At:             &night,
	})
	rr := httptest.NewRecorder()
	h.Estimate(rr, req)

	var resp models.EstimateResponse
	decodeBody(t, rr, &resp)
	if resp.Estimate.SurgeMultiplier != 1.5 {
		t.Fatalf("expected night surge, got %v", resp.Estimate.SurgeMultiplier)
	}
}

func TestEstimateHandler_Estimate_Validation(t *testing.T) {
	h := newTestEstimateHandler(nil)

	tests := []struct {
		name string
		body interface{}
	}{
		{"invalid json", "{"},
		{"unknown field", `{"departure_point":{"latitude":1,"longitude":1},"destinations":[],"passenger_count":1,"promo":"x"}`},
		{"zero passengers", models.EstimateRequest{DeparturePoint: lille, Destinations: []models.GeoPoint{nearby}}},
		{"too many destinations", models.EstimateRequest{DeparturePoint: lille, Destinations: []models.GeoPoint{nearby, nearby, nearby, nearby}, PassengerCount: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Estimate(rr, jsonRequest(t, http.MethodPost, "/api/estimates", tt.body))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestEstimateHandler_Estimate_InternalError(t *testing.T) {
	h := NewEstimateHandler(&failingPricing{err: errors.New("boom")}, nil, nil, newTestLogger())

	rr := httptest.NewRecorder()
	h.Estimate(rr, jsonRequest(t, http.MethodPost, "/api/estimates", models.EstimateRequest{DeparturePoint: lille, PassengerCount: 1}))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	var resp ErrorResponse
	decodeBody(t, rr, &resp)
	if resp.Message != "Failed to estimate price" {
		t.Fatalf("internal error details must not leak, got %q", resp.Message)
	}
}

func TestEstimateHandler_Estimate_MethodNotAllowed(t *testing.T) {
	h := newTestEstimateHandler(nil)
	rr := httptest.NewRecorder()
	h.Estimate(rr, httptest.NewRequest(http.MethodGet, "/api/estimates", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestEstimateHandler_EstimateSimple(t *testing.T) {
	h := newTestEstimateHandler(nil)

	req := jsonRequest(t, http.MethodPost, "/api/estimates/simple", models.SimpleEstimateRequest{
		DepartureLat:   lille.Latitude,
		DepartureLng:   lille.Longitude,
		DestinationLat: nearby.Latitude,
		DestinationLng: nearby.Longitude,
	})
	rr := httptest.NewRecorder()
	h.EstimateSimple(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var estimate models.FareEstimate
	decodeBody(t, rr, &estimate)
	if estimate.PassengerCount != 1 {
		t.Fatalf("expected default of one passenger, got %d", estimate.PassengerCount)
	}
	if estimate.TotalDistanceKm != 0.92 || estimate.TotalFare < 7.00 {
		t.Fatalf("unexpected estimate: %+v", estimate)
	}
}

func TestEstimateHandler_EstimateSimple_ZeroPassengers(t *testing.T) {
	h := newTestEstimateHandler(nil)

	zero := 0
	req := jsonRequest(t, http.MethodPost, "/api/estimates/simple", models.SimpleEstimateRequest{
		DepartureLat: lille.Latitude, DepartureLng: lille.Longitude,
		DestinationLat: nearby.Latitude, DestinationLng: nearby.Longitude,
		PassengerCount: &zero,
	})
	rr := httptest.NewRecorder()
	h.EstimateSimple(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestEstimateHandler_EstimateByAddress(t *testing.T) {
	geocoder := &stubGeocoder{points: map[string]models.GeoPoint{
		"Grand Place, Lille": lille,
		"Rue Nationale":      nearby,
		"Marcq-en-Baroeul":   farNord,
	}}
	h := newTestEstimateHandler(geocoder)

	req := jsonRequest(t, http.MethodPost, "/api/estimates/address", models.AddressEstimateRequest{
		DepartureAddress:     "Grand Place, Lille",
		DestinationAddresses: []string{"Marcq-en-Baroeul", "Rue Nationale"},
		PassengerCount:       2,
	})
	rr := httptest.NewRecorder()
	h.EstimateByAddress(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.EstimateResponse
	decodeBody(t, rr, &resp)
	if len(resp.Route.OrderedDestinations) != 2 || resp.Route.OrderedDestinations[0] != nearby {
		t.Fatalf("unexpected route: %+v", resp.Route)
	}
}

func TestEstimateHandler_EstimateByAddress_Errors(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestEstimateHandler(nil).EstimateByAddress(rr, jsonRequest(t, http.MethodPost, "/api/estimates/address", models.AddressEstimateRequest{}))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without geocoder, got %d", rr.Code)
	}

	geocoder := &stubGeocoder{points: map[string]models.GeoPoint{"Lille": lille}}
	rr = httptest.NewRecorder()
	newTestEstimateHandler(geocoder).EstimateByAddress(rr, jsonRequest(t, http.MethodPost, "/api/estimates/address", models.AddressEstimateRequest{
		DepartureAddress:     "Lille",
		DestinationAddresses: []string{"unknown"},
		PassengerCount:       1,
	}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad address, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	newTestEstimateHandler(&stubGeocoder{err: errors.New("redis down")}).EstimateByAddress(rr, jsonRequest(t, http.MethodPost, "/api/estimates/address", models.AddressEstimateRequest{
		DepartureAddress: "Lille",
		PassengerCount:   1,
	}))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for geocoder failure, got %d", rr.Code)
	}
}

func TestEstimateHandler_Route(t *testing.T) {
	h := newTestEstimateHandler(nil)

	rr := httptest.NewRecorder()
	h.Route(rr, jsonRequest(t, http.MethodPost, "/api/routes", models.RouteRequest{
		DeparturePoint: lille,
		Destinations:   []models.GeoPoint{farNord, nearby},
	}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var route models.RouteResult
	decodeBody(t, rr, &route)
	if len(route.OrderedDestinations) != 2 || route.OrderedDestinations[0] != nearby || route.TotalDistanceKm <= 0 {
		t.Fatalf("unexpected route: %+v", route)
	}

	rr = httptest.NewRecorder()
	h.Route(rr, jsonRequest(t, http.MethodPost, "/api/routes", models.RouteRequest{DeparturePoint: lille}))
	var empty models.RouteResult
	decodeBody(t, rr, &empty)
	if empty.OrderedDestinations == nil || len(empty.OrderedDestinations) != 0 || empty.TotalDistanceKm != 0 {
		t.Fatalf("expected empty route, got %+v (%s)", empty, rr.Body.String())
	}
}

func TestEstimateHandler_Surge(t *testing.T) {
	h := newTestEstimateHandler(nil)

	rr := httptest.NewRecorder()
	h.Surge(rr, httptest.NewRequest(http.MethodGet, "/api/surge", nil))
	var resp map[string]interface{}
	decodeBody(t, rr, &resp)
	if resp["multiplier"] != 1.0 {
		t.Fatalf("expected 1.0 at noon, got %v", resp["multiplier"])
	}
	if resp["valid_until"] != "2026-10-12T18:00:00Z" {
		t.Fatalf("expected noon rate valid until weekday peak, got %v", resp["valid_until"])
	}

	rr = httptest.NewRecorder()
	h.Surge(rr, httptest.NewRequest(http.MethodGet, "/api/surge?at=2026-10-16T22:30:00Z", nil))
	decodeBody(t, rr, &resp)
	if resp["multiplier"] != 1.3 {
		t.Fatalf("expected weekend-evening peak, got %v", resp["multiplier"])
	}
	if resp["valid_until"] != "2026-10-17T00:00:00Z" {
		t.Fatalf("expected weekend peak valid until night rate, got %v", resp["valid_until"])
	}

	rr = httptest.NewRecorder()
	h.Surge(rr, httptest.NewRequest(http.MethodGet, "/api/surge?at=yesterday", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad at, got %d", rr.Code)
	}
}
