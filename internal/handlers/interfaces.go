package handlers

import (
	"context"
	"time"

	"ride-pricing/internal/models"

	"github.com/google/uuid"
)

// ----- Estimates -----

type PricingEstimator interface {
	EstimateRoute(departure models.GeoPoint, destinations []models.GeoPoint, passengerCount int, at time.Time) (*models.RouteResult, *models.FareEstimate, error)
	EstimateSimplePrice(departureLat, departureLng, destinationLat, destinationLng float64, passengerCount int) (*models.FareEstimate, error)
	SurgeMultiplier(at time.Time) float64
	SurgeChangesAt(at time.Time) time.Time
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.GeoPoint, error)
	GeocodeAll(ctx context.Context, addresses []string) ([]models.GeoPoint, error)
}

// ----- Rides -----

type RideReader interface {
	GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
}

type RideRecalculator interface {
	RecalculateRide(ctx context.Context, rideID uuid.UUID) (*models.FareEstimate, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}
