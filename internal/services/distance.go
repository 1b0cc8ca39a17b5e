package services

import (
	"math"

	"ride-pricing/internal/apperror"
	"ride-pricing/internal/models"
)

const earthRadiusKm = 6371.0

// HaversineDistance вычисляет расстояние между двумя точками по формуле гаверсинуса (в км).
// Диапазоны координат не проверяются: точки приходят из геокодера или уже провалидированы.
func HaversineDistance(a, b models.GeoPoint) float64 {
	lat1Rad := a.Latitude * math.Pi / 180.0
	lat2Rad := b.Latitude * math.Pi / 180.0
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180.0
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180.0

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// ValidatePoint проверяет, что обе координаты являются конечными числами
func ValidatePoint(p models.GeoPoint) error {
	if !isFinite(p.Latitude) || !isFinite(p.Longitude) {
		return apperror.Validation("coordinates must be finite numbers", nil)
	}
	return nil
}

// ValidatePoints проверяет точку отправления и все точки назначения
func ValidatePoints(departure models.GeoPoint, destinations []models.GeoPoint) error {
	if err := ValidatePoint(departure); err != nil {
		return err
	}
	for _, p := range destinations {
		if err := ValidatePoint(p); err != nil {
			return err
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
