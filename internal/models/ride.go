package models

import (
	"time"

	"github.com/google/uuid"
)

// RideStatus представляет статус совместной поездки
type RideStatus string

const (
	RideStatusOpen      RideStatus = "open"
	RideStatusFull      RideStatus = "full"
	RideStatusDeparted  RideStatus = "departed"
	RideStatusCancelled RideStatus = "cancelled"
)

// Ride представляет совместную поездку после мероприятия
type Ride struct {
	ID                uuid.UUID    `json:"id" db:"id"`
	EventID           uuid.UUID    `json:"event_id" db:"event_id"`
	DepartureLat      float64      `json:"departure_lat" db:"departure_lat"`
	DepartureLng      float64      `json:"departure_lng" db:"departure_lng"`
	Status            RideStatus   `json:"status" db:"status"`
	TotalEstimate     *float64     `json:"total_estimate,omitempty" db:"total_estimate"`
	PerPersonEstimate *float64     `json:"per_person_estimate,omitempty" db:"per_person_estimate"`
	Members           []RideMember `json:"members"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// RideMember представляет участника поездки со своей точкой высадки
type RideMember struct {
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	DestinationLat float64   `json:"destination_lat" db:"destination_lat"`
	DestinationLng float64   `json:"destination_lng" db:"destination_lng"`
	JoinedAt       time.Time `json:"joined_at" db:"joined_at"`
}

// DeparturePoint возвращает точку отправления поездки
func (r *Ride) DeparturePoint() GeoPoint {
	return GeoPoint{Latitude: r.DepartureLat, Longitude: r.DepartureLng}
}

// Destinations возвращает точки высадки участников в порядке присоединения
func (r *Ride) Destinations() []GeoPoint {
	points := make([]GeoPoint, 0, len(r.Members))
	for _, m := range r.Members {
		points = append(points, GeoPoint{Latitude: m.DestinationLat, Longitude: m.DestinationLng})
	}
	return points
}

// RecalculationSummary представляет итог пакетного пересчёта оценок
type RecalculationSummary struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}
