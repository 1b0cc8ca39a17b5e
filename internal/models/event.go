package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType представляет тип события Kafka
type EventType string

const (
	EventTypeRideMemberJoined    EventType = "ride.member_joined"
	EventTypeRideMemberLeft      EventType = "ride.member_left"
	EventTypeRideEstimateUpdated EventType = "ride.estimate_updated"
)

// Event представляет событие, передаваемое через Kafka
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// RideID извлекает идентификатор поездки из данных события
func (e *Event) RideID() (uuid.UUID, bool) {
	raw, ok := e.Data["ride_id"].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
