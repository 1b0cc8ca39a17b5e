package models

import "time"

// CurrencyEUR: единственная поддерживаемая валюта оценок
const CurrencyEUR = "EUR"

// FareBreakdown представляет составляющие тарифа до применения surge и минимальной цены
type FareBreakdown struct {
	BasePrice     float64 `json:"base_price"`
	DistancePrice float64 `json:"distance_price"`
	TimePrice     float64 `json:"time_price"`
}

// FareEstimate представляет оценку стоимости поездки для группы пассажиров
type FareEstimate struct {
	TotalDistanceKm  float64       `json:"total_distance_km"`
	EstimatedMinutes float64       `json:"estimated_minutes"`
	TotalFare        float64       `json:"total_fare"`
	PerPassengerFare float64       `json:"per_passenger_fare"`
	PassengerCount   int           `json:"passenger_count"`
	SurgeMultiplier  float64       `json:"surge_multiplier"`
	Currency         string        `json:"currency"`
	Breakdown        FareBreakdown `json:"breakdown"`
}

// EstimateRequest представляет запрос оценки для нескольких точек назначения
type EstimateRequest struct {
	DeparturePoint GeoPoint   `json:"departure_point"`
	Destinations   []GeoPoint `json:"destinations"`
	PassengerCount int        `json:"passenger_count"`
	At             *time.Time `json:"at,omitempty"` // момент поездки; по умолчанию текущее время
}

// SimpleEstimateRequest представляет запрос оценки для одной точки назначения
type SimpleEstimateRequest struct {
	DepartureLat   float64 `json:"departure_lat"`
	DepartureLng   float64 `json:"departure_lng"`
	DestinationLat float64 `json:"destination_lat"`
	DestinationLng float64 `json:"destination_lng"`
	PassengerCount *int    `json:"passenger_count,omitempty"` // по умолчанию 1
}

// AddressEstimateRequest представляет запрос оценки по адресам (с геокодированием)
type AddressEstimateRequest struct {
	DepartureAddress     string   `json:"departure_address"`
	DestinationAddresses []string `json:"destination_addresses"`
	PassengerCount       int      `json:"passenger_count"`
}

// EstimateResponse объединяет маршрут и оценку стоимости
type EstimateResponse struct {
	Route    *RouteResult  `json:"route"`
	Estimate *FareEstimate `json:"estimate"`
}
