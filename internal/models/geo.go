package models

// GeoPoint представляет точку в координатах WGS84 (десятичные градусы)
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RouteResult представляет порядок объезда точек назначения и суммарную длину маршрута
type RouteResult struct {
	OrderedDestinations []GeoPoint `json:"ordered_destinations"`
	TotalDistanceKm     float64    `json:"total_distance_km"`
}

// RouteRequest представляет запрос на построение маршрута для отрисовки на карте
type RouteRequest struct {
	DeparturePoint GeoPoint   `json:"departure_point"`
	Destinations   []GeoPoint `json:"destinations"`
}
