package services

import "ride-pricing/internal/models"

// OptimizeRoute упорядочивает точки назначения жадным алгоритмом ближайшего соседа,
// начиная с точки отправления, и возвращает суммарную длину маршрута.
//
// Это эвристика, а не точное решение: на каждом шаге выбирается ближайшая из оставшихся
// точек, при равных расстояниях берётся та, что встречается раньше в текущем порядке оставшихся.
// Дубликаты координат считаются отдельными остановками. Входной срез не изменяется.
func OptimizeRoute(departure models.GeoPoint, destinations []models.GeoPoint) models.RouteResult {
	remaining := make([]models.GeoPoint, len(destinations))
	copy(remaining, destinations)

	ordered := make([]models.GeoPoint, 0, len(destinations))
	current := departure
	totalDistance := 0.0

	for len(remaining) > 0 {
		nearestIdx := 0
		nearestDist := HaversineDistance(current, remaining[0])
		for i := 1; i < len(remaining); i++ {
			if d := HaversineDistance(current, remaining[i]); d < nearestDist {
				nearestIdx = i
				nearestDist = d
			}
		}

		next := remaining[nearestIdx]
		remaining = append(remaining[:nearestIdx], remaining[nearestIdx+1:]...)

		ordered = append(ordered, next)
		totalDistance += nearestDist
		current = next
	}

	return models.RouteResult{
		OrderedDestinations: ordered,
		TotalDistanceKm:     totalDistance,
	}
}
