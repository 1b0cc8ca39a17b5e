package services

import (
	"math"
	"time"

	"ride-pricing/internal/apperror"
	"ride-pricing/internal/config"
	"ride-pricing/internal/models"
)

// Tariff описывает тариф поездки. Значения только читаются после создания сервиса.
type Tariff struct {
	BaseFare        float64 // посадка, EUR
	PricePerKm      float64 // EUR за км
	PricePerMinute  float64 // EUR за минуту в пути
	MinimumFare     float64 // минимальная итоговая цена, применяется после surge
	AverageSpeedKmh float64 // средняя скорость для оценки времени в пути
}

// DefaultTariff возвращает стандартный тариф
func DefaultTariff() Tariff {
	return Tariff{
		BaseFare:        2.50,
		PricePerKm:      1.20,
		PricePerMinute:  0.25,
		MinimumFare:     7.00,
		AverageSpeedKmh: 30,
	}
}

// TariffFromConfig собирает тариф из конфигурации
func TariffFromConfig(cfg *config.PricingConfig) Tariff {
	return Tariff{
		BaseFare:        cfg.BaseFare,
		PricePerKm:      cfg.PricePerKm,
		PricePerMinute:  cfg.PricePerMinute,
		MinimumFare:     cfg.MinimumFare,
		AverageSpeedKmh: cfg.AverageSpeedKmh,
	}
}

// PricingService оценивает стоимость совместной поездки.
// Не хранит изменяемого состояния и безопасен для конкурентного использования.
type PricingService struct {
	tariff Tariff
	surge  *SurgeClock
	now    func() time.Time
}

// NewPricingService создаёт сервис с тарифом и часами surge
func NewPricingService(tariff Tariff, surge *SurgeClock) *PricingService {
	if surge == nil {
		surge = NewSurgeClock(time.UTC)
	}
	return &PricingService{
		tariff: tariff,
		surge:  surge,
		now:    time.Now,
	}
}

// Tariff возвращает тариф сервиса
func (s *PricingService) Tariff() Tariff {
	return s.tariff
}

// SurgeMultiplier возвращает множитель для момента at
func (s *PricingService) SurgeMultiplier(at time.Time) float64 {
	return s.surge.Multiplier(at)
}

// SurgeChangesAt возвращает момент, когда множитель, действующий в at, перестанет действовать
func (s *PricingService) SurgeChangesAt(at time.Time) time.Time {
	return s.surge.NextChange(at)
}

// EstimateFare переводит длину маршрута в оценку стоимости для группы пассажиров.
//
// Минимальная цена применяется после surge. Разбивка (breakdown) округляется покомпонентно
// и отражает цену до surge и до минимальной цены, поэтому её сумма может не совпадать с TotalFare.
func (s *PricingService) EstimateFare(distanceKm float64, passengerCount int, surgeMultiplier float64) (*models.FareEstimate, error) {
	if passengerCount < 1 {
		return nil, apperror.Validation("passenger count must be at least 1", nil)
	}
	if !isFinite(distanceKm) || distanceKm < 0 {
		return nil, apperror.Validation("distance must be a non-negative number", nil)
	}
	if !isFinite(surgeMultiplier) || surgeMultiplier < 0 {
		return nil, apperror.Validation("surge multiplier must be a non-negative number", nil)
	}

	var estimatedMinutes float64
	if s.tariff.AverageSpeedKmh > 0 {
		estimatedMinutes = (distanceKm / s.tariff.AverageSpeedKmh) * 60
	}

	basePrice := s.tariff.BaseFare
	distancePrice := distanceKm * s.tariff.PricePerKm
	timePrice := estimatedMinutes * s.tariff.PricePerMinute

	rawTotal := basePrice + distancePrice + timePrice
	totalFare := math.Max(rawTotal*surgeMultiplier, s.tariff.MinimumFare)
	totalFare = round2(totalFare)

	return &models.FareEstimate{
		TotalDistanceKm:  round2(distanceKm),
		EstimatedMinutes: round2(estimatedMinutes),
		TotalFare:        totalFare,
		PerPassengerFare: round2(totalFare / float64(passengerCount)),
		PassengerCount:   passengerCount,
		SurgeMultiplier:  surgeMultiplier,
		Currency:         models.CurrencyEUR,
		Breakdown: models.FareBreakdown{
			BasePrice:     round2(basePrice),
			DistancePrice: round2(distancePrice),
			TimePrice:     round2(timePrice),
		},
	}, nil
}

// EstimateRoute строит маршрут ближайшего соседа и оценивает его стоимость на момент at
func (s *PricingService) EstimateRoute(departure models.GeoPoint, destinations []models.GeoPoint, passengerCount int, at time.Time) (*models.RouteResult, *models.FareEstimate, error) {
	if passengerCount < 1 {
		return nil, nil, apperror.Validation("passenger count must be at least 1", nil)
	}
	if err := ValidatePoints(departure, destinations); err != nil {
		return nil, nil, err
	}

	route := OptimizeRoute(departure, destinations)
	estimate, err := s.EstimateFare(route.TotalDistanceKm, passengerCount, s.surge.Multiplier(at))
	if err != nil {
		return nil, nil, err
	}

	return &route, estimate, nil
}

// EstimatePrice оценивает стоимость поездки с несколькими точками высадки на текущий момент
func (s *PricingService) EstimatePrice(departure models.GeoPoint, destinations []models.GeoPoint, passengerCount int) (*models.FareEstimate, error) {
	_, estimate, err := s.EstimateRoute(departure, destinations, passengerCount, s.now())
	return estimate, err
}

// EstimateSimplePrice оценивает поездку с одной точкой высадки
func (s *PricingService) EstimateSimplePrice(departureLat, departureLng, destinationLat, destinationLng float64, passengerCount int) (*models.FareEstimate, error) {
	departure := models.GeoPoint{Latitude: departureLat, Longitude: departureLng}
	destination := models.GeoPoint{Latitude: destinationLat, Longitude: destinationLng}
	return s.EstimatePrice(departure, []models.GeoPoint{destination}, passengerCount)
}

// round2 округляет до 2 знаков (половина округляется от нуля)
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
