package services

import (
	"context"
	"time"

	"ride-pricing/internal/apperror"
	"ride-pricing/internal/logger"
	"ride-pricing/internal/models"

	"github.com/google/uuid"
)

type rideStore interface {
	GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	ListRecalculableRideIDs(ctx context.Context) ([]uuid.UUID, error)
	UpdateEstimate(ctx context.Context, rideID uuid.UUID, total, perPerson float64) error
}

type estimatePublisher interface {
	PublishEstimateUpdated(rideID uuid.UUID, estimate *models.FareEstimate) error
}

// RecalculationService пересчитывает и сохраняет оценки стоимости поездок
type RecalculationService struct {
	rides     rideStore
	pricing   *PricingService
	publisher estimatePublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewRecalculationService создает сервис пересчёта. publisher может быть nil.
func NewRecalculationService(rides rideStore, pricing *PricingService, publisher estimatePublisher, log *logger.Logger) *RecalculationService {
	return &RecalculationService{
		rides:     rides,
		pricing:   pricing,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// RecalculateRide оценивает поездку по текущему составу участников и сохраняет результат.
// Каждый участник - один пассажир со своей точкой высадки.
func (s *RecalculationService) RecalculateRide(ctx context.Context, rideID uuid.UUID) (*models.FareEstimate, error) {
	ride, err := s.rides.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if len(ride.Members) == 0 {
		return nil, apperror.Conflict("ride has no members", nil)
	}

	_, estimate, err := s.pricing.EstimateRoute(ride.DeparturePoint(), ride.Destinations(), len(ride.Members), s.now())
	if err != nil {
		return nil, err
	}

	if err := s.rides.UpdateEstimate(ctx, rideID, estimate.TotalFare, estimate.PerPassengerFare); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishEstimateUpdated(rideID, estimate); err != nil {
			// оценка уже сохранена, событие не критично
			s.log.WithError(err).WithField("ride_id", rideID).Warn("Failed to publish estimate updated event")
		}
	}

	return estimate, nil
}

// RecalculateAll пересчитывает все активные поездки. Ошибка одной поездки не прерывает пакет.
func (s *RecalculationService) RecalculateAll(ctx context.Context) (models.RecalculationSummary, error) {
	var summary models.RecalculationSummary

	ids, err := s.rides.ListRecalculableRideIDs(ctx)
	if err != nil {
		return summary, err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		summary.Processed++
		_, err := s.RecalculateRide(ctx, id)
		switch {
		case err == nil:
			summary.Updated++
		case apperror.Is(err, apperror.KindConflict), apperror.Is(err, apperror.KindNotFound):
			summary.Skipped++
		default:
			summary.Failed++
			s.log.WithError(err).WithField("ride_id", id).Error("Failed to recalculate ride estimate")
		}
	}

	s.log.WithFields(map[string]interface{}{
		"processed": summary.Processed,
		"updated":   summary.Updated,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	}).Info("Ride estimates recalculated")

	return summary, nil
}
