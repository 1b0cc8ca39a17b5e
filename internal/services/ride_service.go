package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ride-pricing/internal/apperror"
	"ride-pricing/internal/database"
	"ride-pricing/internal/logger"
	"ride-pricing/internal/models"

	"github.com/google/uuid"
)

// RideService читает поездки и сохраняет пересчитанные оценки
type RideService struct {
	db  *database.DB
	log *logger.Logger
	now func() time.Time
}

// NewRideService создает новый экземпляр сервиса поездок
func NewRideService(db *database.DB, log *logger.Logger) *RideService {
	return &RideService{
		db:  db,
		log: log,
		now: time.Now,
	}
}

// GetRide получает поездку вместе с участниками.
// Участники упорядочены по времени присоединения: этот порядок задаёт порядок точек высадки.
func (s *RideService) GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	ride := &models.Ride{}

	query := `
		SELECT id, event_id, departure_lat, departure_lng, status,
		       total_estimate, per_person_estimate, created_at, updated_at
		FROM rides
		WHERE id = $1
	`

	var total, perPerson sql.NullFloat64
	err := s.db.QueryRowContext(ctx, query, rideID).Scan(
		&ride.ID, &ride.EventID, &ride.DepartureLat, &ride.DepartureLng, &ride.Status,
		&total, &perPerson, &ride.CreatedAt, &ride.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("ride not found", err)
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}
	if total.Valid {
		ride.TotalEstimate = &total.Float64
	}
	if perPerson.Valid {
		ride.PerPersonEstimate = &perPerson.Float64
	}

	members, err := s.getMembers(ctx, rideID)
	if err != nil {
		return nil, err
	}
	ride.Members = members

	return ride, nil
}

func (s *RideService) getMembers(ctx context.Context, rideID uuid.UUID) ([]models.RideMember, error) {
	query := `
		SELECT user_id, destination_lat, destination_lng, joined_at
		FROM ride_members
		WHERE ride_id = $1
		ORDER BY joined_at, user_id
	`

	rows, err := s.db.QueryContext(ctx, query, rideID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ride members: %w", err)
	}
	defer rows.Close()

	members := make([]models.RideMember, 0)
	for rows.Next() {
		var m models.RideMember
		if err := rows.Scan(&m.UserID, &m.DestinationLat, &m.DestinationLng, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ride member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ride members: %w", err)
	}

	return members, nil
}

// ListRecalculableRideIDs возвращает поездки, которые ещё не уехали и не отменены
func (s *RideService) ListRecalculableRideIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM rides
		WHERE status IN ($1, $2)
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query, models.RideStatusOpen, models.RideStatusFull)
	if err != nil {
		return nil, fmt.Errorf("failed to list rides: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ride id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rides: %w", err)
	}

	return ids, nil
}

// UpdateEstimate сохраняет общую и персональную оценку стоимости поездки
func (s *RideService) UpdateEstimate(ctx context.Context, rideID uuid.UUID, total, perPerson float64) error {
	query := `
		UPDATE rides
		SET total_estimate = $1, per_person_estimate = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, total, perPerson, s.now(), rideID)
	if err != nil {
		return fmt.Errorf("failed to update ride estimate: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("ride not found", nil)
	}

	s.log.WithFields(map[string]interface{}{
		"ride_id":             rideID,
		"total_estimate":      total,
		"per_person_estimate": perPerson,
	}).Info("Ride estimate updated")

	return nil
}
