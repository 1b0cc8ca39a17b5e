package handlers

import (
	"net/http"
	"time"

	"ride-pricing/internal/apperror"
	"ride-pricing/internal/logger"
	"ride-pricing/internal/models"
	"ride-pricing/internal/redis"
	"ride-pricing/internal/services"

	"github.com/google/uuid"
)

const ridesPathPrefix = "/api/rides/"

// RideHandler отдаёт оценку и маршрут конкретной поездки
type RideHandler struct {
	rides        RideReader
	recalculator RideRecalculator
	pricing      PricingEstimator
	redisClient  RedisClient
	cacheTTL     time.Duration
	log          *logger.Logger
	now          func() time.Time
}

// NewRideHandler создает обработчик поездок
func NewRideHandler(rides RideReader, recalculator RideRecalculator, pricing PricingEstimator, redisClient RedisClient, cacheTTL time.Duration, log *logger.Logger) *RideHandler {
	return &RideHandler{
		rides:        rides,
		recalculator: recalculator,
		pricing:      pricing,
		redisClient:  redisClient,
		cacheTTL:     cacheTTL,
		log:          log,
		now:          time.Now,
	}
}

// RideEstimateCacheKey возвращает ключ кеша оценки поездки
func RideEstimateCacheKey(rideID uuid.UUID) string {
	return redis.GenerateKey(redis.KeyPrefixRideEstimate, rideID.String())
}

// GetRideEstimate оценивает поездку по текущему составу. Результат кешируется в Redis.
func (h *RideHandler) GetRideEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rideID, err := extractUUIDFromPath(r.URL.Path, ridesPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid ride ID")
		return
	}

	cacheKey := RideEstimateCacheKey(rideID)
	var cached models.EstimateResponse
	if err := h.redisClient.Get(r.Context(), cacheKey, &cached); err == nil {
		w.Header().Set("X-Cache", "HIT")
		writeJSONResponse(w, http.StatusOK, cached)
		return
	}

	ride, err := h.rides.GetRide(r.Context(), rideID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get ride")
		return
	}
	if len(ride.Members) == 0 {
		writeServiceError(w, h.log, apperror.Conflict("ride has no members", nil), "Failed to estimate ride")
		return
	}

	now := h.now()
	route, estimate, err := h.pricing.EstimateRoute(ride.DeparturePoint(), ride.Destinations(), len(ride.Members), now)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to estimate ride")
		return
	}

	response := models.EstimateResponse{Route: route, Estimate: estimate}
	if err := h.redisClient.Set(r.Context(), cacheKey, response, h.estimateTTL(now)); err != nil {
		h.log.WithError(err).WithField("ride_id", rideID).Warn("Failed to cache ride estimate")
	}

	w.Header().Set("X-Cache", "MISS")
	writeJSONResponse(w, http.StatusOK, response)
}

// estimateTTL ограничивает срок жизни кеша моментом смены surge-множителя
func (h *RideHandler) estimateTTL(now time.Time) time.Duration {
	ttl := h.cacheTTL
	if untilChange := h.pricing.SurgeChangesAt(now).Sub(now); untilChange < ttl {
		ttl = untilChange
	}
	return ttl
}

// GetRideRoute возвращает порядок высадки участников поездки
func (h *RideHandler) GetRideRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rideID, err := extractUUIDFromPath(r.URL.Path, ridesPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid ride ID")
		return
	}

	ride, err := h.rides.GetRide(r.Context(), rideID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get ride")
		return
	}

	destinations := ride.Destinations()
	if err := services.ValidatePoints(ride.DeparturePoint(), destinations); err != nil {
		writeServiceError(w, h.log, err, "Failed to build ride route")
		return
	}

	writeJSONResponse(w, http.StatusOK, services.OptimizeRoute(ride.DeparturePoint(), destinations))
}

// Recalculate пересчитывает и сохраняет оценку поездки, сбрасывая кеш
func (h *RideHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rideID, err := extractUUIDFromPath(r.URL.Path, ridesPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid ride ID")
		return
	}

	estimate, err := h.recalculator.RecalculateRide(r.Context(), rideID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to recalculate ride estimate")
		return
	}

	if err := h.redisClient.Delete(r.Context(), RideEstimateCacheKey(rideID)); err != nil {
		h.log.WithError(err).WithField("ride_id", rideID).Warn("Failed to invalidate ride estimate cache")
	}

	writeJSONResponse(w, http.StatusOK, estimate)
}
