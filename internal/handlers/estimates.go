package handlers

import (
	"fmt"
	"net/http"
	"time"

	"ride-pricing/internal/config"
	"ride-pricing/internal/logger"
	"ride-pricing/internal/models"
	"ride-pricing/internal/services"
)

// EstimateHandler обслуживает оценки стоимости и построение маршрутов
type EstimateHandler struct {
	pricing  PricingEstimator
	geocoder Geocoder
	cfg      *config.EstimatesConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewEstimateHandler создает обработчик оценок. geocoder может быть nil, тогда оценка по адресам недоступна.
func NewEstimateHandler(pricing PricingEstimator, geocoder Geocoder, cfg *config.EstimatesConfig, log *logger.Logger) *EstimateHandler {
	return &EstimateHandler{
		pricing:  pricing,
		geocoder: geocoder,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Estimate оценивает поездку с несколькими точками высадки
func (h *EstimateHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.EstimateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validateDestinationCount(len(req.Destinations)); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	at := h.now()
	if req.At != nil {
		at = *req.At
	}

	route, estimate, err := h.pricing.EstimateRoute(req.DeparturePoint, req.Destinations, req.PassengerCount, at)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to estimate price")
		return
	}

	h.log.WithFields(map[string]interface{}{
		"destinations": len(req.Destinations),
		"passengers":   req.PassengerCount,
		"total_fare":   estimate.TotalFare,
		"surge":        estimate.SurgeMultiplier,
	}).Debug("Price estimated")

	writeJSONResponse(w, http.StatusOK, models.EstimateResponse{Route: route, Estimate: estimate})
}

// EstimateSimple оценивает поездку с одной точкой высадки, по умолчанию для одного пассажира
func (h *EstimateHandler) EstimateSimple(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.SimpleEstimateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	passengers := 1
	if req.PassengerCount != nil {
		passengers = *req.PassengerCount
	}

	estimate, err := h.pricing.EstimateSimplePrice(req.DepartureLat, req.DepartureLng, req.DestinationLat, req.DestinationLng, passengers)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to estimate price")
		return
	}

	writeJSONResponse(w, http.StatusOK, estimate)
}

// EstimateByAddress геокодирует адреса и оценивает поездку
func (h *EstimateHandler) EstimateByAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if h.geocoder == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "Geocoding is not available")
		return
	}

	var req models.AddressEstimateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validateDestinationCount(len(req.DestinationAddresses)); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	departure, err := h.geocoder.Geocode(r.Context(), req.DepartureAddress)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to geocode departure address")
		return
	}
	destinations, err := h.geocoder.GeocodeAll(r.Context(), req.DestinationAddresses)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to geocode destination addresses")
		return
	}

	route, estimate, err := h.pricing.EstimateRoute(departure, destinations, req.PassengerCount, h.now())
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to estimate price")
		return
	}

	writeJSONResponse(w, http.StatusOK, models.EstimateResponse{Route: route, Estimate: estimate})
}

// Route строит порядок объезда точек без расчёта цены (для отрисовки на карте)
func (h *EstimateHandler) Route(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.RouteRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validateDestinationCount(len(req.Destinations)); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := services.ValidatePoints(req.DeparturePoint, req.Destinations); err != nil {
		writeServiceError(w, h.log, err, "Failed to build route")
		return
	}

	writeJSONResponse(w, http.StatusOK, services.OptimizeRoute(req.DeparturePoint, req.Destinations))
}

// Surge возвращает множитель на текущий момент или на момент из ?at= (RFC3339)
func (h *EstimateHandler) Surge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	at := h.now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid at parameter, expected RFC3339")
			return
		}
		at = parsed
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"multiplier":  h.pricing.SurgeMultiplier(at),
		"at":          at.Format(time.RFC3339),
		"valid_until": h.pricing.SurgeChangesAt(at).UTC().Format(time.RFC3339),
	})
}

func (h *EstimateHandler) validateDestinationCount(n int) error {
	if h.cfg != nil && h.cfg.MaxDestinations > 0 && n > h.cfg.MaxDestinations {
		return fmt.Errorf("too many destinations: %d (max %d)", n, h.cfg.MaxDestinations)
	}
	return nil
}
