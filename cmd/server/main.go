package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ride-pricing/internal/apperror"
	"ride-pricing/internal/config"
	"ride-pricing/internal/database"
	"ride-pricing/internal/handlers"
	"ride-pricing/internal/kafka"
	"ride-pricing/internal/logger"
	"ride-pricing/internal/models"
	"ride-pricing/internal/redis"
	"ride-pricing/internal/services"

	"github.com/google/uuid"

	_ "time/tzdata"
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg           *config.Config
	log           *logger.Logger
	db            *database.DB
	redis         *redis.Client
	producer      *kafka.Producer
	consumer      *kafka.Consumer
	recalculation *services.RecalculationService
	mux           *http.ServeMux
	server        *http.Server
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting ride pricing server...")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if app.cfg.Recalculation.Enabled {
		go runPeriodicRecalculation(ctx, app)
	}

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = app.consumer.Stop()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.log.WithError(err).Error("Server forced to shutdown")
	}
	_ = app.producer.Close()
	_ = app.redis.Close()
	_ = app.db.Close()
	app.log.Info("Server exited")
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumer, err := newKafkaConsumer(&cfg.Kafka, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	surge := services.NewSurgeClockFromConfig(&cfg.Pricing, log)
	pricingService := services.NewPricingService(services.TariffFromConfig(&cfg.Pricing), surge)
	rideService := services.NewRideService(db, log)
	recalculationService := services.NewRecalculationService(rideService, pricingService, producer, log)
	geocodingService := services.NewGeocodingService(redisClient, log, &cfg.Geocoding)
	rateLimiter := services.NewRateLimiter(redisClient, log, &cfg.RateLimit)

	cacheTTL := time.Duration(cfg.Estimates.CacheTTLMinutes) * time.Minute
	estimateHandler := handlers.NewEstimateHandler(pricingService, geocodingService, &cfg.Estimates, log)
	rideHandler := handlers.NewRideHandler(rideService, recalculationService, pricingService, redisClient, cacheTTL, log)
	healthHandler := handlers.NewHealthHandler(db, redisClient, cfg.Kafka.Brokers, kafkaHealthCheck)
	rateLimitHandler := handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit)

	registerEventHandlers(consumer, recalculationService, redisClient, log)
	if err := consumer.Start(); err != nil {
		_ = consumer.Stop()
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer start: %w", err)
	}

	mux := setupRoutes(estimateHandler, rideHandler, healthHandler, rateLimitHandler, rateLimiter, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &application{
		cfg:           cfg,
		log:           log,
		db:            db,
		redis:         redisClient,
		producer:      producer,
		consumer:      consumer,
		recalculation: recalculationService,
		mux:           mux,
		server:        server,
	}, nil
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(estimateHandler *handlers.EstimateHandler, rideHandler *handlers.RideHandler, healthHandler *handlers.HealthHandler, rateLimitHandler *handlers.RateLimitHandler, rateLimiter handlers.MiddlewareLimiter, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	applyAPI := func(h http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(handlers.RateLimitMiddleware(rateLimiter, log, h))
	}

	// Health check endpoints
	mux.HandleFunc("/health", corsMiddleware(healthHandler.Health))
	mux.HandleFunc("/health/readiness", corsMiddleware(healthHandler.Readiness))
	mux.HandleFunc("/health/liveness", corsMiddleware(healthHandler.Liveness))

	// Estimate endpoints
	mux.HandleFunc("/api/estimates", applyAPI(estimateHandler.Estimate))
	mux.HandleFunc("/api/estimates/simple", applyAPI(estimateHandler.EstimateSimple))
	mux.HandleFunc("/api/estimates/address", applyAPI(estimateHandler.EstimateByAddress))
	mux.HandleFunc("/api/routes", applyAPI(estimateHandler.Route))
	mux.HandleFunc("/api/surge", corsMiddleware(estimateHandler.Surge))

	// Ride endpoints
	mux.HandleFunc("/api/rides/", applyAPI(handleRideRoute(rideHandler)))

	// Rate limit status
	mux.HandleFunc("/api/rate-limit/status", corsMiddleware(rateLimitHandler.Status))

	return mux
}

// handleRideRoute обрабатывает маршруты отдельной поездки
func handleRideRoute(handler *handlers.RideHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/estimate"):
			handler.GetRideEstimate(w, r)
		case strings.HasSuffix(r.URL.Path, "/route"):
			handler.GetRideRoute(w, r)
		case strings.HasSuffix(r.URL.Path, "/recalculate"):
			handler.Recalculate(w, r)
		default:
			writeErrorResponse(w, http.StatusNotFound, "Not found")
		}
	}
}

// rideRecalculator - часть сервиса пересчёта, нужная обработчикам событий и таймеру
type rideRecalculator interface {
	RecalculateRide(ctx context.Context, rideID uuid.UUID) (*models.FareEstimate, error)
	RecalculateAll(ctx context.Context) (models.RecalculationSummary, error)
}

// estimateCache - кеш оценок поездок
type estimateCache interface {
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// registerEventHandlers пересчитывает оценку поездки при изменении её состава
func registerEventHandlers(consumer *kafka.Consumer, recalculation rideRecalculator, cache estimateCache, log *logger.Logger) {
	handler := func(ctx context.Context, event *models.Event) error {
		rideID, ok := event.RideID()
		if !ok {
			log.WithFields(map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).Warn("Ride event without valid ride_id, skipping")
			return nil
		}

		if _, err := recalculation.RecalculateRide(ctx, rideID); err != nil {
			if apperror.Is(err, apperror.KindConflict) || apperror.Is(err, apperror.KindNotFound) {
				log.WithError(err).WithField("ride_id", rideID).Info("Ride estimate not recalculated")
				return cache.Delete(ctx, handlers.RideEstimateCacheKey(rideID))
			}
			return err
		}

		return cache.Delete(ctx, handlers.RideEstimateCacheKey(rideID))
	}

	consumer.RegisterHandler(models.EventTypeRideMemberJoined, handler)
	consumer.RegisterHandler(models.EventTypeRideMemberLeft, handler)
}

// runPeriodicRecalculation пересчитывает активные поездки: surge зависит от времени суток
func runPeriodicRecalculation(ctx context.Context, app *application) {
	interval := time.Duration(app.cfg.Recalculation.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	timeout := time.Duration(app.cfg.Recalculation.TimeoutSeconds) * time.Second

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recalculateOnce(ctx, app.recalculation, app.redis, timeout, app.log)
		}
	}
}

func recalculateOnce(ctx context.Context, recalculation rideRecalculator, cache estimateCache, timeout time.Duration, log *logger.Logger) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	summary, err := recalculation.RecalculateAll(ctx)
	if err != nil {
		log.WithError(err).WithField("updated", summary.Updated).Error("Periodic recalculation failed")
	}
	if summary.Updated > 0 {
		invalidateEstimates(ctx, cache, log)
	}
}

// invalidateEstimates сбрасывает кеш оценок, даже если контекст пакета уже отменён
func invalidateEstimates(ctx context.Context, cache estimateCache, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := cache.DeleteByPrefix(ctx, redis.KeyPrefixRideEstimate); err != nil {
		log.WithError(err).Warn("Failed to invalidate ride estimate cache")
	}
}

// corsMiddleware добавляет CORS заголовки
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	type errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
