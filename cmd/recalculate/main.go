// Команда recalculate однократно пересчитывает оценки всех активных поездок.
// Подходит для запуска из cron, когда периодический пересчёт в сервере выключен.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ride-pricing/internal/config"
	"ride-pricing/internal/database"
	"ride-pricing/internal/kafka"
	"ride-pricing/internal/logger"
	"ride-pricing/internal/models"
	"ride-pricing/internal/redis"
	"ride-pricing/internal/services"

	_ "time/tzdata"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "recalculate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	log := logger.New(&cfg.Logger)

	db, err := database.Connect(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	// без Kafka оценки всё равно сохраняются, событие просто не публикуется
	var publisher *kafka.Producer
	if producer, err := kafka.NewProducer(&cfg.Kafka, log); err != nil {
		log.WithError(err).Warn("Kafka unavailable, estimate events will not be published")
	} else {
		publisher = producer
		defer publisher.Close()
	}

	surge := services.NewSurgeClockFromConfig(&cfg.Pricing, log)
	pricing := services.NewPricingService(services.TariffFromConfig(&cfg.Pricing), surge)
	rides := services.NewRideService(db, log)

	var recalculation *services.RecalculationService
	if publisher != nil {
		recalculation = services.NewRecalculationService(rides, pricing, publisher, log)
	} else {
		recalculation = services.NewRecalculationService(rides, pricing, nil, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Recalculation.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Recalculation.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	summary, runErr := recalculation.RecalculateAll(ctx)

	if summary.Updated > 0 {
		if cache, err := redis.Connect(&cfg.Redis, log); err != nil {
			log.WithError(err).Warn("Redis unavailable, cached estimates expire by TTL")
		} else {
			cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			if err := cache.DeleteByPrefix(cacheCtx, redis.KeyPrefixRideEstimate); err != nil {
				log.WithError(err).Warn("Failed to invalidate ride estimate cache")
			}
			cancel()
			_ = cache.Close()
		}
	}

	return report(os.Stdout, summary, runErr)
}

// report печатает итог пакета. При прерванном пакете печатается частичный итог и возвращается ошибка.
func report(w io.Writer, summary models.RecalculationSummary, runErr error) error {
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("recalculation interrupted after %d rides: %w", summary.Processed, runErr)
	}
	return nil
}
