package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"ride-pricing/internal/config"
	"ride-pricing/internal/logger"
	"ride-pricing/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer публикует события оценок поездок в Kafka
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создает синхронного продюсера Kafka
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 5
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")

	return &Producer{
		producer: producer,
		log:      log,
		topics:   &cfg.Topics,
	}, nil
}

// publishEvent сериализует событие и отправляет его в топик. key задаёт партицию.
func (p *Producer) publishEvent(topic, key string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send event %s: %w", event.Type, err)
	}

	p.log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
		"topic":      topic,
		"partition":  partition,
		"offset":     offset,
	}).Debug("Event published")

	return nil
}

// PublishEstimateUpdated публикует пересчитанную оценку поездки
func (p *Producer) PublishEstimateUpdated(rideID uuid.UUID, estimate *models.FareEstimate) error {
	event := models.Event{
		ID:        uuid.New(),
		Type:      models.EventTypeRideEstimateUpdated,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"ride_id":            rideID.String(),
			"total_distance_km":  estimate.TotalDistanceKm,
			"total_fare":         estimate.TotalFare,
			"per_passenger_fare": estimate.PerPassengerFare,
			"passenger_count":    estimate.PassengerCount,
			"surge_multiplier":   estimate.SurgeMultiplier,
			"currency":           estimate.Currency,
		},
	}

	return p.publishEvent(p.topics.Estimates, rideID.String(), event)
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
