package services

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ride-pricing/internal/apperror"
	"ride-pricing/internal/config"
	"ride-pricing/internal/logger"
	"ride-pricing/internal/models"
	"ride-pricing/internal/redis"
)

const geocodeCacheTTL = 24 * time.Hour

type geocodeCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// GeocodingService переводит адреса в координаты с кешированием в Redis.
// Провайдер nominatim обращается к OpenStreetMap, offline детерминированно хеширует адрес.
type GeocodingService struct {
	cache  geocodeCache
	log    *logger.Logger
	client *http.Client
	cfg    *config.GeocodingConfig
}

// NewGeocodingService создает сервис геокодирования. redisClient может быть nil, тогда кеш не используется.
func NewGeocodingService(redisClient *redis.Client, log *logger.Logger, cfg *config.GeocodingConfig) *GeocodingService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &GeocodingService{
		log:    log,
		client: &http.Client{Timeout: timeout},
		cfg:    cfg,
	}
	if redisClient != nil {
		s.cache = redisClient
	}
	return s
}

// Geocode возвращает координаты адреса. Ошибка провайдера не возвращается клиенту:
// сервис логирует её и откатывается на offline-координаты.
func (s *GeocodingService) Geocode(ctx context.Context, address string) (models.GeoPoint, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.GeoPoint{}, apperror.Validation("address is empty", nil)
	}

	key := redis.GenerateKey(redis.KeyPrefixGeocode, hashKey(address))

	if s.cache != nil {
		var cached models.GeoPoint
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	var point models.GeoPoint
	if strings.EqualFold(s.cfg.Provider, "nominatim") {
		var err error
		point, err = s.nominatimGeocode(ctx, address)
		if err != nil {
			// offline-координаты при сбое провайдера в кеш не пишутся
			s.log.WithError(err).WithField("address", address).Warn("Nominatim geocode failed, fallback to offline")
			return hashToPoint(address), nil
		}
	} else {
		point = hashToPoint(address)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, point, geocodeCacheTTL); err != nil {
			s.log.WithError(err).WithField("address", address).Warn("Failed to cache geocode result")
		}
	}

	return point, nil
}

// GeocodeAll геокодирует адреса по порядку
func (s *GeocodingService) GeocodeAll(ctx context.Context, addresses []string) ([]models.GeoPoint, error) {
	points := make([]models.GeoPoint, 0, len(addresses))
	for i, address := range addresses {
		point, err := s.Geocode(ctx, address)
		if err != nil {
			return nil, apperror.Validation(fmt.Sprintf("destination %d: %s", i, err.Error()), err)
		}
		points = append(points, point)
	}
	return points, nil
}

// nominatimGeocode вызывает поиск Nominatim и берёт первый результат
func (s *GeocodingService) nominatimGeocode(ctx context.Context, address string) (models.GeoPoint, error) {
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")

	endpoint := s.cfg.NominatimBaseURL
	if endpoint == "" {
		endpoint = "https://nominatim.openstreetmap.org/search"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("failed to build request: %w", err)
	}
	userAgent := s.cfg.UserAgent
	if userAgent == "" {
		userAgent = "ride-pricing/1.0"
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("failed to call nominatim: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.GeoPoint{}, fmt.Errorf("nominatim returned status %d: %s", resp.StatusCode, string(body))
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return models.GeoPoint{}, fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	if len(places) == 0 {
		return models.GeoPoint{}, fmt.Errorf("nominatim returned no results")
	}

	return places[0].Point()
}

// nominatimPlace - элемент ответа /search. Координаты приходят строками.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (p nominatimPlace) Point() (models.GeoPoint, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("failed to parse latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("failed to parse longitude %q: %w", p.Lon, err)
	}
	return models.GeoPoint{Latitude: lat, Longitude: lon}, nil
}

// hashToPoint генерирует координаты из адреса.
func hashToPoint(address string) models.GeoPoint {
	h := fnv.New64a()
	_, _ = h.Write([]byte(address))
	val := h.Sum64()

	// lat: -90..90, lon: -180..180, шаг 0.01 градуса
	return models.GeoPoint{
		Latitude:  -90 + float64(val%18000)/100.0,
		Longitude: -180 + float64((val/18000)%36000)/100.0,
	}
}

// hashKey делает короткий ключ для адреса.
func hashKey(address string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(address))
	return fmt.Sprintf("%x", h.Sum64())
}
