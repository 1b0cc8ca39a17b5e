package config

import (
	"os"
	"strconv"
	"strings"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Redis         RedisConfig         `json:"redis"`
	Kafka         KafkaConfig         `json:"kafka"`
	Logger        LoggerConfig        `json:"logger"`
	Geocoding     GeocodingConfig     `json:"geocoding"`
	Pricing       PricingConfig       `json:"pricing"`
	Estimates     EstimatesConfig     `json:"estimates"`
	Recalculation RecalculationConfig `json:"recalculation"`
	RateLimit     RateLimitConfig     `json:"rate_limit"`
}

// ServerConfig представляет конфигурацию HTTP сервера
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
}

// DatabaseConfig представляет конфигурацию базы данных
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// KafkaConfig представляет конфигурацию Kafka
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	GroupID string   `json:"group_id"`
	Topics  Topics   `json:"topics"`
}

// Topics представляет список топиков Kafka
type Topics struct {
	Rides     string `json:"rides"`     // события состава поездки (входящие)
	Estimates string `json:"estimates"` // пересчитанные оценки (исходящие)
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// GeocodingConfig описывает настройки геокодера
type GeocodingConfig struct {
	Provider         string `json:"provider"`           // offline | nominatim
	NominatimBaseURL string `json:"nominatim_base_url"` // https://nominatim.openstreetmap.org/search
	UserAgent        string `json:"user_agent"`         // Nominatim требует идентифицирующий User-Agent
	TimeoutSeconds   int    `json:"timeout_seconds"`    // таймаут http-запроса
}

// PricingConfig хранит тариф и множители surge
type PricingConfig struct {
	BaseFare        float64 `json:"base_fare"`
	PricePerKm      float64 `json:"price_per_km"`
	PricePerMinute  float64 `json:"price_per_minute"`
	MinimumFare     float64 `json:"minimum_fare"`
	AverageSpeedKmh float64 `json:"average_speed_kmh"`
	NightMultiplier float64 `json:"night_multiplier"`
	PeakMultiplier  float64 `json:"peak_multiplier"`
	Timezone        string  `json:"timezone"`
}

// EstimatesConfig хранит ограничения API оценок
type EstimatesConfig struct {
	MaxDestinations int `json:"max_destinations"`
	CacheTTLMinutes int `json:"cache_ttl_minutes"`
}

// RecalculationConfig описывает периодический пересчёт оценок поездок
type RecalculationConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"interval_minutes"`
	TimeoutSeconds  int  `json:"timeout_seconds"`
}

// RateLimitConfig описывает настройки rate limiting
type RateLimitConfig struct {
	Enabled       bool   `json:"enabled"`
	Requests      int    `json:"requests"`
	WindowSeconds int    `json:"window_seconds"`
	KeyPrefix     string `json:"key_prefix"`
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "rides_user"),
			Password: getEnv("DB_PASSWORD", "rides_pass"),
			DBName:   getEnv("DB_NAME", "rides"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "ride-pricing"),
			Topics: Topics{
				Rides:     getEnv("KAFKA_TOPIC_RIDES", "rides"),
				Estimates: getEnv("KAFKA_TOPIC_ESTIMATES", "ride-estimates"),
			},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Geocoding: GeocodingConfig{
			Provider:         getEnv("GEOCODER_PROVIDER", "offline"),
			NominatimBaseURL: getEnv("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org/search"),
			UserAgent:        getEnv("GEOCODER_USER_AGENT", "ride-pricing/1.0"),
			TimeoutSeconds:   getEnvAsInt("GEOCODER_TIMEOUT_SECONDS", 5),
		},
		Pricing: PricingConfig{
			BaseFare:        getEnvAsFloat("PRICING_BASE_FARE", 2.50),
			PricePerKm:      getEnvAsFloat("PRICING_PER_KM", 1.20),
			PricePerMinute:  getEnvAsFloat("PRICING_PER_MINUTE", 0.25),
			MinimumFare:     getEnvAsFloat("PRICING_MIN_FARE", 7.00),
			AverageSpeedKmh: getEnvAsFloat("PRICING_AVERAGE_SPEED_KMH", 30),
			NightMultiplier: getEnvAsFloat("PRICING_NIGHT_MULTIPLIER", 1.5),
			PeakMultiplier:  getEnvAsFloat("PRICING_PEAK_MULTIPLIER", 1.3),
			Timezone:        getEnv("PRICING_TIMEZONE", "Europe/Paris"),
		},
		Estimates: EstimatesConfig{
			MaxDestinations: getEnvAsInt("ESTIMATES_MAX_DESTINATIONS", 8),
			CacheTTLMinutes: getEnvAsInt("ESTIMATES_CACHE_TTL_MINUTES", 5),
		},
		Recalculation: RecalculationConfig{
			Enabled:         getEnvAsBool("RECALCULATION_ENABLED", true),
			IntervalMinutes: getEnvAsInt("RECALCULATION_INTERVAL_MINUTES", 15),
			TimeoutSeconds:  getEnvAsInt("RECALCULATION_TIMEOUT_SECONDS", 60),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", false),
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			KeyPrefix:     getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
		},
	}
}

// getEnv получает значение переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int с значением по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat получает значение переменной окружения как float64 с значением по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool получает значение переменной окружения как bool с значением по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(getEnv(key, ""))
	if valueStr == "true" || valueStr == "1" || valueStr == "yes" {
		return true
	}
	if valueStr == "false" || valueStr == "0" || valueStr == "no" {
		return false
	}
	return defaultValue
}
