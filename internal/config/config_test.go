package config

import (
	"testing"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_INT", "123")
	t.Setenv("TEST_FLOAT", "3.14")
	t.Setenv("TEST_BOOL_TRUE", "true")
	t.Setenv("TEST_BOOL_FALSE", "false")
	t.Setenv("TEST_INT_BAD", "abc")

	if v := getEnv("TEST_STR", ""); v != "value" {
		t.Fatalf("expected value, got %s", v)
	}
	if v := getEnvAsInt("TEST_INT", 0); v != 123 {
		t.Fatalf("expected 123, got %d", v)
	}
	if v := getEnvAsInt("TEST_INT_BAD", 7); v != 7 {
		t.Fatalf("expected fallback 7, got %d", v)
	}
	if v := getEnvAsFloat("TEST_FLOAT", 0); v != 3.14 {
		t.Fatalf("expected 3.14, got %f", v)
	}
	if !getEnvAsBool("TEST_BOOL_TRUE", false) {
		t.Fatalf("expected true")
	}
	if getEnvAsBool("TEST_BOOL_FALSE", true) {
		t.Fatalf("expected false")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Server.Port == "" {
		t.Fatalf("expected default server port set")
	}
	if cfg.Pricing.BaseFare != 2.50 || cfg.Pricing.PricePerKm != 1.20 || cfg.Pricing.PricePerMinute != 0.25 {
		t.Fatalf("unexpected default tariff: %+v", cfg.Pricing)
	}
	if cfg.Pricing.MinimumFare != 7.00 || cfg.Pricing.AverageSpeedKmh != 30 {
		t.Fatalf("unexpected default tariff: %+v", cfg.Pricing)
	}
	if cfg.Pricing.NightMultiplier != 1.5 || cfg.Pricing.PeakMultiplier != 1.3 {
		t.Fatalf("unexpected default multipliers: %+v", cfg.Pricing)
	}
	if cfg.Estimates.MaxDestinations != 8 {
		t.Fatalf("expected max destinations 8, got %d", cfg.Estimates.MaxDestinations)
	}
}

func TestLoadPricingOverrides(t *testing.T) {
	t.Setenv("PRICING_MIN_FARE", "9.5")
	t.Setenv("PRICING_TIMEZONE", "UTC")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := Load()
	if cfg.Pricing.MinimumFare != 9.5 {
		t.Fatalf("expected min fare override, got %.2f", cfg.Pricing.MinimumFare)
	}
	if cfg.Pricing.Timezone != "UTC" {
		t.Fatalf("expected timezone override, got %s", cfg.Pricing.Timezone)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Fatalf("expected 2 brokers, got %v", cfg.Kafka.Brokers)
	}
}
