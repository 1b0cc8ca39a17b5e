package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ride-pricing/internal/config"
	"ride-pricing/internal/logger"
	"ride-pricing/internal/services"
)

// понедельник 12:00 UTC, вне часов пик
var testNow = time.Date(2026, 10, 12, 12, 0, 0, 0, time.UTC)

func newTestLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

func newTestPricing() *services.PricingService {
	return services.NewPricingService(services.DefaultTariff(), services.NewSurgeClock(time.UTC))
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
		t.Fatalf("invalid response body %q: %v", rr.Body.String(), err)
	}
}
