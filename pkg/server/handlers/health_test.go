package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/medinsight"
)

func serveHealth(h *HealthHandler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.HealthCheck)
	r.GET("/ready", h.ReadinessCheck)
	r.GET("/live", h.LivenessCheck)
	r.GET("/health/detailed", h.DetailedHealthCheck)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestHealthCheck(t *testing.T) {
	w := serveHealth(NewHealthHandler(nil), "/health")

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	response := decodeMap(t, w)
	if response["status"] != "healthy" {
		t.Errorf("expected status healthy, got %v", response["status"])
	}
	if response["service"] != "medinsight" {
		t.Errorf("expected service medinsight, got %v", response["service"])
	}
	if _, ok := response["timestamp"]; !ok {
		t.Error("expected timestamp in response")
	}
	if _, ok := response["version"]; !ok {
		t.Error("expected version in response")
	}
}

func TestLivenessCheck(t *testing.T) {
	w := serveHealth(NewHealthHandler(nil), "/live")

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if response := decodeMap(t, w); response["status"] != "alive" {
		t.Errorf("expected status alive, got %v", response["status"])
	}
}

func TestReadinessCheck(t *testing.T) {
	tests := []struct {
		name       string
		assistant  medinsight.Assistant
		wantStatus int
		wantState  string
	}{
		{"no assistant", nil, http.StatusServiceUnavailable, "not_ready"},
		{"with assistant", &fakeAssistant{}, http.StatusOK, "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveHealth(NewHealthHandler(tt.assistant), "/ready")
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if response := decodeMap(t, w); response["status"] != tt.wantState {
				t.Errorf("expected status %s, got %v", tt.wantState, response["status"])
			}
		})
	}
}

func TestDetailedHealthCheck(t *testing.T) {
	fa := &fakeAssistant{}
	w := serveHealth(NewHealthHandler(fa), "/health/detailed")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	response := decodeMap(t, w)
	checks, ok := response["checks"].(map[string]interface{})
	if !ok {
		t.Fatal("expected checks in response")
	}
	if _, ok := checks["retrieval"]; !ok {
		t.Error("expected retrieval check")
	}
	if _, ok := checks["system"]; !ok {
		t.Error("expected system check")
	}

	if len(fa.searches) != 1 || fa.searches[0].Scope != healthProbeScope {
		t.Errorf("expected one probe search on the health scope, got %+v", fa.searches)
	}
}

func TestDetailedHealthCheckWithoutAssistant(t *testing.T) {
	w := serveHealth(NewHealthHandler(nil), "/health/detailed")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestGetSystemMetrics(t *testing.T) {
	m := NewHealthHandler(nil).getSystemMetrics()
	if m.Goroutines <= 0 {
		t.Errorf("expected positive goroutine count, got %d", m.Goroutines)
	}
	if m.MemoryUsage == "" {
		t.Error("expected memory usage")
	}
}
