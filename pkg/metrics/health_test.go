package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetHealth swaps in a fresh checker for the duration of a test
func resetHealth(t *testing.T) {
	t.Helper()
	previous := healthChecker
	healthChecker = newHealthChecker()
	t.Cleanup(func() { healthChecker = previous })
}

func TestRegisterComponent(t *testing.T) {
	resetHealth(t)

	RegisterComponent(ComponentStorage, true, "")
	require.Len(t, healthChecker.components, 1)

	comp := healthChecker.components[ComponentStorage]
	assert.Equal(t, ComponentStorage, comp.Name)
	assert.True(t, comp.Healthy)
	assert.False(t, comp.Updated.IsZero())

	UpdateComponent(ComponentStorage, false, "disk full")
	comp = healthChecker.components[ComponentStorage]
	assert.False(t, comp.Healthy)
	assert.Equal(t, "disk full", comp.Message)
}

func TestGetHealth(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]bool
		expected   string
	}{
		{
			name:       "all healthy",
			components: map[string]bool{ComponentStorage: true, ComponentAPI: true, ComponentNATS: true},
			expected:   StatusHealthy,
		},
		{
			name:       "optional component down",
			components: map[string]bool{ComponentStorage: true, ComponentAPI: true, ComponentNATS: false},
			expected:   StatusDegraded,
		},
		{
			name:       "critical component down",
			components: map[string]bool{ComponentStorage: false, ComponentAPI: true, ComponentNATS: false},
			expected:   StatusUnhealthy,
		},
		{
			name:       "nothing registered",
			components: nil,
			expected:   StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			for name, healthy := range tt.components {
				RegisterComponent(name, healthy, "down")
			}

			health := GetHealth()
			assert.Equal(t, tt.expected, health.Status)
			assert.Len(t, health.Components, len(tt.components))
			for name, healthy := range tt.components {
				if healthy {
					assert.Equal(t, StatusHealthy, health.Components[name])
				} else {
					assert.Equal(t, "unhealthy: down", health.Components[name])
				}
			}
		})
	}
}

func TestGetReadiness(t *testing.T) {
	t.Run("all ready", func(t *testing.T) {
		resetHealth(t)
		RegisterComponent(ComponentStorage, true, "")
		RegisterComponent(ComponentAPI, true, "")
		RegisterComponent(ComponentNATS, false, "not connected")

		readiness := GetReadiness()
		assert.Equal(t, StatusReady, readiness.Status)
		assert.NotContains(t, readiness.Components, ComponentNATS, "optional components do not gate readiness")
	})

	t.Run("missing critical component", func(t *testing.T) {
		resetHealth(t)
		RegisterComponent(ComponentStorage, true, "")

		readiness := GetReadiness()
		assert.Equal(t, StatusNotReady, readiness.Status)
		assert.Equal(t, "not registered", readiness.Components[ComponentAPI])
		assert.Contains(t, readiness.Message, "api initialization")
	})

	t.Run("critical component unhealthy", func(t *testing.T) {
		resetHealth(t)
		RegisterComponent(ComponentStorage, false, "closed")
		RegisterComponent(ComponentAPI, true, "")

		readiness := GetReadiness()
		assert.Equal(t, StatusNotReady, readiness.Status)
		assert.Equal(t, "not ready: closed", readiness.Components[ComponentStorage])
	})
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name           string
		handler        http.HandlerFunc
		components     map[string]bool
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "health ok",
			handler:        HealthHandler(),
			components:     map[string]bool{ComponentStorage: true, ComponentAPI: true},
			expectedStatus: http.StatusOK,
			expectedBody:   StatusHealthy,
		},
		{
			name:           "health degraded is still ok",
			handler:        HealthHandler(),
			components:     map[string]bool{ComponentStorage: true, ComponentNATS: false},
			expectedStatus: http.StatusOK,
			expectedBody:   StatusDegraded,
		},
		{
			name:           "health unhealthy",
			handler:        HealthHandler(),
			components:     map[string]bool{ComponentStorage: false},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   StatusUnhealthy,
		},
		{
			name:           "ready",
			handler:        ReadyHandler(),
			components:     map[string]bool{ComponentStorage: true, ComponentAPI: true},
			expectedStatus: http.StatusOK,
			expectedBody:   StatusReady,
		},
		{
			name:           "not ready",
			handler:        ReadyHandler(),
			components:     map[string]bool{ComponentStorage: true},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   StatusNotReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			SetVersion("1.2.3")
			for name, healthy := range tt.components {
				RegisterComponent(name, healthy, "")
			}

			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body HealthStatus
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.expectedBody, body.Status)
			assert.Equal(t, "1.2.3", body.Version)
		})
	}
}

func TestLivenessHandler(t *testing.T) {
	resetHealth(t)

	w := httptest.NewRecorder()
	LivenessHandler()(w, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "alive", body["status"])
	assert.NotEmpty(t, body["uptime"])
}
