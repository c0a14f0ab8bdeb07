package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/medinsight"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

const serviceName = "medinsight"

// healthProbeScope is a scope no real hospital uses. Probing it exercises
// the embedder and the store without returning real insights.
const healthProbeScope = "__health_check__"

// HealthHandler handles health check requests
type HealthHandler struct {
	assistant medinsight.Assistant
	started   time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(a medinsight.Assistant) *HealthHandler {
	return &HealthHandler{
		assistant: a,
		started:   time.Now(),
	}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// ReadinessCheck handles GET /ready
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	response := gin.H{
		"status":    "ready",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	checks := gin.H{
		"system": gin.H{
			"status": "healthy",
			"uptime": time.Since(h.started).Round(time.Second).String(),
		},
	}
	response["checks"] = checks

	if h.assistant == nil {
		checks["assistant"] = gin.H{
			"status": "unhealthy",
			"error":  "assistant not initialized",
		}
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	checks["assistant"] = gin.H{"status": "healthy"}
	c.JSON(http.StatusOK, response)
}

// LivenessCheck handles GET /live - Kubernetes liveness probe endpoint
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// DetailedHealthCheck handles GET /health/detailed - comprehensive health information
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	startTime := time.Now()
	response := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": Version,
		"build_info": gin.H{
			"git_commit": GitCommit,
			"build_time": BuildTime,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"environment": gin.H{
			"go_version": GoVersion,
		},
	}

	allHealthy := true
	checks := gin.H{}

	if h.assistant != nil {
		// Retrieval never fails outright, so only a timeout marks it unhealthy.
		searchStart := time.Now()
		h.assistant.SearchInsights(ctx, medinsight.SearchRequest{
			Query: "health check",
			Scope: healthProbeScope,
			TopK:  1,
		})
		searchStatus := gin.H{
			"status":      "healthy",
			"duration_ms": time.Since(searchStart).Milliseconds(),
			"operation":   "SearchInsights",
		}
		if ctx.Err() != nil {
			searchStatus["status"] = "unhealthy"
			searchStatus["error"] = "retrieval timeout"
			allHealthy = false
		}
		checks["retrieval"] = searchStatus
	} else {
		checks["assistant"] = gin.H{
			"status": "unhealthy",
			"error":  "assistant not initialized",
		}
		allHealthy = false
	}

	systemMetrics := h.getSystemMetrics()
	checks["system"] = gin.H{
		"status":       "healthy",
		"uptime":       time.Since(h.started).Round(time.Second).String(),
		"memory_usage": systemMetrics.MemoryUsage,
		"goroutines":   systemMetrics.Goroutines,
		"gc_cycles":    systemMetrics.GCCycles,
		"heap_objects": systemMetrics.HeapObjects,
		"stack_usage":  systemMetrics.StackUsage,
	}

	response["checks"] = checks
	response["metrics"] = gin.H{
		"response_time_ms": time.Since(startTime).Milliseconds(),
	}

	if !allHealthy {
		response["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SystemMetrics holds system runtime metrics
type SystemMetrics struct {
	MemoryUsage string `json:"memory_usage"`
	Goroutines  int    `json:"goroutines"`
	GCCycles    uint32 `json:"gc_cycles"`
	HeapObjects uint64 `json:"heap_objects"`
	StackUsage  string `json:"stack_usage"`
}

// getSystemMetrics collects current system runtime metrics
func (h *HealthHandler) getSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		MemoryUsage: fmt.Sprintf("%.2f MB", float64(m.Alloc)/(1024*1024)),
		Goroutines:  runtime.NumGoroutine(),
		GCCycles:    m.NumGC,
		HeapObjects: m.HeapObjects,
		StackUsage:  fmt.Sprintf("%.2f MB", float64(m.StackSys)/(1024*1024)),
	}
}
