package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/medinsight"
	"github.com/soundprediction/medinsight/pkg/retrieval"
	"github.com/soundprediction/medinsight/pkg/server/dto"
	"github.com/soundprediction/medinsight/pkg/types"
)

// InsightHandler stores and searches expert checks.
type InsightHandler struct {
	insights medinsight.InsightManager
	logger   *slog.Logger
}

// NewInsightHandler creates a new insight handler
func NewInsightHandler(m medinsight.InsightManager, logger *slog.Logger) *InsightHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InsightHandler{insights: m, logger: logger}
}

// AddExpertCheck handles POST /api/v1/expert-check
func (h *InsightHandler) AddExpertCheck(c *gin.Context) {
	if h.insights == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "assistant not initialized")
		return
	}

	var req dto.ExpertCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	scope := req.HospitalID
	if scope == "" {
		scope = hospitalFromContext(c.Request.Context())
	}
	if scope == "" {
		writeError(c, http.StatusBadRequest, "missing_scope", dto.ErrMissingScope.Error())
		return
	}

	insight, err := h.insights.UpsertInsight(c.Request.Context(), retrieval.InsightInput{
		Text:       req.CheckText,
		Category:   req.Category,
		OwnerScope: scope,
		Medication: req.JoinedMedication(),
		LabTest:    req.JoinedLabTest(),
	})
	if err != nil {
		h.logger.Error("Failed to store expert check", "scope", scope, "error", err)
		writeError(c, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.ExpertCheckResponse{
		Status:  "success",
		ID:      insight.ID,
		Message: "Expert check stored",
	})
}

// SearchExpertChecks handles GET /api/v1/expert-check?query=&category=&top_k=
func (h *InsightHandler) SearchExpertChecks(c *gin.Context) {
	if h.insights == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "assistant not initialized")
		return
	}

	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		writeError(c, http.StatusBadRequest, "validation_error", dto.ErrEmptyQuery.Error())
		return
	}

	scope := hospitalFromContext(c.Request.Context())
	if scope == "" {
		writeError(c, http.StatusBadRequest, "missing_scope", dto.ErrMissingScope.Error())
		return
	}

	topK := 0
	if raw := c.Query("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, "validation_error", "top_k must be a positive integer")
			return
		}
		topK = n
	}

	matches := h.insights.SearchInsights(c.Request.Context(), medinsight.SearchRequest{
		Query:    query,
		Scope:    scope,
		Category: c.Query("category"),
		TopK:     topK,
	})
	if matches == nil {
		matches = []types.Match{}
	}

	c.JSON(http.StatusOK, matches)
}
