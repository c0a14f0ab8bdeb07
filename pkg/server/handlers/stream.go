package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/medinsight"
	"github.com/soundprediction/medinsight/pkg/research"
	"github.com/soundprediction/medinsight/pkg/server/dto"
	"github.com/soundprediction/medinsight/pkg/stream"
)

// StreamHandler serves the NDJSON streaming endpoints. Once the stream has
// started, failures are reported in-band and the status stays 200.
type StreamHandler struct {
	advisor    medinsight.ExpertAdvisor
	researcher medinsight.Researcher
	reader     medinsight.ReportReader
	logger     *slog.Logger
}

// StreamingAssistant is the part of the assistant the stream handler uses.
type StreamingAssistant interface {
	medinsight.ExpertAdvisor
	medinsight.Researcher
	medinsight.ReportReader
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(a StreamingAssistant, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &StreamHandler{logger: logger}
	if a != nil {
		h.advisor = a
		h.researcher = a
		h.reader = a
	}
	return h
}

// ExpertChat handles POST /api/v1/expert-chat
func (h *StreamHandler) ExpertChat(c *gin.Context) {
	var req dto.ExpertChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	userScope := hospitalFromContext(c.Request.Context())
	if req.HospitalID == "" && userScope == "" {
		writeError(c, http.StatusBadRequest, "missing_scope", dto.ErrMissingScope.Error())
		return
	}
	if h.advisor == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "assistant not initialized")
		return
	}

	sink := startStream(c)
	err := h.advisor.ExpertChat(c.Request.Context(), medinsight.ChatRequest{
		Query:      req.Query,
		UserScope:  userScope,
		HospitalID: req.HospitalID,
		Category:   req.Category,
	}, sink)
	if err != nil {
		h.logger.Warn("Expert chat ended with error", "error", err)
	}
}

// DeepResearch handles POST /api/v1/deep-research
func (h *StreamHandler) DeepResearch(c *gin.Context) {
	var req dto.DeepResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if h.researcher == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "assistant not initialized")
		return
	}

	sink := startStream(c)
	err := h.researcher.DeepResearch(c.Request.Context(), research.Request{
		ImageRef:    req.ImageURL,
		AudioRef:    req.AudioURL,
		DocumentRef: req.Document(),
		Prompt:      req.EffectivePrompt(),
	}, sink)
	switch {
	case err == nil:
	case errors.Is(err, medinsight.ErrResearchUnavailable):
		h.logger.Warn("Deep research requested but not configured")
	default:
		h.logger.Warn("Deep research ended with error", "error", err)
	}
}

// SummarizeReport handles POST /api/v1/summarize-medical-report
func (h *StreamHandler) SummarizeReport(c *gin.Context) {
	var req dto.SummarizeReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if h.reader == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "assistant not initialized")
		return
	}

	sink := startStream(c)
	err := h.reader.SummarizeReport(c.Request.Context(), medinsight.SummaryRequest{
		ImageRef:       req.ImageURL,
		SkinSpecialist: req.UseSkinSpecialist,
	}, sink)
	switch {
	case err == nil:
	case errors.Is(err, medinsight.ErrSummaryUnavailable):
		h.logger.Warn("Report summary requested but not configured")
	default:
		h.logger.Warn("Report summary ended with error", "error", err)
	}
}

// startStream writes the NDJSON headers and returns a sink over the
// response body.
func startStream(c *gin.Context) stream.Sink {
	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	return stream.NewNDJSONWriter(c.Writer)
}
