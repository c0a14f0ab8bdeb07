package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/medinsight/pkg/server/dto"
	"github.com/soundprediction/medinsight/pkg/types"
)

// hospitalFromContext returns the caller's hospital set by the context
// middleware, or "".
func hospitalFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(types.ContextKeyHospitalID).(string); ok {
		return v
	}
	return ""
}

func writeError(c *gin.Context, status int, errCode string, message string) {
	c.JSON(status, dto.ErrorResponse{
		Error:   errCode,
		Message: message,
		Code:    status,
	})
}
