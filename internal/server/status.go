package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	statushookdomain "github.com/smallbiznis/orderbridge/internal/statushook/domain"
	"go.uber.org/zap"
)

type statusChangeRequest struct {
	Status string `json:"status"`
}

func (s *Server) NotifyStatusChange(c *gin.Context) {
	jobID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || jobID <= 0 {
		AbortWithError(c, statushookdomain.ErrInvalidJobID)
		return
	}

	var req statusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		AbortWithError(c, newValidationError("status", "invalid_status", "status is required"))
		return
	}

	resp, err := s.statusHook.NotifyStatusChange(c.Request.Context(), jobID, status)
	if err != nil {
		s.log.Warn("status_change.failed",
			zap.String("request_id", jobID.String()),
			zap.String("status", status),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
