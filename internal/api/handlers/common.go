package handlers

import (
	"github.com/cryptofolio/cryptofolio/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

// respondError renders an AppError as the standard JSON error shape.
func respondError(c *gin.Context, err *apperrors.AppError) {
	c.JSON(err.StatusCode, gin.H{
		"error":      err.Message,
		"code":       err.Code,
		"request_id": c.GetString("request_id"),
	})
}
