package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/actionable-app/actionable/pkg/response"
)

// Health reports liveness for load balancers and uptime checks.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{
			"status":  "ok",
			"service": "actionable",
		})
	}
}
