package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/speechcare/analysis-service/internal/store"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

// HealthCheck reports service liveness and task store reachability.
func HealthCheck(s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{Status: "ok"}

		if s != nil {
			if err := s.Ping(c.Request.Context()); err != nil {
				response.Store = "disconnected"
				c.JSON(http.StatusServiceUnavailable, response)
				return
			}
			response.Store = "connected"
		} else {
			response.Store = "not configured"
		}

		c.JSON(http.StatusOK, response)
	}
}
