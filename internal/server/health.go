package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	app "github.com/kode4food/flowrelay"
	"github.com/kode4food/flowrelay/pkg/api"
)

const (
	healthStatusHealthy = "healthy"
	rootMessage         = "Flow relay is running."
)

func (s *Server) handleRoot(c *gin.Context) {
	c.String(http.StatusOK, rootMessage)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Status:  healthStatusHealthy,
		Service: app.Name,
	})
}
