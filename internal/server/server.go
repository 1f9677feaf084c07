package server

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-contrib/cors"
	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kode4food/flowrelay/internal/client"
	"github.com/kode4food/flowrelay/internal/config"
	"github.com/kode4food/flowrelay/internal/observability"
	"github.com/kode4food/flowrelay/pkg/util"
)

// Server implements the HTTP API of the relay
type Server struct {
	config  *config.Config
	client  *client.Client
	metrics *observability.Metrics
	sockets util.Set[*Socket]
	mu      sync.Mutex
}

// NewServer creates a new HTTP API server
func NewServer(
	cfg *config.Config, cl *client.Client, m *observability.Metrics,
) *Server {
	return &Server{
		config:  cfg,
		client:  cl,
		metrics: m,
		sockets: util.Set[*Socket]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))
	router.Use(s.corsMiddleware())

	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			s.metrics.Registry(), promhttp.HandlerOpts{},
		)))
	}

	run := router.Group("/api/run-flow")
	{
		run.POST("", s.handleRunFlow)
		run.GET("/ws", s.handleWebSocket)
	}

	return router
}

// CloseWebSockets closes all active WebSocket connections, cancelling any
// stream sessions they own
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := s.sockets.Values()
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	origin := s.config.CORSOrigin
	if origin == "" || origin == "*" {
		return cors.Default()
	}
	return cors.New(cors.Config{
		AllowOrigins:     []string{origin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
}

func (s *Server) registerWebSocket(c *Socket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Socket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}
