package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"backtest-core/internal/engine"
	"backtest-core/internal/events"
	"backtest-core/internal/monitor"
)

// Options configures the HTTP server. Zero values pick sensible defaults.
type Options struct {
	JWTSecret      string   // empty disables auth on /api
	CORSOrigins    []string // empty allows any origin
	RateLimit      float64  // requests per second per client IP
	RateBurst      int
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Server wires HTTP endpoints around the backtest service and the event bus.
type Server struct {
	Router *gin.Engine
	Engine engine.Service
	Bus    *events.Bus

	jwtSecret string
	log       *slog.Logger
}

func NewServer(svc engine.Service, bus *events.Bus, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 50
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}

	limiter := newIPLimiter(opts.RateLimit, opts.RateBurst)

	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())                         // Panic recovery (first)
	r.Use(RequestIDMiddleware())                  // Request ID tracking
	r.Use(RequestLogger(log))                     // Request logging (after ID is set)
	r.Use(monitor.GinMiddleware())                // Prometheus request metrics
	r.Use(RateLimitMiddleware(limiter, log))      // Rate limiting
	r.Use(TimeoutMiddleware(opts.RequestTimeout)) // Request deadline
	r.Use(CORSMiddleware(opts.CORSOrigins))       // CORS (last before routes)

	s := &Server{
		Router:    r,
		Engine:    svc,
		Bus:       bus,
		jwtSecret: opts.JWTSecret,
		log:       log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", gin.WrapH(monitor.Handler()))
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)

		protected := api.Group("")
		if s.jwtSecret != "" {
			protected.Use(AuthMiddleware(s.jwtSecret))
		}
		{
			protected.GET("/strategies", s.getStrategies)

			protected.POST("/backtests", s.createBacktest)
			protected.GET("/backtests", s.listBacktests)
			protected.GET("/backtests/:id", s.getBacktest)

			protected.POST("/windows", s.runWindows)
			protected.POST("/sweeps", s.createSweep)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Handler exposes the router for http.Server.
func (s *Server) Handler() http.Handler {
	return s.Router
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
