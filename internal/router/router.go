package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/handler"
	submissionHandler "github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/handler/submission"
	"github.com/thetonyalvarez/mount-vernon-lofts-sub001/internal/middleware"
)

// Config holds router-level settings.
type Config struct {
	RateLimitRPS   float64
	RateLimitBurst int
	Timeout        time.Duration
	CORS           middleware.CORSConfig
	AdminToken     string
}

type Router struct {
	engine      *gin.Engine
	h           *handler.Handler
	submissionH *submissionHandler.Handler
	cfg         Config
}

func NewRouter(submissionH *submissionHandler.Handler, h *handler.Handler, cfg Config) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	if cfg.Timeout <= 0 {
		cfg.Timeout = middleware.DefaultTimeoutConfig().Duration
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: cfg.Timeout}),
		middleware.CORS(cfg.CORS),
	)

	if cfg.RateLimitRPS > 0 {
		rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		})
		engine.Use(rl.RateLimit())
	}

	return &Router{
		engine:      engine,
		h:           h,
		submissionH: submissionH,
		cfg:         cfg,
	}
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	r.setupHealthCheck(api)

	r.submissionH.RegisterRoutes(api)

	admin := api.Group("", middleware.AdminAuth(r.cfg.AdminToken))
	r.submissionH.RegisterAdminRoutes(admin)
}

func (r *Router) setupHealthCheck(rg *gin.RouterGroup) {
	health := rg.Group("/health")
	{
		health.GET("/live", r.h.LivenessCheck)
		health.GET("/ready", r.h.ReadinessCheck)
		health.GET("/metrics", r.h.MetricsHandler)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
