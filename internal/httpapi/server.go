package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"qrclass/internal/auth"
	"qrclass/internal/config"
	"qrclass/internal/httpmiddleware"
	"qrclass/internal/ledger"
	"qrclass/internal/report"
	"qrclass/internal/session"
	"qrclass/internal/store"
	"qrclass/internal/token"
)

// Deps carries everything the router needs. DB and Redis may be nil when the
// corresponding backend is not configured (memory mode); healthz reports
// that honestly.
type Deps struct {
	Cfg      config.App
	Log      *zap.Logger
	Registry *session.Registry
	Sessions session.Repository
	Ledger   *ledger.Service
	Reports  *report.Service
	Codec    *token.Codec
	DB       *store.DB
	Redis    *store.Redis
}

// New builds the gin engine with the full middleware chain and all routes.
func New(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	h := &handlers{
		registry: d.Registry,
		sessions: d.Sessions,
		ledger:   d.Ledger,
		reports:  d.Reports,
		codec:    d.Codec,
		cache:    d.Redis,
		log:      d.Log,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(d.Cfg.RateLimitPerMin, d.Cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := d.Redis.Healthy(c.Request.Context())
		dbHealthy := d.DB != nil
		status := http.StatusOK
		if d.Cfg.StoreBackend == "postgres" && !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	v1 := r.Group("/api/v1")

	// Token endpoints carry no identity: a payload encodes nothing beyond
	// the session id, and scanners call decode before any login.
	v1.GET("/sessions/:id/token", h.sessionToken)
	v1.GET("/sessions/:id/qr", h.sessionQR)
	v1.POST("/scan/decode", h.decodeScan)

	authed := v1.Group("", auth.RequireAuth(d.Cfg.JWTSigningKey, d.Cfg.JWTIssuer))
	authed.POST("/sessions", h.createSession)
	authed.GET("/sessions", h.listSessions)
	authed.GET("/sessions/latest", h.latestSession)
	authed.GET("/sessions/:id", h.getSession)
	authed.DELETE("/sessions/:id", h.deleteSession)
	authed.GET("/sessions/:id/live", h.liveCount)

	authed.POST("/attendance", h.submitAttendance)
	authed.GET("/attendance", h.listAllAttendance)
	authed.GET("/attendance/:session_id", h.listAttendance)
	authed.DELETE("/attendance/:id", h.deleteAttendance)

	authed.GET("/reports/overview", h.overview)

	return r
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
