package webserver

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	CORSOrigins []string
	// TrustedProxies are IPs or CIDRs allowed to set the client address via
	// forwarding headers. With none, the TCP peer is the client.
	TrustedProxies []string
	Limiter        *RateLimiter
	Logger         *zap.Logger
}

func New(cfg RouterConfig, claimH Claim) (*gin.Engine, error) {
	r := gin.New()
	// rate limiting and the audit origin key on ClientIP
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery(), requestLogger(cfg.Logger))

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{"GET", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	v2 := r.Group("/api/v2")
	if cfg.Limiter != nil {
		v2.Use(RateLimitMiddleware(cfg.Limiter))
	}
	v2.GET("/claim", claimH.Handle)

	return r, nil
}

// requestLogger logs one line per request. Query strings are left out since
// they carry the proof key and the claim token.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("client", c.ClientIP()),
			zap.Duration("took", time.Since(start)))
	}
}
