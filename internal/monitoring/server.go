// Package monitoring exposes the operational HTTP surface of the engine:
// liveness and readiness probes plus the Prometheus scrape endpoint.
package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/permtrackhq/permtrack/pkg/logger"
)

// readinessTimeout bounds the database ping performed by the readiness probe.
const readinessTimeout = 2 * time.Second

// NewRouter builds the monitoring router. The readiness probe verifies the
// database connection; liveness only confirms the process is serving.
func NewRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), accessLog())

	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"status":     "ok",
			"checked_at": time.Now().UTC(),
		})
	})

	r.GET("/health/ready", func(c *gin.Context) {
		status := http.StatusOK
		success := true
		detail := "ok"

		if err := pingDatabase(c, db); err != nil {
			status = http.StatusServiceUnavailable
			success = false
			detail = "database unreachable"
		}

		c.JSON(status, gin.H{
			"success":    success,
			"status":     detail,
			"checked_at": time.Now().UTC(),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// accessLog writes a concise structured access log for each request.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.WithModule("http").Info("request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func pingDatabase(c *gin.Context, db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
