package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/infra"
	"github.com/dyaogo/pos-superette-sub002/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity and reports the stock ledger breaker and
// dead-letter backlog; never exposes credentials or internals. A nil
// dependency is reported as "disabled".
func Health(db *gorm.DB, rdb *redis.Client, cb *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "disabled"
		if db != nil {
			dbStatus = "connected"
			sqlDB, err := db.DB()
			if err != nil || sqlDB.PingContext(ctx) != nil {
				dbStatus = "error"
			}
		}

		redisStatus := "disabled"
		var dlq int64
		if rdb != nil {
			redisStatus = "connected"
			if rdb.Ping(ctx).Err() != nil {
				redisStatus = "error"
			} else {
				for _, q := range []string{worker.QueueReportes, worker.QueueEmail} {
					if n, err := worker.DLQLength(ctx, rdb, q); err == nil {
						dlq += n
					}
				}
			}
		}

		breaker := "disabled"
		if cb != nil {
			breaker = cb.State().String()
		}

		status := http.StatusOK
		if dbStatus == "error" || redisStatus == "error" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":            status == http.StatusOK,
			"db":            dbStatus,
			"redis":         redisStatus,
			"stock_breaker": breaker,
			"dlq_pending":   dlq,
		})
	}
}
