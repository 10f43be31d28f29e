package handler

import (
	"context"
	"net/http"
	"time"

	"bersapos/internal/realtime"
	"bersapos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity; never exposes credentials or internals.
// rdb may be nil when the backend runs without Redis.
func Health(db *gorm.DB, rdb *redis.Client, hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		var ticketsDLQ int64
		if rdb != nil {
			redisStatus = "connected"
			if rdb.Ping(ctx).Err() != nil {
				redisStatus = "error"
			} else if n, err := worker.TicketsPendientesDLQ(ctx, rdb); err == nil {
				ticketsDLQ = n
			}
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus == "error" {
			status = http.StatusServiceUnavailable
		}

		body := gin.H{
			"ok":    status == http.StatusOK,
			"db":    dbStatus,
			"redis": redisStatus,
		}
		if rdb != nil {
			body["tickets_dlq"] = ticketsDLQ
		}
		if hub != nil {
			body["terminales"] = hub.Clientes()
		}
		c.JSON(status, body)
	}
}
