package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scandishop/storefront_api/internal/utils"
)

var startTime = time.Now()

// DBPinger is satisfied by *sqlx.DB.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// RedisPinger is satisfied by *cache.RedisClient.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health endpoint.
type HealthHandler struct {
	db    DBPinger
	redis RedisPinger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db DBPinger, redis RedisPinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// GetHealth responds with service, database and Redis status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "connected"
	if err := h.db.PingContext(ctx); err != nil {
		dbStatus = "disconnected"
	}
	redisStatus := "connected"
	if err := h.redis.Ping(ctx); err != nil {
		redisStatus = "disconnected"
	}

	status := "healthy"
	if dbStatus != "connected" || redisStatus != "connected" {
		status = "degraded"
	}

	utils.Success(c, 200, "Service is "+status, gin.H{
		"status":   status,
		"version":  "1.0.0",
		"uptime":   int(time.Since(startTime).Seconds()),
		"database": gin.H{"status": dbStatus},
		"redis":    gin.H{"status": redisStatus},
	})
}
