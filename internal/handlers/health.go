package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const healthTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db          Pinger
	environment string
	log         logrus.FieldLogger
}

func NewHealthHandler(db Pinger, environment string, log logrus.FieldLogger) *HealthHandler {
	return &HealthHandler{db: db, environment: environment, log: log}
}

// GET /health
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status, database, code := "ok", "up", http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		h.log.WithError(err).Warn("health check: database unreachable")
		status, database, code = "degraded", "down", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"success":     code == http.StatusOK,
		"status":      status,
		"database":    database,
		"environment": h.environment,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}
