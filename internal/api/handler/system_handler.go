package handler

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cuongbtq/render-queue/internal/api/dto"
	"github.com/cuongbtq/render-queue/internal/blob"
	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 3 * time.Second

// SystemHandler serves health checks and locally stored results
type SystemHandler struct {
	logger      *slog.Logger
	serviceName string
	blob        blob.Store
	checks      map[string]Pinger
}

// NewSystemHandler creates a new SystemHandler instance
func NewSystemHandler(deps *Dependencies) *SystemHandler {
	return &SystemHandler{
		logger:      deps.Logger,
		serviceName: deps.ServiceName,
		blob:        deps.Blob,
		checks:      deps.HealthChecks,
	}
}

// Health handles GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	names := slices.Sorted(maps.Keys(h.checks))

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			h.logger.Warn("Health check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":  state,
		"service": h.serviceName,
		"checks":  checks,
	})
}

// GetBlob handles GET /blobs/*key
func (h *SystemHandler) GetBlob(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	data, contentType, err := h.blob.Get(c.Request.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, blob.ErrObjectNotFound):
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Object not found"})
		case errors.Is(err, blob.ErrInvalidKey):
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid object key"})
		default:
			h.logger.Error("Failed to read object",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to read object"})
		}
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}
