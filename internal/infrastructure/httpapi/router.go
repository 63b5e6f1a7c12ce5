// Package httpapi serves the tenant-facing REST surface and the admin trigger.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"RegulatoryRadar/internal/domain"
)

// Profiles is the profile use case consumed by the handlers.
type Profiles interface {
	UpdateProfile(ctx context.Context, tenantID, description string) (domain.TenantProfile, error)
	GetProfile(ctx context.Context, tenantID string) (domain.TenantProfile, error)
}

// Compliance is the read and completion use case over updates and alerts.
type Compliance interface {
	ListUpdates(ctx context.Context, tenantID string, limit int) ([]domain.RegulatoryUpdate, error)
	ListAlerts(ctx context.Context, tenantID string) ([]domain.AlertView, error)
	CompleteAlert(ctx context.Context, alertID uuid.UUID, tenantID string) (domain.AlertView, error)
}

// Trigger starts scans on demand.
type Trigger interface {
	Trigger(ctx context.Context) error
	RunNow(ctx context.Context) (domain.RunSummary, error)
}

// RouterConfig carries the handler dependencies. Metrics and Trigger are optional.
type RouterConfig struct {
	Profiles   Profiles
	Compliance Compliance
	Trigger    Trigger
	Metrics    http.Handler
	Logger     *slog.Logger
	// BaseContext detaches async scans from the request lifetime.
	BaseContext context.Context
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))

	h := &handler{
		profiles:   cfg.Profiles,
		compliance: cfg.Compliance,
		trigger:    cfg.Trigger,
		logger:     cfg.Logger,
		baseCtx:    cfg.BaseContext,
	}
	if h.baseCtx == nil {
		h.baseCtx = context.Background()
	}

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := router.Group("/api/v1")
	{
		tenant := api.Group("/tenants/:tenantID")
		tenant.PUT("/profile", h.putProfile)
		tenant.GET("/profile", h.getProfile)
		tenant.GET("/updates", h.listUpdates)
		tenant.GET("/alerts", h.listAlerts)
		tenant.POST("/alerts/:alertID/complete", h.completeAlert)

		api.POST("/admin/scan", h.triggerScan)
	}

	return router
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if logger == nil {
			return
		}
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
