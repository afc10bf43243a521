package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"media-acquisition-service/internal/app/service"
	"media-acquisition-service/internal/domain"
	"media-acquisition-service/internal/transport/httpserver/dto"
)

// DashboardHandler handles dashboard-related HTTP requests.
type DashboardHandler struct {
	acquisition *service.AcquisitionService
	logger      *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(acquisitionSvc *service.AcquisitionService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		acquisition: acquisitionSvc,
		logger:      logger,
	}
}

// Render handles GET /dashboard
// Renders the dashboard HTML page using Fiber's template engine.
func (h *DashboardHandler) Render(c *fiber.Ctx) error {
	stats, err := h.acquisition.Stats(c.Context())
	if err != nil {
		h.logger.Error("failed to load dashboard stats", zap.Error(err))
		stats = &service.CacheStats{ByPlatform: map[domain.Platform]int64{}}
	}

	return c.Render("pages/dashboard", fiber.Map{
		"Title": "Media Acquisition Dashboard",
		"Stats": dto.FromStats(stats),
	}, "layouts/base")
}
