package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"media-acquisition-service/internal/app/service"
	"media-acquisition-service/internal/job"
	"media-acquisition-service/internal/transport/httpserver/dto"
	"media-acquisition-service/pkg/keypool"
)

// AdminHandler handles operational HTTP requests.
type AdminHandler struct {
	acquisition *service.AcquisitionService
	janitor     *job.Janitor
	pools       map[string]*keypool.Pool
	logger      *zap.Logger
}

// NewAdminHandler creates a new AdminHandler. pools maps a display name to
// each credential pool worth exposing.
func NewAdminHandler(
	acquisitionSvc *service.AcquisitionService,
	janitor *job.Janitor,
	pools map[string]*keypool.Pool,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		acquisition: acquisitionSvc,
		janitor:     janitor,
		pools:       pools,
		logger:      logger,
	}
}

// Backends handles GET /api/v1/admin/backends
func (h *AdminHandler) Backends(c *fiber.Ctx) error {
	return c.JSON(dto.FromChains(h.acquisition.Chains()))
}

// Credentials handles GET /api/v1/admin/credentials
func (h *AdminHandler) Credentials(c *fiber.Ctx) error {
	snapshots := make(map[string][]keypool.Usage, len(h.pools))
	for name, pool := range h.pools {
		snapshots[name] = pool.Snapshot()
	}

	return c.JSON(dto.FromSnapshots(snapshots))
}

// Sweep handles POST /api/v1/admin/janitor/sweep
func (h *AdminHandler) Sweep(c *fiber.Ctx) error {
	h.logger.Info("manual scratch sweep triggered")

	removed, err := h.janitor.RunOnce(c.Context())
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(dto.SweepResponse{Removed: removed})
}
