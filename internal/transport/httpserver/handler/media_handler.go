// Package handler provides HTTP handlers for the API.
package handler

import (
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"media-acquisition-service/internal/app/service"
	"media-acquisition-service/internal/domain"
	"media-acquisition-service/internal/transport/httpserver/dto"
	"media-acquisition-service/internal/validator"
)

// MediaHandler handles acquisition and recognition HTTP requests.
type MediaHandler struct {
	acquisition *service.AcquisitionService
	recognition *service.RecognitionService
	uploadDir   string
	validator   *validator.Validator
	logger      *zap.Logger
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(
	acquisitionSvc *service.AcquisitionService,
	recognitionSvc *service.RecognitionService,
	uploadDir string,
	v *validator.Validator,
	logger *zap.Logger,
) *MediaHandler {
	return &MediaHandler{
		acquisition: acquisitionSvc,
		recognition: recognitionSvc,
		uploadDir:   uploadDir,
		validator:   v,
		logger:      logger,
	}
}

// Acquire handles POST /api/v1/media/acquire
func (h *MediaHandler) Acquire(c *fiber.Ctx) error {
	var req dto.AcquireRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_BODY",
		})
	}

	if err := h.validator.Validate(&req); err != nil {
		return writeError(c, h.logger, err)
	}

	acq, err := h.acquisition.Acquire(c.Context(), req.URL)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(dto.FromAcquisition(acq))
}

// Recognize handles POST /api/v1/media/recognize
//
// Accepts either a multipart upload (field "sample") or a JSON body with a
// platform URL whose audio should be identified.
func (h *MediaHandler) Recognize(c *fiber.Ctx) error {
	if file, err := c.FormFile("sample"); err == nil && file != nil {
		return h.recognizeUpload(c, file)
	}

	var req dto.RecognizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "expected a sample file or a JSON body with url",
			Code:  "INVALID_BODY",
		})
	}

	if err := h.validator.Validate(&req); err != nil {
		return writeError(c, h.logger, err)
	}

	acq, err := h.recognition.RecognizeAndAcquire(c.Context(), req.URL)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(dto.FromAcquisition(acq))
}

// recognizeUpload stores the sample under the upload dir for the duration of
// the recognition run.
func (h *MediaHandler) recognizeUpload(c *fiber.Ctx, file *multipart.FileHeader) error {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.logger.Error("failed to prepare upload dir", zap.Error(err))

		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "failed to store sample",
			Code:  "SAMPLE_STORE_FAILED",
		})
	}

	path := filepath.Join(h.uploadDir, "sample-"+uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, path); err != nil {
		h.logger.Error("failed to store uploaded sample", zap.Error(err))

		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "failed to store sample",
			Code:  "SAMPLE_STORE_FAILED",
		})
	}
	defer func() {
		_ = os.Remove(path)
	}()

	acq, err := h.recognition.RecognizeAndAcquire(c.Context(), path)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(dto.FromAcquisition(acq))
}

// Lookup handles GET /api/v1/media/:platform/:id
func (h *MediaHandler) Lookup(c *fiber.Ctx) error {
	platform := domain.Platform(c.Params("platform"))
	if !knownPlatform(platform) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "unknown platform",
			Code:  "UNKNOWN_PLATFORM",
		})
	}

	id := c.Params("id")
	acq, err := h.acquisition.Lookup(c.Context(), platform, id)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	if acq == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: "entry not found",
			Code:  "NOT_FOUND",
		})
	}

	return c.JSON(dto.FromAcquisition(acq))
}

func knownPlatform(p domain.Platform) bool {
	for _, known := range domain.Platforms() {
		if known == p {
			return true
		}
	}

	return false
}
