package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"media-acquisition-service/internal/domain"
	"media-acquisition-service/internal/transport/httpserver/dto"
	"media-acquisition-service/internal/validator"
	"media-acquisition-service/pkg/keypool"
)

// statusForError maps a pipeline error to its HTTP status and stable error
// code. Unknown errors are internal.
func statusForError(err error) (int, string) {
	var (
		resolutionErr *domain.ResolutionError
		extractionErr *domain.ExtractionError
		chainErr      *domain.AllBackendsFailedError
		uploadErr     *domain.UploadError
		validationErr validator.ValidationErrors
	)

	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest, "VALIDATION_ERROR"
	case errors.As(err, &resolutionErr):
		return fiber.StatusUnprocessableEntity, "UNRESOLVABLE_REFERENCE"
	case errors.As(err, &extractionErr):
		return fiber.StatusUnprocessableEntity, "EXTRACTION_FAILED"
	case errors.Is(err, domain.ErrNoMatch):
		return fiber.StatusNotFound, "NO_MATCH"
	case errors.As(err, &chainErr):
		return fiber.StatusBadGateway, "ALL_BACKENDS_FAILED"
	case errors.As(err, &uploadErr):
		return fiber.StatusBadGateway, "UPLOAD_FAILED"
	case errors.Is(err, keypool.ErrNoKeys):
		return fiber.StatusServiceUnavailable, "NO_CREDENTIALS"
	default:
		return fiber.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// writeError renders err in the transport error shape. Pipeline failures
// keep their message (backend names and reasons are part of the API);
// internal errors are logged and replaced with a generic message.
func writeError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	status, code := statusForError(err)

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return c.Status(status).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Code:    code,
			Details: validationErrs,
		})
	}

	if code == "INTERNAL_ERROR" {
		logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)

		return c.Status(status).JSON(dto.ErrorResponse{
			Error: "internal error",
			Code:  code,
		})
	}

	logger.Warn("request rejected",
		zap.Int("status", status),
		zap.String("code", code),
		zap.Error(err),
	)

	return c.Status(status).JSON(dto.ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}
