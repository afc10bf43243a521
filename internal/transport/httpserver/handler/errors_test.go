package handler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"media-acquisition-service/internal/domain"
	"media-acquisition-service/internal/validator"
	"media-acquisition-service/pkg/keypool"
)

// TestStatusForError covers the pipeline error to HTTP status mapping.
func TestStatusForError(t *testing.T) {
	ref := domain.MediaRef{Platform: domain.PlatformTikTok, CanonicalID: "123", Kind: domain.KindVideo}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unresolvable reference",
			err:        &domain.ResolutionError{Reference: "gopher://nope", Reason: "unknown platform"},
			wantStatus: fiber.StatusUnprocessableEntity,
			wantCode:   "UNRESOLVABLE_REFERENCE",
		},
		{
			name: "every backend failed",
			err: &domain.AllBackendsFailedError{Ref: ref, Failures: []domain.BackendFailure{
				{Backend: "ytdlp", Class: domain.ClassRateLimited},
			}},
			wantStatus: fiber.StatusBadGateway,
			wantCode:   "ALL_BACKENDS_FAILED",
		},
		{
			name:       "blob store rejected the artifact",
			err:        &domain.UploadError{Ref: ref, Err: errors.New("file too big")},
			wantStatus: fiber.StatusBadGateway,
			wantCode:   "UPLOAD_FAILED",
		},
		{
			name:       "audio extraction dead end",
			err:        &domain.ExtractionError{Source: "media.mp4", Tried: 4},
			wantStatus: fiber.StatusUnprocessableEntity,
			wantCode:   "EXTRACTION_FAILED",
		},
		{
			name:       "sample not recognized",
			err:        domain.ErrNoMatch,
			wantStatus: fiber.StatusNotFound,
			wantCode:   "NO_MATCH",
		},
		{
			name:       "wrapped no-match keeps its mapping",
			err:        fmt.Errorf("recognition: %w", domain.ErrNoMatch),
			wantStatus: fiber.StatusNotFound,
			wantCode:   "NO_MATCH",
		},
		{
			name:       "credential pool empty",
			err:        keypool.ErrNoKeys,
			wantStatus: fiber.StatusServiceUnavailable,
			wantCode:   "NO_CREDENTIALS",
		},
		{
			name: "validation failure",
			err: validator.ValidationErrors{
				{Field: "url", Tag: "required", Message: "url is required"},
			},
			wantStatus: fiber.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "anything else is internal",
			err:        errors.New("pq: connection refused"),
			wantStatus: fiber.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := statusForError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}
