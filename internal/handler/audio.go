package handler

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/creativehub/media/internal/middleware"
	"github.com/creativehub/media/internal/model"
	"github.com/creativehub/media/internal/service"
	"github.com/creativehub/media/internal/store"
	"github.com/creativehub/media/pkg/response"
)

// AudioHandler serves the separation and job-tracking endpoints.
type AudioHandler struct {
	service   *service.MediaService
	validator *validator.Validate
}

func NewAudioHandler(svc *service.MediaService, v *validator.Validate) *AudioHandler {
	return &AudioHandler{
		service:   svc,
		validator: v,
	}
}

// Vocal handles POST /api/audio/separation/vocal
func (h *AudioHandler) Vocal(c *fiber.Ctx) error {
	return h.startSeparation(c, model.JobKindVocalSeparation)
}

// Stem4 handles POST /api/audio/separation/stem4
func (h *AudioHandler) Stem4(c *fiber.Ctx) error {
	return h.startSeparation(c, model.JobKindStem4Separation)
}

// Stem6 handles POST /api/audio/separation/stem6
func (h *AudioHandler) Stem6(c *fiber.Ctx) error {
	return h.startSeparation(c, model.JobKindStem6Separation)
}

func (h *AudioHandler) startSeparation(c *fiber.Ctx, kind model.JobKind) error {
	var req model.SeparationStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "mediaId is required", nil)
	}

	result, err := h.service.StartSeparation(c.Context(), middleware.GetUserID(c), req.MediaID, kind)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrJobNotFound):
			return response.NotFound(c, "Media not found")
		case errors.Is(err, service.ErrSourceNotReady):
			return response.Conflict(c, "Media is not ready for separation")
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.Accepted(c, result)
}

// TaskStatus handles GET /api/audio/task/:jobId
func (h *AudioHandler) TaskStatus(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetJob(c.Context(), middleware.GetUserID(c), jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// PushProgress handles POST /internal/audio/task/:jobId/progress.
// The remote engine treats any non-200 as a reason to retry, so every
// outcome short of a malformed request acknowledges with 200; a store
// failure is logged and still acked rather than surfaced as an error.
func (h *AudioHandler) PushProgress(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	var req model.ProgressPushRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "progress must be between 0 and 100", nil)
	}

	if err := h.service.PushProgress(c.Context(), jobID, req.Progress); err != nil {
		log.Printf("Progress push for job %s failed: %v", jobID, err)
	}

	return response.OK(c, model.AckResponse{Code: 0, Message: "ok"})
}
