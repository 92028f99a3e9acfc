package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/creativehub/media/internal/middleware"
	"github.com/creativehub/media/internal/service"
	"github.com/creativehub/media/internal/store"
	"github.com/creativehub/media/pkg/response"
)

const maxUploadSize = 50 * 1024 * 1024 // 50MB

// MediaHandler serves the upload and media record endpoints.
type MediaHandler struct {
	service *service.MediaService
}

func NewMediaHandler(svc *service.MediaService) *MediaHandler {
	return &MediaHandler{service: svc}
}

// Upload handles POST /api/media/upload
func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	contentType := file.Header.Get("Content-Type")
	result, err := h.service.Upload(c.Context(), userID, file.Filename, contentType, f)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedMedia) {
			return response.ValidationError(c, "Unsupported media type", map[string]interface{}{
				"contentType": contentType,
			})
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// Status handles GET /api/media/:id
func (h *MediaHandler) Status(c *fiber.Ctx) error {
	mediaID := c.Params("id")
	if mediaID == "" {
		return response.ValidationError(c, "Media ID is required", nil)
	}

	result, err := h.service.GetJob(c.Context(), middleware.GetUserID(c), mediaID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Media not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Delete handles DELETE /api/media/:id
func (h *MediaHandler) Delete(c *fiber.Ctx) error {
	mediaID := c.Params("id")
	if mediaID == "" {
		return response.ValidationError(c, "Media ID is required", nil)
	}

	err := h.service.DeleteMedia(c.Context(), middleware.GetUserID(c), mediaID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Media not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}
