package controllers

import (
	"errors"

	"coursehub/storage"
	"coursehub/utils"

	"github.com/gofiber/fiber/v2"
)

type VideosController struct {
	Store   *storage.BlobStore
	Gateway *storage.StreamGateway
}

func NewVideosController(store *storage.BlobStore, gateway *storage.StreamGateway) *VideosController {
	return &VideosController{Store: store, Gateway: gateway}
}

// StreamVideo sends the raw video bytes. Fiber drains the reader at the pace
// the client consumes the response, chunk by chunk.
func (vc *VideosController) StreamVideo(c *fiber.Ctx) error {
	id := c.Params("id")

	info, rc, err := vc.Gateway.Open(id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return utils.NotFound(c, "Video not found")
		case errors.Is(err, storage.ErrUnsupportedMedia):
			return utils.Error(c, fiber.StatusUnsupportedMediaType, "Requested file is not a video")
		default:
			return utils.InternalServerError(c, "Could not open video")
		}
	}

	c.Set(fiber.HeaderContentType, info.ContentType)
	return c.SendStream(rc, int(info.Length))
}

// GetVideoInfo resolves an id to its display metadata (filename, type,
// size) without touching the content.
func (vc *VideosController) GetVideoInfo(c *fiber.Ctx) error {
	id := c.Params("id")

	info, err := vc.Store.Stat(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return utils.NotFound(c, "Video not found")
		}
		return utils.InternalServerError(c, "Could not query video")
	}
	return utils.Success(c, fiber.StatusOK, info)
}
