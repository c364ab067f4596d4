package product

import (
	"net/http"

	"byteshop/internal/apperrors"
	"byteshop/internal/handlers"
	"byteshop/internal/middleware"
	"byteshop/internal/models"
	"byteshop/internal/services"

	"github.com/gin-gonic/gin"
)

// multipart overhead allowed on top of the image itself
const uploadSlack = 1 << 20

type categoryURI struct {
	Category string `uri:"category" binding:"required,oneof=laptops smartphones tablets accessories components peripherals"`
}

// POST /api/products/:id/image
func (h *ProductHandler) UploadImage(c *gin.Context) {
	var uri productURI
	if !middleware.BindURI(c, &uri) {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxImageSize+uploadSlack)

	fh, err := c.FormFile("image")
	if err != nil {
		_ = c.Error(apperrors.BadRequest("Image file is required (field \"image\", at most 5MB)"))
		return
	}
	file, err := fh.Open()
	if err != nil {
		_ = c.Error(apperrors.Internal(err))
		return
	}
	defer file.Close()

	p, err := h.products.UploadImage(c.Request.Context(), uri.ID, fh.Filename, fh.Header.Get("Content-Type"), fh.Size, file)
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OKMessage(c, "Image uploaded successfully", p)
}

// GET /api/products/images/:category
func (h *ProductHandler) ListImages(c *gin.Context) {
	var uri categoryURI
	if !middleware.BindURI(c, &uri) {
		return
	}
	images, err := h.products.ListImages(c.Request.Context(), models.Category(uri.Category))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if images == nil {
		images = []models.StoredImage{}
	}
	handlers.OK(c, images)
}
