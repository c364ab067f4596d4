package middleware

import (
	"net/http"

	"byteshop/internal/apperrors"
	"byteshop/internal/validation"

	"github.com/gin-gonic/gin"
)

// BindJSON decodes and validates the request body into dst. On failure the
// 400 is attached to the context and false is returned.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(apperrors.New(http.StatusBadRequest, validation.Message(err)))
		return false
	}
	return true
}

func BindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		_ = c.Error(apperrors.New(http.StatusBadRequest, validation.Message(err)))
		return false
	}
	return true
}

func BindURI(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindUri(dst); err != nil {
		_ = c.Error(apperrors.New(http.StatusBadRequest, validation.Message(err)))
		return false
	}
	return true
}
