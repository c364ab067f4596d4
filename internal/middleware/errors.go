package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"byteshop/internal/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorHandler renders the last error attached with c.Error. The cause of
// internal errors is only exposed outside production.
func ErrorHandler(log logrus.FieldLogger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := apperrors.As(c.Errors.Last().Err)

		body := gin.H{"success": false, "error": appErr.Message}
		if appErr.Status >= http.StatusInternalServerError {
			log.WithError(appErr).WithFields(logrus.Fields{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			}).Error("request error")
			if !production && appErr.Err != nil {
				body["stack"] = appErr.Err.Error()
			}
		}
		c.AbortWithStatusJSON(appErr.Status, body)
	}
}

// Recovery turns panics into a 500 envelope.
func Recovery(log logrus.FieldLogger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := string(debug.Stack())
				log.WithField("panic", rec).WithField("stack", stack).Error("panic recovered")

				body := gin.H{"success": false, "error": "Internal server error"}
				if !production {
					body["stack"] = fmt.Sprintf("%v\n%s", rec, stack)
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, body)
			}
		}()
		c.Next()
	}
}

func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   fmt.Sprintf("Route %s %s not found", c.Request.Method, c.Request.URL.Path),
		})
	}
}
