package middleware

import (
	"net/http"

	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// BodySizeLimiter caps the request body at maxBytes. Handlers see a read
// error once the limit is crossed and should answer with 413.
func BodySizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Fast reject for honest clients
		if c.Request.ContentLength > maxBytes {
			apperr.Respond(c, apperr.New(apperr.KindTooLarge, apperr.CodeTooLarge))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
