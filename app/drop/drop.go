// Package drop contains the handlers of the /drops routes
package drop

import (
	"errors"
	"net/http"

	"bitwise74/drop-api/internal/service"
	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// code returns the normalized drop code from the URL
func code(c *gin.Context) string {
	return service.NormalizeCode(c.Param("dropCode"))
}

// bindJSON decodes the request body into dst. An empty body is accepted
// for routes where every field is optional.
func bindJSON(c *gin.Context, dst any, optional bool) bool {
	if optional && c.Request.ContentLength == 0 {
		return true
	}

	if err := c.ShouldBindJSON(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apperr.Respond(c, apperr.New(apperr.KindTooLarge, apperr.CodeTooLarge))
			return false
		}

		apperr.Respond(c, apperr.Wrap(apperr.KindValidation, apperr.CodeInvalidBody, err))
		return false
	}

	return true
}
