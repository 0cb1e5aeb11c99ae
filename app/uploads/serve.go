// Package uploads serves objects of the local storage backend
package uploads

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/internal/storage"
	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
)

const codeObjectNotFound = "OBJECT_NOT_FOUND"

// UploadServe streams a local object to holders of a valid signed URL
func UploadServe(c *gin.Context, d *internal.Deps) {
	if d.Local == nil {
		apperr.Respond(c, apperr.NotFound(codeObjectNotFound))
		return
	}

	key := strings.TrimPrefix(c.Param("key"), "/")

	f, err := d.Local.Open(key, c.Query("token"))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, fs.ErrNotExist):
			apperr.Respond(c, apperr.NotFound(codeObjectNotFound))
		case errors.Is(err, storage.ErrInvalidKey):
			apperr.Respond(c, apperr.Validation(apperr.CodeInvalidBody))
		default:
			apperr.Respond(c, apperr.Forbidden(apperr.CodeForbidden))
		}
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}

	c.Header("Cache-Control", "private, max-age=60")
	http.ServeContent(c.Writer, c.Request, path.Base(key), st.ModTime(), f)
}
