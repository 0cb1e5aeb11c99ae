package drop

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func DropMediaDownload(c *gin.Context, d *internal.Deps) {
	var passcode *string
	if v, ok := c.GetQuery("passcode"); ok {
		passcode = &v
	}

	dl, err := d.Drops.Download(c.Request.Context(), code(c), c.Param("mediaId"), c.GetString("userID"), passcode)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	defer dl.Body.Close()

	c.Header("Content-Type", dl.ContentType)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	if dl.ContentLength >= 0 {
		c.Header("Content-Length", strconv.FormatInt(dl.ContentLength, 10))
	}
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, dl.Body); err != nil {
		zap.L().Warn("Download interrupted", zap.Error(err), zap.String("requestID", c.GetString("requestID")))
		// Headers are gone, the only signal left is dropping the connection
		panic(http.ErrAbortHandler)
	}
}
