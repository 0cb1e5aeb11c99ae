package drop

import (
	"errors"
	"net/http"

	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/internal/service"
	"bitwise74/drop-api/pkg/apperr"
	"bitwise74/drop-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const codeUnsupportedMedia = "UNSUPPORTED_MEDIA_TYPE"

// fileError maps upload validation failures to client errors
func fileError(err error) error {
	var maxErr *http.MaxBytesError

	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, validators.ErrNoFile):
		return apperr.Validation(service.CodeNoFileUploaded)
	case errors.As(err, &maxErr), errors.Is(err, validators.ErrFileTooLarge):
		return apperr.New(apperr.KindTooLarge, apperr.CodeTooLarge)
	case errors.Is(err, validators.ErrFileTypeUnsupported):
		return apperr.Validation(codeUnsupportedMedia)
	default:
		return apperr.Wrap(apperr.KindValidation, apperr.CodeInvalidBody, err)
	}
}

func DropMediaUpload(c *gin.Context, d *internal.Deps) {
	requestID := c.GetString("requestID")
	userID := c.MustGet("userID").(string)

	fh, err := c.FormFile("file")
	if err != nil {
		apperr.Respond(c, fileError(err))
		return
	}

	f, err := validators.MediaFileValidator(fh, d.MaxUploadSize)
	if err != nil {
		apperr.Respond(c, fileError(err))
		return
	}
	defer f.Close()

	var caption *string
	if v, ok := c.GetPostForm("caption"); ok && v != "" {
		caption = &v
	}

	m, err := d.Drops.UploadMedia(c.Request.Context(), code(c), userID, service.MediaUpload{
		Body:        f,
		Size:        f.Size,
		ContentType: f.ContentType,
		Extension:   f.Extension,
		Caption:     caption,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	zap.L().Debug("Media uploaded",
		zap.String("key", m.StorageKey),
		zap.Int("position", m.Position),
		zap.String("requestID", requestID),
	)

	c.JSON(http.StatusCreated, m)
}
