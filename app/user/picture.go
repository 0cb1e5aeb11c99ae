package user

import (
	"errors"
	"net/http"

	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/internal/service"
	"bitwise74/drop-api/pkg/apperr"
	"bitwise74/drop-api/pkg/validators"

	"github.com/gin-gonic/gin"
)

const (
	MaxPictureSize = 5 << 20

	codeInvalidPicture = "INVALID_PROFILE_PICTURE"
)

func UserProfilePicture(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	fh, err := c.FormFile("profilePicture")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			apperr.Respond(c, apperr.New(apperr.KindTooLarge, apperr.CodeTooLarge))
		case errors.Is(err, http.ErrMissingFile):
			apperr.Respond(c, apperr.Validation(service.CodeNoFileUploaded))
		default:
			apperr.Respond(c, apperr.Wrap(apperr.KindValidation, apperr.CodeInvalidBody, err))
		}
		return
	}

	f, err := validators.ImageFileValidator(fh, MaxPictureSize)
	if err != nil {
		switch {
		case errors.Is(err, validators.ErrNoFile):
			apperr.Respond(c, apperr.Validation(service.CodeNoFileUploaded))
		case errors.Is(err, validators.ErrFileTooLarge):
			apperr.Respond(c, apperr.New(apperr.KindTooLarge, apperr.CodeTooLarge))
		case errors.Is(err, validators.ErrFileTypeUnsupported):
			apperr.Respond(c, apperr.Validation(codeInvalidPicture))
		default:
			apperr.Respond(c, apperr.Internal(err))
		}
		return
	}
	defer f.Close()

	url, err := d.Users.SetProfilePicture(c.Request.Context(), userID, service.MediaUpload{
		Body:        f,
		Size:        f.Size,
		ContentType: f.ContentType,
		Extension:   f.Extension,
	}, fh.Filename)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profilePictureUrl": url})
}
