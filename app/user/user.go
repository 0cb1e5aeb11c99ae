// Package user contains the handlers of the /users routes
package user

import (
	"errors"
	"net/http"

	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/internal/service"
	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
)

func bindJSON(c *gin.Context, dst any) bool {
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

// setAuthCookies mirrors the returned token into cookies for browser clients
func setAuthCookies(c *gin.Context, d *internal.Deps, res *service.AuthResult) {
	maxAge := int(d.TokenTTL.Seconds())

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("auth_token", res.Token, maxAge, "/", "", d.SecureCookies, true)
	c.SetCookie("logged_in", "1", maxAge, "/", "", d.SecureCookies, false)
}
