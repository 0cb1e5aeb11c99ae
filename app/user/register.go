package user

import (
	"net/http"

	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/internal/service"
	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func UserSignup(c *gin.Context, d *internal.Deps) {
	var body service.SignupInput
	if !bindJSON(c, &body) {
		return
	}

	res, err := d.Users.Signup(c.Request.Context(), body)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	zap.L().Info("New user signed up", zap.String("userID", res.User.ID), zap.String("requestID", c.GetString("requestID")))

	setAuthCookies(c, d, res)
	c.JSON(http.StatusCreated, res)
}
