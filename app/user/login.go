package user

import (
	"net/http"

	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
)

type loginBody struct {
	// Phone number or username
	Login       string `json:"login"`
	PhoneNumber string `json:"phoneNumber"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

func UserLogin(c *gin.Context, d *internal.Deps) {
	var body loginBody
	if !bindJSON(c, &body) {
		return
	}

	login := body.Login
	if login == "" {
		login = body.PhoneNumber
	}
	if login == "" {
		login = body.Username
	}

	res, err := d.Users.Login(c.Request.Context(), login, body.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	setAuthCookies(c, d, res)
	c.JSON(http.StatusOK, res)
}
