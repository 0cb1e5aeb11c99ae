package user

import (
	"net/http"

	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/internal/service"
	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
)

func UserProfile(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	u, err := d.Users.Profile(c.Request.Context(), userID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}

func UserProfileEdit(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var body service.ProfileUpdate
	if !bindJSON(c, &body) {
		return
	}

	u, err := d.Users.UpdateProfile(c.Request.Context(), userID, body)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}

func UserPublicProfile(c *gin.Context, d *internal.Deps) {
	p, err := d.Users.PublicProfile(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}
