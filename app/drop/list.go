package drop

import (
	"net/http"

	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
)

func DropList(c *gin.Context, d *internal.Deps) {
	drops, err := d.Drops.List(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, drops)
}

func DropFetch(c *gin.Context, d *internal.Deps) {
	drop, err := d.Drops.Get(c.Request.Context(), code(c), c.GetString("userID"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, drop)
}
