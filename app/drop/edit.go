package drop

import (
	"net/http"

	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/internal/service"
	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
)

func DropEdit(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var body service.UpdateDropInput
	if !bindJSON(c, &body, false) {
		return
	}

	drop, err := d.Drops.Update(c.Request.Context(), code(c), userID, body)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, drop)
}

func DropDelete(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	if err := d.Drops.Delete(c.Request.Context(), code(c), userID); err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
