package drop

import (
	"net/http"

	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
)

type unlockBody struct {
	Passcode *string `json:"passcode"`
}

func DropUnlock(c *gin.Context, d *internal.Deps) {
	var body unlockBody
	if !bindJSON(c, &body, true) {
		return
	}

	res, err := d.Drops.Unlock(c.Request.Context(), code(c), c.GetString("userID"), body.Passcode)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
