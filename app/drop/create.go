package drop

import (
	"net/http"

	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/internal/service"
	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func DropCreate(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var body service.CreateDropInput
	if !bindJSON(c, &body, false) {
		return
	}

	drop, err := d.Drops.Create(c.Request.Context(), userID, body)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	zap.L().Debug("Drop created", zap.String("dropCode", drop.DropCode), zap.String("requestID", c.GetString("requestID")))
	c.JSON(http.StatusCreated, drop)
}
