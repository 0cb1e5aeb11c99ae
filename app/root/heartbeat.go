package root

import (
	"context"
	"net/http"
	"time"

	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
)

const codeDatabaseDown = "DATABASE_UNAVAILABLE"

func Heartbeat(c *gin.Context) {
	c.Status(http.StatusOK)
}

// Health reports whether the database answers
func Health(c *gin.Context, d *internal.Deps) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := d.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}

	if err != nil {
		apperr.Respond(c, apperr.Wrap(apperr.KindUpstream, codeDatabaseDown, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
