package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"detailhub/internal/domain"
	"detailhub/internal/http/middleware"
	"detailhub/internal/services"
	"detailhub/internal/utils"
)

// API holds the collaborators the handlers delegate to.
type API struct {
	Core services.Core
	DB   *sql.DB
}

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "empty body", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid payload", err.Error())
		return false
	}
	return true
}

// bindOptionalJSON is BindJSONOrError for endpoints whose body may be omitted.
func bindOptionalJSON[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	return BindJSONOrError(c, dst)
}

func actor(c *gin.Context) domain.Actor {
	a, _ := middleware.ActorFrom(c)
	return a
}

// timeRange reads optional from/to query params.
func timeRange(c *gin.Context) (from, to *time.Time, ok bool) {
	from, err := utils.ParseTimeParam(c.Query("from"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid from", nil)
		return nil, nil, false
	}
	to, err = utils.ParseTimeParam(c.Query("to"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid to", nil)
		return nil, nil, false
	}
	return from, to, true
}
