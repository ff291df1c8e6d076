package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"detailhub/internal/config"
)

func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "detailhub running"})
}

func (a *API) DBCheck(c *gin.Context) {
	if a.DB == nil {
		c.JSON(http.StatusOK, gin.H{"message": "in-memory ledger", "driver": "memory"})
		return
	}
	if err := config.PingDB(c.Request.Context(), a.DB); err != nil {
		respondError(c, http.StatusServiceUnavailable, "db_unavailable", "database ping failed: "+err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "database connection OK", "driver": "mysql"})
}
