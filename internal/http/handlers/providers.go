package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"detailhub/internal/domain"
)

// GET /api/providers/:id/earnings
func (a *API) ProviderEarnings(c *gin.Context) {
	from, to, ok := timeRange(c)
	if !ok {
		return
	}
	who := actor(c)
	id := c.Param("id")
	if !who.IsStaff() && !(who.Role == domain.RoleProvider && who.ID == id) {
		RespondDomainError(c, domain.AuthorizationError{Action: "view earnings"})
		return
	}
	e, err := a.Core.Payouts.GetProviderEarnings(c.Request.Context(), id, from, to)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// GET /api/providers/:id/earnings/statement.pdf
func (a *API) ProviderStatement(c *gin.Context) {
	from, to, ok := timeRange(c)
	if !ok {
		return
	}
	pdf, filename, err := a.Core.Statements.EarningsStatement(c.Request.Context(), actor(c), c.Param("id"), from, to)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
