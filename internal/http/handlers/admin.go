package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"detailhub/internal/services"
)

// POST /api/admin/bookings/:id/refund
func (a *API) Refund(c *gin.Context) {
	var in services.RefundInput
	if !bindOptionalJSON(c, &in) {
		return
	}
	b, err := a.Core.Bookings.Refund(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /api/admin/bookings/:id/release-payout
func (a *API) ReleasePayout(c *gin.Context) {
	p, err := a.Core.Payouts.ReleasePayout(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// POST /api/admin/bookings/:id/resolve-dispute
func (a *API) ResolveDispute(c *gin.Context) {
	var in services.ResolveDisputeInput
	if !BindJSONOrError(c, &in) {
		return
	}
	res, err := a.Core.Disputes.Resolve(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/internal/auto-release
func (a *API) AutoRelease(c *gin.Context) {
	res, err := a.Core.Sweep.Run(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
