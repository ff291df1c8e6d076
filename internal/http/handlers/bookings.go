package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"detailhub/internal/services"
)

// POST /api/bookings
func (a *API) CreateBooking(c *gin.Context) {
	var in services.CreateBookingInput
	if !BindJSONOrError(c, &in) {
		return
	}
	res, err := a.Core.Bookings.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /api/bookings/:id
func (a *API) GetBooking(c *gin.Context) {
	b, err := a.Core.Bookings.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GET /api/bookings/:id/events
func (a *API) GetBookingEvents(c *gin.Context) {
	evs, err := a.Core.Bookings.History(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}

type assignRequest struct {
	ProviderID string `json:"provider_id"`
}

// POST /api/bookings/:id/assign
func (a *API) AssignProvider(c *gin.Context) {
	var req assignRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	b, err := a.Core.Bookings.AssignProvider(c.Request.Context(), actor(c), c.Param("id"), req.ProviderID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /api/bookings/:id/arrive
func (a *API) Arrive(c *gin.Context) {
	var loc *services.Location
	if c.Request.ContentLength > 0 {
		loc = &services.Location{}
		if !BindJSONOrError(c, loc) {
			return
		}
	}
	b, err := a.Core.Bookings.Arrive(c.Request.Context(), actor(c), c.Param("id"), loc)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /api/bookings/:id/complete
func (a *API) Complete(c *gin.Context) {
	b, err := a.Core.Bookings.Complete(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /api/bookings/:id/confirm
func (a *API) Confirm(c *gin.Context) {
	res, err := a.Core.Bookings.CustomerConfirm(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/bookings/:id/dispute
func (a *API) OpenDispute(c *gin.Context) {
	var in services.OpenDisputeInput
	if !BindJSONOrError(c, &in) {
		return
	}
	dc, err := a.Core.Disputes.Open(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dc)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// POST /api/bookings/:id/cancel
func (a *API) Cancel(c *gin.Context) {
	var req cancelRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	b, err := a.Core.Bookings.Cancel(c.Request.Context(), actor(c), c.Param("id"), req.Reason)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
