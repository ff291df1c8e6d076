package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 256 << 10

// POST /api/webhooks/stripe
func (a *API) StripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "cannot read body", nil)
		return
	}
	if len(body) > maxWebhookBody {
		respondError(c, http.StatusRequestEntityTooLarge, "validation_error", "body too large", nil)
		return
	}
	res, err := a.Core.Webhooks.Handle(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
