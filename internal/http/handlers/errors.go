package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"detailhub/internal/domain"
	"detailhub/internal/http/middleware"
	"detailhub/internal/utils"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
	})
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	var (
		ste domain.StateTransitionError
		pre domain.PreconditionError
		ppe domain.PaymentProcessorError
	)
	switch {
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case domain.IsAuthorization(err):
		respondError(c, http.StatusForbidden, "forbidden", err.Error(), nil)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.As(err, &ste):
		respondError(c, http.StatusConflict, "invalid_transition", err.Error(), gin.H{
			"transition":     ste.Transition,
			"current_status": ste.Current,
		})
	case errors.As(err, &pre):
		respondError(c, http.StatusConflict, "precondition_failed", err.Error(), gin.H{"reason": pre.Reason})
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.As(err, &ppe):
		respondError(c, http.StatusBadGateway, "payment_processor_error", err.Error(), gin.H{"op": ppe.Op, "processor_code": ppe.Code})
	default:
		utils.LogError(c.Request.Context(), "http", "unhandled_error", err, "path", c.Request.URL.Path)
		respondError(c, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
