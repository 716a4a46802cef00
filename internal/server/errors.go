package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vendora/refundcore/internal/authz"
	creditnotedomain "github.com/vendora/refundcore/internal/creditnote/domain"
	gatewaydomain "github.com/vendora/refundcore/internal/gateway/domain"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
	refunddomain "github.com/vendora/refundcore/internal/refund/domain"
	"github.com/vendora/refundcore/internal/sourcetxn"
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e apiError) Error() string { return e.Message }

var (
	ErrUnauthorized = apiError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "authentication required"}
	ErrForbidden    = apiError{Status: http.StatusForbidden, Code: "forbidden", Message: "not allowed"}
	ErrNotFound     = apiError{Status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}
)

func invalidRequestError() apiError {
	return apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "invalid request"}
}

func newValidationError(field, code, message string) apiError {
	return apiError{Status: http.StatusBadRequest, Code: code, Field: field, Message: message}
}

// AbortWithError translates service errors into the HTTP error taxonomy:
// 400 for malformed input, 403 for denied capability, 404 for missing
// resources, 409 for state and version conflicts, 422 for requests that are
// well formed but violate a business rule.
func AbortWithError(c *gin.Context, err error) {
	var api apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal error"

	switch {
	case errors.Is(err, refunddomain.ErrInvalidSourceRef),
		errors.Is(err, refunddomain.ErrInvalidMethod),
		errors.Is(err, refunddomain.ErrInvalidAmount),
		errors.Is(err, refunddomain.ErrVersionRequired),
		errors.Is(err, creditnotedomain.ErrInvalidAmount),
		errors.Is(err, creditnotedomain.ErrInvalidCustomer),
		errors.Is(err, gatewaydomain.ErrInvalidPayload),
		errors.Is(err, gatewaydomain.ErrInvalidEvent):
		status = http.StatusBadRequest
		code = err.Error()
		message = "invalid request"

	case errors.Is(err, gatewaydomain.ErrInvalidSignature):
		status = http.StatusUnauthorized
		code = "invalid_signature"
		message = "signature verification failed"

	case errors.Is(err, authz.ErrNotAllowed),
		errors.Is(err, authz.ErrApprovalCeilingExceeded):
		status = http.StatusForbidden
		code = err.Error()
		message = "not allowed"

	case errors.Is(err, refunddomain.ErrNotFound),
		errors.Is(err, creditnotedomain.ErrNotFound),
		errors.Is(err, recondomain.ErrTransactionNotFound),
		errors.Is(err, sourcetxn.ErrSourceNotFound),
		errors.Is(err, gatewaydomain.ErrGatewayNotFound):
		status = http.StatusNotFound
		code = err.Error()
		message = "resource not found"

	case errors.Is(err, refunddomain.ErrInvalidTransition),
		errors.Is(err, refunddomain.ErrStaleState),
		errors.Is(err, refunddomain.ErrDuplicateReference),
		errors.Is(err, creditnotedomain.ErrDuplicateIssuance),
		errors.Is(err, recondomain.ErrTransactionInFlight):
		status = http.StatusConflict
		code = err.Error()
		message = "state conflict"

	case errors.Is(err, refunddomain.ErrAmountExceedsSource),
		errors.Is(err, creditnotedomain.ErrInsufficientBalance),
		errors.Is(err, creditnotedomain.ErrInactiveCreditNote),
		errors.Is(err, creditnotedomain.ErrExpiredCreditNote),
		errors.Is(err, sourcetxn.ErrSourceUnpaid),
		errors.Is(err, recondomain.ErrOverRefund):
		status = http.StatusUnprocessableEntity
		code = err.Error()
		message = "business rule violated"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": apiError{
		Status:  status,
		Code:    code,
		Message: message,
	}})
}
