package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/pkg/response"
)

// respondDomainError translates domain failures into the response
// envelope. Anything unrecognized becomes an opaque 500 so driver and
// provider details never reach clients.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrBookingNotFound):
		response.Error(c, http.StatusNotFound, "BOOKING_NOT_FOUND", "booking not found", "")
	case errors.Is(err, domain.ErrFlightNotFound):
		response.Error(c, http.StatusNotFound, "FLIGHT_NOT_FOUND", "flight not found", "")
	case errors.Is(err, domain.ErrCheckoutNotFound):
		response.Error(c, http.StatusNotFound, "CHECKOUT_NOT_FOUND", "checkout session not found", "")
	case errors.Is(err, domain.ErrReferenceNotFound):
		response.NotFound(c, "referenced entity not found")
	case errors.Is(err, domain.ErrFlightFull):
		response.Error(c, http.StatusConflict, "FLIGHT_FULL", "not enough seats left in the requested cabin", "")
	case errors.Is(err, domain.ErrDuplicateEntity):
		response.Error(c, http.StatusConflict, "DUPLICATE", "entity already exists", "")
	case errors.Is(err, domain.ErrInvalidBookingState):
		response.Error(c, http.StatusConflict, "INVALID_STATE", err.Error(), "")
	case errors.Is(err, domain.ErrOptimisticLockConflict):
		response.Error(c, http.StatusConflict, "CONCURRENT_UPDATE", "booking was modified concurrently, please retry", "")
	case errors.Is(err, domain.ErrPaymentDeclined):
		response.Error(c, http.StatusPaymentRequired, "PAYMENT_DECLINED", "payment was declined", "")
	case errors.Is(err, domain.ErrPaymentFailed):
		response.Error(c, http.StatusPaymentRequired, "PAYMENT_FAILED", "payment did not complete", "")
	case errors.Is(err, domain.ErrCheckoutExpired):
		response.Error(c, http.StatusGone, "CHECKOUT_EXPIRED", "checkout session expired", "")
	case errors.Is(err, domain.ErrInvalidManageToken):
		response.Unauthorized(c, "invalid or expired manage token")
	case errors.Is(err, domain.ErrManageTokenMismatch):
		response.Error(c, http.StatusForbidden, "MANAGE_TOKEN_MISMATCH", "token does not match this booking", "")
	case errors.Is(err, domain.ErrInvalidSegment):
		response.Error(c, http.StatusBadRequest, "INVALID_SEGMENT", err.Error(), "")
	case errors.Is(err, domain.ErrInvalidPassenger):
		response.Error(c, http.StatusBadRequest, "INVALID_PASSENGER", err.Error(), "")
	case errors.Is(err, domain.ErrInvalidPnrCode):
		response.Error(c, http.StatusBadRequest, "INVALID_PNR", err.Error(), "")
	case errors.Is(err, domain.ErrInvalidAmount):
		response.Error(c, http.StatusBadRequest, "INVALID_AMOUNT", err.Error(), "")
	case errors.Is(err, domain.ErrUnsupportedCurrency):
		response.Error(c, http.StatusBadRequest, "UNSUPPORTED_CURRENCY", err.Error(), "")
	case errors.Is(err, domain.ErrPnrExhausted):
		response.Error(c, http.StatusServiceUnavailable, "PNR_EXHAUSTED", "could not allocate a record locator, please retry", "")
	case errors.Is(err, domain.ErrPaymentUnavailable):
		response.Error(c, http.StatusServiceUnavailable, "PAYMENT_UNAVAILABLE", "payment provider unavailable, please retry", "")
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", "")
	}
}
