package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/bakate/aeroreserve/internal/dto"
	"github.com/bakate/aeroreserve/internal/service"
	"github.com/bakate/aeroreserve/pkg/logger"
)

// WebhookHandler handles Stripe webhook events for checkout sessions.
// Signature-verified events drive booking confirmation and compensation
// without waiting on the synchronous poll loop.
type WebhookHandler struct {
	bookingService service.BookingService
	webhookSecret  string
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(bookingService service.BookingService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{
		bookingService: bookingService,
		webhookSecret:  webhookSecret,
	}
}

// HandleStripeWebhook handles incoming Stripe webhook events
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	log := logger.Get()

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to read webhook body: %v", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		log.Warn("Missing Stripe-Signature header")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing Stripe-Signature header"})
		return
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to verify webhook signature: %v", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	log.Info(fmt.Sprintf("Received Stripe webhook event: %s", event.Type))

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(c, event)
	case "checkout.session.async_payment_succeeded":
		h.handleCheckoutCompleted(c, event)
	case "checkout.session.async_payment_failed":
		h.handleCheckoutFailed(c, event, "payment_declined")
	case "checkout.session.expired":
		h.handleCheckoutFailed(c, event, "checkout_expired")
	default:
		log.Info(fmt.Sprintf("Unhandled event type: %s", event.Type))
		c.JSON(http.StatusOK, gin.H{"received": true, "message": "Event type not handled"})
	}
}

// handleCheckoutCompleted confirms the booking named by a paid session
func (h *WebhookHandler) handleCheckoutCompleted(c *gin.Context, event stripe.Event) {
	log := logger.Get()

	sess, bookingID, ok := h.sessionFromEvent(c, event)
	if !ok {
		return
	}

	// A completed session with an unpaid status is an async payment
	// method still settling; async_payment_succeeded follows later.
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		log.Info(fmt.Sprintf("Checkout %s completed but unpaid, awaiting async settlement", sess.ID))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	confirmation := &dto.ConfirmBookingRequest{CheckoutID: sess.ID}
	paidAt := time.Now()
	if sess.PaymentIntent != nil {
		confirmation.TransactionID = sess.PaymentIntent.ID
		if sess.PaymentIntent.Created > 0 {
			paidAt = time.Unix(sess.PaymentIntent.Created, 0)
		}
	}
	confirmation.PaidAt = &paidAt

	booking, err := h.bookingService.ConfirmBooking(c.Request.Context(), bookingID, confirmation)
	if err != nil {
		// Acknowledge anyway: Stripe retries delivery, and the expiry
		// sweeper settles bookings the webhook could not.
		log.Error(fmt.Sprintf("Failed to confirm booking %s from webhook: %v", bookingID, err))
	} else {
		log.Info(fmt.Sprintf("Booking %s confirmed from checkout %s, status: %s", bookingID, sess.ID, booking.Status))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// handleCheckoutFailed cancels the booking behind a dead session
func (h *WebhookHandler) handleCheckoutFailed(c *gin.Context, event stripe.Event, reason string) {
	log := logger.Get()

	sess, bookingID, ok := h.sessionFromEvent(c, event)
	if !ok {
		return
	}

	booking, err := h.bookingService.CancelBooking(c.Request.Context(), bookingID, &dto.CancelBookingRequest{Reason: reason})
	if err != nil {
		log.Error(fmt.Sprintf("Failed to cancel booking %s from webhook: %v", bookingID, err))
	} else {
		log.Info(fmt.Sprintf("Booking %s cancelled from checkout %s (reason: %s), status: %s",
			bookingID, sess.ID, reason, booking.Status))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// sessionFromEvent decodes the checkout session and resolves the booking
// it references. Events without a booking reference are acknowledged and
// dropped; they are not ours to retry.
func (h *WebhookHandler) sessionFromEvent(c *gin.Context, event stripe.Event) (*stripe.CheckoutSession, string, bool) {
	log := logger.Get()

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		log.Error(fmt.Sprintf("Failed to parse %s: %v", event.Type, err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse event data"})
		return nil, "", false
	}

	bookingID := sess.Metadata["booking_id"]
	if bookingID == "" {
		bookingID = sess.ClientReferenceID
	}
	if bookingID == "" {
		log.Warn(fmt.Sprintf("Checkout %s carries no booking reference, ignoring", sess.ID))
		c.JSON(http.StatusOK, gin.H{"received": true, "message": "No booking reference"})
		return nil, "", false
	}

	return &sess, bookingID, true
}
