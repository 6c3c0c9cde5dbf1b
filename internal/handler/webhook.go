// Package handler contains the HTTP handlers for the relay billing API.
//
// This file implements the Stripe webhook handler for processing billing events.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no session middleware) because Stripe calls it directly.
// Authentication is via the Stripe webhook signature verification.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/billing"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/service"
)

// maxWebhookBody bounds webhook payloads.
const maxWebhookBody = 65536

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing       billing.Service
	subscriptions service.SubscriptionService
	logger        *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(billingService billing.Service, subscriptions service.SubscriptionService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:       billingService,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC, no session middleware.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
//
// A non-2xx response makes Stripe redeliver the event later, so only
// failures that a retry could fix get one.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	status := http.StatusOK
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		h.handleCheckoutCompleted(event)
	case stripe.EventTypeInvoicePaid:
		status = h.handleInvoiceOutcome(r, event, true)
	case stripe.EventTypeInvoicePaymentFailed:
		status = h.handleInvoiceOutcome(r, event, false)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	w.WriteHeader(status)
}

// handleCheckoutCompleted logs a finished checkout. The record store picks
// up the new subscription from Stripe on its own.
func (h *WebhookHandler) handleCheckoutCompleted(event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err)
		return
	}

	attrs := []any{
		"session_id", session.ID,
		"organization_id", session.ClientReferenceID,
		"amount_total", session.AmountTotal,
		"currency", session.Currency,
	}
	if session.Subscription != nil {
		attrs = append(attrs, "subscription_id", session.Subscription.ID)
	}
	h.logger.Info("checkout completed", attrs...)
}

// handleInvoiceOutcome settles or fails the adjustment an invoice was
// raised for. Invoices without an adjustment tag (regular renewals) are
// ignored.
func (h *WebhookHandler) handleInvoiceOutcome(r *http.Request, event stripe.Event, paid bool) int {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		h.logger.Error("failed to parse invoice event", "error", err, "type", event.Type)
		return http.StatusBadRequest
	}

	raw, ok := inv.Metadata[billing.MetadataAdjustmentID]
	if !ok {
		h.logger.Debug("invoice has no adjustment", "invoice_id", inv.ID)
		return http.StatusOK
	}
	adjustmentID, err := uuid.Parse(raw)
	if err != nil {
		h.logger.Warn("invoice has malformed adjustment id", "invoice_id", inv.ID, "adjustment_id", raw)
		return http.StatusOK
	}

	reason := ""
	if !paid {
		reason = "invoice payment failed"
		if inv.LastFinalizationError != nil && inv.LastFinalizationError.Msg != "" {
			reason = inv.LastFinalizationError.Msg
		}
	}

	err = h.subscriptions.RecordPaymentOutcome(r.Context(), adjustmentID, paid, inv.ID, reason)
	switch domain.ErrorCode(err) {
	case "":
		h.logger.Info("adjustment payment recorded",
			"adjustment_id", adjustmentID,
			"invoice_id", inv.ID,
			"paid", paid,
		)
		return http.StatusOK
	case domain.ENOTFOUND:
		h.logger.Warn("invoice names unknown adjustment", "adjustment_id", adjustmentID, "invoice_id", inv.ID)
		return http.StatusOK
	case domain.ECONFLICT:
		if errors.Is(err, domain.ErrAdjustmentFinal) {
			// Redelivery cannot change a finished adjustment.
			h.logger.Warn("payment outcome for finished adjustment ignored",
				"adjustment_id", adjustmentID,
				"invoice_id", inv.ID,
				"paid", paid,
				"error", err,
			)
			return http.StatusOK
		}
		// Usually the job has not marked the adjustment submitted yet.
		h.logger.Warn("adjustment not ready for payment outcome",
			"adjustment_id", adjustmentID,
			"invoice_id", inv.ID,
			"error", err,
		)
		return http.StatusConflict
	default:
		h.logger.Error("failed to record payment outcome",
			"adjustment_id", adjustmentID,
			"invoice_id", inv.ID,
			"error", err,
		)
		return http.StatusInternalServerError
	}
}
