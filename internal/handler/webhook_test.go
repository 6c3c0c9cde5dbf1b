package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/billing/mock"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

func newWebhookMux(provider *mock.Provider, fake *fakeSubscriptions) *http.ServeMux {
	mux := http.NewServeMux()
	NewWebhookHandler(provider, fake, discardLogger()).RegisterRoutes(mux)
	return mux
}

func postWebhook(t *testing.T, mux http.Handler, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=test")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func invoiceEvent(eventType, invoiceID string, metadata string) string {
	return fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"type": %q,
		"data": {"object": {"id": %q, "object": "invoice", "metadata": %s}}
	}`, eventType, invoiceID, metadata)
}

// =============================================================================
// Invoice Event Tests
// =============================================================================

func TestWebhook_InvoiceOutcome(t *testing.T) {
	adjustmentID := uuid.New()
	tagged := fmt.Sprintf(`{"adjustment_id": %q}`, adjustmentID)

	tests := []struct {
		name         string
		payload      string
		outcomeErr   error
		wantStatus   int
		wantOutcomes []recordedOutcome
	}{
		{
			name:         "paid invoice settles adjustment",
			payload:      invoiceEvent("invoice.paid", "in_1", tagged),
			wantStatus:   http.StatusOK,
			wantOutcomes: []recordedOutcome{{id: adjustmentID, paid: true, reference: "in_1"}},
		},
		{
			name:         "failed payment fails adjustment",
			payload:      invoiceEvent("invoice.payment_failed", "in_2", tagged),
			wantStatus:   http.StatusOK,
			wantOutcomes: []recordedOutcome{{id: adjustmentID, paid: false, reference: "in_2", reason: "invoice payment failed"}},
		},
		{
			name:       "renewal invoice without adjustment is ignored",
			payload:    invoiceEvent("invoice.paid", "in_3", `{}`),
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed adjustment id is ignored",
			payload:    invoiceEvent("invoice.paid", "in_4", `{"adjustment_id": "nope"}`),
			wantStatus: http.StatusOK,
		},
		{
			name:         "unknown adjustment is acknowledged",
			payload:      invoiceEvent("invoice.paid", "in_5", tagged),
			outcomeErr:   domain.NotFound("test", "billing adjustment", adjustmentID.String()),
			wantStatus:   http.StatusOK,
			wantOutcomes: []recordedOutcome{{id: adjustmentID, paid: true, reference: "in_5"}},
		},
		{
			name:         "adjustment not yet submitted asks for redelivery",
			payload:      invoiceEvent("invoice.paid", "in_6", tagged),
			outcomeErr:   domain.Conflict("test", "cannot transition from pending to settled"),
			wantStatus:   http.StatusConflict,
			wantOutcomes: []recordedOutcome{{id: adjustmentID, paid: true, reference: "in_6"}},
		},
		{
			name:    "contradicting outcome for finished adjustment is acknowledged",
			payload: invoiceEvent("invoice.payment_failed", "in_8", tagged),
			outcomeErr: domain.Wrap(
				fmt.Errorf("%w: cannot transition adjustment from settled to failed", domain.ErrAdjustmentFinal),
				domain.ECONFLICT, "test", "cannot transition adjustment from settled to failed"),
			wantStatus:   http.StatusOK,
			wantOutcomes: []recordedOutcome{{id: adjustmentID, paid: false, reference: "in_8", reason: "invoice payment failed"}},
		},
		{
			name:         "database failure asks for redelivery",
			payload:      invoiceEvent("invoice.paid", "in_7", tagged),
			outcomeErr:   domain.Internal(errors.New("connection reset"), "test", "failed"),
			wantStatus:   http.StatusInternalServerError,
			wantOutcomes: []recordedOutcome{{id: adjustmentID, paid: true, reference: "in_7"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSubscriptions{outcomeErr: tt.outcomeErr}
			rec := postWebhook(t, newWebhookMux(mock.New(discardLogger()), fake), tt.payload)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOutcomes, fake.outcomes)
		})
	}
}

// =============================================================================
// Other Event Tests
// =============================================================================

func TestWebhook_CheckoutCompletedIsAcknowledged(t *testing.T) {
	fake := &fakeSubscriptions{}
	payload := `{
		"id": "evt_2",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "object": "checkout.session", "client_reference_id": "org", "amount_total": 22450, "currency": "gbp"}}
	}`

	rec := postWebhook(t, newWebhookMux(mock.New(discardLogger()), fake), payload)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, fake.outcomes)
}

func TestWebhook_UnhandledEventIsAcknowledged(t *testing.T) {
	payload := `{"id": "evt_3", "type": "customer.created", "data": {"object": {"id": "cus_1"}}}`

	rec := postWebhook(t, newWebhookMux(mock.New(discardLogger()), &fakeSubscriptions{}), payload)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	provider := mock.New(discardLogger())
	provider.WebhookError = errors.New("signature mismatch")
	fake := &fakeSubscriptions{}

	rec := postWebhook(t, newWebhookMux(provider, fake), invoiceEvent("invoice.paid", "in_1", `{}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fake.outcomes)
}
