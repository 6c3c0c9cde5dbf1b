package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantPermanent bool
	}{
		{"card declined", &stripe.Error{Type: stripe.ErrorTypeCard, HTTPStatusCode: http.StatusPaymentRequired, Msg: "declined"}, true},
		{"bad request", &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: http.StatusBadRequest, Msg: "no such customer"}, true},
		{"rate limited", &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: http.StatusTooManyRequests}, false},
		{"idempotency conflict", &stripe.Error{Type: stripe.ErrorTypeIdempotency, HTTPStatusCode: http.StatusConflict}, false},
		{"server error", &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: http.StatusInternalServerError}, false},
		{"network error", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("stripe call: %w", classify(tt.err))
			assert.Equal(t, tt.wantPermanent, IsPermanent(err))
		})
	}

	declined := classify(&stripe.Error{Type: stripe.ErrorTypeCard, HTTPStatusCode: http.StatusPaymentRequired})
	assert.ErrorIs(t, declined, ErrPaymentDeclined)
}

func TestApplyAdjustment_ZeroAmountIsNoop(t *testing.T) {
	svc := NewStripeService("sk_test_unused", "whsec_test")

	result, err := svc.ApplyAdjustment(context.Background(), AdjustmentParams{
		AdjustmentID: uuid.New(),
		CustomerID:   "cus_123",
		Currency:     "gbp",
	})
	require.NoError(t, err)
	assert.True(t, result.Settled)
	assert.Empty(t, result.Reference)
}

func TestVerifyWebhookSignature(t *testing.T) {
	const secret = "whsec_test_secret"
	svc := NewStripeService("sk_test_unused", secret)

	payload := []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":"invoice.paid","api_version":%q,"data":{"object":{"id":"in_1"}}}`, stripe.APIVersion))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})

	event, err := svc.VerifyWebhookSignature(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, stripe.EventType("invoice.paid"), event.Type)

	_, err = svc.VerifyWebhookSignature(payload, "t=1,v1=bad")
	assert.Error(t, err)
}
