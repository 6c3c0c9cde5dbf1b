// Package mock is a billing.Service that records calls instead of moving
// money. It is used in development when Stripe is not configured, and in tests.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/stripe/stripe-go/v79"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/billing"
)

// Provider is a mock billing provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	CheckoutURL      string
	CheckoutError    error
	AdjustmentResult *billing.AdjustmentResult
	AdjustmentError  error
	WebhookError     error

	// Call tracking for testing
	CheckoutCalls   []billing.CheckoutParams
	AdjustmentCalls []billing.AdjustmentParams
}

// New creates a new mock billing provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// CreateCheckoutSession records the request and returns a fake URL.
func (p *Provider) CreateCheckoutSession(ctx context.Context, params billing.CheckoutParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.CheckoutCalls = append(p.CheckoutCalls, params)
	if p.CheckoutError != nil {
		return "", p.CheckoutError
	}
	if p.CheckoutURL != "" {
		return p.CheckoutURL, nil
	}

	p.logger.Info("mock checkout session created",
		"organization_id", params.OrganizationID,
		"amount", params.PeriodTotalMinorUnits,
		"currency", params.Currency,
		"billing_cycle", params.BillingCycle,
	)
	return fmt.Sprintf("https://checkout.example.test/%s", params.OrganizationID), nil
}

// ApplyAdjustment records the request and reports it settled.
func (p *Provider) ApplyAdjustment(ctx context.Context, params billing.AdjustmentParams) (*billing.AdjustmentResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.AdjustmentCalls = append(p.AdjustmentCalls, params)
	if p.AdjustmentError != nil {
		return p.AdjustmentResult, p.AdjustmentError
	}
	if p.AdjustmentResult != nil {
		return p.AdjustmentResult, nil
	}

	p.logger.Info("mock adjustment applied",
		"adjustment_id", params.AdjustmentID,
		"amount", params.AmountMinorUnits,
		"currency", params.Currency,
	)
	return &billing.AdjustmentResult{
		Reference: "mock_" + params.AdjustmentID.String(),
		Settled:   true,
	}, nil
}

// VerifyWebhookSignature skips verification and decodes the payload as an event.
func (p *Provider) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	p.mu.Lock()
	webhookErr := p.WebhookError
	p.mu.Unlock()

	if webhookErr != nil {
		return stripe.Event{}, webhookErr
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripe.Event{}, fmt.Errorf("decode webhook event: %w", err)
	}
	return event, nil
}

// Adjustments returns a copy of the recorded adjustment calls.
func (p *Provider) Adjustments() []billing.AdjustmentParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]billing.AdjustmentParams, len(p.AdjustmentCalls))
	copy(out, p.AdjustmentCalls)
	return out
}

// Reset clears call tracking and custom responses for testing
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CheckoutURL = ""
	p.CheckoutError = nil
	p.AdjustmentResult = nil
	p.AdjustmentError = nil
	p.WebhookError = nil
	p.CheckoutCalls = nil
	p.AdjustmentCalls = nil
}

var _ billing.Service = (*Provider)(nil)
