// Package billing is the boundary to the payment processor (Stripe).
//
// Amounts arrive here already computed by the pricing engine, in minor
// units. This package never prices anything; it only moves money.
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customerbalancetransaction"
	"github.com/stripe/stripe-go/v79/invoice"
	"github.com/stripe/stripe-go/v79/invoiceitem"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

// MetadataAdjustmentID tags provider objects created for an adjustment so
// webhooks can find their way back to it.
const MetadataAdjustmentID = "adjustment_id"

// MetadataOrganizationID tags checkout sessions and subscriptions.
const MetadataOrganizationID = "organization_id"

var (
	// ErrPaymentDeclined means the customer's payment method was refused.
	ErrPaymentDeclined = errors.New("payment declined")

	// ErrRejected means the provider refused the request itself; resending
	// it unchanged will not help.
	ErrRejected = errors.New("billing provider rejected the request")
)

// Service defines the interface for billing operations.
type Service interface {
	// CreateCheckoutSession creates a hosted checkout for a new subscription.
	// Returns the checkout URL to redirect the user to.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)

	// ApplyAdjustment charges or credits a prorated amount.
	// A charge is invoiced and collected immediately; a credit is added to
	// the customer's balance and consumed by the next invoice.
	ApplyAdjustment(ctx context.Context, params AdjustmentParams) (*AdjustmentResult, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

// CheckoutParams describes a new subscription at a quoted price.
type CheckoutParams struct {
	OrganizationID uuid.UUID
	CustomerID     string // optional; Stripe creates a customer when empty
	AssetCount     int64
	BillingCycle   domain.BillingCycle
	// PeriodTotalMinorUnits is what one full billing period costs.
	PeriodTotalMinorUnits int64
	Currency              string
	ProductName           string
	SuccessURL            string
	CancelURL             string
}

// AdjustmentParams describes a prorated charge or credit.
type AdjustmentParams struct {
	AdjustmentID uuid.UUID
	CustomerID   string
	// AmountMinorUnits is signed: positive charges, negative credits.
	AmountMinorUnits int64
	Currency         string
	Description      string
}

// AdjustmentResult reports what the provider did.
type AdjustmentResult struct {
	// Reference is the provider object ID (invoice or balance transaction).
	Reference string
	// Settled is true when no further confirmation is expected.
	Settled bool
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string) Service {
	stripe.Key = secretKey

	return &stripeService{
		webhookSecret: webhookSecret,
	}
}

func (s *stripeService) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	interval := stripe.PriceRecurringIntervalMonth
	if p.BillingCycle == domain.BillingCycleAnnual {
		interval = stripe.PriceRecurringIntervalYear
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(p.OrganizationID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.Currency),
					UnitAmount: stripe.Int64(p.PeriodTotalMinorUnits),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%s (%d assets)", p.ProductName, p.AssetCount)),
					},
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(string(interval)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				MetadataOrganizationID: p.OrganizationID.String(),
				"asset_count":          fmt.Sprintf("%d", p.AssetCount),
				"billing_cycle":        string(p.BillingCycle),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	params.Context = ctx
	params.AddMetadata(MetadataOrganizationID, p.OrganizationID.String())

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", classify(err))
	}
	return sess.URL, nil
}

func (s *stripeService) ApplyAdjustment(ctx context.Context, p AdjustmentParams) (*AdjustmentResult, error) {
	switch {
	case p.AmountMinorUnits > 0:
		return s.charge(ctx, p)
	case p.AmountMinorUnits < 0:
		return s.credit(ctx, p)
	default:
		return &AdjustmentResult{Settled: true}, nil
	}
}

// charge invoices the amount on its own invoice and collects it now.
// Every call carries an idempotency key derived from the adjustment, so a
// retried job replays the same Stripe objects instead of charging twice.
func (s *stripeService) charge(ctx context.Context, p AdjustmentParams) (*AdjustmentResult, error) {
	key := p.AdjustmentID.String()

	invParams := &stripe.InvoiceParams{
		Customer:                    stripe.String(p.CustomerID),
		AutoAdvance:                 stripe.Bool(false),
		CollectionMethod:            stripe.String(string(stripe.InvoiceCollectionMethodChargeAutomatically)),
		PendingInvoiceItemsBehavior: stripe.String("exclude"),
		Description:                 stripe.String(p.Description),
	}
	invParams.Context = ctx
	invParams.SetIdempotencyKey(key + "-invoice")
	invParams.AddMetadata(MetadataAdjustmentID, key)

	inv, err := invoice.New(invParams)
	if err != nil {
		return nil, fmt.Errorf("stripe create invoice: %w", classify(err))
	}

	itemParams := &stripe.InvoiceItemParams{
		Customer:    stripe.String(p.CustomerID),
		Invoice:     stripe.String(inv.ID),
		Amount:      stripe.Int64(p.AmountMinorUnits),
		Currency:    stripe.String(p.Currency),
		Description: stripe.String(p.Description),
	}
	itemParams.Context = ctx
	itemParams.SetIdempotencyKey(key + "-item")
	itemParams.AddMetadata(MetadataAdjustmentID, key)

	if _, err := invoiceitem.New(itemParams); err != nil {
		return nil, fmt.Errorf("stripe create invoice item: %w", classify(err))
	}

	finalizeParams := &stripe.InvoiceFinalizeInvoiceParams{AutoAdvance: stripe.Bool(false)}
	finalizeParams.Context = ctx
	finalizeParams.SetIdempotencyKey(key + "-finalize")
	if _, err := invoice.FinalizeInvoice(inv.ID, finalizeParams); err != nil {
		return nil, fmt.Errorf("stripe finalize invoice: %w", classify(err))
	}

	payParams := &stripe.InvoicePayParams{}
	payParams.Context = ctx
	payParams.SetIdempotencyKey(key + "-pay")
	paid, err := invoice.Pay(inv.ID, payParams)
	if err != nil {
		// The invoice exists either way; hand back its ID so it can be traced.
		return &AdjustmentResult{Reference: inv.ID}, fmt.Errorf("stripe pay invoice: %w", classify(err))
	}

	return &AdjustmentResult{
		Reference: inv.ID,
		Settled:   paid.Status == stripe.InvoiceStatusPaid,
	}, nil
}

// credit adds the (negative) amount to the customer's balance.
func (s *stripeService) credit(ctx context.Context, p AdjustmentParams) (*AdjustmentResult, error) {
	params := &stripe.CustomerBalanceTransactionParams{
		Customer:    stripe.String(p.CustomerID),
		Amount:      stripe.Int64(p.AmountMinorUnits),
		Currency:    stripe.String(p.Currency),
		Description: stripe.String(p.Description),
	}
	params.Context = ctx
	params.SetIdempotencyKey(p.AdjustmentID.String() + "-credit")
	params.AddMetadata(MetadataAdjustmentID, p.AdjustmentID.String())

	txn, err := customerbalancetransaction.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create balance credit: %w", classify(err))
	}
	return &AdjustmentResult{Reference: txn.ID, Settled: true}, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

// classify maps Stripe API errors onto ErrPaymentDeclined and ErrRejected.
// Rate limits, server errors and network failures are returned as-is and
// are worth retrying.
func classify(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return err
	}
	if stripeErr.Type == stripe.ErrorTypeCard {
		return fmt.Errorf("%w: %s", ErrPaymentDeclined, stripeErr.Msg)
	}
	status := stripeErr.HTTPStatusCode
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests && status != http.StatusConflict {
		return fmt.Errorf("%w: %s", ErrRejected, stripeErr.Msg)
	}
	return err
}

// IsPermanent reports whether retrying err cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPaymentDeclined) || errors.Is(err, ErrRejected)
}
