// Package subscriptionapi is a client for the external subscription record
// store, the source of truth for an organization's asset count, billing
// cycle and current period end.
//
// Requests are made on behalf of the signed-in user: the caller's session
// cookie is forwarded unchanged, and the record store enforces access.
package subscriptionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

// Session is the caller's credential relayed to the record store.
type Session struct {
	CookieName  string
	CookieValue string
}

// Config configures a Client.
type Config struct {
	BaseURL        string
	MaxRetries     int
	RetryBaseDelay time.Duration
	RequestTimeout time.Duration
}

// Client talks to the record store over HTTP.
type Client struct {
	baseURL *url.URL
	config  Config
	client  *http.Client
	logger  *slog.Logger
}

// errTransient marks failures worth retrying: network errors, 429 and 5xx.
var errTransient = errors.New("record store unavailable")

// New creates a Client.
func New(config Config, logger *slog.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("record store base URL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(config.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid record store base URL %q", config.BaseURL)
	}

	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseDelay == 0 {
		config.RetryBaseDelay = 200 * time.Millisecond
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 10 * time.Second
	}

	return &Client{
		baseURL: base,
		config:  config,
		client:  &http.Client{Timeout: config.RequestTimeout},
		logger:  logger,
	}, nil
}

// subscriptionBody is the record store's JSON representation.
type subscriptionBody struct {
	OrganizationID       string    `json:"organizationId"`
	AssetCount           int64     `json:"assetCount"`
	BillingCycle         string    `json:"billingCycle"`
	Status               string    `json:"status"`
	CurrentPeriodEnd     time.Time `json:"currentPeriodEnd"`
	StripeCustomerID     string    `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId,omitempty"`
}

func (b subscriptionBody) toDomain(orgID uuid.UUID) (*domain.Subscription, error) {
	cycle, err := domain.ParseBillingCycle(b.BillingCycle)
	if err != nil {
		// A free plan may have no cycle; treat it as monthly for pricing.
		if domain.SubscriptionStatus(b.Status) != domain.SubscriptionStatusFree {
			return nil, fmt.Errorf("record store returned billing cycle %q: %w", b.BillingCycle, err)
		}
		cycle = domain.BillingCycleMonthly
	}
	if b.OrganizationID != "" {
		parsed, err := uuid.Parse(b.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("record store returned organization id %q: %w", b.OrganizationID, err)
		}
		orgID = parsed
	}
	return &domain.Subscription{
		OrganizationID:       orgID,
		AssetCount:           b.AssetCount,
		BillingCycle:         cycle,
		Status:               domain.SubscriptionStatus(b.Status),
		CurrentPeriodEnd:     b.CurrentPeriodEnd,
		StripeCustomerID:     b.StripeCustomerID,
		StripeSubscriptionID: b.StripeSubscriptionID,
	}, nil
}

// GetSubscription fetches the organization's subscription.
func (c *Client) GetSubscription(ctx context.Context, session Session, orgID uuid.UUID) (*domain.Subscription, error) {
	const op = "subscriptionapi.get_subscription"

	var body subscriptionBody
	if err := c.do(ctx, op, session, http.MethodGet, c.subscriptionURL(orgID), nil, &body); err != nil {
		return nil, err
	}
	sub, err := body.toDomain(orgID)
	if err != nil {
		return nil, domain.Internal(err, op, "unexpected subscription record")
	}
	return sub, nil
}

// UpdateAssetCount records a new asset count and returns the updated record.
func (c *Client) UpdateAssetCount(ctx context.Context, session Session, orgID uuid.UUID, assetCount int64) (*domain.Subscription, error) {
	const op = "subscriptionapi.update_asset_count"

	payload := map[string]int64{"assetCount": assetCount}
	var body subscriptionBody
	if err := c.do(ctx, op, session, http.MethodPatch, c.subscriptionURL(orgID), payload, &body); err != nil {
		return nil, err
	}
	sub, err := body.toDomain(orgID)
	if err != nil {
		return nil, domain.Internal(err, op, "unexpected subscription record")
	}
	return sub, nil
}

func (c *Client) subscriptionURL(orgID uuid.UUID) string {
	return c.baseURL.JoinPath("organizations", orgID.String(), "subscription").String()
}

// do executes a request with exponential backoff retry on transient errors.
func (c *Client) do(ctx context.Context, op string, session Session, method, target string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return domain.Internal(err, op, "failed to encode request")
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		err := c.execute(ctx, op, session, method, target, body, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.Is(err, errTransient) || attempt >= c.config.MaxRetries {
			break
		}

		delay := c.config.RetryBaseDelay * time.Duration(1<<(attempt-1))
		c.logger.Info("retrying record store request",
			"method", method,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.Unavailable(ctx.Err(), op, "subscription service is unavailable")
		}
	}

	if errors.Is(lastErr, errTransient) {
		return domain.Unavailable(lastErr, op, "subscription service is unavailable")
	}
	return lastErr
}

func (c *Client) execute(ctx context.Context, op string, session Session, method, target string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return domain.Internal(err, op, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session.CookieValue != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: session.CookieValue})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Network errors are typically retryable
		return fmt.Errorf("%w: %v", errTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response body: %v", errTransient, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapHTTPError(op, resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return domain.Internal(err, op, "failed to decode subscription record")
		}
	}
	return nil
}

// apiErrorBody is the record store's error envelope.
type apiErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// mapHTTPError maps record store status codes to domain errors.
func mapHTTPError(op string, statusCode int, body []byte) error {
	var errResp apiErrorBody
	_ = json.Unmarshal(body, &errResp)
	message := errResp.Message
	if message == "" {
		message = errResp.Error
	}

	switch {
	case statusCode == http.StatusUnauthorized:
		return domain.Unauthorized(op, "session is missing or expired")
	case statusCode == http.StatusForbidden:
		return domain.Forbidden(op, "not allowed to manage this organization's subscription")
	case statusCode == http.StatusNotFound:
		return domain.Errorf(domain.ENOTFOUND, op, "subscription not found")
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		if message == "" {
			message = "subscription update was rejected"
		}
		return domain.Invalid(op, message)
	case statusCode == http.StatusConflict:
		return domain.Conflict(op, "subscription was modified concurrently")
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return fmt.Errorf("%w: status %d", errTransient, statusCode)
	default:
		return domain.Internal(fmt.Errorf("unexpected status %d: %s", statusCode, message), op, "unexpected response from subscription service")
	}
}
