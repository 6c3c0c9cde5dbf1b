// Package handler contains the HTTP handlers for the relay billing API.
//
// This file implements the signed-in subscription endpoints. The caller's
// session cookie is relayed to the record store, which decides access.
//
// Routes (session required):
//   - GET  /api/organizations/{orgID}/subscription/preview?assetCount=N -> PreviewAssetChange
//   - POST /api/organizations/{orgID}/subscription/asset-count          -> ApplyAssetChange
//   - POST /api/organizations/{orgID}/checkout                          -> Checkout
//   - GET  /api/organizations/{orgID}/billing-adjustments               -> ListAdjustments
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/auth"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/pricing"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/service"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/subscriptionapi"
)

const (
	defaultAdjustmentPageSize = 20
	maxAdjustmentPageSize     = 100
)

// SubscriptionHandler serves the organization subscription endpoints.
type SubscriptionHandler struct {
	subscriptions service.SubscriptionService
	currency      string
	logger        *slog.Logger
	now           func() time.Time
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(subscriptions service.SubscriptionService, currency string, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		currency:      currency,
		logger:        logger,
		now:           time.Now,
	}
}

// RegisterRoutes registers subscription routes on the provided mux.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, requireSession func(http.Handler) http.Handler) {
	mux.Handle("GET /api/organizations/{orgID}/subscription/preview", requireSession(http.HandlerFunc(h.PreviewAssetChange)))
	mux.Handle("POST /api/organizations/{orgID}/subscription/asset-count", requireSession(http.HandlerFunc(h.ApplyAssetChange)))
	mux.Handle("POST /api/organizations/{orgID}/checkout", requireSession(http.HandlerFunc(h.Checkout)))
	mux.Handle("GET /api/organizations/{orgID}/billing-adjustments", requireSession(http.HandlerFunc(h.ListAdjustments)))
}

// =============================================================================
// Request and Response Types
// =============================================================================

type periodQuoteView struct {
	AssetCount            int64  `json:"assetCount"`
	TierIndex             int    `json:"tierIndex"`
	RangeLabel            string `json:"rangeLabel,omitempty"`
	PeriodTotalMinorUnits int64  `json:"periodTotalMinorUnits"`
}

type assetChangePreviewResponse struct {
	OrganizationID   uuid.UUID         `json:"organizationId"`
	Status           string            `json:"status"`
	BillingCycle     string            `json:"billingCycle"`
	CurrentPeriodEnd time.Time         `json:"currentPeriodEnd"`
	Current          periodQuoteView   `json:"current"`
	Proposed         periodQuoteView   `json:"proposed"`
	Proration        prorationResponse `json:"proration"`
	Billable         bool              `json:"billable"`
}

type assetCountRequest struct {
	AssetCount jsonCount `json:"assetCount"`
}

type adjustmentView struct {
	ID                 uuid.UUID `json:"id"`
	Status             string    `json:"status"`
	Direction          string    `json:"direction"`
	OldAssetCount      int64     `json:"oldAssetCount"`
	NewAssetCount      int64     `json:"newAssetCount"`
	BillingCycle       string    `json:"billingCycle"`
	DaysRemaining      int64     `json:"daysRemaining"`
	ProratedMinorUnits int64     `json:"proratedMinorUnits"`
	Currency           string    `json:"currency"`
	ProviderReference  string    `json:"providerReference,omitempty"`
	FailureReason      string    `json:"failureReason,omitempty"`
	CreatedAt          time.Time `json:"createdAt,omitzero"`
}

type assetChangeResponse struct {
	Preview    assetChangePreviewResponse `json:"preview"`
	AssetCount int64                      `json:"assetCount"`
	Adjustment *adjustmentView            `json:"adjustment"`
}

type checkoutRequest struct {
	AssetCount   jsonCount `json:"assetCount"`
	BillingCycle string    `json:"billingCycle"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

type adjustmentListResponse struct {
	Adjustments []adjustmentView `json:"adjustments"`
}

// =============================================================================
// Handlers
// =============================================================================

// PreviewAssetChange prices changing the organization's asset count.
func (h *SubscriptionHandler) PreviewAssetChange(w http.ResponseWriter, r *http.Request) {
	session, orgID, ok := h.requestContext(w, r)
	if !ok {
		return
	}

	count, err := pricing.ParseAssetCount(r.URL.Query().Get("assetCount"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	preview, err := h.subscriptions.PreviewAssetChange(r.Context(), session, orgID, count, h.now())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, h.newPreviewResponse(preview))
}

// ApplyAssetChange changes the organization's asset count.
func (h *SubscriptionHandler) ApplyAssetChange(w http.ResponseWriter, r *http.Request) {
	const op = "handler.apply_asset_change"

	session, orgID, ok := h.requestContext(w, r)
	if !ok {
		return
	}

	var req assetCountRequest
	if err := decodeRequest(r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	count, err := pricing.ParseAssetCount(req.AssetCount.String())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.subscriptions.ApplyAssetChange(r.Context(), session, orgID, count, h.now())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := assetChangeResponse{
		Preview:    h.newPreviewResponse(result.Preview),
		AssetCount: result.Subscription.AssetCount,
	}
	if result.Adjustment != nil {
		view := newAdjustmentView(*result.Adjustment)
		resp.Adjustment = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

// Checkout starts a hosted checkout for a new subscription.
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	const op = "handler.checkout"

	session, orgID, ok := h.requestContext(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := decodeRequest(r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	count, err := pricing.ParseAssetCount(req.AssetCount.String())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	cycle, err := domain.ParseBillingCycle(req.BillingCycle)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Wrap(err, domain.EINVALID, op, "billing cycle must be \"monthly\" or \"annual\""))
		return
	}

	url, err := h.subscriptions.Checkout(r.Context(), session, orgID, service.CheckoutRequest{
		AssetCount:   count,
		BillingCycle: cycle,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{URL: url})
}

// ListAdjustments returns the organization's billing adjustments, newest first.
func (h *SubscriptionHandler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	const op = "handler.list_adjustments"

	session, orgID, ok := h.requestContext(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", defaultAdjustmentPageSize)
	if err != nil || limit < 1 || limit > maxAdjustmentPageSize {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "limit must be between 1 and 100"))
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "offset must be a non-negative integer"))
		return
	}

	items, err := h.subscriptions.ListAdjustments(r.Context(), session, orgID, int32(limit), int32(offset))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := adjustmentListResponse{Adjustments: make([]adjustmentView, 0, len(items))}
	for _, adj := range items {
		resp.Adjustments = append(resp.Adjustments, newAdjustmentView(adj))
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Helpers
// =============================================================================

// requestContext extracts the relayed session and the organization ID.
// It writes the error response and returns ok=false when either is missing.
func (h *SubscriptionHandler) requestContext(w http.ResponseWriter, r *http.Request) (subscriptionapi.Session, uuid.UUID, bool) {
	session, ok := auth.GetSession(r.Context())
	if !ok {
		UnauthorizedResponse(w, r, h.logger)
		return subscriptionapi.Session{}, uuid.Nil, false
	}

	orgID, err := uuid.Parse(r.PathValue("orgID"))
	if err != nil {
		NotFoundResponse(w, r, h.logger)
		return subscriptionapi.Session{}, uuid.Nil, false
	}
	return session, orgID, true
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func (h *SubscriptionHandler) newPreviewResponse(p *domain.AssetChangePreview) assetChangePreviewResponse {
	return assetChangePreviewResponse{
		OrganizationID:   p.Subscription.OrganizationID,
		Status:           string(p.Subscription.Status),
		BillingCycle:     string(p.Subscription.BillingCycle),
		CurrentPeriodEnd: p.Subscription.CurrentPeriodEnd,
		Current:          newPeriodQuoteView(p.CurrentQuote),
		Proposed:         newPeriodQuoteView(p.NewQuote),
		Proration:        newProrationResponse(p.Proration, h.currency),
		Billable:         p.Billable,
	}
}

func newPeriodQuoteView(q domain.PricingQuote) periodQuoteView {
	view := periodQuoteView{
		AssetCount:            q.AssetCount,
		TierIndex:             q.MatchedTierIndex,
		PeriodTotalMinorUnits: q.TotalMinorUnits,
	}
	if len(q.Breakdown) > 0 {
		view.RangeLabel = q.Breakdown[0].RangeLabel
	}
	return view
}

func newAdjustmentView(adj domain.BillingAdjustment) adjustmentView {
	return adjustmentView{
		ID:                 adj.ID,
		Status:             string(adj.Status),
		Direction:          string(adj.Direction),
		OldAssetCount:      adj.OldAssetCount,
		NewAssetCount:      adj.NewAssetCount,
		BillingCycle:       string(adj.BillingCycle),
		DaysRemaining:      adj.DaysRemaining,
		ProratedMinorUnits: adj.ProratedMinorUnits,
		Currency:           adj.Currency,
		ProviderReference:  adj.ProviderReference,
		FailureReason:      adj.FailureReason,
		CreatedAt:          adj.CreatedAt,
	}
}
