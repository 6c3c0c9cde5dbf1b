// Package handler contains the HTTP handlers for the relay billing API.
//
// This file implements the public pricing endpoints. Every caller that
// shows a price (checkout page, subscription panel, marketing site) asks
// these endpoints instead of computing one itself.
//
// Routes:
//   - GET  /api/pricing/tiers     -> Tiers
//   - POST /api/pricing/preview   -> Preview
//   - POST /api/pricing/proration -> Proration
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/pricing"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/service"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 64 << 10

// PricingHandler serves the pricing endpoints.
type PricingHandler struct {
	pricing service.PricingService
	logger  *slog.Logger
}

// NewPricingHandler creates a new PricingHandler.
func NewPricingHandler(pricingService service.PricingService, logger *slog.Logger) *PricingHandler {
	return &PricingHandler{
		pricing: pricingService,
		logger:  logger,
	}
}

// RegisterRoutes registers pricing routes on the provided mux.
// limit wraps each route, typically with a per-IP rate limiter.
func (h *PricingHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.Handle("GET /api/pricing/tiers", limit(http.HandlerFunc(h.Tiers)))
	mux.Handle("POST /api/pricing/preview", limit(http.HandlerFunc(h.Preview)))
	mux.Handle("POST /api/pricing/proration", limit(http.HandlerFunc(h.Proration)))
}

// =============================================================================
// Request and Response Types
// =============================================================================

type tierView struct {
	TierIndex  int    `json:"tierIndex"`
	RangeLabel string `json:"rangeLabel"`
	LowerBound int64  `json:"lowerBound"`
	// UpperBound is null for the last, unbounded tier.
	UpperBound          *int64 `json:"upperBound"`
	UnitPriceMinorUnits int64  `json:"unitPriceMinorUnits"`
	Label               string `json:"label,omitempty"`
}

type tiersResponse struct {
	Currency              string     `json:"currency"`
	AnnualDiscountPercent int64      `json:"annualDiscountPercent"`
	Version               string     `json:"version"`
	Tiers                 []tierView `json:"tiers"`
}

type previewRequest struct {
	AssetCount   jsonCount `json:"assetCount"`
	BillingCycle string    `json:"billingCycle,omitempty"`
}

type breakdownRowView struct {
	TierIndex           int    `json:"tierIndex"`
	RangeLabel          string `json:"rangeLabel"`
	UnitPriceMinorUnits int64  `json:"unitPriceMinorUnits"`
	Quantity            int64  `json:"quantity"`
	SubtotalMinorUnits  int64  `json:"subtotalMinorUnits"`
}

type savingsView struct {
	NextTierThreshold       int64 `json:"nextTierThreshold"`
	SavingsAmountMinorUnits int64 `json:"savingsAmountMinorUnits"`
}

type quoteResponse struct {
	AssetCount                      int64              `json:"assetCount"`
	Currency                        string             `json:"currency"`
	EstimatedMonthlyTotalMinorUnits int64              `json:"estimatedMonthlyTotalMinorUnits"`
	TierBreakdown                   []breakdownRowView `json:"tierBreakdown"`
	PotentialSavings                *savingsView       `json:"potentialSavings,omitempty"`
	// Set when the request named a billing cycle.
	BillingCycle          string `json:"billingCycle,omitempty"`
	PeriodTotalMinorUnits *int64 `json:"periodTotalMinorUnits,omitempty"`
}

type prorationRequest struct {
	OldAssetCount jsonCount `json:"oldAssetCount"`
	NewAssetCount jsonCount `json:"newAssetCount"`
	BillingCycle  string    `json:"billingCycle"`
	DaysRemaining jsonCount `json:"daysRemaining"`
}

type prorationResponse struct {
	OldTotalMinorUnits     int64  `json:"oldTotalMinorUnits"`
	NewTotalMinorUnits     int64  `json:"newTotalMinorUnits"`
	DeltaMinorUnits        int64  `json:"deltaMinorUnits"`
	ProratedMinorUnits     int64  `json:"proratedMinorUnits"`
	Direction              string `json:"direction"`
	BillingCycle           string `json:"billingCycle"`
	DaysRemaining          int64  `json:"daysRemaining"`
	BillingCycleLengthDays int64  `json:"billingCycleLengthDays"`
	Currency               string `json:"currency"`
}

// =============================================================================
// Handlers
// =============================================================================

// Tiers returns the tier table.
func (h *PricingHandler) Tiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newTiersResponse(h.pricing.Tiers()))
}

// Preview prices an asset count.
func (h *PricingHandler) Preview(w http.ResponseWriter, r *http.Request) {
	const op = "handler.pricing_preview"

	var req previewRequest
	if err := decodeRequest(r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	count, err := pricing.ParseAssetCount(req.AssetCount.String())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	quote, err := h.pricing.Quote(r.Context(), count)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	resp := newQuoteResponse(quote, h.pricing.Tiers().Currency())

	if req.BillingCycle != "" {
		cycle, err := domain.ParseBillingCycle(req.BillingCycle)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Wrap(err, domain.EINVALID, op, "billing cycle must be \"monthly\" or \"annual\""))
			return
		}
		period, err := h.pricing.PeriodQuote(r.Context(), count, cycle)
		if err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		resp.BillingCycle = string(cycle)
		resp.PeriodTotalMinorUnits = &period.TotalMinorUnits
	}

	writeJSON(w, http.StatusOK, resp)
}

// Proration prices a mid-cycle asset count change.
func (h *PricingHandler) Proration(w http.ResponseWriter, r *http.Request) {
	const op = "handler.pricing_proration"

	var req prorationRequest
	if err := decodeRequest(r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	oldCount, err := pricing.ParseAssetCount(req.OldAssetCount.String())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	newCount, err := pricing.ParseAssetCount(req.NewAssetCount.String())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	cycle, err := domain.ParseBillingCycle(req.BillingCycle)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Wrap(err, domain.EINVALID, op, "billing cycle must be \"monthly\" or \"annual\""))
		return
	}
	days, err := strconv.ParseInt(strings.TrimSpace(req.DaysRemaining.String()), 10, 64)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Wrap(domain.ErrInvalidDaysRemaining, domain.EINVALID, op, "days remaining must be a whole number"))
		return
	}

	proration, err := h.pricing.Prorate(r.Context(), service.ProrationRequest{
		OldAssetCount: oldCount,
		NewAssetCount: newCount,
		BillingCycle:  cycle,
		DaysRemaining: days,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newProrationResponse(proration, h.pricing.Tiers().Currency()))
}

// =============================================================================
// Helpers
// =============================================================================

var errQuotedNumber = errors.New("counts must be JSON numbers, not strings")

// jsonCount holds a JSON number literal verbatim so fractional counts can be
// rejected rather than truncated. Strings are refused.
type jsonCount string

func (c *jsonCount) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return errQuotedNumber
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = jsonCount(n)
	return nil
}

func (c jsonCount) String() string { return string(c) }

// decodeRequest decodes the body into v, turning decode failures into an
// EINVALID error for op.
func decodeRequest(r *http.Request, op string, v any) error {
	err := decodeJSON(r, v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errQuotedNumber):
		return domain.Wrap(err, domain.EINVALID, op, errQuotedNumber.Error())
	default:
		return domain.Wrap(err, domain.EINVALID, op, "request body must be a JSON object")
	}
}

// decodeJSON decodes a bounded JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return err
	}
	return nil
}

func newTiersResponse(table *pricing.TierTable) tiersResponse {
	resp := tiersResponse{
		Currency:              table.Currency(),
		AnnualDiscountPercent: table.AnnualDiscountPercent(),
		Version:               table.Version(),
		Tiers:                 make([]tierView, 0, table.Len()),
	}
	for i, tier := range table.Tiers() {
		view := tierView{
			TierIndex:           i,
			RangeLabel:          table.RangeLabel(i),
			LowerBound:          table.LowerBound(i),
			UnitPriceMinorUnits: tier.UnitPriceMinorUnits,
			Label:               tier.Label,
		}
		if !tier.IsUnbounded() {
			upper := tier.UpperBound
			view.UpperBound = &upper
		}
		resp.Tiers = append(resp.Tiers, view)
	}
	return resp
}

func newQuoteResponse(q domain.PricingQuote, currency string) quoteResponse {
	resp := quoteResponse{
		AssetCount:                      q.AssetCount,
		Currency:                        currency,
		EstimatedMonthlyTotalMinorUnits: q.TotalMinorUnits,
		TierBreakdown:                   make([]breakdownRowView, 0, len(q.Breakdown)),
	}
	for _, row := range q.Breakdown {
		resp.TierBreakdown = append(resp.TierBreakdown, breakdownRowView(row))
	}
	if q.PotentialSavings != nil {
		resp.PotentialSavings = &savingsView{
			NextTierThreshold:       q.PotentialSavings.NextTierThreshold,
			SavingsAmountMinorUnits: q.PotentialSavings.SavingsAmountMinorUnits,
		}
	}
	return resp
}

func newProrationResponse(p domain.ProrationQuote, currency string) prorationResponse {
	return prorationResponse{
		OldTotalMinorUnits:     p.OldTotalMinorUnits,
		NewTotalMinorUnits:     p.NewTotalMinorUnits,
		DeltaMinorUnits:        p.DeltaMinorUnits,
		ProratedMinorUnits:     p.ProratedMinorUnits,
		Direction:              string(p.Direction),
		BillingCycle:           string(p.BillingCycle),
		DaysRemaining:          p.DaysRemainingInPeriod,
		BillingCycleLengthDays: p.BillingCycleLengthDays,
		Currency:               currency,
	}
}
