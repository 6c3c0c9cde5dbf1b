package metrics

import (
	"strconv"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

// QuoteComputed records a successful quote against its matched tier.
func QuoteComputed(tierIndex int) {
	QuotesTotal.WithLabelValues(strconv.Itoa(tierIndex)).Inc()
}

// QuoteRejected records a pricing request that failed validation.
func QuoteRejected(reason string) {
	QuoteErrorsTotal.WithLabelValues(reason).Inc()
}

// ProrationComputed records a proration by cycle and direction.
func ProrationComputed(cycle domain.BillingCycle, direction domain.Direction) {
	ProrationsTotal.WithLabelValues(string(cycle), string(direction)).Inc()
}

// CacheLookup records a quote cache lookup: "hit", "miss" or "error".
func CacheLookup(result string) {
	QuoteCacheRequests.WithLabelValues(result).Inc()
}

// AdjustmentRecorded records an adjustment reaching status, and for money
// actually handed to the provider, its absolute amount.
func AdjustmentRecorded(adj *domain.BillingAdjustment) {
	BillingAdjustmentsTotal.WithLabelValues(string(adj.Direction), string(adj.Status)).Inc()
	if adj.Status != domain.AdjustmentStatusSubmitted || adj.ProratedMinorUnits == 0 {
		return
	}
	amount := adj.ProratedMinorUnits
	if amount < 0 {
		amount = -amount
	}
	BillingAdjustmentMinorUnits.WithLabelValues(adj.Currency, string(adj.Direction)).Add(float64(amount))
}

// CheckoutCreated records a new checkout session.
func CheckoutCreated(cycle domain.BillingCycle) {
	CheckoutSessionsTotal.WithLabelValues(string(cycle)).Inc()
}

// RecordStoreRequest records the outcome of a record store call.
func RecordStoreRequest(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = domain.ErrorCode(err)
	}
	RecordStoreRequests.WithLabelValues(operation, outcome).Inc()
}
