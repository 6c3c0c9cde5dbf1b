package pricing

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

// unboundedKeyword is how the unbounded tier is written in a tier document.
const unboundedKeyword = "unbounded"

// TierDocument is the YAML form of a tier table, so tiers can be adjusted
// without touching calculation code:
//
//	currency: gbp
//	annual_discount_percent: 20
//	tiers:
//	  - up_to: 25
//	    unit_price: 499
//	    label: Starter
//	  - up_to: unbounded
//	    unit_price: 349
type TierDocument struct {
	Currency              string         `yaml:"currency"`
	AnnualDiscountPercent int64          `yaml:"annual_discount_percent"`
	Tiers                 []TierDocEntry `yaml:"tiers"`
}

// TierDocEntry is one tier in a TierDocument.
type TierDocEntry struct {
	UpTo      UpperBound `yaml:"up_to"`
	UnitPrice int64      `yaml:"unit_price"`
	Label     string     `yaml:"label,omitempty"`
}

// UpperBound is an inclusive asset limit that may be written as "unbounded".
type UpperBound int64

// UnmarshalYAML accepts an integer or the keyword "unbounded".
func (u *UpperBound) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: up_to must be an integer or %q", node.Line, unboundedKeyword)
	}
	value := strings.TrimSpace(node.Value)
	if strings.EqualFold(value, unboundedKeyword) {
		*u = UpperBound(domain.Unbounded)
		return nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("line %d: up_to must be an integer or %q, got %q", node.Line, unboundedKeyword, node.Value)
	}
	*u = UpperBound(n)
	return nil
}

// MarshalYAML writes the unbounded sentinel as the keyword.
func (u UpperBound) MarshalYAML() (interface{}, error) {
	if int64(u) == domain.Unbounded {
		return unboundedKeyword, nil
	}
	return int64(u), nil
}

// ParseTierDocument decodes and validates a YAML tier document.
func ParseTierDocument(data []byte) (*TierTable, error) {
	var doc TierDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidTierTable, err)
	}
	return doc.Table()
}

// Table validates the document and converts it to a TierTable.
func (d TierDocument) Table() (*TierTable, error) {
	tiers := make([]domain.PricingTier, 0, len(d.Tiers))
	for _, entry := range d.Tiers {
		tiers = append(tiers, domain.PricingTier{
			UpperBound:          int64(entry.UpTo),
			UnitPriceMinorUnits: entry.UnitPrice,
			Label:               entry.Label,
		})
	}
	return NewTierTable(tiers, TableOptions{
		Currency:              d.Currency,
		AnnualDiscountPercent: d.AnnualDiscountPercent,
	})
}

// Document converts the table back to its YAML form.
func (t *TierTable) Document() TierDocument {
	doc := TierDocument{
		Currency:              t.currency,
		AnnualDiscountPercent: t.annualDiscountPercent,
		Tiers:                 make([]TierDocEntry, 0, len(t.tiers)),
	}
	for _, tier := range t.tiers {
		doc.Tiers = append(doc.Tiers, TierDocEntry{
			UpTo:      UpperBound(tier.UpperBound),
			UnitPrice: tier.UnitPriceMinorUnits,
			Label:     tier.Label,
		})
	}
	return doc
}

// MarshalTierDocument encodes the table as YAML.
func MarshalTierDocument(t *TierTable) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t.Document()); err != nil {
		return nil, fmt.Errorf("encode tier document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode tier document: %w", err)
	}
	return buf.Bytes(), nil
}
