package checkout

import (
	"fmt"
	"math"

	"github.com/craftline/storefront/internal/config"
)

type ShippingMethod string

const (
	ShippingDomestic      ShippingMethod = "domestic"
	ShippingInternational ShippingMethod = "international"
)

func (m ShippingMethod) Valid() bool {
	return m == ShippingDomestic || m == ShippingInternational
}

type Quote struct {
	SubtotalCents int `json:"subtotal_cents"`
	TaxCents      int `json:"tax_cents"`
	ShippingCents int `json:"shipping_cents"`
	TotalCents    int `json:"total_cents"`
}

type PricedItem struct {
	ProductID      string
	Qty            int
	UnitPriceCents int
}

// Price computes the deterministic monetary breakdown. A non-nil override
// replaces the method-derived shipping amount.
func Price(p config.Pricing, items []PricedItem, method ShippingMethod, overrideCents *int) (Quote, error) {
	if !method.Valid() {
		return Quote{}, fmt.Errorf("unknown shipping method %q", method)
	}

	var q Quote
	for _, it := range items {
		q.SubtotalCents += it.UnitPriceCents * it.Qty
	}
	q.TaxCents = int(math.Round(float64(q.SubtotalCents) * p.TaxRate))

	switch {
	case overrideCents != nil:
		q.ShippingCents = *overrideCents
	case method == ShippingDomestic:
		q.ShippingCents = max(p.DomesticShippingMin, int(math.Round(float64(q.SubtotalCents)*p.DomesticShippingRate)))
	default:
		q.ShippingCents = max(p.InternationalShippingMin, int(math.Round(float64(q.SubtotalCents)*p.InternationalShippingRate)))
	}

	q.TotalCents = q.SubtotalCents + q.TaxCents + q.ShippingCents
	return q, nil
}
