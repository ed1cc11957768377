package checkout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/craftline/storefront/internal/config"
)

func testPricing() config.Pricing {
	return config.Pricing{
		TaxRate:                   0.08,
		DomesticShippingMin:       800,
		DomesticShippingRate:      0.05,
		InternationalShippingMin:  2500,
		InternationalShippingRate: 0.12,
	}
}

func TestPriceDomesticFloor(t *testing.T) {
	// 2x1000: 5% of 2000 is 100, below the 800 floor
	q, err := Price(testPricing(), []PricedItem{{ProductID: "a", Qty: 2, UnitPriceCents: 1000}}, ShippingDomestic, nil)
	require.NoError(t, err)
	require.Equal(t, 2000, q.SubtotalCents)
	require.Equal(t, 160, q.TaxCents)
	require.Equal(t, 800, q.ShippingCents)
	require.Equal(t, 2960, q.TotalCents)
}

func TestPriceDomesticAboveFloor(t *testing.T) {
	q, err := Price(testPricing(), []PricedItem{{ProductID: "a", Qty: 1, UnitPriceCents: 100000}}, ShippingDomestic, nil)
	require.NoError(t, err)
	require.Equal(t, 5000, q.ShippingCents)
}

func TestPriceInternationalFloor(t *testing.T) {
	q, err := Price(testPricing(), []PricedItem{{ProductID: "a", Qty: 1, UnitPriceCents: 1000}}, ShippingInternational, nil)
	require.NoError(t, err)
	require.Equal(t, 2500, q.ShippingCents)
	require.Equal(t, 1000+80+2500, q.TotalCents)
}

func TestPriceShippingOverride(t *testing.T) {
	override := 0
	q, err := Price(testPricing(), []PricedItem{{ProductID: "a", Qty: 2, UnitPriceCents: 1000}}, ShippingDomestic, &override)
	require.NoError(t, err)
	require.Equal(t, 0, q.ShippingCents)
	require.Equal(t, 2160, q.TotalCents)
}

func TestPriceUnknownMethod(t *testing.T) {
	_, err := Price(testPricing(), []PricedItem{{ProductID: "a", Qty: 1, UnitPriceCents: 100}}, ShippingMethod("carrier-pigeon"), nil)
	require.Error(t, err)
}

func TestPricingIdentity(t *testing.T) {
	carts := [][]PricedItem{
		{{ProductID: "a", Qty: 1, UnitPriceCents: 1}},
		{{ProductID: "a", Qty: 3, UnitPriceCents: 333}},
		{{ProductID: "a", Qty: 2, UnitPriceCents: 1000}, {ProductID: "b", Qty: 1, UnitPriceCents: 4999}},
		{{ProductID: "a", Qty: 7, UnitPriceCents: 12345}},
	}
	for _, items := range carts {
		for _, m := range []ShippingMethod{ShippingDomestic, ShippingInternational} {
			q, err := Price(testPricing(), items, m, nil)
			require.NoError(t, err)
			require.Equal(t, q.TotalCents, q.SubtotalCents+q.TaxCents+q.ShippingCents)
		}
	}
}
