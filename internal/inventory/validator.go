package inventory

import (
	"context"
	"fmt"

	"github.com/craftline/storefront/internal/orders"
)

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"quantity"`
}

type ItemCheck struct {
	ProductID      string `json:"product_id"`
	Available      bool   `json:"available"`
	AvailableStock *int   `json:"available_stock,omitempty"`
	Reason         string `json:"error,omitempty"`
}

type CheckResult struct {
	AllAvailable bool        `json:"all_available"`
	Items        []ItemCheck `json:"items"`
}

// ProductSource is the batch read the validator (and checkout) needs from
// the catalogue.
type ProductSource interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]orders.Product, error)
}

// Validator is the advisory pre-flight stock check. It never mutates
// anything; the Ledger is the enforcement point at deduction time.
type Validator struct {
	Products ProductSource
}

// Check reads every referenced product in one batch and reports per-item
// availability plus the aggregate verdict.
func (v *Validator) Check(ctx context.Context, items []ItemQty) (CheckResult, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := v.Products.GetByIDs(ctx, ids)
	if err != nil {
		return CheckResult{}, err
	}

	res := CheckResult{AllAvailable: true, Items: make([]ItemCheck, 0, len(items))}
	for _, it := range items {
		c := ItemCheck{ProductID: it.ProductID}
		p, ok := products[it.ProductID]
		switch {
		case !ok:
			c.Reason = "not found"
		case !p.Published:
			c.Reason = "unpublished"
		case p.Stock < it.Qty:
			stock := p.Stock
			c.AvailableStock = &stock
			c.Reason = fmt.Sprintf("insufficient stock (have %d, want %d)", p.Stock, it.Qty)
		default:
			stock := p.Stock
			c.Available = true
			c.AvailableStock = &stock
		}
		if !c.Available {
			res.AllAvailable = false
		}
		res.Items = append(res.Items, c)
	}
	return res, nil
}
