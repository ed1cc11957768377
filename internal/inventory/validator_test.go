package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/craftline/storefront/internal/orders"
)

type staticProducts map[string]orders.Product

func (s staticProducts) GetByIDs(ctx context.Context, ids []string) (map[string]orders.Product, error) {
	out := map[string]orders.Product{}
	for _, id := range ids {
		if p, ok := s[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func TestValidatorCheck(t *testing.T) {
	v := &Validator{Products: staticProducts{
		"prod-a": {ID: "prod-a", Stock: 5, Published: true},
		"prod-b": {ID: "prod-b", Stock: 2, Published: true},
		"prod-c": {ID: "prod-c", Stock: 9, Published: false},
	}}

	res, err := v.Check(context.Background(), []ItemQty{
		{ProductID: "prod-a", Qty: 5},
		{ProductID: "prod-b", Qty: 3},
		{ProductID: "prod-c", Qty: 1},
		{ProductID: "prod-x", Qty: 1},
	})
	require.NoError(t, err)
	require.False(t, res.AllAvailable)
	require.Len(t, res.Items, 4)

	require.True(t, res.Items[0].Available)
	require.NotNil(t, res.Items[0].AvailableStock)
	require.Equal(t, 5, *res.Items[0].AvailableStock)

	require.False(t, res.Items[1].Available)
	require.Equal(t, "insufficient stock (have 2, want 3)", res.Items[1].Reason)

	require.False(t, res.Items[2].Available)
	require.Equal(t, "unpublished", res.Items[2].Reason)

	require.False(t, res.Items[3].Available)
	require.Equal(t, "not found", res.Items[3].Reason)
}

func TestValidatorAllAvailable(t *testing.T) {
	v := &Validator{Products: staticProducts{
		"prod-a": {ID: "prod-a", Stock: 5, Published: true},
	}}
	res, err := v.Check(context.Background(), []ItemQty{{ProductID: "prod-a", Qty: 5}})
	require.NoError(t, err)
	require.True(t, res.AllAvailable)
}

func TestInsufficientStockErrorNamesProducts(t *testing.T) {
	err := &InsufficientStockError{
		OrderID: "ord-1",
		Items: []ShortItem{
			{ProductID: "prod-a", Required: 5, Available: 3},
			{ProductID: "prod-b", Required: 1, Available: 0},
		},
	}
	require.Contains(t, err.Error(), "ord-1")
	require.Contains(t, err.Error(), "prod-a (have 3, want 5)")
	require.Contains(t, err.Error(), "prod-b (have 0, want 1)")
}
