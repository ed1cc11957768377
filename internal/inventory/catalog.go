package inventory

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftline/storefront/internal/orders"
)

// Catalog is the stock-relevant read view of products. Products are owned
// by the catalogue subsystem; this core only reads them here and mutates
// stock through the Ledger.
type Catalog struct{ DB *pgxpool.Pool }

// GetByIDs fetches all requested products in one batch query.
func (c *Catalog) GetByIDs(ctx context.Context, ids []string) (map[string]orders.Product, error) {
	if len(ids) == 0 {
		return map[string]orders.Product{}, nil
	}
	rows, err := c.DB.Query(ctx, `
		SELECT id, sku, name, stock, price_cents, published, created_at, updated_at
		FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]orders.Product, len(ids))
	for rows.Next() {
		var p orders.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Stock, &p.PriceCents, &p.Published, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (c *Catalog) List(ctx context.Context) ([]orders.Product, error) {
	rows, err := c.DB.Query(ctx, `
		SELECT id, sku, name, stock, price_cents, published, created_at, updated_at
		FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		var p orders.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Stock, &p.PriceCents, &p.Published, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
