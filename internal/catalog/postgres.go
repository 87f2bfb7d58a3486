package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/cart-engine/internal/cart"
	"github.com/noah-isme/cart-engine/internal/money"
)

// Postgres reads products and their option surcharges from the database.
type Postgres struct {
	Pool *pgxpool.Pool
}

// Product implements Source.
func (p Postgres) Product(ctx context.Context, id string, _ cart.Options) (Product, error) {
	if p.Pool == nil {
		return Product{}, errors.New("catalog: pool not configured")
	}

	const productQuery = `
SELECT id, name, unit_price, currency, model_type
FROM products
WHERE id = $1`

	var (
		product   Product
		unitPrice int64
		currency  string
	)
	row := p.Pool.QueryRow(ctx, productQuery, id)
	if err := row.Scan(&product.ID, &product.Name, &unitPrice, &currency, &product.ModelType); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("catalog: get product %s: %w", id, err)
	}
	product.UnitPrice = money.New(unitPrice, currency)

	const surchargeQuery = `
SELECT option_key, option_value, surcharge
FROM product_options
WHERE product_id = $1`

	rows, err := p.Pool.Query(ctx, surchargeQuery, id)
	if err != nil {
		return Product{}, fmt.Errorf("catalog: list options for %s: %w", id, err)
	}
	defer rows.Close()

	surcharges := make(map[string]money.Money)
	for rows.Next() {
		var (
			key, value string
			amount     int64
		)
		if err := rows.Scan(&key, &value, &amount); err != nil {
			return Product{}, fmt.Errorf("catalog: scan option for %s: %w", id, err)
		}
		surcharges[key+"="+value] = money.New(amount, currency)
	}
	if err := rows.Err(); err != nil {
		return Product{}, fmt.Errorf("catalog: list options for %s: %w", id, err)
	}
	if len(surcharges) > 0 {
		product.Surcharges = surcharges
	}
	return product, nil
}
