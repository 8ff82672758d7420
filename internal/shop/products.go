package shop

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/toastigo/storefront/internal/store"
)

// Product is a filament colour in the catalogue.
type Product struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Hex        string  `json:"hex"`
	Price      float64 `json:"price"`
	OutOfStock bool    `json:"outOfStock"`
}

// Products returns the catalogue in display order.
func (s *Service) Products(ctx context.Context) ([]Product, error) {
	products, err := store.List[Product](s.store, store.Products)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// ReplaceProducts validates body as a full product list and swaps it in.
func (s *Service) ReplaceProducts(ctx context.Context, body []byte) ([]Product, error) {
	products, err := parseProducts(body)
	if err == nil {
		err = s.store.Update(func(tx *store.Tx) error {
			if _, err := tx.Clear(store.Products); err != nil {
				return err
			}
			for _, p := range products {
				if _, err := tx.Append(store.Products, p); err != nil {
					return err
				}
			}
			return nil
		})
	}
	s.record(ctx, "replaceProducts", "", map[string]interface{}{"count": len(products)}, err)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func parseProducts(body []byte) ([]Product, error) {
	var products []Product
	if err := json.Unmarshal(body, &products); err != nil || products == nil {
		return nil, fmt.Errorf("body must be a JSON array of products: %w", ErrInvalidInput)
	}

	seen := make(map[string]bool, len(products))
	for i := range products {
		p := &products[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("product %d: name is required: %w", i, ErrInvalidInput)
		}
		hex, ok := normalizeHex(p.Hex)
		if !ok {
			return nil, fmt.Errorf("product %q: invalid hex colour %q: %w", p.Name, p.Hex, ErrInvalidInput)
		}
		p.Hex = hex
		if p.Price < 0 || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			return nil, fmt.Errorf("product %q: price must be >= 0: %w", p.Name, ErrInvalidInput)
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate product id %q: %w", p.ID, ErrInvalidInput)
		}
		seen[p.ID] = true
	}
	return products, nil
}

// normalizeHex returns "#rgb" or "#rrggbb" in lower case.
func normalizeHex(s string) (string, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 3 && len(s) != 6 {
		return "", false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return "", false
		}
	}
	return "#" + strings.ToLower(s), true
}
