package catalog

import (
	"context"
	"errors"
	"iter"
)

var ErrDuplicateKey = errors.New("product id already exists")

// Store is the persistence contract the Service is written against.
// Implementations assign an ID on Insert when the product has none and
// treat single-document operations as atomic.
type Store interface {
	Insert(ctx context.Context, p Product) (Product, error)
	FindByID(ctx context.Context, id string) (Product, bool, error)
	FindAll(ctx context.Context) iter.Seq2[Product, error]
	// FindByPriceBetween yields products with min <= price <= max.
	FindByPriceBetween(ctx context.Context, min, max float64) iter.Seq2[Product, error]
	// Save overwrites the product stored under p.ID, creating it if absent.
	Save(ctx context.Context, p Product) (Product, error)
	DeleteByID(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

func inPriceRange(price, min, max float64) bool {
	return price >= min && price <= max
}
