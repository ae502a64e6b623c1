package catalog

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemStore keeps products in insertion order.
type MemStore struct {
	mu    sync.RWMutex
	m     map[string]Product
	order []string
}

func NewMemStore() *MemStore {
	return &MemStore{m: map[string]Product{}}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Insert(ctx context.Context, p Product) (Product, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := s.m[p.ID]; ok {
		return Product{}, ErrDuplicateKey
	}

	s.m[p.ID] = p
	s.order = append(s.order, p.ID)
	return p, nil
}

func (s *MemStore) FindByID(ctx context.Context, id string) (Product, bool, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.m[id]
	return p, ok, nil
}

func (s *MemStore) FindAll(ctx context.Context) iter.Seq2[Product, error] {
	return s.scan(ctx, func(Product) bool { return true })
}

func (s *MemStore) FindByPriceBetween(ctx context.Context, min, max float64) iter.Seq2[Product, error] {
	return s.scan(ctx, func(p Product) bool { return inPriceRange(p.Price, min, max) })
}

func (s *MemStore) Save(ctx context.Context, p Product) (Product, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := s.m[p.ID]; !ok {
		s.order = append(s.order, p.ID)
	}
	s.m[p.ID] = p
	return p, nil
}

func (s *MemStore) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[id]; !ok {
		return nil
	}
	delete(s.m, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return nil
}

// scan takes a snapshot under the read lock and yields outside of it, so a
// consumer may call back into the store while ranging.
func (s *MemStore) scan(ctx context.Context, keep func(Product) bool) iter.Seq2[Product, error] {
	return func(yield func(Product, error) bool) {
		s.mu.RLock()
		snapshot := make([]Product, 0, len(s.order))
		for _, id := range s.order {
			if p := s.m[id]; keep(p) {
				snapshot = append(snapshot, p)
			}
		}
		s.mu.RUnlock()

		for _, p := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(Product{}, err)
				return
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}
