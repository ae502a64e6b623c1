package catalog

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// spyStore counts calls into a MemStore and can be told to fail.
type spyStore struct {
	*MemStore

	calls atomic.Int64

	mu   sync.Mutex
	fail error
	// failAfter lets sequences yield that many products before failing.
	failAfter int
}

func newSpyStore() *spyStore {
	return &spyStore{MemStore: NewMemStore()}
}

func (s *spyStore) setFail(err error, after int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail, s.failAfter = err, after
}

func (s *spyStore) failure() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failAfter, s.fail
}

func (s *spyStore) Ping(ctx context.Context) error {
	s.calls.Add(1)
	if _, err := s.failure(); err != nil {
		return err
	}
	return s.MemStore.Ping(ctx)
}

func (s *spyStore) Insert(ctx context.Context, p Product) (Product, error) {
	s.calls.Add(1)
	if _, err := s.failure(); err != nil {
		return Product{}, err
	}
	return s.MemStore.Insert(ctx, p)
}

func (s *spyStore) FindByID(ctx context.Context, id string) (Product, bool, error) {
	s.calls.Add(1)
	if _, err := s.failure(); err != nil {
		return Product{}, false, err
	}
	return s.MemStore.FindByID(ctx, id)
}

func (s *spyStore) FindAll(ctx context.Context) iter.Seq2[Product, error] {
	s.calls.Add(1)
	return s.failing(s.MemStore.FindAll(ctx))
}

func (s *spyStore) FindByPriceBetween(ctx context.Context, min, max float64) iter.Seq2[Product, error] {
	s.calls.Add(1)
	return s.failing(s.MemStore.FindByPriceBetween(ctx, min, max))
}

func (s *spyStore) Save(ctx context.Context, p Product) (Product, error) {
	s.calls.Add(1)
	if _, err := s.failure(); err != nil {
		return Product{}, err
	}
	return s.MemStore.Save(ctx, p)
}

func (s *spyStore) DeleteByID(ctx context.Context, id string) error {
	s.calls.Add(1)
	if _, err := s.failure(); err != nil {
		return err
	}
	return s.MemStore.DeleteByID(ctx, id)
}

func (s *spyStore) failing(seq iter.Seq2[Product, error]) iter.Seq2[Product, error] {
	return func(yield func(Product, error) bool) {
		after, fail := s.failure()
		if fail == nil {
			for p, err := range seq {
				if !yield(p, err) {
					return
				}
			}
			return
		}

		n := 0
		for p, err := range seq {
			if err != nil || n >= after {
				break
			}
			if !yield(p, nil) {
				return
			}
			n++
		}
		yield(Product{}, fail)
	}
}
