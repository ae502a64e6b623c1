package catalog

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.uber.org/zap"
)

// Service turns raw product payloads into store operations and maps the
// results back to DTOs. It keeps no state between calls.
type Service struct {
	store Store
	log   *zap.Logger
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

func (s *Service) List(ctx context.Context) iter.Seq2[ProductDTO, error] {
	return toDTOs(s.store.FindAll(ctx))
}

// Get reports found=false for unknown ids, including the empty id.
func (s *Service) Get(ctx context.Context, id string) (ProductDTO, bool, error) {
	p, ok, err := s.store.FindByID(ctx, id)
	if err != nil || !ok {
		return ProductDTO{}, false, err
	}
	return ToDTO(p), true, nil
}

// ListInPriceRange yields products with min <= price <= max in store order.
// min > max is not an error; it matches nothing.
func (s *Service) ListInPriceRange(ctx context.Context, min, max float64) iter.Seq2[ProductDTO, error] {
	return toDTOs(s.store.FindByPriceBetween(ctx, min, max))
}

func (s *Service) Create(ctx context.Context, payload string) (ProductDTO, error) {
	dto, err := ParseProductDTO(payload)
	if err != nil {
		return ProductDTO{}, s.rejected("create", err)
	}

	p, err := s.store.Insert(ctx, FromDTO(dto))
	if err != nil {
		return ProductDTO{}, fmt.Errorf("insert product: %w", err)
	}
	return ToDTO(p), nil
}

// Update overwrites every field of an existing product except its id.
// An unknown id is reported as found=false and nothing is written.
func (s *Service) Update(ctx context.Context, payload string) (ProductDTO, bool, error) {
	dto, err := ParseProductDTO(payload)
	if err == nil && dto.ID == "" {
		err = fmt.Errorf("%w: missing %s", ErrInvalidPayload, keyID)
	}
	if err != nil {
		return ProductDTO{}, false, s.rejected("update", err)
	}

	existing, ok, err := s.store.FindByID(ctx, dto.ID)
	if err != nil {
		return ProductDTO{}, false, fmt.Errorf("find product: %w", err)
	}
	if !ok {
		s.log.Debug("update of unknown product", zap.String("id", dto.ID))
		return ProductDTO{}, false, nil
	}

	next := FromDTO(dto)
	next.ID = existing.ID

	saved, err := s.store.Save(ctx, next)
	if err != nil {
		return ProductDTO{}, false, fmt.Errorf("save product: %w", err)
	}
	return ToDTO(saved), true, nil
}

// Delete removes the product named by the payload id. deleted=false means
// the id was unknown; that is not an error.
func (s *Service) Delete(ctx context.Context, payload string) (bool, error) {
	id, err := ParseProductRef(payload)
	if err != nil {
		return false, s.rejected("delete", err)
	}

	_, ok, err := s.store.FindByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("find product: %w", err)
	}
	if !ok {
		s.log.Debug("delete of unknown product", zap.String("id", id))
		return false, nil
	}

	if err := s.store.DeleteByID(ctx, id); err != nil {
		return false, fmt.Errorf("delete product: %w", err)
	}
	return true, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) rejected(op string, err error) error {
	s.log.Warn("rejected product payload",
		zap.String("op", op),
		zap.Bool("empty", errors.Is(err, ErrEmptyPayload)),
		zap.Error(err),
	)
	return err
}

func toDTOs(seq iter.Seq2[Product, error]) iter.Seq2[ProductDTO, error] {
	return func(yield func(ProductDTO, error) bool) {
		for p, err := range seq {
			if err != nil {
				yield(ProductDTO{}, err)
				return
			}
			if !yield(ToDTO(p), nil) {
				return
			}
		}
	}
}
