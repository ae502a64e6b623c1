package catalog

import (
	"context"
	"fmt"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, seq iter.Seq2[Product, error]) []Product {
	t.Helper()

	var out []Product
	for p, err := range seq {
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func ids(ps []Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

// runStoreContract checks behaviour every Store backend shares. newStore
// must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("insert assigns id", func(t *testing.T) {
		s := newStore(t)

		p, err := s.Insert(ctx, Product{ProductNum: "productNum00", Name: "name00", Price: 10})
		require.NoError(t, err)
		require.NotEmpty(t, p.ID)

		got, ok, err := s.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, p, got)
	})

	t.Run("insert keeps caller id and rejects duplicates", func(t *testing.T) {
		s := newStore(t)

		p, err := s.Insert(ctx, Product{ID: "fixed", ProductNum: "1", Name: "a", Price: 1})
		require.NoError(t, err)
		assert.Equal(t, "fixed", p.ID)

		_, err = s.Insert(ctx, Product{ID: "fixed", ProductNum: "2", Name: "b", Price: 2})
		assert.ErrorIs(t, err, ErrDuplicateKey)

		got, _, err := s.FindByID(ctx, "fixed")
		require.NoError(t, err)
		assert.Equal(t, "a", got.Name)
	})

	t.Run("find by unknown id", func(t *testing.T) {
		s := newStore(t)

		_, ok, err := s.FindByID(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = s.FindByID(ctx, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("find all", func(t *testing.T) {
		s := newStore(t)
		assert.Empty(t, collect(t, s.FindAll(ctx)))

		var want []string
		for _, name := range []string{"a", "b", "c"} {
			p, err := s.Insert(ctx, Product{ProductNum: name, Name: name, Price: 1})
			require.NoError(t, err)
			want = append(want, p.ID)
		}
		assert.ElementsMatch(t, want, ids(collect(t, s.FindAll(ctx))))
	})

	t.Run("price range is inclusive", func(t *testing.T) {
		s := newStore(t)
		for _, price := range []float64{9.99, 10, 12, 15, 15.01, 20} {
			_, err := s.Insert(ctx, Product{ProductNum: "n", Name: "n", Price: price})
			require.NoError(t, err)
		}

		var prices []float64
		for _, p := range collect(t, s.FindByPriceBetween(ctx, 10, 15)) {
			prices = append(prices, p.Price)
		}
		assert.ElementsMatch(t, []float64{10, 12, 15}, prices)

		assert.Empty(t, collect(t, s.FindByPriceBetween(ctx, 15, 10)))
	})

	t.Run("save overwrites and upserts", func(t *testing.T) {
		s := newStore(t)

		p, err := s.Insert(ctx, Product{ProductNum: "1", Name: "old", Price: 1})
		require.NoError(t, err)

		p.Name = "new"
		p.Price = 2
		saved, err := s.Save(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, p, saved)

		got, _, err := s.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.Name)
		assert.Len(t, collect(t, s.FindAll(ctx)), 1)

		_, err = s.Save(ctx, Product{ID: "upserted", ProductNum: "2", Name: "u", Price: 3})
		require.NoError(t, err)
		_, ok, err := s.FindByID(ctx, "upserted")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)

		p, err := s.Insert(ctx, Product{ProductNum: "1", Name: "a", Price: 1})
		require.NoError(t, err)

		require.NoError(t, s.DeleteByID(ctx, p.ID))
		_, ok, err := s.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.DeleteByID(ctx, p.ID))
		assert.Empty(t, collect(t, s.FindAll(ctx)))
	})

	t.Run("consumer can stop early", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 5; i++ {
			_, err := s.Insert(ctx, Product{ProductNum: "n", Name: "n", Price: float64(i)})
			require.NoError(t, err)
		}

		n := 0
		for _, err := range s.FindAll(ctx) {
			require.NoError(t, err)
			n++
			if n == 2 {
				break
			}
		}
		assert.Equal(t, 2, n)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(ctx))
	})
}

// checkSlowConsumer ranges over three products while pausing between them
// for longer than the store's query timeout. The stream must still finish.
func checkSlowConsumer(t *testing.T, s Store, pause time.Duration) {
	t.Helper()
	ctx := context.Background()

	for i, price := range []float64{10, 11, 12} {
		_, err := s.Insert(ctx, Product{ProductNum: fmt.Sprintf("slow%02d", i), Name: "slow", Price: price})
		require.NoError(t, err)
	}

	n := 0
	for _, err := range s.FindAll(ctx) {
		require.NoError(t, err)
		n++
		time.Sleep(pause)
	}
	assert.Equal(t, 3, n)
}
