package catalog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pingTimeout         = 1 * time.Second
	defaultQueryTimeout = 3 * time.Second
	pgUniqueCode        = "23505"
)

const productsSchema = `
	CREATE TABLE IF NOT EXISTS products (
		seq         BIGSERIAL,
		id          TEXT PRIMARY KEY,
		product_num TEXT NOT NULL,
		name        TEXT NOT NULL,
		price       DOUBLE PRECISION NOT NULL
	);
	CREATE INDEX IF NOT EXISTS products_price_idx ON products (price);
`

type PostgresStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

func NewPostgresStore(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresStore {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &PostgresStore{pool: pool, queryTimeout: queryTimeout}
}

// OpenPostgres connects a pool and makes sure the products table exists.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	if err := withTimeout(ctx, 5*time.Second, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		_, err := pool.Exec(ctx, productsSchema)
		return err
	}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres init: %w", err)
	}

	return pool, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.pool.Ping(ctx)
	})
}

func (s *PostgresStore) Insert(ctx context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	err := withTimeout(ctx, s.queryTimeout, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO products (id, product_num, name, price)
			VALUES ($1, $2, $3, $4)
		`, p.ID, p.ProductNum, p.Name, p.Price)
		return err
	})
	if isUniqueViolation(err) {
		return Product{}, ErrDuplicateKey
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (Product, bool, error) {
	var p Product

	err := withTimeout(ctx, s.queryTimeout, func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, `
			SELECT id, product_num, name, price
			FROM products
			WHERE id = $1
		`, id).Scan(&p.ID, &p.ProductNum, &p.Name, &p.Price)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, err
	}
	return p, true, nil
}

func (s *PostgresStore) FindAll(ctx context.Context) iter.Seq2[Product, error] {
	return s.query(ctx, `
		SELECT id, product_num, name, price
		FROM products
		ORDER BY seq ASC
	`)
}

func (s *PostgresStore) FindByPriceBetween(ctx context.Context, min, max float64) iter.Seq2[Product, error] {
	return s.query(ctx, `
		SELECT id, product_num, name, price
		FROM products
		WHERE price BETWEEN $1 AND $2
		ORDER BY seq ASC
	`, min, max)
}

func (s *PostgresStore) Save(ctx context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	err := withTimeout(ctx, s.queryTimeout, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO products (id, product_num, name, price)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				product_num = EXCLUDED.product_num,
				name        = EXCLUDED.name,
				price       = EXCLUDED.price
		`, p.ID, p.ProductNum, p.Name, p.Price)
		return err
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	return withTimeout(ctx, s.queryTimeout, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
		return err
	})
}

// query streams rows to the consumer as they arrive. queryTimeout bounds
// only the wait for the query to start returning rows; after that the
// iteration lives as long as the caller's context.
func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) iter.Seq2[Product, error] {
	return func(yield func(Product, error) bool) {
		ctx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)

		openTimer := time.AfterFunc(s.queryTimeout, func() { cancel(context.DeadlineExceeded) })
		rows, err := s.pool.Query(ctx, sql, args...)
		fired := !openTimer.Stop()
		switch {
		case err != nil && context.Cause(ctx) != nil:
			err = fmt.Errorf("%w: %w", context.Cause(ctx), err)
		case err == nil && fired:
			rows.Close()
			err = context.Cause(ctx)
		}
		if err != nil {
			yield(Product{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var p Product
			if err := rows.Scan(&p.ID, &p.ProductNum, &p.Name, &p.Price); err != nil {
				yield(Product{}, err)
				return
			}
			if !yield(p, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Product{}, err)
		}
	}
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueCode
}
