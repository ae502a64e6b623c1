package catalog

import (
	"context"
	"iter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	labelOp     = "op"
	labelResult = "result"

	resultOK    = "ok"
	resultError = "error"
)

type storeMetrics struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// InstrumentedStore records per-operation counts and latency around another
// Store. For sequences the latency covers the whole iteration.
type InstrumentedStore struct {
	next    Store
	metrics storeMetrics
}

func NewInstrumentedStore(next Store, reg prometheus.Registerer) *InstrumentedStore {
	m := storeMetrics{
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_store_operations_total",
				Help: "Total store operations",
			},
			[]string{labelOp, labelResult},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "catalog_store_operation_duration_seconds",
				Help: "Store operation latency",
			},
			[]string{labelOp},
		),
	}

	reg.MustRegister(m.ops, m.latency)
	return &InstrumentedStore{next: next, metrics: m}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	s.metrics.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	s.metrics.ops.WithLabelValues(op, result).Inc()
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.next.Ping(ctx)
	s.observe("ping", start, err)
	return err
}

func (s *InstrumentedStore) Insert(ctx context.Context, p Product) (Product, error) {
	start := time.Now()
	out, err := s.next.Insert(ctx, p)
	s.observe("insert", start, err)
	return out, err
}

func (s *InstrumentedStore) FindByID(ctx context.Context, id string) (Product, bool, error) {
	start := time.Now()
	p, ok, err := s.next.FindByID(ctx, id)
	s.observe("find_by_id", start, err)
	return p, ok, err
}

func (s *InstrumentedStore) FindAll(ctx context.Context) iter.Seq2[Product, error] {
	return s.wrapSeq("find_all", s.next.FindAll(ctx))
}

func (s *InstrumentedStore) FindByPriceBetween(ctx context.Context, min, max float64) iter.Seq2[Product, error] {
	return s.wrapSeq("find_by_price_between", s.next.FindByPriceBetween(ctx, min, max))
}

func (s *InstrumentedStore) Save(ctx context.Context, p Product) (Product, error) {
	start := time.Now()
	out, err := s.next.Save(ctx, p)
	s.observe("save", start, err)
	return out, err
}

func (s *InstrumentedStore) DeleteByID(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.DeleteByID(ctx, id)
	s.observe("delete_by_id", start, err)
	return err
}

func (s *InstrumentedStore) wrapSeq(op string, seq iter.Seq2[Product, error]) iter.Seq2[Product, error] {
	return func(yield func(Product, error) bool) {
		start := time.Now()
		var seqErr error
		defer func() { s.observe(op, start, seqErr) }()

		for p, err := range seq {
			if err != nil {
				seqErr = err
			}
			if !yield(p, err) {
				return
			}
		}
	}
}
