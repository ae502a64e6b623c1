package catalog

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ProductCatalog/pkg/kit"
)

const writeLimitWindow = time.Minute

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	// WriteLimitPerMin caps POST requests per client IP; 0 disables it.
	WriteLimitPerMin int
	// TrustForwardedFor keys the write limit on X-Forwarded-For. Enable it
	// only behind a proxy that overwrites the header.
	TrustForwardedFor bool
}

// NewHandler assembles the catalog around store. With a registry the store
// is instrumented and runtime collectors are registered next to the HTTP
// metrics.
func NewHandler(store Store, deps HTTPDeps) http.Handler {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	if deps.Registry != nil {
		deps.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		store = NewInstrumentedStore(store, deps.Registry)
	}

	s := &Server{
		Service: NewService(store, deps.Log),
		Log:     deps.Log,
		WriteLimiter: kit.NewIPRateLimiter(deps.WriteLimitPerMin, writeLimitWindow,
			kit.WithTrustedForwardedFor(deps.TrustForwardedFor)),
	}

	r := chi.NewRouter()
	setupMiddleware(r, deps)
	setupMetrics(r, deps)

	r.Mount("/", s.Routes())
	return r
}

func setupMiddleware(r *chi.Mux, deps HTTPDeps) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))
}

func setupMetrics(r *chi.Mux, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrPath))

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}
