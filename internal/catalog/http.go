package catalog

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ProductCatalog/pkg/kit"
)

const (
	maxBodyBytes = 1 << 20
	readyTimeout = 1 * time.Second

	homeMessage = "Hello, this is the product home page"
)

type Server struct {
	Service *Service
	Log     *zap.Logger

	// WriteLimiter, when set, guards the POST routes.
	WriteLimiter *kit.IPRateLimiter
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.home)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.readyz)

	r.Route("/products", func(pr chi.Router) {
		pr.Get("/", s.list)
		pr.Get("/product_range", s.listInRange)
		pr.Get("/{id}", s.get)

		pr.Group(func(wr chi.Router) {
			if s.WriteLimiter != nil {
				wr.Use(s.WriteLimiter.Middleware)
			}
			wr.Post("/", s.create)
			wr.Post("/update", s.update)
			wr.Post("/delete", s.delete)
		})
	})

	return r
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Server) home(w http.ResponseWriter, _ *http.Request) {
	kit.WriteText(w, http.StatusOK, homeMessage)
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.Service.Ping(ctx); err != nil {
		s.logger().Warn("readyz failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	started, err := kit.WriteJSONSeq(w, s.Service.List(r.Context()))
	if err != nil {
		s.streamFailed(w, r, "list products", started, err)
	}
}

func (s *Server) listInRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	min, ok := parseBound(q.Get("min"))
	if !ok {
		kit.WriteError(w, r, http.StatusBadRequest, "bad min", map[string]any{"min": q.Get("min")})
		return
	}
	max, ok := parseBound(q.Get("max"))
	if !ok {
		kit.WriteError(w, r, http.StatusBadRequest, "bad max", map[string]any{"max": q.Get("max")})
		return
	}

	started, err := kit.WriteJSONSeq(w, s.Service.ListInPriceRange(r.Context(), min, max))
	if err != nil {
		s.streamFailed(w, r, "list products in range", started, err)
	}
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, ok, err := s.Service.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, "get product", err)
		return
	}
	if !ok {
		kit.WriteEmpty(w, http.StatusOK)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.readPayload(w, r)
	if !ok {
		return
	}

	p, err := s.Service.Create(r.Context(), payload)
	if err != nil {
		s.writeServiceError(w, r, "create product", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.readPayload(w, r)
	if !ok {
		return
	}

	p, found, err := s.Service.Update(r.Context(), payload)
	if err != nil {
		s.writeServiceError(w, r, "update product", err)
		return
	}
	if !found {
		kit.WriteEmpty(w, http.StatusOK)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

// delete answers with an empty 200 whether or not the id existed.
func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.readPayload(w, r)
	if !ok {
		return
	}

	deleted, err := s.Service.Delete(r.Context(), payload)
	if err != nil {
		s.writeServiceError(w, r, "delete product", err)
		return
	}
	s.logger().Debug("delete product", zap.Bool("deleted", deleted))
	kit.WriteEmpty(w, http.StatusOK)
}

func (s *Server) readPayload(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	b, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			kit.WriteError(w, r, http.StatusRequestEntityTooLarge, "body too large", map[string]any{"limit": tooLarge.Limit})
			return "", false
		}
		kit.WriteError(w, r, http.StatusBadRequest, "unreadable body", nil)
		return "", false
	}
	return string(b), true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrEmptyPayload):
		kit.WriteError(w, r, http.StatusBadRequest, "empty payload", nil)
	case errors.Is(err, ErrInvalidPayload):
		kit.WriteError(w, r, http.StatusBadRequest, "invalid payload", map[string]any{"cause": err.Error()})
	case errors.Is(err, ErrDuplicateKey):
		kit.WriteError(w, r, http.StatusConflict, "product already exists", nil)
	case isTimeoutErr(err):
		s.logger().Warn(op+" timed out", zap.Error(err))
		kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
	default:
		s.logger().Error(op+" failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) streamFailed(w http.ResponseWriter, r *http.Request, op string, started bool, err error) {
	if !started {
		s.writeServiceError(w, r, op, err)
		return
	}
	s.logger().Error(op+" aborted mid-stream", zap.Error(err))
}

// parseBound accepts finite floats only.
func parseBound(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
