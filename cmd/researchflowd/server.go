package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/auth"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/cache"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/gateway"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/health"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/observe"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/resilience"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/service"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 4 << 20
)

type server struct {
	registry *service.Registry
	health   *health.Aggregator
	authn    auth.Authenticator
	logger   observe.Logger
	// metrics serves /metrics when set.
	metrics http.Handler
}

func (s *server) routes() http.Handler {
	if s.logger == nil {
		s.logger = observe.NopLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	health.RegisterHandlers(r, s.health)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Middleware(s.authn, s.logger))
		r.Get("/modules", s.listModules)
		r.Post("/modules/{module}/entities/{entity}", s.compute)
		r.Post("/modules/{module}/entities/{entity}/peek", s.peek)
		r.Delete("/modules/{module}/entities/{entity}", s.invalidate)
		r.Delete("/entities/{entity}", s.invalidateAll)
	})

	return otelhttp.NewHandler(r, "researchflowd")
}

// requestLog assigns a request id and logs each completed request.
func (s *server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Info(r.Context(), "request completed",
			observe.Field{Key: "request_id", Value: id},
			observe.Field{Key: "method", Value: r.Method},
			observe.Field{Key: "path", Value: r.URL.Path},
			observe.Field{Key: "status", Value: ww.Status()},
			observe.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
		)
	})
}

func (s *server) listModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"modules": s.registry.Modules()})
}

func (s *server) compute(w http.ResponseWriter, r *http.Request) {
	id, entity, ok := s.target(w, r)
	if !ok {
		return
	}
	input, ok := readInput(w, r)
	if !ok {
		return
	}
	reply, err := s.registry.Compute(r.Context(), id, entity, input)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *server) peek(w http.ResponseWriter, r *http.Request) {
	id, entity, ok := s.target(w, r)
	if !ok {
		return
	}
	input, ok := readInput(w, r)
	if !ok {
		return
	}
	reply, found, err := s.registry.Peek(r.Context(), id, entity, input)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody("no valid cached output"))
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *server) invalidate(w http.ResponseWriter, r *http.Request) {
	id, entity, ok := s.target(w, r)
	if !ok {
		return
	}
	if err := s.registry.Service().Invalidate(r.Context(), id, entity); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) invalidateAll(w http.ResponseWriter, r *http.Request) {
	entity, err := url.PathUnescape(chi.URLParam(r, "entity"))
	if err != nil || entity == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid entity id"))
		return
	}
	s.registry.Service().InvalidateAll(r.Context(), entity)
	w.WriteHeader(http.StatusNoContent)
}

// target extracts the module id and unescaped entity id from the path.
func (s *server) target(w http.ResponseWriter, r *http.Request) (module.ID, string, bool) {
	entity, err := url.PathUnescape(chi.URLParam(r, "entity"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid entity id"))
		return "", "", false
	}
	return module.ID(chi.URLParam(r, "module")), entity, true
}

func readInput(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
		return nil, false
	}
	return body, true
}

func (s *server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(ctx, "module request failed",
			observe.Field{Key: "status", Value: status},
			observe.Field{Key: "error", Value: err},
		)
	}
	writeJSON(w, status, errorBody(err.Error()))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownModule),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, cache.ErrInvalidKey),
		errors.Is(err, cache.ErrKeyTooLong):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrMissingCredential):
		return http.StatusInternalServerError
	case errors.Is(err, resilience.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		// Everything else failed in the generative service call.
		return http.StatusBadGateway
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
