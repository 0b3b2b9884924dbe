// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package rest provides a HTTP request multiplexer with built-in health
// endpoints and an OpenAPI 3.0 schema served at "/openapi.json".
package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/z5labs/orderflow"
	"github.com/z5labs/orderflow/health"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/openapi-go/openapi3"
)

// RouterOptions represents configurable values for a [Router].
type RouterOptions struct {
	readiness health.Monitor
	liveness  health.Monitor
}

// RouterOption sets values on [RouterOptions].
type RouterOption interface {
	ApplyRouterOption(*RouterOptions)
}

type routerOptionFunc func(*RouterOptions)

func (f routerOptionFunc) ApplyRouterOption(ro *RouterOptions) {
	f(ro)
}

// Readiness registers the given [health.Monitor] to be used for reporting
// when the application is ready to start accepting traffic.
//
// The monitor is consulted fresh on every request to "/health/ready" so
// orchestrators always observe current state.
func Readiness(m health.Monitor) RouterOption {
	return routerOptionFunc(func(ro *RouterOptions) {
		ro.readiness = m
	})
}

// Liveness registers the given [health.Monitor] to be used for reporting
// when the entire application needs to be restarted.
func Liveness(m health.Monitor) RouterOption {
	return routerOptionFunc(func(ro *RouterOptions) {
		ro.liveness = m
	})
}

// Operation extends the [http.Handler] interface by forcing any
// implementation to also provide an OpenAPI 3.0 representation of itself.
type Operation interface {
	http.Handler

	Spec() (openapi3.Operation, error)
}

// Router is a HTTP request multiplexer.
//
// Router provides a set of standard features:
//   - OpenAPI schema as JSON at "/openapi.json"
//   - Liveness endpoint at "/health/live"
//   - Readiness endpoint at "/health/ready"
type Router struct {
	router *chi.Mux
	spec   *openapi3.Spec
}

// NewRouter initializes a [Router].
func NewRouter(title, version string, opts ...RouterOption) *Router {
	var defaultHealth health.Binary
	defaultHealth.MarkHealthy()

	ro := &RouterOptions{
		readiness: &defaultHealth,
		liveness:  &defaultHealth,
	}
	for _, opt := range opts {
		opt.ApplyRouterOption(ro)
	}

	spec := &openapi3.Spec{
		Openapi: "3.0",
		Info: openapi3.Info{
			Title:   title,
			Version: version,
		},
	}

	m := chi.NewMux()

	log := orderflow.Logger("github.com/z5labs/orderflow/rest")
	m.Get("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		err := enc.Encode(spec)
		if err == nil {
			return
		}
		log.ErrorContext(
			r.Context(),
			"failed to encode openapi schema to json",
			slog.String("error", err.Error()),
		)
	})

	m.Get("/health/live", healthHandler(ro.liveness))
	m.Get("/health/ready", healthHandler(ro.readiness))

	return &Router{
		router: m,
		spec:   spec,
	}
}

func healthHandler(m health.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy, err := m.Healthy(r.Context())
		if !healthy || err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Route will configure any request matching method and pattern to be handled
// by the provided [Operation]. It also registers the [Operation] with the
// underlying OpenAPI 3.0 schema.
func (r *Router) Route(method, pattern string, op Operation) error {
	opDef, err := op.Spec()
	if err != nil {
		return err
	}

	err = r.spec.AddOperation(method, pattern, opDef)
	if err != nil {
		return err
	}

	r.router.Method(method, pattern, op)
	return nil
}

// MustRoute is like [Router.Route] but panics on registration failure.
func MustRoute(r *Router, method, pattern string, op Operation) {
	err := r.Route(method, pattern, op)
	if err == nil {
		return
	}
	panic(err)
}

// ServeHTTP implements the [http.Handler] interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
