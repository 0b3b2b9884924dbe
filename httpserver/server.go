// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httpserver provides a configurable, gracefully shutdown HTTP server runtime.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/orderflow/app"
	"github.com/z5labs/orderflow/config"

	"github.com/sourcegraph/conc/pool"
)

// TCPListener is a configuration type for creating TCP network listeners.
type TCPListener struct {
	Addr config.Reader[string]
}

// TCPListenerOption is a functional option for configuring a TCPListener.
type TCPListenerOption func(*TCPListener)

// Addr sets the network address for the listener.
// The address should be in the form "host:port" or ":port".
func Addr(addr config.Reader[string]) TCPListenerOption {
	return func(tcpLn *TCPListener) {
		tcpLn.Addr = addr
	}
}

// NewTCPListener creates a new TCPListener with the given options.
// If no address is specified via options, the listener will default to ":8080".
func NewTCPListener(options ...TCPListenerOption) TCPListener {
	tcpLn := TCPListener{
		Addr: config.EmptyReader[string](),
	}

	for _, option := range options {
		option(&tcpLn)
	}

	return tcpLn
}

// Read creates a TCP listener on the configured address.
func (tcpLn TCPListener) Read(ctx context.Context) (config.Value[net.Listener], error) {
	addr := config.MustOr(ctx, ":8080", tcpLn.Addr)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return config.Value[net.Listener]{}, err
	}

	return config.ValueOf(ln), nil
}

// Server holds the configuration for an HTTP server.
type Server struct {
	Listener          config.Reader[net.Listener]
	ReadTimeout       config.Reader[time.Duration]
	ReadHeaderTimeout config.Reader[time.Duration]
	WriteTimeout      config.Reader[time.Duration]
	IdleTimeout       config.Reader[time.Duration]
	MaxHeaderBytes    config.Reader[int]
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// ReadTimeout sets the maximum duration for reading the entire request,
// including the body. The default is 5 seconds.
func ReadTimeout(d config.Reader[time.Duration]) ServerOption {
	return func(srv *Server) {
		srv.ReadTimeout = d
	}
}

// ReadHeaderTimeout sets the maximum duration for reading request headers.
// The default is 2 seconds.
func ReadHeaderTimeout(d config.Reader[time.Duration]) ServerOption {
	return func(srv *Server) {
		srv.ReadHeaderTimeout = d
	}
}

// WriteTimeout sets the maximum duration before timing out writes of the
// response. The default is 15 seconds, which leaves headroom above the
// publish API timeout so synchronous publish failures are reported to the
// client instead of being cut off by the server.
func WriteTimeout(d config.Reader[time.Duration]) ServerOption {
	return func(srv *Server) {
		srv.WriteTimeout = d
	}
}

// IdleTimeout sets the maximum duration to wait for the next request when
// keep-alives are enabled. The default is 120 seconds.
func IdleTimeout(d config.Reader[time.Duration]) ServerOption {
	return func(srv *Server) {
		srv.IdleTimeout = d
	}
}

// MaxHeaderBytes sets the maximum number of bytes the server will read
// parsing request headers. The default is 1048576 bytes (1 MB).
func MaxHeaderBytes(n config.Reader[int]) ServerOption {
	return func(srv *Server) {
		srv.MaxHeaderBytes = n
	}
}

// NewServer creates a new Server with the given listener and options.
// The listener is required; all other settings have default values.
func NewServer(listener config.Reader[net.Listener], options ...ServerOption) Server {
	srv := Server{
		Listener:          listener,
		ReadTimeout:       config.EmptyReader[time.Duration](),
		ReadHeaderTimeout: config.EmptyReader[time.Duration](),
		WriteTimeout:      config.EmptyReader[time.Duration](),
		IdleTimeout:       config.EmptyReader[time.Duration](),
		MaxHeaderBytes:    config.EmptyReader[int](),
	}

	for _, option := range options {
		option(&srv)
	}

	return srv
}

// App represents a running HTTP server application.
// It manages the lifecycle of the HTTP server and handles graceful shutdown.
type App struct {
	ls  net.Listener
	srv *http.Server
}

// Run starts the HTTP server and blocks until the context is cancelled or an
// error occurs. When the context is cancelled, the server performs a graceful
// shutdown.
func (a App) Run(ctx context.Context) error {
	p := pool.New().WithContext(ctx)

	p.Go(func(ctx context.Context) error {
		return a.srv.Serve(a.ls)
	})

	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return a.srv.Shutdown(context.Background())
	})

	err := p.Wait()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Build creates an app.Builder that constructs an HTTP server App from the
// Server configuration and an http.Handler builder.
func Build(srv Server, b app.Builder[http.Handler]) app.Builder[App] {
	return app.Bind(b, func(h http.Handler) app.Builder[App] {
		return app.BuilderFunc[App](func(ctx context.Context) (App, error) {
			ln := config.Must(ctx, srv.Listener)

			httpServer := &http.Server{
				Handler:           h,
				ReadTimeout:       config.MustOr(ctx, 5*time.Second, srv.ReadTimeout),
				ReadHeaderTimeout: config.MustOr(ctx, 2*time.Second, srv.ReadHeaderTimeout),
				WriteTimeout:      config.MustOr(ctx, 15*time.Second, srv.WriteTimeout),
				IdleTimeout:       config.MustOr(ctx, 120*time.Second, srv.IdleTimeout),
				MaxHeaderBytes:    config.MustOr(ctx, 1048576, srv.MaxHeaderBytes),
			}

			return App{
				ls:  ln,
				srv: httpServer,
			}, nil
		})
	})
}
