// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/z5labs/orderflow/app"
	"github.com/z5labs/orderflow/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp_Run(t *testing.T) {
	t.Run("will serve requests", func(t *testing.T) {
		t.Run("if the server is running", func(t *testing.T) {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)

			srv := NewServer(config.ReaderOf(ln))

			handlerBuilder := app.BuilderFunc[http.Handler](func(ctx context.Context) (http.Handler, error) {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				}), nil
			})

			a, err := Build(srv, handlerBuilder).Build(context.Background())
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- a.Run(ctx)
			}()

			resp, err := http.Get(fmt.Sprintf("http://%s/", ln.Addr()))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			cancel()

			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("server did not shut down")
			}
		})
	})

	t.Run("will shut down gracefully", func(t *testing.T) {
		t.Run("if the context is cancelled before any request", func(t *testing.T) {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)

			srv := NewServer(config.ReaderOf(ln))

			handlerBuilder := app.BuilderFunc[http.Handler](func(ctx context.Context) (http.Handler, error) {
				return http.NotFoundHandler(), nil
			})

			a, err := Build(srv, handlerBuilder).Build(context.Background())
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err = a.Run(ctx)
			assert.NoError(t, err)
		})
	})
}
