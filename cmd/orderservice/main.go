// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/z5labs/orderflow/app"
	"github.com/z5labs/orderflow/config"
	"github.com/z5labs/orderflow/httpserver"
	ordersapp "github.com/z5labs/orderflow/orders/app"
)

func main() {
	listener := httpserver.NewTCPListener(
		httpserver.Addr(config.Or(
			config.Env("HTTP_ADDR"),
			config.ReaderOf(":8081"),
		)),
	)

	srv := httpserver.NewServer(listener)

	builder := app.WithHooks(func(ctx context.Context, hooks *app.HookRegistry) (app.Runtime, error) {
		return ordersapp.BuildRuntime(ctx, hooks, srv)
	})

	err := app.Run(context.Background(), builder)
	app.LogError(slog.NewJSONHandler(os.Stderr, nil), err)
}
