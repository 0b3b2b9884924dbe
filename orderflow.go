// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package orderflow provides shared building blocks for the cart and order services.
package orderflow

import (
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// Logger returns a [slog.Logger] which is backed by the global
// OpenTelemetry [log.LoggerProvider].
func Logger(name string) *slog.Logger {
	return otelslog.NewLogger(name)
}
