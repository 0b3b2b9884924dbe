// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package endpoint implements the cart service HTTP operations.
package endpoint

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/z5labs/orderflow/cart"
	"github.com/z5labs/orderflow/kafka"
	"github.com/z5labs/orderflow/rest/rpc"
)

type errorResponse struct {
	Error string `json:"error"`
}

// errorHandler translates cart service errors into HTTP status codes.
//
// Publish failures with an open circuit breaker map to 503 so clients and
// load balancers back off; other publish failures map to 500 since the
// event was preserved on the dead letter topic or fallback file but the
// order itself was rolled back.
func errorHandler(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var verr cart.ValidationError
	var ctErr rpc.InvalidContentTypeError
	var dupErr cart.DuplicateOrderError
	var conflictErr cart.StatusConflictError
	var invalidErr cart.InvalidTransitionError
	var notFoundErr cart.OrderNotFoundError
	var pubErr *kafka.PublishError

	switch {
	case errors.As(err, &verr), errors.As(err, &ctErr):
		status = http.StatusBadRequest
	case errors.As(err, &dupErr), errors.As(err, &conflictErr), errors.As(err, &invalidErr):
		status = http.StatusConflict
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	case errors.As(err, &pubErr):
		if pubErr.Kind == kafka.FailureCircuitOpen {
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	_ = enc.Encode(errorResponse{Error: err.Error()})
}
