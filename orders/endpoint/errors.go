// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package endpoint implements the order service HTTP operations.
package endpoint

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/z5labs/orderflow/orders"
	"github.com/z5labs/orderflow/rest/rpc"
)

type errorResponse struct {
	Error string `json:"error"`
}

func errorHandler(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var invalidErr orders.InvalidOrderIDError
	var ctErr rpc.InvalidContentTypeError
	var notFoundErr orders.OrderNotFoundError

	switch {
	case errors.As(err, &invalidErr), errors.As(err, &ctErr):
		status = http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	_ = enc.Encode(errorResponse{Error: err.Error()})
}
