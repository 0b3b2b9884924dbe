// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rpc

import (
	"fmt"
	"net/http"
)

// ErrorHandler translates errors returned while handling a request
// into a HTTP response.
type ErrorHandler interface {
	Handle(http.ResponseWriter, error)
}

// ErrorHandlerFunc is an adapter to allow the use of ordinary functions
// as [ErrorHandler]s.
type ErrorHandlerFunc func(http.ResponseWriter, error)

// Handle implements the [ErrorHandler] interface.
func (f ErrorHandlerFunc) Handle(w http.ResponseWriter, err error) {
	f(w, err)
}

// OnError registers the given [ErrorHandler] with the [Operation].
func OnError(eh ErrorHandler) OperationOption {
	return operationOptionFunc(func(oo *OperationOptions) {
		oo.errHandler = eh
	})
}

// InvalidContentTypeError is returned by request readers when the
// request Content-Type is not supported.
type InvalidContentTypeError struct {
	ContentType string
}

// Error implements the [error] interface.
func (e InvalidContentTypeError) Error() string {
	return fmt.Sprintf("invalid content type for request: %s", e.ContentType)
}
