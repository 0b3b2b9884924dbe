// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package endpoint

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/z5labs/orderflow/orders"
	"github.com/z5labs/orderflow/rest"
	"github.com/z5labs/orderflow/rest/rpc"

	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/ptr"
	"github.com/z5labs/sdk-go/try"
)

type listOrdersHandler struct {
	query *orders.Query
}

// ListOrders registers the POST /getAllOrdersFromTopic operation.
func ListOrders(router *rest.Router, query *orders.Query) {
	h := &listOrdersHandler{query: query}

	rest.MustRoute(
		router,
		http.MethodPost,
		"/getAllOrdersFromTopic",
		rpc.NewOperation(
			h,
			rpc.OnError(rpc.ErrorHandlerFunc(errorHandler)),
		),
	)
}

type ListOrdersRequest struct{}

func (req *ListOrdersRequest) Spec() (*openapi3.RequestBody, error) {
	def := &openapi3.RequestBody{
		Content: map[string]openapi3.MediaType{
			"application/json": {
				Schema: &openapi3.SchemaOrRef{
					Schema: &openapi3.Schema{
						Type: ptr.Ref(openapi3.SchemaTypeObject),
					},
				},
			},
		},
	}
	return def, nil
}

func (req *ListOrdersRequest) ReadRequest(ctx context.Context, r *http.Request) (err error) {
	// The request carries no parameters but the body must still be
	// drained for connection reuse.
	defer try.Close(&err, r.Body)

	_, err = io.Copy(io.Discard, r.Body)
	return err
}

type ListOrdersResponse struct {
	Orders []orders.ProcessedOrder `json:"orders"`
}

func (resp *ListOrdersResponse) Spec() (int, *openapi3.Response, error) {
	def := &openapi3.Response{
		Content: map[string]openapi3.MediaType{
			"application/json": {
				Schema: &openapi3.SchemaOrRef{
					Schema: &openapi3.Schema{
						Type: ptr.Ref(openapi3.SchemaTypeObject),
						Properties: map[string]openapi3.SchemaOrRef{
							"orders": {
								Schema: &openapi3.Schema{
									Type:  ptr.Ref(openapi3.SchemaTypeArray),
									Items: ptr.Ref(openapi3.SchemaOrRef{Schema: processedOrderSchema()}),
								},
							},
						},
					},
				},
			},
		},
	}
	return http.StatusOK, def, nil
}

func (resp *ListOrdersResponse) WriteResponse(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	return enc.Encode(resp)
}

func (h *listOrdersHandler) Handle(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	list := h.query.ListOrders()
	if list == nil {
		list = []orders.ProcessedOrder{}
	}
	return &ListOrdersResponse{Orders: list}, nil
}
