// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package endpoint

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/z5labs/orderflow/orders"
	"github.com/z5labs/orderflow/rest"
	"github.com/z5labs/orderflow/rest/rpc"

	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/ptr"
	"github.com/z5labs/sdk-go/try"
)

type orderDetailsHandler struct {
	query *orders.Query
}

// OrderDetails registers the POST /order-details operation.
func OrderDetails(router *rest.Router, query *orders.Query) {
	h := &orderDetailsHandler{query: query}

	rest.MustRoute(
		router,
		http.MethodPost,
		"/order-details",
		rpc.NewOperation(
			h,
			rpc.OnError(rpc.ErrorHandlerFunc(errorHandler)),
			rpc.Returns(http.StatusBadRequest),
			rpc.Returns(http.StatusNotFound),
		),
	)
}

type OrderDetailsRequest struct {
	OrderID string `json:"orderId"`
}

func (req *OrderDetailsRequest) Spec() (*openapi3.RequestBody, error) {
	def := &openapi3.RequestBody{
		Content: map[string]openapi3.MediaType{
			"application/json": {
				Schema: &openapi3.SchemaOrRef{
					Schema: &openapi3.Schema{
						Type: ptr.Ref(openapi3.SchemaTypeObject),
						Properties: map[string]openapi3.SchemaOrRef{
							"orderId": {
								Schema: &openapi3.Schema{
									Type: ptr.Ref(openapi3.SchemaTypeString),
								},
							},
						},
					},
				},
			},
		},
	}
	return def, nil
}

func (req *OrderDetailsRequest) ReadRequest(ctx context.Context, r *http.Request) (err error) {
	if ct := r.Header.Get("Content-Type"); ct != "application/json" {
		return rpc.InvalidContentTypeError{
			ContentType: ct,
		}
	}
	defer try.Close(&err, r.Body)

	dec := json.NewDecoder(r.Body)
	return dec.Decode(req)
}

type OrderDetailsResponse struct {
	orders.ProcessedOrder
}

func (resp *OrderDetailsResponse) Spec() (int, *openapi3.Response, error) {
	def := &openapi3.Response{
		Content: map[string]openapi3.MediaType{
			"application/json": {
				Schema: &openapi3.SchemaOrRef{
					Schema: processedOrderSchema(),
				},
			},
		},
	}
	return http.StatusOK, def, nil
}

func (resp *OrderDetailsResponse) WriteResponse(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	return enc.Encode(resp.ProcessedOrder)
}

func (h *orderDetailsHandler) Handle(ctx context.Context, req *OrderDetailsRequest) (*OrderDetailsResponse, error) {
	o, err := h.query.OrderDetails(req.OrderID)
	if err != nil {
		return nil, err
	}
	return &OrderDetailsResponse{ProcessedOrder: o}, nil
}
