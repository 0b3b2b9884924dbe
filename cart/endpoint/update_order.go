// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package endpoint

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/z5labs/orderflow/cart"
	"github.com/z5labs/orderflow/order"
	"github.com/z5labs/orderflow/rest"
	"github.com/z5labs/orderflow/rest/rpc"

	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/ptr"
	"github.com/z5labs/sdk-go/try"
)

type updateOrderHandler struct {
	svc *cart.Service
}

// UpdateOrder registers the PUT /update-order operation.
func UpdateOrder(router *rest.Router, svc *cart.Service) {
	h := &updateOrderHandler{svc: svc}

	rest.MustRoute(
		router,
		http.MethodPut,
		"/update-order",
		rpc.NewOperation(
			h,
			rpc.OnError(rpc.ErrorHandlerFunc(errorHandler)),
			rpc.Returns(http.StatusBadRequest),
			rpc.Returns(http.StatusNotFound),
			rpc.Returns(http.StatusConflict),
			rpc.Returns(http.StatusServiceUnavailable),
		),
	)
}

type UpdateOrderRequest struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func (req *UpdateOrderRequest) Spec() (*openapi3.RequestBody, error) {
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
							"status": {
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

func (req *UpdateOrderRequest) ReadRequest(ctx context.Context, r *http.Request) (err error) {
	if ct := r.Header.Get("Content-Type"); ct != "application/json" {
		return rpc.InvalidContentTypeError{
			ContentType: ct,
		}
	}
	defer try.Close(&err, r.Body)

	dec := json.NewDecoder(r.Body)
	return dec.Decode(req)
}

type UpdateOrderResponse struct {
	order.Order
}

func (resp *UpdateOrderResponse) Spec() (int, *openapi3.Response, error) {
	def := &openapi3.Response{
		Content: map[string]openapi3.MediaType{
			"application/json": {
				Schema: &openapi3.SchemaOrRef{
					Schema: orderSchema(),
				},
			},
		},
	}
	return http.StatusOK, def, nil
}

func (resp *UpdateOrderResponse) WriteResponse(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	return enc.Encode(resp.Order)
}

func (h *updateOrderHandler) Handle(ctx context.Context, req *UpdateOrderRequest) (*UpdateOrderResponse, error) {
	o, err := h.svc.UpdateOrder(ctx, req.OrderID, req.Status)
	if err != nil {
		return nil, err
	}
	return &UpdateOrderResponse{Order: o}, nil
}
