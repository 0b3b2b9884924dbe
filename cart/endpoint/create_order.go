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
	"github.com/z5labs/sdk-go/try"
)

type createOrderHandler struct {
	svc *cart.Service
}

// CreateOrder registers the POST /create-order operation.
func CreateOrder(router *rest.Router, svc *cart.Service) {
	h := &createOrderHandler{svc: svc}

	rest.MustRoute(
		router,
		http.MethodPost,
		"/create-order",
		rpc.NewOperation(
			h,
			rpc.OnError(rpc.ErrorHandlerFunc(errorHandler)),
			rpc.Returns(http.StatusBadRequest),
			rpc.Returns(http.StatusConflict),
			rpc.Returns(http.StatusServiceUnavailable),
		),
	)
}

type CreateOrderRequest struct {
	OrderID     string       `json:"orderId,omitempty"`
	CustomerID  string       `json:"customerId,omitempty"`
	Currency    string       `json:"currency,omitempty"`
	Items       []order.Item `json:"items,omitempty"`
	TotalAmount float64      `json:"totalAmount"`
}

func (req *CreateOrderRequest) Spec() (*openapi3.RequestBody, error) {
	def := &openapi3.RequestBody{
		Content: map[string]openapi3.MediaType{
			"application/json": {
				Schema: &openapi3.SchemaOrRef{
					Schema: orderSchema(),
				},
			},
		},
	}
	return def, nil
}

func (req *CreateOrderRequest) ReadRequest(ctx context.Context, r *http.Request) (err error) {
	if ct := r.Header.Get("Content-Type"); ct != "application/json" {
		return rpc.InvalidContentTypeError{
			ContentType: ct,
		}
	}
	defer try.Close(&err, r.Body)

	dec := json.NewDecoder(r.Body)
	return dec.Decode(req)
}

type CreateOrderResponse struct {
	order.Order
}

func (resp *CreateOrderResponse) Spec() (int, *openapi3.Response, error) {
	def := &openapi3.Response{
		Content: map[string]openapi3.MediaType{
			"application/json": {
				Schema: &openapi3.SchemaOrRef{
					Schema: orderSchema(),
				},
			},
		},
	}
	return http.StatusCreated, def, nil
}

func (resp *CreateOrderResponse) WriteResponse(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	enc := json.NewEncoder(w)
	return enc.Encode(resp.Order)
}

func (h *createOrderHandler) Handle(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	o, err := h.svc.CreateOrder(ctx, cart.CreateOrderParams{
		OrderID:     req.OrderID,
		CustomerID:  req.CustomerID,
		Currency:    req.Currency,
		Items:       req.Items,
		TotalAmount: req.TotalAmount,
	})
	if err != nil {
		return nil, err
	}
	return &CreateOrderResponse{Order: o}, nil
}
