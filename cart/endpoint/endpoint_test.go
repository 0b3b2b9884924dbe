// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/z5labs/orderflow/cart"
	"github.com/z5labs/orderflow/order"
	"github.com/z5labs/orderflow/rest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct {
	err error
}

func (p *stubPublisher) Publish(context.Context, order.Order) error {
	return p.err
}

func newTestServer(t *testing.T, publisher cart.Publisher) *httptest.Server {
	t.Helper()

	svc := cart.NewService(cart.NewStore(), publisher)

	router := rest.NewRouter("cart service", "test")
	CreateOrder(router, svc)
	UpdateOrder(router, svc)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() {
		resp.Body.Close()
	})
	return resp
}

func putJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() {
		resp.Body.Close()
	})
	return resp
}

func TestCreateOrder(t *testing.T) {
	t.Run("will return 201", func(t *testing.T) {
		t.Run("if the order is created and published", func(t *testing.T) {
			srv := newTestServer(t, &stubPublisher{})

			resp := postJSON(t, srv.URL+"/create-order", CreateOrderRequest{
				OrderID:     "a1",
				CustomerID:  "cust-1",
				TotalAmount: 100,
			})

			require.Equal(t, http.StatusCreated, resp.StatusCode)

			var created order.Order
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
			assert.Equal(t, "ORD-00A1", created.ID)
			assert.Equal(t, order.StatusNew, created.Status)
			assert.Equal(t, "USD", created.Currency)
			assert.False(t, created.OrderDate.IsZero())
		})
	})

	t.Run("will return 400", func(t *testing.T) {
		t.Run("if the total amount is negative", func(t *testing.T) {
			srv := newTestServer(t, &stubPublisher{})

			resp := postJSON(t, srv.URL+"/create-order", CreateOrderRequest{
				CustomerID:  "cust-1",
				TotalAmount: -1,
			})

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})

		t.Run("if the content type is not json", func(t *testing.T) {
			srv := newTestServer(t, &stubPublisher{})

			resp, err := http.Post(srv.URL+"/create-order", "text/plain", bytes.NewReader([]byte("hi")))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	})

	t.Run("will return 409", func(t *testing.T) {
		t.Run("if the order id already exists", func(t *testing.T) {
			srv := newTestServer(t, &stubPublisher{})

			resp := postJSON(t, srv.URL+"/create-order", CreateOrderRequest{
				OrderID:    "a1",
				CustomerID: "cust-1",
			})
			require.Equal(t, http.StatusCreated, resp.StatusCode)

			resp = postJSON(t, srv.URL+"/create-order", CreateOrderRequest{
				OrderID:    "a1",
				CustomerID: "cust-2",
			})
			assert.Equal(t, http.StatusConflict, resp.StatusCode)
		})
	})

	t.Run("will return 500", func(t *testing.T) {
		t.Run("if the publish fails", func(t *testing.T) {
			srv := newTestServer(t, &stubPublisher{err: errors.New("broker down")})

			resp := postJSON(t, srv.URL+"/create-order", CreateOrderRequest{
				OrderID:    "a1",
				CustomerID: "cust-1",
			})

			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		})
	})
}

func TestUpdateOrder(t *testing.T) {
	t.Run("will return 200", func(t *testing.T) {
		t.Run("if the transition is applied and published", func(t *testing.T) {
			srv := newTestServer(t, &stubPublisher{})

			resp := postJSON(t, srv.URL+"/create-order", CreateOrderRequest{
				OrderID:    "a1",
				CustomerID: "cust-1",
			})
			require.Equal(t, http.StatusCreated, resp.StatusCode)

			resp = putJSON(t, srv.URL+"/update-order", UpdateOrderRequest{
				OrderID: "ORD-00A1",
				Status:  "confirmed",
			})
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var updated order.Order
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
			assert.Equal(t, order.StatusConfirmed, updated.Status)
		})
	})

	t.Run("will return 404", func(t *testing.T) {
		t.Run("if the order does not exist", func(t *testing.T) {
			srv := newTestServer(t, &stubPublisher{})

			resp := putJSON(t, srv.URL+"/update-order", UpdateOrderRequest{
				OrderID: "ORD-0FFF",
				Status:  "confirmed",
			})

			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	})

	t.Run("will return 409", func(t *testing.T) {
		t.Run("if the transition skips a rank", func(t *testing.T) {
			srv := newTestServer(t, &stubPublisher{})

			resp := postJSON(t, srv.URL+"/create-order", CreateOrderRequest{
				OrderID:    "a1",
				CustomerID: "cust-1",
			})
			require.Equal(t, http.StatusCreated, resp.StatusCode)

			resp = putJSON(t, srv.URL+"/update-order", UpdateOrderRequest{
				OrderID: "ORD-00A1",
				Status:  "completed",
			})
			assert.Equal(t, http.StatusConflict, resp.StatusCode)
		})
	})
}
