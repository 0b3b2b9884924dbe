// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package endpoint

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/z5labs/orderflow/order"
	"github.com/z5labs/orderflow/orders"
	"github.com/z5labs/orderflow/rest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, store *orders.Store) *httptest.Server {
	t.Helper()

	query := orders.NewQuery(store)

	router := rest.NewRouter("order service", "test")
	OrderDetails(router, query)
	ListOrders(router, query)

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

func TestOrderDetails(t *testing.T) {
	t.Run("will return 200", func(t *testing.T) {
		t.Run("if the order was processed", func(t *testing.T) {
			store := orders.NewStore()
			store.Put(orders.ProcessedOrder{
				Order: order.Order{
					ID:          "ORD-00A1",
					CustomerID:  "cust-1",
					Status:      order.StatusConfirmed,
					TotalAmount: 100,
				},
				ShippingCost: 2,
			})
			srv := newTestServer(t, store)

			resp := postJSON(t, srv.URL+"/order-details", OrderDetailsRequest{OrderID: "ord-00a1"})

			require.Equal(t, http.StatusOK, resp.StatusCode)

			var details orders.ProcessedOrder
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&details))
			assert.Equal(t, "ORD-00A1", details.ID)
			assert.Equal(t, float64(2), details.ShippingCost)
		})
	})

	t.Run("will return 400", func(t *testing.T) {
		t.Run("if the order id is malformed", func(t *testing.T) {
			srv := newTestServer(t, orders.NewStore())

			resp := postJSON(t, srv.URL+"/order-details", OrderDetailsRequest{OrderID: "not-hex"})

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	})

	t.Run("will return 404", func(t *testing.T) {
		t.Run("if the order was never processed", func(t *testing.T) {
			srv := newTestServer(t, orders.NewStore())

			resp := postJSON(t, srv.URL+"/order-details", OrderDetailsRequest{OrderID: "ORD-0FFF"})

			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	})
}

func TestListOrders(t *testing.T) {
	t.Run("will return every processed order", func(t *testing.T) {
		t.Run("if orders were processed", func(t *testing.T) {
			store := orders.NewStore()
			store.Put(orders.ProcessedOrder{Order: order.Order{ID: "ORD-0002", Status: order.StatusNew}})
			store.Put(orders.ProcessedOrder{Order: order.Order{ID: "ORD-0001", Status: order.StatusConfirmed}})
			srv := newTestServer(t, store)

			resp := postJSON(t, srv.URL+"/getAllOrdersFromTopic", struct{}{})

			require.Equal(t, http.StatusOK, resp.StatusCode)

			var list ListOrdersResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
			require.Len(t, list.Orders, 2)
			assert.Equal(t, "ORD-0001", list.Orders[0].ID)
			assert.Equal(t, "ORD-0002", list.Orders[1].ID)
		})
	})

	t.Run("will return an empty list", func(t *testing.T) {
		t.Run("if no orders were processed", func(t *testing.T) {
			srv := newTestServer(t, orders.NewStore())

			resp := postJSON(t, srv.URL+"/getAllOrdersFromTopic", struct{}{})

			require.Equal(t, http.StatusOK, resp.StatusCode)

			var list ListOrdersResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
			assert.Empty(t, list.Orders)
			assert.NotNil(t, list.Orders)
		})
	})
}
