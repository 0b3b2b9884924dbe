// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package endpoint

import (
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/ptr"
)

func itemSchema() openapi3.SchemaOrRef {
	return openapi3.SchemaOrRef{
		Schema: &openapi3.Schema{
			Type: ptr.Ref(openapi3.SchemaTypeObject),
			Properties: map[string]openapi3.SchemaOrRef{
				"productId": {
					Schema: &openapi3.Schema{
						Type: ptr.Ref(openapi3.SchemaTypeString),
					},
				},
				"name": {
					Schema: &openapi3.Schema{
						Type: ptr.Ref(openapi3.SchemaTypeString),
					},
				},
				"quantity": {
					Schema: &openapi3.Schema{
						Type: ptr.Ref(openapi3.SchemaTypeInteger),
					},
				},
				"price": {
					Schema: &openapi3.Schema{
						Type: ptr.Ref(openapi3.SchemaTypeNumber),
					},
				},
			},
		},
	}
}

func orderSchema() *openapi3.Schema {
	return &openapi3.Schema{
		Type: ptr.Ref(openapi3.SchemaTypeObject),
		Properties: map[string]openapi3.SchemaOrRef{
			"orderId": {
				Schema: &openapi3.Schema{
					Type: ptr.Ref(openapi3.SchemaTypeString),
				},
			},
			"customerId": {
				Schema: &openapi3.Schema{
					Type: ptr.Ref(openapi3.SchemaTypeString),
				},
			},
			"orderDate": {
				Schema: &openapi3.Schema{
					Type:   ptr.Ref(openapi3.SchemaTypeString),
					Format: ptr.Ref("date-time"),
				},
			},
			"currency": {
				Schema: &openapi3.Schema{
					Type: ptr.Ref(openapi3.SchemaTypeString),
				},
			},
			"status": {
				Schema: &openapi3.Schema{
					Type: ptr.Ref(openapi3.SchemaTypeString),
				},
			},
			"items": {
				Schema: &openapi3.Schema{
					Type:  ptr.Ref(openapi3.SchemaTypeArray),
					Items: ptr.Ref(itemSchema()),
				},
			},
			"totalAmount": {
				Schema: &openapi3.Schema{
					Type: ptr.Ref(openapi3.SchemaTypeNumber),
				},
			},
		},
	}
}
