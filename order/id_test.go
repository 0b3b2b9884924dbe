// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeID(t *testing.T) {
	t.Run("will return a canonical id", func(t *testing.T) {
		t.Run("if the raw id is a short hex number", func(t *testing.T) {
			id, err := NormalizeID("a1")

			require.NoError(t, err)
			assert.Equal(t, "ORD-00A1", id)
		})

		t.Run("if the raw id is longer than the minimum width", func(t *testing.T) {
			id, err := NormalizeID("deadbeef")

			require.NoError(t, err)
			assert.Equal(t, "ORD-DEADBEEF", id)
		})

		t.Run("if the raw id already carries the prefix", func(t *testing.T) {
			id, err := NormalizeID("ORD-00A1")

			require.NoError(t, err)
			assert.Equal(t, "ORD-00A1", id)
		})

		t.Run("if the raw id is lowercase with a lowercase prefix", func(t *testing.T) {
			id, err := NormalizeID("ord-00a1")

			require.NoError(t, err)
			assert.Equal(t, "ORD-00A1", id)
		})
	})

	t.Run("will be idempotent", func(t *testing.T) {
		t.Run("if its own output is normalized again", func(t *testing.T) {
			first, err := NormalizeID("7b")
			require.NoError(t, err)

			second, err := NormalizeID(first)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the raw id is empty", func(t *testing.T) {
			_, err := NormalizeID("")

			assert.ErrorIs(t, err, ErrInvalidID)
		})

		t.Run("if the raw id is only the prefix", func(t *testing.T) {
			_, err := NormalizeID("ORD-")

			assert.ErrorIs(t, err, ErrInvalidID)
		})

		t.Run("if the raw id is not hexadecimal", func(t *testing.T) {
			_, err := NormalizeID("xyz")

			assert.ErrorIs(t, err, ErrInvalidID)
		})
	})
}
