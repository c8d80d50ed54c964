package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{OrderStatusPending, OrderStatusPacked, true},
		{OrderStatusPending, OrderStatusShipped, true},
		{OrderStatusPending, OrderStatusDelivered, true},
		{OrderStatusPacked, OrderStatusShipped, true},
		{OrderStatusPacked, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusDelivered, true},

		// Backward moves.
		{OrderStatusPacked, OrderStatusPending, false},
		{OrderStatusShipped, OrderStatusPacked, false},
		{OrderStatusDelivered, OrderStatusShipped, false},

		// Terminal states.
		{OrderStatusDelivered, OrderStatusPacked, false},
		{OrderStatusCancelled, OrderStatusPending, false},

		// Cancellation never goes through a plain status update.
		{OrderStatusPending, OrderStatusCancelled, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestValidOrderStatus(t *testing.T) {
	for _, s := range []string{OrderStatusPending, OrderStatusPacked, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled} {
		assert.True(t, ValidOrderStatus(s), s)
	}
	assert.False(t, ValidOrderStatus("returned"))
	assert.False(t, ValidOrderStatus(""))
}
