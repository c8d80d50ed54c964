package cart

import (
	"context"
	"testing"

	"petstore-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartRoundTrip(t *testing.T) {
	t.Skip("Integration test - requires Redis")

	client, err := NewClient("localhost:6379", "", 0)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	const userID = "cart-test-user"
	defer client.Clear(ctx, userID)

	quantity, err := client.Add(ctx, userID, models.CartItem{
		ProductID: "p1",
		Name:      "Feline Dewormer Tablets",
		Price:     1200,
		Quantity:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, quantity)

	// Adding the same product merges quantities.
	quantity, err = client.Add(ctx, userID, models.CartItem{
		ProductID: "p1",
		Name:      "Feline Dewormer Tablets",
		Price:     1200,
		Quantity:  3,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, quantity)

	items, err := client.Items(ctx, userID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)

	count, err := client.Count(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	require.NoError(t, client.Remove(ctx, userID, "p1"))
	items, err = client.Items(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, items)
}
