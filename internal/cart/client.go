package cart

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"petstore-service/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/add_item.lua
var addItemScript string

// Client stores carts in Redis, one hash per user keyed by product ID.
// Carts are ephemeral display state: order placement re-validates every
// field except quantity against the catalog.
type Client struct {
	rdb       *redis.Client
	addScript *redis.Script
}

// NewClient creates a cart client and verifies connectivity.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:       rdb,
		addScript: redis.NewScript(addItemScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

// Add merges an item into the user's cart atomically and returns the
// resulting line quantity.
func (c *Client) Add(ctx context.Context, userID string, item models.CartItem) (int, error) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}

	data, err := json.Marshal(item)
	if err != nil {
		return 0, err
	}

	result, err := c.addScript.Run(ctx, c.rdb, []string{cartKey(userID)},
		item.ProductID, string(data), item.Quantity).Result()
	if err != nil {
		return 0, fmt.Errorf("add item script failed: %w", err)
	}

	quantity, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type %T", result)
	}
	return int(quantity), nil
}

// Items returns the user's cart lines.
func (c *Client) Items(ctx context.Context, userID string) ([]models.CartItem, error) {
	fields, err := c.rdb.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	items := make([]models.CartItem, 0, len(fields))
	for _, raw := range fields {
		var item models.CartItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("malformed cart line: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Remove deletes one line from the cart.
func (c *Client) Remove(ctx context.Context, userID, productID string) error {
	return c.rdb.HDel(ctx, cartKey(userID), productID).Err()
}

// Clear empties the cart.
func (c *Client) Clear(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, cartKey(userID)).Err()
}

// Count returns the total quantity across all lines, for the cart badge.
func (c *Client) Count(ctx context.Context, userID string) (int, error) {
	items, err := c.Items(ctx, userID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total, nil
}
