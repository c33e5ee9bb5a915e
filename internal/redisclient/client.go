package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Key conventions. Pub/sub channels carry the best-effort realtime pushes;
// any instance may publish, whichever instance holds the recipient's live
// connection delivers.
const (
	keyPushChannel = "push:user:%d"
	keyOrderStatus = "order_status:%d"
)

var ttlStatusCache = 5 * time.Minute

// OrderStatusEntry is the cached view of an order used by the status poll
// fast path. It carries the parties so access can be checked without hitting
// the database.
type OrderStatusEntry struct {
	Status   string `json:"status"`
	BuyerID  int64  `json:"buyer_id"`
	SellerID int64  `json:"seller_id"`
}

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
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

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Push publishes a realtime payload to the recipient's channel. Delivery is
// best-effort: no subscribers is not an error, and callers never retry.
func (c *Client) Push(ctx context.Context, recipientID int64, payload []byte) error {
	return c.rdb.Publish(ctx, fmt.Sprintf(keyPushChannel, recipientID), payload).Err()
}

// CacheOrderStatus stores an order's latest status entry with a short TTL.
func (c *Client) CacheOrderStatus(ctx context.Context, orderID int64, entry OrderStatusEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(keyOrderStatus, orderID), payload, ttlStatusCache).Err()
}

// GetCachedOrderStatus retrieves a cached status entry. Nil on miss.
func (c *Client) GetCachedOrderStatus(ctx context.Context, orderID int64) (*OrderStatusEntry, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf(keyOrderStatus, orderID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry OrderStatusEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
