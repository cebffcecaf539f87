package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/claim_order.lua
var claimOrderScript string

// claimTTL bounds how long a dispatch claim outlives its dispatcher.
const claimTTL = 30 * time.Second

// Client wraps Redis for the two display/fast-path concerns of the
// dispatch engine: live courier tracking mirrors and assignment claims.
// Neither is correctness-critical; the storage transaction is always
// the authority.
type Client struct {
	rdb         *redis.Client
	claimScript *redis.Script
}

// NewClient creates a new Redis client with the claim script loaded.
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
		rdb:         rdb,
		claimScript: redis.NewScript(claimOrderScript),
	}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ClaimOrder marks an order as being assigned by a dispatcher acting
// for courierID. Returns false when another courier already holds the
// claim, letting concurrent dispatchers skip the doomed transaction.
// Re-entrant for the same courier; the claim expires on its own.
func (c *Client) ClaimOrder(ctx context.Context, orderID, courierID int64) (bool, error) {
	key := fmt.Sprintf("dispatch:claim:%d", orderID)

	result, err := c.claimScript.Run(ctx, c.rdb, []string{key},
		courierID, int(claimTTL.Seconds())).Result()
	if err != nil {
		return false, fmt.Errorf("claim order script failed: %w", err)
	}

	granted, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}
	return granted == 1, nil
}

// ReleaseClaim drops a dispatch claim after the transaction resolves.
func (c *Client) ReleaseClaim(ctx context.Context, orderID int64) error {
	return c.rdb.Del(ctx, fmt.Sprintf("dispatch:claim:%d", orderID)).Err()
}

// MirrorCourierPosition publishes a courier's live position for
// tracking consumers. Best effort: callers log and move on if it fails.
func (c *Client) MirrorCourierPosition(ctx context.Context, courierID int64, lat, lng float64, status string) error {
	key := fmt.Sprintf("tracking:courier:%d", courierID)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "lat", lat, "lng", lng, "status", status,
		"updated_at", time.Now().Unix())
	pipe.Expire(ctx, key, 10*time.Minute)

	_, err := pipe.Exec(ctx)
	return err
}

// MirrorOrderPosition publishes the courier's live position against an
// in-flight order for the customer tracking view.
func (c *Client) MirrorOrderPosition(ctx context.Context, orderID int64, lat, lng float64) error {
	key := fmt.Sprintf("tracking:order:%d", orderID)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "lat", lat, "lng", lng, "updated_at", time.Now().Unix())
	pipe.Expire(ctx, key, 10*time.Minute)

	_, err := pipe.Exec(ctx)
	return err
}
