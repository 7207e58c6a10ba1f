// Package redisstream provides an analytics client that appends every call
// to a capped Redis stream.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/beacon/pkg/dispatch"
)

const (
	DefaultName   = "redis"
	DefaultStream = "beacon:events"
	DefaultMaxLen = 10000
)

// Options configures a Client.
type Options struct {
	Name   string
	URL    string
	Stream string
	// MaxLen caps the stream approximately (XADD MAXLEN ~).
	MaxLen int64
}

// Client writes one stream entry per call with the fields type, name,
// user_id, properties (JSON) and timestamp.
type Client struct {
	name   string
	stream string
	maxLen int64
	client *redis.Client

	mu     sync.RWMutex
	userID string
}

var (
	_ dispatch.AnalyticsClient = (*Client)(nil)
	_ dispatch.Pinger          = (*Client)(nil)
)

// New connects to opts.URL and verifies the connection.
func New(ctx context.Context, opts Options) (*Client, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	redisOpts.DialTimeout = 5 * time.Second
	redisOpts.ReadTimeout = 3 * time.Second
	redisOpts.WriteTimeout = 3 * time.Second
	redisOpts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, opts), nil
}

// NewWithClient wraps an existing connection. Close closes it.
func NewWithClient(client *redis.Client, opts Options) *Client {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Stream == "" {
		opts.Stream = DefaultStream
	}
	if opts.MaxLen <= 0 {
		opts.MaxLen = DefaultMaxLen
	}
	return &Client{
		name:   opts.Name,
		stream: opts.Stream,
		maxLen: opts.MaxLen,
		client: client,
	}
}

func (c *Client) ClientType() dispatch.ClientType { return dispatch.TypeAnalytics }
func (c *Client) ClientName() string              { return c.name }

func (c *Client) IdentifyUser(ctx context.Context, id string, otherInfo dispatch.Properties) error {
	if err := c.add(ctx, "identify", "", id, otherInfo); err != nil {
		return err
	}
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
	return nil
}

func (c *Client) Page(ctx context.Context, page string, properties dispatch.Properties) error {
	return c.add(ctx, "page", page, c.currentUser(), properties)
}

func (c *Client) SendEvent(ctx context.Context, event string, properties dispatch.Properties) error {
	return c.add(ctx, "track", event, c.currentUser(), properties)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) currentUser() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) add(ctx context.Context, msgType, name, userID string, properties dispatch.Properties) error {
	props := "{}"
	if properties != nil {
		data, err := json.Marshal(properties)
		if err != nil {
			return fmt.Errorf("failed to marshal properties: %w", err)
		}
		props = string(data)
	}

	err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream,
		MaxLen: c.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":       msgType,
			"name":       name,
			"user_id":    userID,
			"properties": props,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd failed: %w", err)
	}
	return nil
}
