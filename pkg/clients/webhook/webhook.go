// Package webhook provides an analytics client that POSTs signed JSON
// messages to an HTTP collector.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/beacon/pkg/async"
	"github.com/platinummonkey/beacon/pkg/dispatch"
	"github.com/platinummonkey/beacon/pkg/observability"
)

const (
	DefaultName    = "webhook"
	DefaultTimeout = 5 * time.Second

	SignatureHeader = "X-Beacon-Signature"
)

// Message types.
const (
	TypeIdentify = "identify"
	TypePage     = "page"
	TypeTrack    = "track"
)

// ErrClosed is returned for calls made after Close.
var ErrClosed = errors.New("webhook client closed")

// Message is the JSON body sent to the collector.
type Message struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	UserID     string              `json:"user_id,omitempty"`
	Name       string              `json:"name,omitempty"`
	Category   string              `json:"category,omitempty"`
	Properties dispatch.Properties `json:"properties,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Options configures a Client.
type Options struct {
	Name string
	URL  string
	// Secret enables HMAC-SHA256 signing of each body.
	Secret string
	// Timeout bounds each background send, retries included. Defaults to
	// DefaultTimeout.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *observability.Logger
	// Retry controls redelivery of failed sends. Zero fields take the
	// DefaultRetryConfig values.
	Retry RetryConfig
}

// Client sends each call as one message in the background. Calls return as
// soon as the message is queued. Failed sends are retried with backoff and
// then only logged.
type Client struct {
	name    string
	url     string
	secret  string
	timeout time.Duration
	http    *http.Client
	logger  *observability.Logger
	retry   retryPolicy
	tasks   async.Tasks

	mu     sync.RWMutex
	userID string
}

var _ dispatch.AnalyticsClient = (*Client)(nil)

// New creates a webhook client.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}

	return &Client{
		name:    opts.Name,
		url:     opts.URL,
		secret:  opts.Secret,
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		logger:  opts.Logger.WithClient(opts.Name),
		retry:   newRetryPolicy(opts.Retry),
	}, nil
}

func (c *Client) ClientType() dispatch.ClientType { return dispatch.TypeAnalytics }
func (c *Client) ClientName() string              { return c.name }

// IdentifyUser sends an identify message and tags later messages with id.
func (c *Client) IdentifyUser(ctx context.Context, id string, otherInfo dispatch.Properties) error {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()

	return c.send(ctx, Message{Type: TypeIdentify, UserID: id, Properties: otherInfo})
}

// Page sends a page message. A "category" property is lifted into the
// message's category field.
func (c *Client) Page(ctx context.Context, page string, properties dispatch.Properties) error {
	category, rest := splitCategory(properties)
	return c.send(ctx, Message{Type: TypePage, Name: page, Category: category, Properties: rest})
}

func (c *Client) SendEvent(ctx context.Context, event string, properties dispatch.Properties) error {
	return c.send(ctx, Message{Type: TypeTrack, Name: event, Properties: properties})
}

// Close waits for in-flight sends, bounded by the send timeout.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.tasks.Wait(ctx)
}

func (c *Client) send(ctx context.Context, msg Message) error {
	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now().UTC()
	if msg.UserID == "" {
		c.mu.RLock()
		msg.UserID = c.userID
		c.mu.RUnlock()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
	}

	// The send outlives the caller's request but keeps its trace.
	queued := c.tasks.Go(context.WithoutCancel(ctx), c.logger, c.timeout, "webhook "+msg.Type, func(ctx context.Context) error {
		return c.retry.do(ctx, func(ctx context.Context) error {
			return c.post(ctx, msg, payload)
		})
	})
	if !queued {
		return ErrClosed
	}
	return nil
}

func (c *Client) post(ctx context.Context, msg Message, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Beacon-Message-Type", msg.Type)
	req.Header.Set("X-Beacon-Message-ID", msg.ID)
	if c.secret != "" {
		req.Header.Set(SignatureHeader, generateSignature(payload, c.secret))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

func splitCategory(properties dispatch.Properties) (string, dispatch.Properties) {
	raw, ok := properties["category"]
	if !ok {
		return "", properties
	}
	rest := make(dispatch.Properties, len(properties)-1)
	for k, v := range properties {
		if k != "category" {
			rest[k] = v
		}
	}
	category, _ := raw.(string)
	return category, rest
}

// VerifySignature verifies the webhook signature
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := generateSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// generateSignature generates HMAC-SHA256 signature
func generateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
