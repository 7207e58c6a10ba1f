// Package sqlstore provides an analytics client that records identifies, page
// views and events in PostgreSQL or SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/beacon/pkg/dispatch"
)

const DefaultName = "sql"

// Supported drivers. The binary registers them with blank imports of
// github.com/lib/pq and github.com/mattn/go-sqlite3.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS beacon_identifies (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		traits TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS beacon_page_views (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		name TEXT NOT NULL,
		properties TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS beacon_events (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		name TEXT NOT NULL,
		properties TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_beacon_events_name ON beacon_events(name)`,
}

// Options configures a Client.
type Options struct {
	Name   string
	Driver string
}

// Client writes one row per call. Properties are stored as JSON text.
type Client struct {
	name   string
	driver string
	db     *sql.DB
	owned  bool

	mu     sync.RWMutex
	userID string
}

var (
	_ dispatch.AnalyticsClient = (*Client)(nil)
	_ dispatch.Pinger          = (*Client)(nil)
)

// New wraps an existing connection pool. Close leaves db open.
func New(db *sql.DB, opts Options) (*Client, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	switch opts.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	return &Client{name: opts.Name, driver: opts.Driver, db: db}, nil
}

// Open connects to dsn and creates the tables. Close closes the pool.
func Open(ctx context.Context, dsn string, opts Options) (*Client, error) {
	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.Driver == DriverSQLite {
		// One writer at a time avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	c, err := New(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.owned = true

	if err := c.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Migrate creates the tables if they do not exist.
func (c *Client) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

func (c *Client) ClientType() dispatch.ClientType { return dispatch.TypeAnalytics }
func (c *Client) ClientName() string              { return c.name }

func (c *Client) IdentifyUser(ctx context.Context, id string, otherInfo dispatch.Properties) error {
	traits, err := encode(otherInfo)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx,
		c.rebind(`INSERT INTO beacon_identifies (id, user_id, traits, created_at) VALUES (?, ?, ?, ?)`),
		uuid.NewString(), id, traits, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert identify: %w", err)
	}

	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
	return nil
}

func (c *Client) Page(ctx context.Context, page string, properties dispatch.Properties) error {
	return c.insert(ctx, "beacon_page_views", page, properties)
}

func (c *Client) SendEvent(ctx context.Context, event string, properties dispatch.Properties) error {
	return c.insert(ctx, "beacon_events", event, properties)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.db.Close()
}

func (c *Client) insert(ctx context.Context, table, name string, properties dispatch.Properties) error {
	props, err := encode(properties)
	if err != nil {
		return err
	}

	c.mu.RLock()
	userID := c.userID
	c.mu.RUnlock()

	var user any
	if userID != "" {
		user = userID
	}

	query := c.rebind(`INSERT INTO ` + table + ` (id, user_id, name, properties, created_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := c.db.ExecContext(ctx, query, uuid.NewString(), user, name, props, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (c *Client) rebind(query string) string {
	if c.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// encode returns nil for absent properties so the column stays NULL.
func encode(properties dispatch.Properties) (any, error) {
	if properties == nil {
		return nil, nil
	}
	data, err := json.Marshal(properties)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}
	return string(data), nil
}
