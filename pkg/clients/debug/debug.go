// Package debug provides log-only analytics and error clients, useful during
// development and as a catch-all sink.
package debug

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/beacon/pkg/dispatch"
)

const (
	DefaultAnalyticsName = "debug_analytics"
	DefaultErrorName     = "debug_error"
)

// Options configures the debug clients.
type Options struct {
	// Name overrides the default client name.
	Name string
	// Logger defaults to logrus.New().
	Logger *logrus.Logger
}

func (o Options) logger() *logrus.Logger {
	if o.Logger == nil {
		return logrus.New()
	}
	return o.Logger
}

// AnalyticsClient logs every analytics call.
type AnalyticsClient struct {
	name   string
	logger *logrus.Logger
}

var _ dispatch.AnalyticsClient = (*AnalyticsClient)(nil)

// NewAnalyticsClient creates a log-only analytics client.
func NewAnalyticsClient(opts Options) *AnalyticsClient {
	name := opts.Name
	if name == "" {
		name = DefaultAnalyticsName
	}
	return &AnalyticsClient{name: name, logger: opts.logger()}
}

func (c *AnalyticsClient) ClientType() dispatch.ClientType { return dispatch.TypeAnalytics }
func (c *AnalyticsClient) ClientName() string              { return c.name }

func (c *AnalyticsClient) IdentifyUser(_ context.Context, id string, otherInfo dispatch.Properties) error {
	logIdentify(c.logger, c.name, id, otherInfo)
	return nil
}

func (c *AnalyticsClient) Page(_ context.Context, page string, properties dispatch.Properties) error {
	c.logger.WithFields(logrus.Fields{
		"client":     c.name,
		"page":       page,
		"properties": properties,
	}).Info("page view")
	return nil
}

func (c *AnalyticsClient) SendEvent(_ context.Context, event string, properties dispatch.Properties) error {
	c.logger.WithFields(logrus.Fields{
		"client":     c.name,
		"event":      event,
		"properties": properties,
	}).Info("event")
	return nil
}

// ErrorClient logs every error report at a logrus level matching its
// severity. Reports without a severity are logged as errors.
type ErrorClient struct {
	name   string
	logger *logrus.Logger
}

var _ dispatch.ErrorClient = (*ErrorClient)(nil)

// NewErrorClient creates a log-only error client.
func NewErrorClient(opts Options) *ErrorClient {
	name := opts.Name
	if name == "" {
		name = DefaultErrorName
	}
	return &ErrorClient{name: name, logger: opts.logger()}
}

func (c *ErrorClient) ClientType() dispatch.ClientType { return dispatch.TypeError }
func (c *ErrorClient) ClientName() string              { return c.name }

func (c *ErrorClient) IdentifyUser(_ context.Context, id string, otherInfo dispatch.Properties) error {
	logIdentify(c.logger, c.name, id, otherInfo)
	return nil
}

func (c *ErrorClient) TrackError(_ context.Context, message string, errorInfo []any, level dispatch.Level) error {
	level = level.Or(dispatch.LevelError)
	entry := c.logger.WithFields(logrus.Fields{
		"client":     c.name,
		"message":    message,
		"error_info": errorInfo,
		"level":      level.String(),
	})

	// Reports are never filtered out; debug ones print at info.
	msg := "error:" + level.String()
	switch level {
	case dispatch.LevelLog, dispatch.LevelDebug, dispatch.LevelInfo:
		entry.Info(msg)
	case dispatch.LevelWarn:
		entry.Warn(msg)
	case dispatch.LevelCritical:
		entry.WithField("critical", true).Error(msg)
	default:
		entry.Error(msg)
	}
	return nil
}

func logIdentify(logger *logrus.Logger, client, id string, otherInfo dispatch.Properties) {
	logger.WithFields(logrus.Fields{
		"client":     client,
		"user_id":    id,
		"other_info": otherInfo,
	}).Info("identified user")
}
