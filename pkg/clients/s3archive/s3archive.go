// Package s3archive provides an error client that stores each error report
// as a JSON object in S3 (or any S3 compatible store).
package s3archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/beacon/pkg/dispatch"
)

const DefaultName = "s3"

var tracer = otel.Tracer("github.com/platinummonkey/beacon/pkg/clients/s3archive")

// ObjectPutter is the subset of *s3.Client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures a Client.
type Options struct {
	Name   string
	Bucket string
	Prefix string
	Region string
	// Endpoint and UsePathStyle target S3 compatible stores such as MinIO.
	Endpoint     string
	UsePathStyle bool
	// Static credentials; the default AWS chain is used when empty.
	AccessKey string
	SecretKey string
}

// Report is the stored object body.
type Report struct {
	ID        string              `json:"id"`
	Message   string              `json:"message"`
	Level     dispatch.Level      `json:"level"`
	UserID    string              `json:"user_id,omitempty"`
	User      dispatch.Properties `json:"user,omitempty"`
	ErrorInfo []any               `json:"error_info"`
	Timestamp time.Time           `json:"timestamp"`
}

// Client archives error reports. Reports without a severity are stored at
// error level.
type Client struct {
	name   string
	bucket string
	prefix string
	putter ObjectPutter
	now    func() time.Time

	mu     sync.RWMutex
	userID string
	user   dispatch.Properties
}

var _ dispatch.ErrorClient = (*Client)(nil)

// New builds an S3 client from opts.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return NewWithPutter(client, opts)
}

// NewWithPutter uses putter for uploads.
func NewWithPutter(putter ObjectPutter, opts Options) (*Client, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	return &Client{
		name:   opts.Name,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
		putter: putter,
		now:    time.Now,
	}, nil
}

func (c *Client) ClientType() dispatch.ClientType { return dispatch.TypeError }
func (c *Client) ClientName() string              { return c.name }

// IdentifyUser attaches the user to later reports.
func (c *Client) IdentifyUser(_ context.Context, id string, otherInfo dispatch.Properties) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = id
	c.user = otherInfo
	return nil
}

func (c *Client) TrackError(ctx context.Context, message string, errorInfo []any, level dispatch.Level) error {
	c.mu.RLock()
	report := Report{
		ID:        uuid.NewString(),
		Message:   message,
		Level:     level.Or(dispatch.LevelError),
		UserID:    c.userID,
		User:      c.user,
		ErrorInfo: encodeInfo(errorInfo),
		Timestamp: c.now().UTC(),
	}
	c.mu.RUnlock()

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	key := c.objectKey(report)

	ctx, span := tracer.Start(ctx, "S3.PutObject",
		trace.WithAttributes(
			attribute.String("s3.operation", "PutObject"),
			attribute.String("s3.bucket", c.bucket),
			attribute.String("s3.key", key),
			attribute.Int("content.size", len(body)),
		),
	)
	defer span.End()

	_, err = c.putter.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"level": string(report.Level),
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return fmt.Errorf("failed to upload report: %w", err)
	}
	return nil
}

// objectKey is prefix/YYYY/MM/DD/<id>.json.
func (c *Client) objectKey(r Report) string {
	return path.Join(c.prefix, r.Timestamp.Format("2006/01/02"), r.ID+".json")
}

// encodeInfo keeps JSON friendly values and flattens the rest: errors to
// their message, anything else unencodable to its %v form.
func encodeInfo(info []any) []any {
	out := make([]any, len(info))
	for i, v := range info {
		switch x := v.(type) {
		case nil:
			out[i] = nil
		case error:
			out[i] = x.Error()
		default:
			if _, err := json.Marshal(x); err != nil {
				out[i] = fmt.Sprintf("%v", x)
			} else {
				out[i] = x
			}
		}
	}
	return out
}
