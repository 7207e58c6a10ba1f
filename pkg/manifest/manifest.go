package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Client kinds.
const (
	KindDebugAnalytics = "debug-analytics"
	KindDebugError     = "debug-error"
	KindWebhook        = "webhook"
	KindSQL            = "sql"
	KindRedis          = "redis"
	KindS3             = "s3"
	KindOTel           = "otel"
	KindPrometheus     = "prometheus"
)

// Kinds lists every kind the default builder knows.
var Kinds = []string{
	KindDebugAnalytics, KindDebugError, KindWebhook, KindSQL,
	KindRedis, KindS3, KindOTel, KindPrometheus,
}

// ErrUnknownKind is returned for a client kind no factory is registered for.
var ErrUnknownKind = errors.New("unknown client kind")

// Manifest is the set of clients the server should have registered.
type Manifest struct {
	Clients []ClientSpec `yaml:"clients"`
}

// ClientSpec describes one client. Only the fields of its kind are read.
type ClientSpec struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// webhook
	URL         string        `yaml:"url,omitempty"`
	Secret      string        `yaml:"secret,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	MaxAttempts int           `yaml:"max_attempts,omitempty"`

	// sql
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`

	// redis (also uses URL)
	Stream string `yaml:"stream,omitempty"`
	MaxLen int64  `yaml:"max_len,omitempty"`

	// s3
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
}

// Fingerprint identifies the spec's content. Two specs with the same
// fingerprint build equivalent clients.
func (s ClientSpec) Fingerprint() string {
	data, err := yaml.Marshal(s)
	if err != nil {
		// Every field is a plain scalar.
		panic(fmt.Sprintf("marshal client spec: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse parses a manifest. ${VAR} references are expanded from the
// environment before parsing, so secrets can stay out of the file.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every problem found in a manifest.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return "invalid manifest: " + strings.Join(msgs, "; ")
}

// Validate checks names are present and unique, kinds are known and each
// kind's required fields are set. The returned error is ValidationErrors;
// unknown kinds also match ErrUnknownKind.
func (m *Manifest) Validate() error {
	var errs ValidationErrors
	unknown := false
	seen := make(map[string]bool, len(m.Clients))

	for i, c := range m.Clients {
		field := func(name string) string { return fmt.Sprintf("clients[%d].%s", i, name) }
		require := func(value, name string) {
			if value == "" {
				errs = append(errs, ValidationError{Field: field(name), Message: name + " is required for kind " + c.Kind})
			}
		}

		if c.Name == "" {
			errs = append(errs, ValidationError{Field: field("name"), Message: "name is required"})
		} else if seen[c.Name] {
			errs = append(errs, ValidationError{Field: field("name"), Message: fmt.Sprintf("duplicate client name %q", c.Name)})
		}
		seen[c.Name] = true

		switch c.Kind {
		case KindDebugAnalytics, KindDebugError, KindOTel, KindPrometheus:
		case KindWebhook:
			require(c.URL, "url")
			if c.MaxAttempts < 0 {
				errs = append(errs, ValidationError{Field: field("max_attempts"), Message: "max_attempts must not be negative"})
			}
		case KindSQL:
			require(c.DSN, "dsn")
			if c.Driver != "postgres" && c.Driver != "sqlite3" {
				errs = append(errs, ValidationError{Field: field("driver"), Message: "driver must be postgres or sqlite3"})
			}
		case KindRedis:
			require(c.URL, "url")
		case KindS3:
			require(c.Bucket, "bucket")
		case "":
			errs = append(errs, ValidationError{Field: field("kind"), Message: "kind is required"})
		default:
			unknown = true
			errs = append(errs, ValidationError{Field: field("kind"), Message: fmt.Sprintf("%v %q", ErrUnknownKind, c.Kind)})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	if unknown {
		return fmt.Errorf("%w: %w", ErrUnknownKind, errs)
	}
	return errs
}
