package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
clients:
  - name: console
    kind: debug-analytics
  - name: hooks
    kind: webhook
    url: https://collector.example.com/events
    secret: ${BEACON_TEST_SECRET}
    timeout: 2s
  - name: audit
    kind: sql
    driver: sqlite3
    dsn: "file::memory:"
  - name: stream
    kind: redis
    url: redis://localhost:6379/0
    max_len: 500
`

func TestParse(t *testing.T) {
	t.Setenv("BEACON_TEST_SECRET", "s3cr3t")

	m, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, m.Clients, 4)

	hooks := m.Clients[1]
	assert.Equal(t, "hooks", hooks.Name)
	assert.Equal(t, KindWebhook, hooks.Kind)
	assert.Equal(t, "s3cr3t", hooks.Secret)
	assert.Equal(t, 2*time.Second, hooks.Timeout)
	assert.Equal(t, int64(500), m.Clients[3].MaxLen)

	assert.NoError(t, m.Validate())
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("clients: [name: x"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Clients, 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		clients []ClientSpec
		fields  []string
	}{
		{
			name:    "missing name",
			clients: []ClientSpec{{Kind: KindOTel}},
			fields:  []string{"clients[0].name"},
		},
		{
			name: "duplicate name",
			clients: []ClientSpec{
				{Name: "a", Kind: KindOTel},
				{Name: "a", Kind: KindPrometheus},
			},
			fields: []string{"clients[1].name"},
		},
		{
			name:    "missing kind",
			clients: []ClientSpec{{Name: "a"}},
			fields:  []string{"clients[0].kind"},
		},
		{
			name:    "webhook without url",
			clients: []ClientSpec{{Name: "a", Kind: KindWebhook}},
			fields:  []string{"clients[0].url"},
		},
		{
			name:    "webhook with negative attempts",
			clients: []ClientSpec{{Name: "a", Kind: KindWebhook, URL: "http://x", MaxAttempts: -1}},
			fields:  []string{"clients[0].max_attempts"},
		},
		{
			name:    "sql without dsn and driver",
			clients: []ClientSpec{{Name: "a", Kind: KindSQL}},
			fields:  []string{"clients[0].dsn", "clients[0].driver"},
		},
		{
			name:    "sql with unsupported driver",
			clients: []ClientSpec{{Name: "a", Kind: KindSQL, DSN: "x", Driver: "mysql"}},
			fields:  []string{"clients[0].driver"},
		},
		{
			name:    "redis without url",
			clients: []ClientSpec{{Name: "a", Kind: KindRedis}},
			fields:  []string{"clients[0].url"},
		},
		{
			name:    "s3 without bucket",
			clients: []ClientSpec{{Name: "a", Kind: KindS3}},
			fields:  []string{"clients[0].bucket"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manifest{Clients: tt.clients}
			err := m.Validate()
			require.Error(t, err)

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			var fields []string
			for _, v := range verrs {
				fields = append(fields, v.Field)
			}
			assert.ElementsMatch(t, tt.fields, fields)
			assert.NotErrorIs(t, err, ErrUnknownKind)
		})
	}
}

func TestValidate_UnknownKind(t *testing.T) {
	m := &Manifest{Clients: []ClientSpec{{Name: "a", Kind: "carrier-pigeon"}}}
	err := m.Validate()

	assert.ErrorIs(t, err, ErrUnknownKind)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 1)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestValidate_Empty(t *testing.T) {
	assert.NoError(t, (&Manifest{}).Validate())
}

func TestFingerprint(t *testing.T) {
	a := ClientSpec{Name: "hooks", Kind: KindWebhook, URL: "https://a.example.com"}
	b := a
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Secret = "rotated"
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
