/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
table_prefix: dev-
tables_dir: "{config-dir}/tables"
wait_timeout: 30s
connections:
  default:
    region: eu-west-1
    endpoint: http://localhost:8000
    access_key_id: local
    secret_access_key: ${LOCAL_SECRET}
  archive:
    region: us-east-2
log:
  level: debug
  format: json
metrics:
  enabled: true
  addr: 127.0.0.1:8125
  tags: ["service:pages"]
`

func TestParse(t *testing.T) {
	t.Setenv("LOCAL_SECRET", "s3cret")

	cfg, err := Parse([]byte(sample), "/etc/pages")
	require.NoError(t, err)

	assert.Equal(t, "dev-", cfg.TablePrefix)
	assert.Equal(t, "dev-pages", cfg.TableName("pages"))
	assert.Equal(t, "/etc/pages/tables", cfg.TablesDir)
	assert.Equal(t, 30*time.Second, cfg.WaitTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, []string{"service:pages"}, cfg.Metrics.Tags)
	assert.Equal(t, "/etc/pages", cfg.Dir())

	conn, err := cfg.Connection("")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", conn.Region)
	assert.Equal(t, "http://localhost:8000", conn.Endpoint)
	assert.Equal(t, "s3cret", conn.SecretAccessKey)

	archive, err := cfg.Connection("archive")
	require.NoError(t, err)
	assert.Equal(t, "us-east-2", archive.Region)
	assert.Empty(t, archive.AccessKeyID, "no credential pair means the default chain")

	_, err = cfg.Connection("missing")
	assert.Error(t, err)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("table_prefix: test-\n"), "/tmp")
	require.NoError(t, err)

	conn, err := cfg.Connection(DefaultConnection)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", conn.Region)
	assert.Equal(t, 5*time.Minute, cfg.WaitTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvRegion, "ap-south-1")
	t.Setenv(EnvEndpoint, "http://dynamo:8000")
	t.Setenv(EnvAccessKeyID, "key")
	t.Setenv(EnvSecretAccessKey, "secret")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Parse([]byte(sample), "/etc/pages")
	require.NoError(t, err)

	conn, _ := cfg.Connection("")
	assert.Equal(t, "ap-south-1", conn.Region)
	assert.Equal(t, "http://dynamo:8000", conn.Endpoint)
	assert.Equal(t, "key", conn.AccessKeyID)
	assert.Equal(t, "secret", conn.SecretAccessKey)
	assert.Equal(t, "warn", cfg.Log.Level)

	archive, _ := cfg.Connection("archive")
	assert.Equal(t, "us-east-2", archive.Region, "overrides only touch the default connection")
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing default", "connections:\n  other:\n    region: us-east-1\n"},
		{"missing region", "connections:\n  default:\n    endpoint: http://localhost:8000\n"},
		{"bad endpoint", "connections:\n  default:\n    region: us-east-1\n    endpoint: not a url\n"},
		{"half credential pair", "connections:\n  default:\n    region: us-east-1\n    access_key_id: key\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"metrics without addr", "metrics:\n  enabled: true\n"},
		{"negative wait", "wait_timeout: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "/tmp")
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("connections: [1, 2"), "/tmp")
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PAGES_REGION=ca-central-1\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recordstore.yaml"), []byte(`
tables_dir: "{config-dir}"
connections:
  default:
    region: ${PAGES_REGION}
`), 0o600))
	t.Cleanup(func() { os.Unsetenv("PAGES_REGION") })

	cfg, err := Load(filepath.Join(dir, "recordstore.yaml"))
	require.NoError(t, err)

	conn, _ := cfg.Connection("")
	assert.Equal(t, "ca-central-1", conn.Region)
	assert.Equal(t, dir, cfg.TablesDir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv(EnvRegion, "sa-east-1")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	conn, _ := cfg.Connection("")
	assert.Equal(t, "sa-east-1", conn.Region)
}

func TestStringMasksSecrets(t *testing.T) {
	t.Setenv("LOCAL_SECRET", "s3cret")
	cfg, err := Parse([]byte(sample), "/etc/pages")
	require.NoError(t, err)

	out := cfg.String()
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "****")
	assert.Contains(t, out, "eu-west-1")
}
